// Package drafts promotes autosaved compositions into durable drafts and moves
// them through review.
package drafts

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftroom/internal/model"
)

var draftsLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	draftsLogger = l
}

var (
	ErrEmptyDraft        = errors.New("draft has no content or media")
	ErrInvalidTransition = errors.New("invalid status transition")
)

type Remote interface {
	GetDraft(ctx context.Context, id model.DraftID) (*model.Draft, error)
	CreateDraft(ctx context.Context, draft *model.Draft) (model.DraftID, error)
	UpdateDraft(ctx context.Context, id model.DraftID, draft *model.Draft) error
	SubmitForReview(ctx context.Context, id model.DraftID) error
}

// SlotClearer removes a platform's autosave slot.
type SlotClearer interface {
	Clear(ctx context.Context, platform model.PlatformID) error
}

type Service struct {
	remote Remote
	slots  SlotClearer
}

func NewService(remote Remote, slots SlotClearer) *Service {
	return &Service{remote: remote, slots: slots}
}

// Save creates the draft when draftID is empty and updates it otherwise. The
// platform's autosave slot is cleared once the server accepted the draft.
func (s *Service) Save(ctx context.Context, draftID model.DraftID, composition *model.AutosaveDraft) (model.DraftID, error) {
	if composition == nil || composition.Empty() {
		return "", ErrEmptyDraft
	}
	if composition.Platform == "" {
		return "", errors.New("draft needs a platform")
	}

	draft := composition.Promote(draftID)
	if draftID == "" {
		draft.Status = model.StatusDraft
		id, err := s.remote.CreateDraft(ctx, draft)
		if err != nil {
			return "", fmt.Errorf("failed to create draft: %w", err)
		}
		draftID = id
	} else if err := s.remote.UpdateDraft(ctx, draftID, draft); err != nil {
		return "", fmt.Errorf("failed to update draft: %w", err)
	}

	draftsLogger.Info().Str("draft_id", string(draftID)).Str("platform", string(composition.Platform)).Msg("Draft saved")
	s.clearSlot(ctx, composition.Platform)
	return draftID, nil
}

// Submit moves a draft into review and clears its platform's autosave slot.
func (s *Service) Submit(ctx context.Context, draftID model.DraftID) error {
	draft, err := s.remote.GetDraft(ctx, draftID)
	if err != nil {
		return fmt.Errorf("failed to load draft: %w", err)
	}
	status := draft.Status
	if status == "" {
		status = model.StatusDraft
	}
	if !status.CanTransitionTo(model.StatusInReview) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, status, model.StatusInReview)
	}

	if err := s.remote.SubmitForReview(ctx, draftID); err != nil {
		return fmt.Errorf("failed to submit draft: %w", err)
	}

	draftsLogger.Info().Str("draft_id", string(draftID)).Msg("Draft submitted for review")
	s.clearSlot(ctx, draft.Platform)
	return nil
}

// clearSlot is best effort: the draft is already durable on the server.
func (s *Service) clearSlot(ctx context.Context, platform model.PlatformID) {
	if s.slots == nil || platform == "" {
		return
	}
	if err := s.slots.Clear(ctx, platform); err != nil {
		draftsLogger.Warn().Err(err).Str("platform", string(platform)).Msg("Error clearing autosave slot")
	}
}
