package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftroom/internal/model"
	"github.com/debemdeboas/draftroom/internal/repository"
)

var editorLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	editorLogger = l
}

type SlotRepository struct { // implements Repository
	store     repository.Repository
	namespace string
	now       func() time.Time
}

func NewSlotRepository(store repository.Repository, namespace string) *SlotRepository {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &SlotRepository{store: store, namespace: namespace, now: time.Now}
}

// Save overwrites the platform slot and stamps LastModified. A composition
// equal to the stored one keeps its stamp, so the stored bytes do not change.
func (r *SlotRepository) Save(ctx context.Context, draft *model.AutosaveDraft) error {
	if draft == nil || draft.Platform == "" {
		return errors.New("autosave draft needs a platform")
	}

	stamped := *draft
	stamped.LastModified = r.now().UTC()
	if prev, err := r.Load(ctx, draft.Platform); err == nil && prev != nil && sameComposition(prev, draft) {
		stamped.LastModified = prev.LastModified
	}

	data, err := json.Marshal(&stamped)
	if err != nil {
		return fmt.Errorf("error encoding autosave slot: %w", err)
	}
	if err := r.store.Set(ctx, Key(r.namespace, draft.Platform), data); err != nil {
		return err
	}

	draft.LastModified = stamped.LastModified
	editorLogger.Debug().Str("platform", string(draft.Platform)).Int("bytes", len(data)).Msg("Autosave slot written")
	return nil
}

// Load returns nil without error when the slot is empty. A slot that no
// longer decodes is treated as empty and logged.
func (r *SlotRepository) Load(ctx context.Context, platform model.PlatformID) (*model.AutosaveDraft, error) {
	data, err := r.store.Get(ctx, Key(r.namespace, platform))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var draft model.AutosaveDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		editorLogger.Warn().Err(err).Str("platform", string(platform)).Msg("Discarding unreadable autosave slot")
		return nil, nil
	}
	if draft.Platform == "" {
		draft.Platform = platform
	}
	return &draft, nil
}

func (r *SlotRepository) Clear(ctx context.Context, platform model.PlatformID) error {
	if err := r.store.Delete(ctx, Key(r.namespace, platform)); err != nil {
		return err
	}
	editorLogger.Debug().Str("platform", string(platform)).Msg("Autosave slot cleared")
	return nil
}

func sameComposition(a, b *model.AutosaveDraft) bool {
	if a.Content != b.Content || !slices.Equal(a.MediaURLs, b.MediaURLs) {
		return false
	}
	if a.ScheduledFor == nil || b.ScheduledFor == nil {
		return a.ScheduledFor == b.ScheduledFor
	}
	return a.ScheduledFor.Equal(*b.ScheduledFor)
}
