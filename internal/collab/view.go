package collab

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/debemdeboas/draftroom/internal/channel"
	"github.com/debemdeboas/draftroom/internal/event"
	"github.com/debemdeboas/draftroom/internal/mention"
	"github.com/debemdeboas/draftroom/internal/model"
)

// Snapshot is a copy of a view's state.
type Snapshot struct {
	DraftID       model.DraftID
	Collaborators []model.Collaborator
	Comments      []model.Comment
}

// View is the live collaboration state of one draft.
type View struct {
	coord   *Coordinator
	draftID model.DraftID
	sub     *channel.Subscription

	ctx        context.Context
	cancel     context.CancelFunc
	deactivate sync.Once

	mu            sync.Mutex
	collaborators []model.Collaborator
	comments      []model.Comment
	onChange      func(Snapshot)
}

func (v *View) DraftID() model.DraftID {
	return v.draftID
}

// Deactivate stops event delivery and aborts in-flight calls. The shared
// channel stays connected.
func (v *View) Deactivate() {
	v.deactivate.Do(func() {
		v.cancel()
		v.coord.channel.Unsubscribe(v.sub)
		collabLogger.Info().Str("draft_id", string(v.draftID)).Msg("Collaboration view inactive")
	})
}

func (v *View) active() bool {
	return v.ctx.Err() == nil
}

// OnChange registers fn to receive a snapshot after every state change.
func (v *View) OnChange(fn func(Snapshot)) {
	v.mu.Lock()
	v.onChange = fn
	v.mu.Unlock()
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

func (v *View) snapshotLocked() Snapshot {
	s := Snapshot{
		DraftID:       v.draftID,
		Collaborators: append([]model.Collaborator(nil), v.collaborators...),
		Comments:      make([]model.Comment, len(v.comments)),
	}
	for i, c := range v.comments {
		c.Mentions = append([]model.UserID(nil), c.Mentions...)
		s.Comments[i] = c
	}
	return s
}

// update runs fn under the lock unless the view is inactive, then notifies
// the observer outside the lock.
func (v *View) update(fn func() bool) error {
	v.mu.Lock()
	if !v.active() {
		v.mu.Unlock()
		return ErrInactive
	}
	changed := fn()
	observer := v.onChange
	var snap Snapshot
	if changed && observer != nil {
		snap = v.snapshotLocked()
	}
	v.mu.Unlock()

	if changed && observer != nil {
		observer(snap)
	}
	return nil
}

// callContext is cancelled when either ctx or the view is done.
func (v *View) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(v.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (v *View) collaboratorsCopy() []model.Collaborator {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]model.Collaborator(nil), v.collaborators...)
}

// Reload refetches everything over REST. It recovers from missed events.
func (v *View) Reload(ctx context.Context) error {
	if !v.active() {
		return ErrInactive
	}
	ctx, done := v.callContext(ctx)
	defer done()

	collaborators, comments, err := v.coord.fetch(ctx, v.draftID)
	if err != nil {
		if !v.active() {
			return ErrInactive
		}
		return &ActionError{Action: ActionLoad, Err: err}
	}
	return v.update(func() bool {
		v.collaborators = collaborators
		v.comments = comments
		return true
	})
}

// handle applies a channel event. Replays of an already applied change are no-ops.
func (v *View) handle(ev event.Event) {
	err := v.update(func() bool {
		switch data := ev.Data.(type) {
		case *model.Comment:
			if ev.Type == event.CommentAdded {
				return v.upsertComment(*data)
			}
			return v.editComment(data.ID, data.Content, data.UpdatedAt, data.Mentions)
		case *model.Collaborator:
			return v.upsertCollaborator(*data)
		case event.Ref:
			if ev.Type == event.CommentDeleted {
				return v.removeComment(model.CommentID(data.ID))
			}
			return v.removeCollaborator(model.UserID(data.ID))
		case event.RoleChange:
			return v.setRole(data.ID, data.Role)
		}
		return false
	})
	if err == nil {
		collabLogger.Debug().Str("draft_id", string(v.draftID)).Str("event_type", string(ev.Type)).Msg("Applied channel event")
	}
}

// The helpers below are called with v.mu held and report whether state changed.

func (v *View) upsertComment(c model.Comment) bool {
	for i := range v.comments {
		if v.comments[i].ID == c.ID {
			v.comments[i] = c
			return true
		}
	}
	v.comments = append(v.comments, c)
	return true
}

func (v *View) editComment(id model.CommentID, content string, updatedAt *time.Time, mentions []model.UserID) bool {
	for i := range v.comments {
		if v.comments[i].ID == id {
			v.comments[i].Content = content
			v.comments[i].UpdatedAt = updatedAt
			if mentions != nil {
				v.comments[i].Mentions = mentions
			}
			return true
		}
	}
	return false
}

func (v *View) removeComment(id model.CommentID) bool {
	for i := range v.comments {
		if v.comments[i].ID == id {
			v.comments = append(v.comments[:i:i], v.comments[i+1:]...)
			return true
		}
	}
	return false
}

func (v *View) upsertCollaborator(c model.Collaborator) bool {
	for i := range v.collaborators {
		if v.collaborators[i].ID == c.ID {
			v.collaborators[i] = c
			return true
		}
	}
	v.collaborators = append(v.collaborators, c)
	return true
}

func (v *View) removeCollaborator(id model.UserID) bool {
	for i := range v.collaborators {
		if v.collaborators[i].ID == id {
			v.collaborators = append(v.collaborators[:i:i], v.collaborators[i+1:]...)
			return true
		}
	}
	return false
}

func (v *View) setRole(id model.UserID, role model.Role) bool {
	for i := range v.collaborators {
		if v.collaborators[i].ID == id {
			v.collaborators[i].Role = role
			return true
		}
	}
	return false
}

func (v *View) findComment(id model.CommentID) (model.Comment, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, c := range v.comments {
		if c.ID == id {
			return c, true
		}
	}
	return model.Comment{}, false
}

// notifyMentions fires a notification for each resolvable mention except self.
func (v *View) notifyMentions(ctx context.Context, commentID model.CommentID, mentions []model.UserID, collaborators []model.Collaborator) {
	if v.coord.notifier == nil {
		return
	}
	for _, c := range mention.Recipients(mentions, collaborators, v.coord.self.ID) {
		v.coord.notifier.Mention(ctx, v.draftID, commentID, c.ID, v.coord.self)
	}
}

func validContent(content string) bool {
	return strings.TrimSpace(content) != ""
}
