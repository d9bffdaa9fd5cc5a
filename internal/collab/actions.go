package collab

import (
	"context"
	"strings"
	"time"

	"github.com/debemdeboas/draftroom/internal/mention"
	"github.com/debemdeboas/draftroom/internal/model"
)

var now = time.Now

// run performs a remote call for action and maps failures. A call that
// finishes after Deactivate reports ErrInactive.
func (v *View) run(ctx context.Context, action string, call func(ctx context.Context) error) error {
	if !v.active() {
		return ErrInactive
	}
	ctx, done := v.callContext(ctx)
	defer done()

	if err := call(ctx); err != nil {
		if !v.active() {
			return ErrInactive
		}
		collabLogger.Error().Err(err).Str("draft_id", string(v.draftID)).Str("action", action).Msg("Collaboration action failed")
		return &ActionError{Action: action, Err: err}
	}
	return nil
}

func (v *View) AddCollaborator(ctx context.Context, email string, role model.Role) (*model.Collaborator, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, invalid("email is required")
	}
	if !role.Valid() {
		return nil, invalid("unknown role %q", role)
	}

	var added *model.Collaborator
	err := v.run(ctx, ActionAddCollaborator, func(ctx context.Context) error {
		var err error
		added, err = v.coord.remote.AddCollaborator(ctx, v.draftID, email, role)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := v.update(func() bool { return v.upsertCollaborator(*added) }); err != nil {
		return nil, err
	}
	return added, nil
}

func (v *View) RemoveCollaborator(ctx context.Context, id model.UserID) error {
	if id == "" {
		return invalid("collaborator id is required")
	}
	err := v.run(ctx, ActionRemoveCollaborator, func(ctx context.Context) error {
		return v.coord.remote.RemoveCollaborator(ctx, v.draftID, id)
	})
	if err != nil {
		return err
	}
	return v.update(func() bool { return v.removeCollaborator(id) })
}

func (v *View) UpdateRole(ctx context.Context, id model.UserID, role model.Role) error {
	if id == "" {
		return invalid("collaborator id is required")
	}
	if !role.Valid() {
		return invalid("unknown role %q", role)
	}
	err := v.run(ctx, ActionUpdateRole, func(ctx context.Context) error {
		return v.coord.remote.UpdateCollaboratorRole(ctx, v.draftID, id, role)
	})
	if err != nil {
		return err
	}
	return v.update(func() bool { return v.setRole(id, role) })
}

// AddComment posts content with the mentions it resolves to and notifies the
// mentioned collaborators.
func (v *View) AddComment(ctx context.Context, content string) (*model.Comment, error) {
	if !validContent(content) {
		return nil, invalid("comment is empty")
	}

	collaborators := v.collaboratorsCopy()
	mentions := mention.Extract(content, collaborators)

	var added *model.Comment
	err := v.run(ctx, ActionAddComment, func(ctx context.Context) error {
		var err error
		added, err = v.coord.remote.AddComment(ctx, v.draftID, content, mentions)
		return err
	})
	if err != nil {
		return nil, err
	}
	if added.Mentions == nil {
		added.Mentions = mentions
	}

	if err := v.update(func() bool { return v.upsertComment(*added) }); err != nil {
		return nil, err
	}
	v.notifyMentions(ctx, added.ID, mentions, collaborators)
	return added, nil
}

// UpdateComment edits content and notifies only collaborators the edit newly mentions.
func (v *View) UpdateComment(ctx context.Context, id model.CommentID, content string) error {
	if !validContent(content) {
		return invalid("comment is empty")
	}
	existing, ok := v.findComment(id)
	if !ok {
		return invalid("unknown comment %q", id)
	}

	collaborators := v.collaboratorsCopy()
	mentions := mention.Extract(content, collaborators)

	err := v.run(ctx, ActionUpdateComment, func(ctx context.Context) error {
		return v.coord.remote.UpdateComment(ctx, v.draftID, id, content, mentions)
	})
	if err != nil {
		return err
	}

	updatedAt := now().UTC()
	applied := mentions
	if applied == nil {
		applied = []model.UserID{}
	}
	if err := v.update(func() bool { return v.editComment(id, content, &updatedAt, applied) }); err != nil {
		return err
	}
	v.notifyMentions(ctx, id, mention.NewRecipients(existing.Mentions, mentions), collaborators)
	return nil
}

func (v *View) DeleteComment(ctx context.Context, id model.CommentID) error {
	if id == "" {
		return invalid("comment id is required")
	}
	err := v.run(ctx, ActionDeleteComment, func(ctx context.Context) error {
		return v.coord.remote.DeleteComment(ctx, v.draftID, id)
	})
	if err != nil {
		return err
	}
	return v.update(func() bool { return v.removeComment(id) })
}
