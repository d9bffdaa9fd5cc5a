// Package collab keeps a live, per-draft view of collaborators and comments.
//
// A View is loaded over REST, then kept current by channel events. Local
// mutations are applied as soon as the REST call succeeds, and the echo that
// later arrives on the channel is recognised by identifier and changes nothing.
package collab

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/debemdeboas/draftroom/internal/channel"
	"github.com/debemdeboas/draftroom/internal/model"
)

var collabLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	collabLogger = l
}

// Remote is the subset of the API client the coordinator calls.
type Remote interface {
	ListCollaborators(ctx context.Context, draftID model.DraftID) ([]model.Collaborator, error)
	AddCollaborator(ctx context.Context, draftID model.DraftID, email string, role model.Role) (*model.Collaborator, error)
	RemoveCollaborator(ctx context.Context, draftID model.DraftID, userID model.UserID) error
	UpdateCollaboratorRole(ctx context.Context, draftID model.DraftID, userID model.UserID, role model.Role) error

	ListComments(ctx context.Context, draftID model.DraftID) ([]model.Comment, error)
	AddComment(ctx context.Context, draftID model.DraftID, content string, mentions []model.UserID) (*model.Comment, error)
	UpdateComment(ctx context.Context, draftID model.DraftID, commentID model.CommentID, content string, mentions []model.UserID) error
	DeleteComment(ctx context.Context, draftID model.DraftID, commentID model.CommentID) error
}

type Subscriber interface {
	Subscribe(draftID model.DraftID, handler channel.Handler) *channel.Subscription
	Unsubscribe(sub *channel.Subscription)
	Paused() bool
}

type Notifier interface {
	Mention(ctx context.Context, draftID model.DraftID, commentID model.CommentID, recipient model.UserID, by model.User)
}

type Coordinator struct {
	remote   Remote
	channel  Subscriber
	notifier Notifier
	self     model.User
}

func NewCoordinator(remote Remote, ch Subscriber, notifier Notifier, self model.User) *Coordinator {
	return &Coordinator{
		remote:   remote,
		channel:  ch,
		notifier: notifier,
		self:     self,
	}
}

// LiveUpdatesPaused reports whether the shared channel is currently down.
func (c *Coordinator) LiveUpdatesPaused() bool {
	return c.channel.Paused()
}

// Activate loads the draft's collaborators and comments and then starts
// listening for events. Nothing stays subscribed when loading fails.
func (c *Coordinator) Activate(ctx context.Context, draftID model.DraftID) (*View, error) {
	collaborators, comments, err := c.fetch(ctx, draftID)
	if err != nil {
		collabLogger.Error().Err(err).Str("draft_id", string(draftID)).Msg("Error loading collaboration data")
		return nil, &ActionError{Action: ActionLoad, Err: err}
	}

	viewCtx, cancel := context.WithCancel(context.Background())
	v := &View{
		coord:         c,
		draftID:       draftID,
		ctx:           viewCtx,
		cancel:        cancel,
		collaborators: collaborators,
		comments:      comments,
	}
	v.sub = c.channel.Subscribe(draftID, v.handle)

	collabLogger.Info().
		Str("draft_id", string(draftID)).
		Int("collaborators", len(collaborators)).
		Int("comments", len(comments)).
		Msg("Collaboration view active")
	return v, nil
}

func (c *Coordinator) fetch(ctx context.Context, draftID model.DraftID) ([]model.Collaborator, []model.Comment, error) {
	var collaborators []model.Collaborator
	var comments []model.Comment

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		collaborators, err = c.remote.ListCollaborators(gctx, draftID)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = c.remote.ListComments(gctx, draftID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return collaborators, comments, nil
}
