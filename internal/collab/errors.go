package collab

import (
	"errors"
	"fmt"

	"github.com/debemdeboas/draftroom/internal/config"
)

var (
	// ErrInactive is returned when the view was deactivated while a call was in flight.
	ErrInactive = errors.New("collaboration view is no longer active")

	ErrInvalidInput = errors.New("invalid input")
)

const (
	ActionLoad               = "load collaboration data"
	ActionAddCollaborator    = "add collaborator"
	ActionRemoveCollaborator = "remove collaborator"
	ActionUpdateRole         = "update collaborator role"
	ActionAddComment         = "add comment"
	ActionUpdateComment      = "update comment"
	ActionDeleteComment      = "delete comment"
)

// ActionError reports a failed remote call for a user action.
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return e.UserMessage() + ": " + e.Err.Error()
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// UserMessage is the short text shown to the user, e.g. "failed to add comment".
func (e *ActionError) UserMessage() string {
	return fmt.Sprintf(config.ErrActionFailedFmt, e.Action)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
