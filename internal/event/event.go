// Package event decodes the frames pushed on the draft collaboration channel.
//
// A frame is an envelope {"type", "draftId", "data"} whose type selects the
// shape of data. Decode checks both stages and returns a typed Event.
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/debemdeboas/draftroom/internal/model"
)

type Type string

const (
	CommentAdded        Type = "comment_added"
	CommentUpdated      Type = "comment_updated"
	CommentDeleted      Type = "comment_deleted"
	CollaboratorAdded   Type = "collaborator_added"
	CollaboratorRemoved Type = "collaborator_removed"
	RoleUpdated         Type = "role_updated"
)

var (
	ErrMalformed   = errors.New("malformed channel event")
	ErrUnknownType = fmt.Errorf("%w: unknown event type", ErrMalformed)
)

// Ref identifies the comment or collaborator a removal refers to.
type Ref struct {
	ID string `json:"id" validate:"required"`
}

type RoleChange struct {
	ID   model.UserID `json:"id" validate:"required"`
	Role model.Role   `json:"role" validate:"required,oneof=editor viewer"`
}

// Event is a decoded frame. Data holds, by Type:
//
//	comment_added, comment_updated          *model.Comment
//	comment_deleted, collaborator_removed   Ref
//	collaborator_added                      *model.Collaborator
//	role_updated                            RoleChange
type Event struct {
	Type    Type
	DraftID model.DraftID
	Data    any
}

type envelope struct {
	Type    Type            `json:"type"`
	DraftID model.DraftID   `json:"draftId"`
	Data    json.RawMessage `json:"data"`
}

var validate = validator.New()

func Decode(frame []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.DraftID == "" {
		return Event{}, fmt.Errorf("%w: missing draftId", ErrMalformed)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return Event{}, fmt.Errorf("%w: missing data", ErrMalformed)
	}

	ev := Event{Type: env.Type, DraftID: env.DraftID}

	var err error
	switch env.Type {
	case CommentAdded, CommentUpdated:
		var c model.Comment
		if err = decodePayload(env.Data, &c); err == nil && env.Type == CommentAdded {
			err = validate.Var(c.Content, "required")
		}
		if c.DraftID == "" {
			c.DraftID = env.DraftID
		}
		ev.Data = &c
	case CommentDeleted, CollaboratorRemoved:
		var ref Ref
		err = decodePayload(env.Data, &ref)
		ev.Data = ref
	case CollaboratorAdded:
		var c model.Collaborator
		err = decodePayload(env.Data, &c)
		ev.Data = &c
	case RoleUpdated:
		var rc RoleChange
		err = decodePayload(env.Data, &rc)
		ev.Data = rc
	default:
		return Event{}, fmt.Errorf("%w %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s payload: %v", ErrMalformed, env.Type, err)
	}
	return ev, nil
}

func decodePayload(data json.RawMessage, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}

// Encode produces the wire frame for ev.
func Encode(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: ev.Type, DraftID: ev.DraftID, Data: data})
}
