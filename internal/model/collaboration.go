package model

import "time"

type UserID string

type CommentID string

type Role string

const (
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

func (r Role) Valid() bool {
	return r == RoleEditor || r == RoleViewer
}

// Collaborator is scoped to exactly one draft.
type Collaborator struct {
	ID      UserID  `json:"id" validate:"required"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Picture *string `json:"picture"`
	Role    Role    `json:"role" validate:"required,oneof=editor viewer"`
}

type Comment struct {
	ID          CommentID  `json:"id" validate:"required"`
	DraftID     DraftID    `json:"draftId,omitempty"`
	UserID      UserID     `json:"userId"`
	UserName    string     `json:"userName"`
	UserPicture *string    `json:"userPicture"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt"`

	// Mentions holds collaborator ids resolved from @name tokens, in order of appearance.
	Mentions []UserID `json:"mentions"`
}

// User is the authenticated session user.
type User struct {
	ID    UserID `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
