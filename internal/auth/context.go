package auth

import (
	"context"

	"github.com/debemdeboas/draftroom/internal/model"
)

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const (
	ContextKeyUserID ContextKey = "userID"
	ContextKeyUser   ContextKey = "user"
)

// ContextWithUserID returns a new context with the user ID set
func ContextWithUserID(ctx context.Context, userID model.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// UserIDFromContext extracts the user ID from context
func UserIDFromContext(ctx context.Context) (model.UserID, bool) {
	userID, ok := ctx.Value(ContextKeyUserID).(model.UserID)
	return userID, ok
}

// ContextWithUser stores the session user and its ID.
func ContextWithUser(ctx context.Context, user model.User) context.Context {
	ctx = ContextWithUserID(ctx, user.ID)
	return context.WithValue(ctx, ContextKeyUser, user)
}

func UserFromContext(ctx context.Context) (model.User, bool) {
	user, ok := ctx.Value(ContextKeyUser).(model.User)
	return user, ok
}
