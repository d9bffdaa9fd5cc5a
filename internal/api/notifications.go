package api

import (
	"context"
	"net/http"

	"github.com/debemdeboas/draftroom/internal/model"
	"github.com/debemdeboas/draftroom/internal/routes"
)

const NotificationTypeMention = "mention"

type Notification struct {
	UserID model.UserID     `json:"userId"`
	Title  string           `json:"title"`
	Body   string           `json:"body"`
	Data   NotificationData `json:"data"`
}

type NotificationData struct {
	Type        string          `json:"type"`
	DraftID     model.DraftID   `json:"draftId"`
	CommentID   model.CommentID `json:"commentId"`
	MentionedBy Mentioner       `json:"mentionedBy"`
}

type Mentioner struct {
	ID   model.UserID `json:"id"`
	Name string       `json:"name"`
}

func (c *Client) SendNotification(ctx context.Context, n Notification) error {
	return c.doJSON(ctx, http.MethodPost, routes.NotificationsSend, n, nil)
}
