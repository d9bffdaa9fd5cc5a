package api

import (
	"context"
	"net/http"

	"github.com/debemdeboas/draftroom/internal/model"
	"github.com/debemdeboas/draftroom/internal/routes"
)

func (c *Client) ListCollaborators(ctx context.Context, draftID model.DraftID) ([]model.Collaborator, error) {
	var out []model.Collaborator
	err := c.doJSON(ctx, http.MethodGet, routes.Path(routes.DraftCollaborators, string(draftID)), nil, &out)
	return out, err
}

func (c *Client) AddCollaborator(ctx context.Context, draftID model.DraftID, email string, role model.Role) (*model.Collaborator, error) {
	body := struct {
		Email string     `json:"email"`
		Role  model.Role `json:"role"`
	}{email, role}

	var out model.Collaborator
	if err := c.doJSON(ctx, http.MethodPost, routes.Path(routes.DraftCollaborators, string(draftID)), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveCollaborator(ctx context.Context, draftID model.DraftID, userID model.UserID) error {
	return c.doJSON(ctx, http.MethodDelete, routes.Path(routes.DraftCollaborator, string(draftID), string(userID)), nil, nil)
}

func (c *Client) UpdateCollaboratorRole(ctx context.Context, draftID model.DraftID, userID model.UserID, role model.Role) error {
	body := struct {
		Role model.Role `json:"role"`
	}{role}
	return c.doJSON(ctx, http.MethodPatch, routes.Path(routes.DraftCollaborator, string(draftID), string(userID)), body, nil)
}

func (c *Client) ListComments(ctx context.Context, draftID model.DraftID) ([]model.Comment, error) {
	var out []model.Comment
	err := c.doJSON(ctx, http.MethodGet, routes.Path(routes.DraftComments, string(draftID)), nil, &out)
	return out, err
}

type commentBody struct {
	Content  string         `json:"content"`
	Mentions []model.UserID `json:"mentions"`
}

func (c *Client) AddComment(ctx context.Context, draftID model.DraftID, content string, mentions []model.UserID) (*model.Comment, error) {
	if mentions == nil {
		mentions = []model.UserID{}
	}

	var out model.Comment
	err := c.doJSON(ctx, http.MethodPost, routes.Path(routes.DraftComments, string(draftID)), commentBody{content, mentions}, &out)
	if err != nil {
		return nil, err
	}
	if out.DraftID == "" {
		out.DraftID = draftID
	}
	return &out, nil
}

func (c *Client) UpdateComment(ctx context.Context, draftID model.DraftID, commentID model.CommentID, content string, mentions []model.UserID) error {
	if mentions == nil {
		mentions = []model.UserID{}
	}
	return c.doJSON(ctx, http.MethodPatch, routes.Path(routes.DraftComment, string(draftID), string(commentID)), commentBody{content, mentions}, nil)
}

func (c *Client) DeleteComment(ctx context.Context, draftID model.DraftID, commentID model.CommentID) error {
	return c.doJSON(ctx, http.MethodDelete, routes.Path(routes.DraftComment, string(draftID), string(commentID)), nil, nil)
}
