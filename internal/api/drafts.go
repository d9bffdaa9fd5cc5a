package api

import (
	"context"
	"net/http"

	"github.com/debemdeboas/draftroom/internal/model"
	"github.com/debemdeboas/draftroom/internal/routes"
)

func (c *Client) ListDrafts(ctx context.Context) ([]model.Draft, error) {
	var out []model.Draft
	err := c.doJSON(ctx, http.MethodGet, routes.PostDrafts, nil, &out)
	return out, err
}

func (c *Client) GetDraft(ctx context.Context, id model.DraftID) (*model.Draft, error) {
	var out model.Draft
	if err := c.doJSON(ctx, http.MethodGet, routes.Path(routes.PostDraft, string(id)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDraft stores a new draft and returns the identifier the server assigned.
func (c *Client) CreateDraft(ctx context.Context, draft *model.Draft) (model.DraftID, error) {
	var out struct {
		ID model.DraftID `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, routes.PostDrafts, draft, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) UpdateDraft(ctx context.Context, id model.DraftID, draft *model.Draft) error {
	return c.doJSON(ctx, http.MethodPut, routes.Path(routes.PostDraft, string(id)), draft, nil)
}

func (c *Client) DeleteDraft(ctx context.Context, id model.DraftID) error {
	return c.doJSON(ctx, http.MethodDelete, routes.Path(routes.PostDraft, string(id)), nil, nil)
}

func (c *Client) SubmitForReview(ctx context.Context, id model.DraftID) error {
	return c.doJSON(ctx, http.MethodPost, routes.Path(routes.PostDraftReview, string(id)), nil, nil)
}
