package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/debemdeboas/draftroom/internal/auth"
	"github.com/debemdeboas/draftroom/internal/routes"
)

var errEmptyAccessToken = errors.New("refresh returned no access token")

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Refresh exchanges refreshToken for a new session token. The refresh token is
// the only credential sent, so the call never waits on the client's own
// TokenSource.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (auth.Token, error) {
	var out refreshResponse
	if err := c.send(ctx, http.MethodPost, routes.AuthRefresh, "", refreshRequest{RefreshToken: refreshToken}, &out); err != nil {
		return auth.Token{}, err
	}
	if out.AccessToken == "" {
		return auth.Token{}, errEmptyAccessToken
	}
	return auth.Token{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(out.ExpiresIn) * time.Second),
	}, nil
}
