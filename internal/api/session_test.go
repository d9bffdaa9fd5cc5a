package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/debemdeboas/draftroom/internal/auth"
)

var _ auth.Refresher = (*Client)(nil)

func TestRefresh(t *testing.T) {
	ctx := context.Background()

	t.Run("Exchanges the refresh token", func(t *testing.T) {
		s, c := newAPIServer(t)
		s.on("POST /auth/refresh", http.StatusOK, `{"access_token":"a2","refresh_token":"r2","expires_in":3600}`)

		before := time.Now()
		tok, err := c.Refresh(ctx, "r1")
		if err != nil {
			t.Fatal(err)
		}
		if tok.AccessToken != "a2" || tok.RefreshToken != "r2" {
			t.Errorf("Unexpected token %+v", tok)
		}
		if tok.ExpiresAt.Before(before.Add(time.Hour)) || tok.ExpiresAt.After(time.Now().Add(time.Hour)) {
			t.Errorf("Expected expiry an hour from now, got %s", tok.ExpiresAt)
		}

		req := s.last(t)
		if req.Authorization != "" {
			t.Errorf("Expected no bearer token on refresh, got %q", req.Authorization)
		}
		var body map[string]string
		if err := json.Unmarshal([]byte(req.Body), &body); err != nil {
			t.Fatal(err)
		}
		if body["refresh_token"] != "r1" {
			t.Errorf("Unexpected refresh body %s", req.Body)
		}
	})

	t.Run("Rejected refresh token", func(t *testing.T) {
		s, c := newAPIServer(t)
		s.on("POST /auth/refresh", http.StatusUnauthorized, `{"message":"refresh token revoked"}`)

		_, err := c.Refresh(ctx, "r1")
		var httpErr *HTTPError
		if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusUnauthorized {
			t.Errorf("Expected 401 HTTPError, got %v", err)
		}
	})

	t.Run("Missing access token", func(t *testing.T) {
		s, c := newAPIServer(t)
		s.on("POST /auth/refresh", http.StatusOK, `{"expires_in":3600}`)

		if _, err := c.Refresh(ctx, "r1"); !errors.Is(err, errEmptyAccessToken) {
			t.Errorf("Expected errEmptyAccessToken, got %v", err)
		}
	})

	t.Run("Client refreshes its own session", func(t *testing.T) {
		s, c := newAPIServer(t)
		s.on("POST /auth/refresh", http.StatusOK, `{"access_token":"a2","expires_in":3600}`)
		s.on("GET /posts/drafts", http.StatusOK, `[]`)
		c.tokens = auth.NewRefreshingSource(auth.Token{AccessToken: "a1", RefreshToken: "r1"}, c)

		if _, err := c.ListDrafts(ctx); err != nil {
			t.Fatal(err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if len(s.requests) != 2 || s.requests[0].Path != "/auth/refresh" {
			t.Fatalf("Expected refresh then list, got %+v", s.requests)
		}
		if s.requests[1].Authorization != "Bearer a2" {
			t.Errorf("Expected refreshed bearer token, got %q", s.requests[1].Authorization)
		}
	})
}
