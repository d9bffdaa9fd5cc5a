// Package auth supplies the bearer tokens sent to the remote API and the
// channel, and carries the session user through contexts.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var authLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	authLogger = l
}

var ErrNoToken = errors.New("no session token")

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken always returns the same token.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Token is an access token with its refresh token and expiry.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Token, error)
}

const DefaultExpiryBuffer = 5 * time.Minute

// RefreshingSource hands out a cached token and refreshes it once it is
// within Buffer of expiring. Concurrent callers share a single refresh.
type RefreshingSource struct {
	refresher Refresher
	buffer    time.Duration
	now       func() time.Time

	mu    sync.Mutex
	token Token
	group singleflight.Group
}

func NewRefreshingSource(initial Token, refresher Refresher) *RefreshingSource {
	return &RefreshingSource{
		refresher: refresher,
		buffer:    DefaultExpiryBuffer,
		now:       time.Now,
		token:     initial,
	}
}

// Expired reports whether t must be refreshed at now given buffer.
func Expired(t Token, now time.Time, buffer time.Duration) bool {
	return !now.Add(buffer).Before(t.ExpiresAt)
}

func (s *RefreshingSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	current := s.token
	s.mu.Unlock()

	if current.AccessToken != "" && !Expired(current, s.now(), s.buffer) {
		return current.AccessToken, nil
	}

	// The refresh outlives any single caller; each caller only stops waiting.
	results := s.group.DoChan("refresh", func() (any, error) {
		return s.refresh(context.WithoutCancel(ctx))
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return "", res.Err
		}
		authLogger.Debug().Bool("shared", res.Shared).Msg("Session token refreshed")
		return res.Val.(string), nil
	}
}

func (s *RefreshingSource) refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	refreshToken := s.token.RefreshToken
	s.mu.Unlock()

	if refreshToken == "" {
		return "", ErrNoToken
	}

	next, err := s.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		authLogger.Warn().Err(err).Msg("Session token refresh failed")
		return "", err
	}
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}

	s.mu.Lock()
	s.token = next
	s.mu.Unlock()
	return next.AccessToken, nil
}
