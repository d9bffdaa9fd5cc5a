// Package api is the JSON client for the remote drafts, collaboration and
// notification endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftroom/internal/auth"
	"github.com/debemdeboas/draftroom/internal/config"
)

var apiLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	apiLogger = l
}

var ErrNotFound = errors.New("not found")

// HTTPError is returned for any non-2xx response.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("http %d", e.StatusCode)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL    string
	tokens     auth.TokenSource
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(baseURL string, tokens auth.TokenSource, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doJSON sends body as JSON with the session token and decodes a 2xx response
// into out. Requests are not retried.
func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	return c.send(ctx, method, requestPath, token, body, out)
}

// send performs one request. An empty token sends no Authorization header.
func (c *Client) send(ctx context.Context, method, requestPath, token string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return err
	}

	correlationID := uuid.NewString()
	if token != "" {
		req.Header.Set(config.HAuthorization, config.BearerPrefix+token)
	}
	req.Header.Set(config.HCorrelationID, correlationID)
	if body != nil {
		req.Header.Set(config.HCType, config.CTypeJSON)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	payload, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	ev := apiLogger.Debug().
		Str("method", method).
		Str("path", requestPath).
		Int("status", resp.StatusCode).
		Str("correlation_id", correlationID).
		Dur("elapsed", time.Since(start))
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		ev = ev.Str("user_id", string(userID))
	}
	ev.Msg("API request")

	if readErr != nil {
		return readErr
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || len(payload) == 0 {
			return nil
		}
		return json.Unmarshal(payload, out)
	}

	var errPayload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payload, &errPayload)
	return &HTTPError{StatusCode: resp.StatusCode, Code: errPayload.Code, Message: errPayload.Message}
}
