// Package channel maintains the receive-only websocket that pushes draft
// collaboration events, reconnecting with bounded exponential backoff.
package channel

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftroom/internal/config"
	"github.com/debemdeboas/draftroom/internal/event"
	"github.com/debemdeboas/draftroom/internal/model"
	"github.com/debemdeboas/draftroom/internal/routes"
)

var channelLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	channelLogger = l
}

type State int

const (
	Idle State = iota
	Connecting
	Open
	Reconnecting
	Dormant
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Reconnecting:
		return "reconnecting"
	case Dormant:
		return "dormant"
	case Closed:
		return "closed"
	}
	return "unknown"
}

type Options struct {
	// BaseURL is the websocket origin, e.g. ws://localhost:3000.
	BaseURL string
	Dialer  Dialer
	Backoff Backoff

	// After replaces time.After, mostly for tests.
	After func(time.Duration) <-chan time.Time

	// OnStateChange is called outside the channel lock on every transition.
	OnStateChange func(State)
}

type Channel struct {
	baseURL       string
	dialer        Dialer
	backoff       Backoff
	after         func(time.Duration) <-chan time.Time
	onStateChange func(State)

	mu       sync.Mutex
	state    State
	attempts int
	subs     subscriptions
	conn     Conn
	cancel   context.CancelFunc
}

func New(opts Options) *Channel {
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer()
	}
	if opts.After == nil {
		opts.After = time.After
	}
	return &Channel{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		dialer:        opts.Dialer,
		backoff:       opts.Backoff.withDefaults(),
		after:         opts.After,
		onStateChange: opts.OnStateChange,
		subs:          make(subscriptions),
	}
}

func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Paused reports whether live updates are currently not flowing because the
// socket dropped.
func (c *Channel) Paused() bool {
	s := c.State()
	return s == Reconnecting || s == Dormant
}

// Attempts returns the number of reconnect timers fired since the last open.
func (c *Channel) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Connect opens the socket for token. It does nothing while a session is
// already connecting, open or waiting to retry.
func (c *Channel) Connect(token string) {
	c.mu.Lock()
	switch c.state {
	case Connecting, Open, Reconnecting:
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.attempts = 0
	c.state = Connecting
	c.mu.Unlock()

	c.notify(Connecting)
	go c.run(ctx, c.url(token))
}

func (c *Channel) url(token string) string {
	return c.baseURL + routes.ChannelPath + "?" + config.QueryParamToken + "=" + url.QueryEscape(token)
}

// Disconnect stops any pending retry, closes the socket and drops every
// subscription. Calling it again is harmless. Like Unsubscribe it waits for
// running handlers, so handlers must not call it synchronously.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	conn := c.conn
	c.conn = nil
	subs := c.subs.all()
	c.subs = make(subscriptions)
	changed := c.state != Closed
	c.state = Closed
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	for _, s := range subs {
		s.close()
	}
	if changed {
		channelLogger.Info().Msg("Channel disconnected")
		c.notify(Closed)
	}
}

// Subscribe registers handler for events about draftID. Handlers for the same
// draft run in registration order.
func (c *Channel) Subscribe(draftID model.DraftID, handler Handler) *Subscription {
	sub := &Subscription{draftID: draftID, handler: handler}

	c.mu.Lock()
	c.subs.add(sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes sub. Once it returns the handler will not be called
// again. It must not be called synchronously from the handler being removed.
func (c *Channel) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	c.subs.remove(sub)
	c.mu.Unlock()

	sub.close()
}

func (c *Channel) notify(s State) {
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}

// run owns one session: dial, read until failure, wait, dial again.
func (c *Channel) run(ctx context.Context, target string) {
	for {
		conn, err := c.dialer.Dial(ctx, target)
		if err == nil {
			if c.opened(ctx, conn) {
				c.read(ctx, conn)
			} else {
				conn.Close()
			}
		} else if ctx.Err() == nil {
			channelLogger.Warn().Err(err).Int("attempt", c.Attempts()).Msg("Channel dial failed")
		}

		if ctx.Err() != nil {
			return
		}

		delay, ok := c.scheduleRetry(ctx)
		if !ok {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-c.after(delay):
		}

		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			return
		}
		c.attempts++
		c.state = Connecting
		c.mu.Unlock()
		c.notify(Connecting)
	}
}

func (c *Channel) opened(ctx context.Context, conn Conn) bool {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return false
	}
	c.conn = conn
	c.attempts = 0
	c.state = Open
	c.mu.Unlock()

	channelLogger.Info().Msg("Channel connected")
	c.notify(Open)
	return true
}

// scheduleRetry moves to Reconnecting and returns the delay, or goes Dormant
// once the attempt budget is spent.
func (c *Channel) scheduleRetry(ctx context.Context) (time.Duration, bool) {
	c.mu.Lock()
	if ctx.Err() != nil {
		c.mu.Unlock()
		return 0, false
	}
	if c.attempts >= c.backoff.MaxAttempts {
		c.state = Dormant
		if c.cancel != nil {
			c.cancel()
			c.cancel = nil
		}
		c.mu.Unlock()

		channelLogger.Warn().Int("attempts", c.backoff.MaxAttempts).Msg(config.MsgMaxReconnects)
		c.notify(Dormant)
		return 0, false
	}
	attempt := c.attempts
	c.state = Reconnecting
	c.mu.Unlock()

	delay := c.backoff.Delay(attempt)
	channelLogger.Info().Int("attempt", attempt+1).Dur("delay", delay).Msg("Channel reconnect scheduled")
	c.notify(Reconnecting)
	return delay, true
}

func (c *Channel) read(ctx context.Context, conn Conn) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
	}()

	for {
		messageType, frame, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					channelLogger.Warn().Err(err).Msg("Channel closed unexpectedly")
				} else {
					channelLogger.Info().Err(err).Msg("Channel closed")
				}
			}
			return
		}
		if messageType != websocket.TextMessage {
			channelLogger.Debug().Int("message_type", messageType).Msg("Ignoring non-text frame")
			continue
		}
		c.dispatch(frame)
	}
}

func (c *Channel) dispatch(frame []byte) {
	ev, err := event.Decode(frame)
	if err != nil {
		level := zerolog.WarnLevel
		if errors.Is(err, event.ErrUnknownType) {
			level = zerolog.DebugLevel
		}
		channelLogger.WithLevel(level).Err(err).Int("size", len(frame)).Msg("Dropping channel frame")
		return
	}

	c.mu.Lock()
	subs := c.subs.forDraft(ev.DraftID)
	c.mu.Unlock()

	for _, s := range subs {
		s.invoke(ev)
	}
}
