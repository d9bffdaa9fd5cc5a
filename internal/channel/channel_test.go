package channel

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftroom/internal/event"
	"github.com/debemdeboas/draftroom/internal/model"
)

const waitTimeout = 2 * time.Second

type fakeConn struct {
	frames chan []byte
	done   chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), done: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case m, ok := <-f.frames:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, m, nil
	case <-f.done:
		return 0, nil, net.ErrClosed
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// scriptedDialer answers the n-th dial with script(n).
type scriptedDialer struct {
	mu     sync.Mutex
	urls   []string
	script func(n int) (Conn, error)
}

func (d *scriptedDialer) Dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	n := len(d.urls)
	d.urls = append(d.urls, url)
	d.mu.Unlock()
	return d.script(n)
}

func (d *scriptedDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

// instantClock records requested delays and fires immediately.
type instantClock struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.delays = append(c.delays, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (c *instantClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

var errRefused = errors.New("connection refused")

func newTestChannel(t *testing.T, dialer Dialer, clock *instantClock) (*Channel, chan State) {
	t.Helper()
	SetLogger(zerolog.Nop())

	states := make(chan State, 256)
	ch := New(Options{
		BaseURL:       "ws://example.test",
		Dialer:        dialer,
		After:         clock.After,
		OnStateChange: func(s State) { states <- s },
	})
	t.Cleanup(ch.Disconnect)
	return ch, states
}

func waitForState(t *testing.T, states <-chan State, want State) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for state %s", want)
		}
	}
}

func frame(t *testing.T, ev event.Event) []byte {
	t.Helper()
	data, err := event.Encode(ev)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func deleted(draftID model.DraftID, commentID string) event.Event {
	return event.Event{Type: event.CommentDeleted, DraftID: draftID, Data: event.Ref{ID: commentID}}
}

func TestBackoffDelay(t *testing.T) {
	b := DefaultBackoff
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second, 10 * time.Second}
	for attempt, d := range want {
		if got := b.Delay(attempt); got != d {
			t.Errorf("Delay(%d): expected %s, got %s", attempt, d, got)
		}
	}

	if got := (Backoff{}).withDefaults(); got != DefaultBackoff {
		t.Errorf("Expected zero backoff to take defaults, got %+v", got)
	}
	if got := (Backoff{MaxAttempts: 2}).withDefaults(); got.Base != time.Second || got.MaxAttempts != 2 {
		t.Errorf("Expected partial defaults, got %+v", got)
	}
}

func TestReconnectGoesDormant(t *testing.T) {
	dialer := &scriptedDialer{script: func(int) (Conn, error) { return nil, errRefused }}
	clock := &instantClock{}
	ch, states := newTestChannel(t, dialer, clock)

	ch.Connect("tok")
	waitForState(t, states, Dormant)

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second}
	if got := clock.recorded(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected delays %v, got %v", want, got)
	}
	if dialer.dials() != 6 {
		t.Errorf("Expected 6 dials (initial + 5 retries), got %d", dialer.dials())
	}
	if !ch.Paused() {
		t.Error("Expected a dormant channel to report paused")
	}
	if ch.Attempts() != 5 {
		t.Errorf("Expected 5 attempts, got %d", ch.Attempts())
	}
}

func TestReconnectCounterResetsOnOpen(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{script: func(n int) (Conn, error) {
		if n == 2 {
			return conn, nil
		}
		return nil, errRefused
	}}
	clock := &instantClock{}
	ch, states := newTestChannel(t, dialer, clock)

	ch.Connect("tok")
	waitForState(t, states, Open)

	if ch.Attempts() != 0 {
		t.Errorf("Expected attempt counter reset on open, got %d", ch.Attempts())
	}
	if ch.Paused() {
		t.Error("Expected open channel not to be paused")
	}

	conn.Close()
	waitForState(t, states, Dormant)

	want := []time.Duration{
		time.Second, 2 * time.Second,
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second,
	}
	if got := clock.recorded(); !reflect.DeepEqual(got, want) {
		t.Errorf("Expected delays %v, got %v", want, got)
	}
}

func TestConnectIsNoOpWhileOpen(t *testing.T) {
	dialer := &scriptedDialer{script: func(int) (Conn, error) { return newFakeConn(), nil }}
	ch, states := newTestChannel(t, dialer, &instantClock{})

	ch.Connect("tok")
	waitForState(t, states, Open)
	ch.Connect("tok")
	ch.Connect("other")

	if dialer.dials() != 1 {
		t.Errorf("Expected a single dial, got %d", dialer.dials())
	}
	if got := dialer.urls[0]; got != "ws://example.test/drafts?token=tok" {
		t.Errorf("Unexpected dial URL %q", got)
	}
}

func TestConnectEscapesToken(t *testing.T) {
	ch := New(Options{BaseURL: "wss://api.example.com/"})
	if got := ch.url("a b&c=d"); got != "wss://api.example.com/drafts?token=a+b%26c%3Dd" {
		t.Errorf("Unexpected URL %q", got)
	}
}

func TestDispatch(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{script: func(int) (Conn, error) { return conn, nil }}
	ch, states := newTestChannel(t, dialer, &instantClock{})

	var mu sync.Mutex
	var calls []string
	done := make(chan struct{}, 8)
	record := func(name string) Handler {
		return func(ev event.Event) {
			mu.Lock()
			calls = append(calls, name+":"+ev.Data.(event.Ref).ID)
			mu.Unlock()
			done <- struct{}{}
		}
	}

	ch.Subscribe("d1", record("first"))
	ch.Subscribe("d1", func(event.Event) { panic("handler bug") })
	ch.Subscribe("d1", record("second"))
	ch.Subscribe("d2", record("other"))

	ch.Connect("tok")
	waitForState(t, states, Open)

	conn.frames <- []byte(`{"type":"comment_added","draftId":"d1"`) // truncated
	conn.frames <- []byte(`{"type":"mystery","draftId":"d1","data":{}}`)
	conn.frames <- frame(t, deleted("d1", "c1"))
	conn.frames <- frame(t, deleted("d2", "c2"))
	conn.frames <- frame(t, deleted("d3", "c3"))

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(waitTimeout):
			t.Fatalf("Timed out after %d handler calls", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	want := []string{"first:c1", "second:c1", "other:c2"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("Expected calls %v, got %v", want, calls)
	}
}

func TestNoCallAfterUnsubscribe(t *testing.T) {
	conn := newFakeConn()
	dialer := &scriptedDialer{script: func(int) (Conn, error) { return conn, nil }}
	ch, states := newTestChannel(t, dialer, &instantClock{})

	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	sub := ch.Subscribe("d1", func(event.Event) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(entered)
			<-release
		}
	})
	sentinel := make(chan string, 4)
	ch.Subscribe("d1", func(ev event.Event) { sentinel <- ev.Data.(event.Ref).ID })

	ch.Connect("tok")
	waitForState(t, states, Open)

	conn.frames <- frame(t, deleted("d1", "c1"))
	<-entered

	unsubscribed := make(chan struct{})
	go func() {
		ch.Unsubscribe(sub)
		close(unsubscribed)
	}()

	select {
	case <-unsubscribed:
		t.Fatal("Expected Unsubscribe to wait for the in-flight handler")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-unsubscribed:
	case <-time.After(waitTimeout):
		t.Fatal("Unsubscribe did not return")
	}

	conn.frames <- frame(t, deleted("d1", "c2"))
	for _, want := range []string{"c1", "c2"} {
		select {
		case got := <-sentinel:
			if got != want {
				t.Errorf("Expected sentinel %s, got %s", want, got)
			}
		case <-time.After(waitTimeout):
			t.Fatalf("Timed out waiting for sentinel %s", want)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected exactly one call before unsubscribe, got %d", calls)
	}

	ch.Unsubscribe(sub) // idempotent
	ch.Unsubscribe(nil)
}

func TestUnsubscribeRemovesRoute(t *testing.T) {
	ch := New(Options{})
	a := ch.Subscribe("d1", func(event.Event) {})
	b := ch.Subscribe("d1", func(event.Event) {})

	ch.Unsubscribe(a)
	if got := len(ch.subs["d1"]); got != 1 {
		t.Errorf("Expected one remaining subscription, got %d", got)
	}
	ch.Unsubscribe(b)
	if _, ok := ch.subs["d1"]; ok {
		t.Error("Expected the routing entry to be removed with the last subscription")
	}
	if a.DraftID() != "d1" {
		t.Errorf("Unexpected draft id %s", a.DraftID())
	}
}

func TestDisconnect(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	dialer := &scriptedDialer{script: func(n int) (Conn, error) {
		if n == 0 {
			return first, nil
		}
		return second, nil
	}}
	ch, states := newTestChannel(t, dialer, &instantClock{})

	stale := make(chan struct{}, 1)
	ch.Subscribe("d1", func(event.Event) { stale <- struct{}{} })

	ch.Connect("tok")
	waitForState(t, states, Open)

	ch.Disconnect()
	ch.Disconnect()

	if ch.State() != Closed {
		t.Errorf("Expected Closed, got %s", ch.State())
	}
	if !first.isClosed() {
		t.Error("Expected the socket to be closed")
	}
	if len(ch.subs) != 0 {
		t.Errorf("Expected subscriptions to be cleared, got %d", len(ch.subs))
	}

	fresh := make(chan struct{}, 1)
	ch.Subscribe("d1", func(event.Event) { fresh <- struct{}{} })

	ch.Connect("tok")
	waitForState(t, states, Open)
	second.frames <- frame(t, deleted("d1", "c1"))

	select {
	case <-fresh:
	case <-time.After(waitTimeout):
		t.Fatal("Expected the new session to deliver events")
	}
	select {
	case <-stale:
		t.Error("Expected subscriptions from before Disconnect to stay silent")
	default:
	}
}

func TestDisconnectCancelsPendingRetry(t *testing.T) {
	dialer := &scriptedDialer{script: func(int) (Conn, error) { return nil, errRefused }}
	SetLogger(zerolog.Nop())

	states := make(chan State, 16)
	ch := New(Options{
		Dialer:        dialer,
		After:         func(time.Duration) <-chan time.Time { return make(chan time.Time) }, // never fires
		OnStateChange: func(s State) { states <- s },
	})

	ch.Connect("tok")
	waitForState(t, states, Reconnecting)
	if !ch.Paused() {
		t.Error("Expected a reconnecting channel to report paused")
	}

	ch.Disconnect()
	waitForState(t, states, Closed)
	time.Sleep(20 * time.Millisecond)
	if dialer.dials() != 1 {
		t.Errorf("Expected no dial after Disconnect, got %d", dialer.dials())
	}
}

func TestWebsocketEndToEnd(t *testing.T) {
	SetLogger(zerolog.Nop())
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drafts" || r.URL.Query().Get("token") != "secret" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		payload, _ := event.Encode(event.Event{
			Type:    event.RoleUpdated,
			DraftID: "d1",
			Data:    event.RoleChange{ID: "u2", Role: model.RoleEditor},
		})
		conn.WriteMessage(websocket.TextMessage, []byte("garbage"))
		conn.WriteMessage(websocket.TextMessage, payload)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	t.Run("Delivers events", func(t *testing.T) {
		states := make(chan State, 16)
		ch := New(Options{BaseURL: wsURL, OnStateChange: func(s State) { states <- s }})
		defer ch.Disconnect()

		got := make(chan event.RoleChange, 1)
		ch.Subscribe("d1", func(ev event.Event) { got <- ev.Data.(event.RoleChange) })

		ch.Connect("secret")
		select {
		case rc := <-got:
			if rc.ID != "u2" || rc.Role != model.RoleEditor {
				t.Errorf("Unexpected role change %+v", rc)
			}
		case <-time.After(waitTimeout):
			t.Fatal("Timed out waiting for event over websocket")
		}
		if ch.State() != Open {
			t.Errorf("Expected Open, got %s", ch.State())
		}
	})

	t.Run("Rejected handshake counts as a failure", func(t *testing.T) {
		states := make(chan State, 16)
		ch := New(Options{
			BaseURL:       wsURL,
			Backoff:       Backoff{Base: time.Millisecond, Max: time.Millisecond, MaxAttempts: 1},
			OnStateChange: func(s State) { states <- s },
		})
		defer ch.Disconnect()

		ch.Connect("wrong")
		waitForState(t, states, Dormant)
	})
}
