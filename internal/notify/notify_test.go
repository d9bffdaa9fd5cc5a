package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/draftroom/internal/api"
	"github.com/debemdeboas/draftroom/internal/model"
)

type fakeSender struct {
	mu    sync.Mutex
	sent  []api.Notification
	fail  map[model.UserID]bool
	block chan struct{}
}

func (f *fakeSender) SendNotification(ctx context.Context, n api.Notification) error {
	if f.block != nil {
		<-f.block
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[n.UserID] {
		return errors.New("push service down")
	}
	f.sent = append(f.sent, n)
	return nil
}

func (f *fakeSender) recipients() []model.UserID {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.UserID
	for _, n := range f.sent {
		out = append(out, n.UserID)
	}
	return out
}

func TestMentionPayload(t *testing.T) {
	SetLogger(zerolog.Nop())
	sender := &fakeSender{}
	d := NewDispatcher(sender, Options{Rate: 1000, Burst: 10})

	d.Mention(context.Background(), "d1", "c1", "u2", model.User{ID: "u1", Name: "Alice"})
	d.Close()

	if len(sender.sent) != 1 {
		t.Fatalf("Expected one notification, got %d", len(sender.sent))
	}
	n := sender.sent[0]
	want := api.Notification{
		UserID: "u2",
		Title:  "New Mention",
		Body:   "Alice mentioned you in a comment",
		Data: api.NotificationData{
			Type:        "mention",
			DraftID:     "d1",
			CommentID:   "c1",
			MentionedBy: api.Mentioner{ID: "u1", Name: "Alice"},
		},
	}
	if n != want {
		t.Errorf("Expected %+v, got %+v", want, n)
	}
}

func TestFailuresAreDropped(t *testing.T) {
	SetLogger(zerolog.Nop())
	sender := &fakeSender{fail: map[model.UserID]bool{"u2": true}}
	d := NewDispatcher(sender, Options{Rate: 1000, Burst: 10})

	by := model.User{ID: "u1", Email: "alice@example.com"}
	d.Mention(context.Background(), "d1", "c1", "u2", by)
	d.Mention(context.Background(), "d1", "c1", "u3", by)
	d.Close()

	got := sender.recipients()
	if len(got) != 1 || got[0] != "u3" {
		t.Errorf("Expected delivery to continue after a failure, got %v", got)
	}
	if sender.sent[0].Body != "alice@example.com mentioned you in a comment" {
		t.Errorf("Expected email fallback in body, got %q", sender.sent[0].Body)
	}
}

func TestMentionNeverBlocks(t *testing.T) {
	SetLogger(zerolog.Nop())
	sender := &fakeSender{block: make(chan struct{})}
	d := NewDispatcher(sender, Options{Rate: 1000, Burst: 10, QueueSize: 2})

	returned := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			d.Mention(context.Background(), "d1", "c1", model.UserID("u"+string(rune('0'+i))), model.User{ID: "u1", Name: "A"})
		}
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Expected Mention to return while the worker is stuck")
	}

	close(sender.block)
	d.Close()

	// One in flight plus a full queue of two; the rest were dropped.
	if n := len(sender.recipients()); n > 3 || n == 0 {
		t.Errorf("Expected between 1 and 3 deliveries, got %d", n)
	}
}

func TestCallerCancellationDoesNotCancelSend(t *testing.T) {
	SetLogger(zerolog.Nop())
	sender := &fakeSender{}
	d := NewDispatcher(sender, Options{Rate: 1000, Burst: 10})

	ctx, cancel := context.WithCancel(context.Background())
	d.Mention(ctx, "d1", "c1", "u2", model.User{ID: "u1", Name: "A"})
	cancel()
	d.Close()

	if len(sender.recipients()) != 1 {
		t.Error("Expected the notification to be sent after the caller cancelled")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	SetLogger(zerolog.Nop())
	sender := &fakeSender{}
	d := NewDispatcher(sender, Options{})

	d.Close()
	d.Close()
	d.Mention(context.Background(), "d1", "c1", "u2", model.User{ID: "u1"})

	if len(sender.recipients()) != 0 {
		t.Error("Expected mentions after Close to be dropped")
	}
}
