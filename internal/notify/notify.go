// Package notify delivers mention push notifications in the background.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/debemdeboas/draftroom/internal/api"
	"github.com/debemdeboas/draftroom/internal/model"
)

var notifyLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	notifyLogger = l
}

const (
	mentionTitle   = "New Mention"
	mentionBodyFmt = "%s mentioned you in a comment"
	sendTimeout    = 10 * time.Second
)

type Sender interface {
	SendNotification(ctx context.Context, n api.Notification) error
}

type Options struct {
	Rate      float64
	Burst     int
	QueueSize int
}

var DefaultOptions = Options{Rate: 5, Burst: 5, QueueSize: 64}

type job struct {
	ctx context.Context
	n   api.Notification
}

// Dispatcher queues notifications and sends them from a single worker at a
// bounded rate. Delivery is best effort.
type Dispatcher struct {
	sender  Sender
	limiter *rate.Limiter

	mu     sync.Mutex
	closed bool
	queue  chan job
	done   chan struct{}
}

func NewDispatcher(sender Sender, opts Options) *Dispatcher {
	if opts.Rate <= 0 {
		opts.Rate = DefaultOptions.Rate
	}
	if opts.Burst <= 0 {
		opts.Burst = DefaultOptions.Burst
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultOptions.QueueSize
	}

	d := &Dispatcher{
		sender:  sender,
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		queue:   make(chan job, opts.QueueSize),
		done:    make(chan struct{}),
	}
	go d.work()
	return d
}

// Mention enqueues a mention notification for recipient and returns at once.
// Cancelling ctx afterwards does not cancel the send.
func (d *Dispatcher) Mention(ctx context.Context, draftID model.DraftID, commentID model.CommentID, recipient model.UserID, by model.User) {
	n := api.Notification{
		UserID: recipient,
		Title:  mentionTitle,
		Body:   fmt.Sprintf(mentionBodyFmt, by.DisplayName()),
		Data: api.NotificationData{
			Type:        api.NotificationTypeMention,
			DraftID:     draftID,
			CommentID:   commentID,
			MentionedBy: api.Mentioner{ID: by.ID, Name: by.DisplayName()},
		},
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		notifyLogger.Warn().Str("user_id", string(recipient)).Msg("Dispatcher closed, dropping notification")
		return
	}

	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), n: n}:
	default:
		notifyLogger.Warn().Str("user_id", string(recipient)).Msg("Notification queue full, dropping notification")
	}
}

func (d *Dispatcher) work() {
	defer close(d.done)
	for j := range d.queue {
		if err := d.limiter.Wait(j.ctx); err != nil {
			notifyLogger.Error().Err(err).Msg("Rate limiter wait failed")
			continue
		}

		ctx, cancel := context.WithTimeout(j.ctx, sendTimeout)
		err := d.sender.SendNotification(ctx, j.n)
		cancel()

		if err != nil {
			notifyLogger.Error().
				Err(err).
				Str("user_id", string(j.n.UserID)).
				Str("draft_id", string(j.n.Data.DraftID)).
				Msg("Error sending notification")
			continue
		}
		notifyLogger.Debug().Str("user_id", string(j.n.UserID)).Msg("Notification sent")
	}
}

// Close sends whatever is queued and stops the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		<-d.done
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	<-d.done
}
