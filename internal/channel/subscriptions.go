package channel

import (
	"sync"

	"github.com/debemdeboas/draftroom/internal/event"
	"github.com/debemdeboas/draftroom/internal/model"
)

type Handler func(event.Event)

// Subscription is the handle returned by Subscribe. It stands in for the
// handler's identity when unsubscribing.
type Subscription struct {
	draftID model.DraftID
	handler Handler

	// mu is held for the whole handler invocation.
	mu     sync.Mutex
	closed bool
}

func (s *Subscription) DraftID() model.DraftID {
	return s.draftID
}

// invoke runs the handler unless the subscription was closed. Panics are
// recovered so one handler cannot stop delivery to the next.
func (s *Subscription) invoke(ev event.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			channelLogger.Error().
				Interface("panic", r).
				Str("draft_id", string(s.draftID)).
				Str("event_type", string(ev.Type)).
				Msg("Event handler panicked")
		}
	}()
	s.handler(ev)
}

// close waits for an in-flight invocation to return.
func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// subscriptions routes draft ids to handlers in registration order.
// Callers hold Channel.mu.
type subscriptions map[model.DraftID][]*Subscription

func (m subscriptions) add(sub *Subscription) {
	m[sub.draftID] = append(m[sub.draftID], sub)
}

func (m subscriptions) remove(sub *Subscription) bool {
	subs := m[sub.draftID]
	for i, s := range subs {
		if s == sub {
			subs = append(subs[:i:i], subs[i+1:]...)
			if len(subs) == 0 {
				delete(m, sub.draftID)
			} else {
				m[sub.draftID] = subs
			}
			return true
		}
	}
	return false
}

// forDraft returns a copy so dispatch can run without the channel lock.
func (m subscriptions) forDraft(id model.DraftID) []*Subscription {
	return append([]*Subscription(nil), m[id]...)
}

func (m subscriptions) all() []*Subscription {
	var out []*Subscription
	for _, subs := range m {
		out = append(out, subs...)
	}
	return out
}
