// Package events fans recorded link events out to real-time subscribers:
// an in-process bus for dashboard streams, optionally mirrored to an
// external broker for cross-process delivery.
package events

import (
	"log/slog"
	"sync"

	"github.com/linklytics/gateway/internal/model"
)

// defaultSubscriberBuffer is the per-subscriber channel capacity.
const defaultSubscriberBuffer = 16

// TopicFilter selects which events a subscriber receives. Empty fields
// match everything, so a dashboard can follow a whole workspace or a
// single link.
type TopicFilter struct {
	WorkspaceID string
	ProjectID   string
	LinkID      string
}

func (f TopicFilter) matches(env model.EventEnvelope) bool {
	if f.WorkspaceID != "" && f.WorkspaceID != env.WorkspaceID {
		return false
	}
	if f.ProjectID != "" && f.ProjectID != env.ProjectID {
		return false
	}
	if f.LinkID != "" && f.LinkID != env.LinkID {
		return false
	}
	return true
}

type subscriber struct {
	filter TopicFilter
	ch     chan model.EventEnvelope
}

// Bus is the in-process pub/sub channel for recorded events. Publishing
// never blocks: a subscriber that cannot keep up drops events.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
	closed bool
	logger *slog.Logger

	// mirror, when set, re-publishes every event to the external broker.
	mirror Mirror
}

// Mirror re-publishes bus events to an external transport.
type Mirror interface {
	Publish(env model.EventEnvelope)
}

// NewBus creates an event bus. mirror may be nil.
func NewBus(mirror Mirror, logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]*subscriber),
		mirror: mirror,
		logger: logger,
	}
}

// Publish delivers the event to every matching subscriber and the mirror.
// Slow subscribers are skipped rather than blocking the caller.
func (b *Bus) Publish(env model.EventEnvelope) {
	b.mu.RLock()
	for _, sub := range b.subs {
		if !sub.filter.matches(env) {
			continue
		}
		select {
		case sub.ch <- env:
		default:
			b.logger.Warn("event bus subscriber full, dropping event",
				slog.String("link_id", env.LinkID))
		}
	}
	b.mu.RUnlock()

	if b.mirror != nil {
		b.mirror.Publish(env)
	}
}

// Subscribe registers a filtered subscriber and returns its channel plus a
// cancel function. The channel is closed on cancel and on bus Close.
func (b *Bus) Subscribe(filter TopicFilter) (<-chan model.EventEnvelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	sub := &subscriber{filter: filter, ch: make(chan model.EventEnvelope, defaultSubscriberBuffer)}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
	}
	return sub.ch, cancel
}

// Close tears down all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, sub := range b.subs {
		delete(b.subs, id)
		close(sub.ch)
	}
}
