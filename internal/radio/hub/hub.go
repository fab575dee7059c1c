// Package hub provides multi-consumer fan-out channels with bounded
// buffering and drop-oldest semantics for slow consumers.
//
// Concurrency model: one mutex per hub guards the subscription set; every
// enqueue is non-blocking, so holding the lock across a Publish is cheap and
// keeps Publish/Close free of send-on-closed races. Producers never block: a
// subscriber that cannot keep up loses the oldest items it has not read and
// can observe the loss through Lagged (e.g. to re-request a snapshot).
//
// Subscriptions start at the producer's current tail; there is no replay.
package hub

import (
	"sync"
	"sync/atomic"
)

// Hub fans out values of type T to any number of subscribers.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[*Subscription[T]]struct{}
	buffer int
}

// New creates a hub whose subscribers each buffer up to buffer items.
func New[T any](buffer int) *Hub[T] {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub[T]{subs: make(map[*Subscription[T]]struct{}), buffer: buffer}
}

// Publish delivers v to every current subscriber without ever blocking.
// For a subscriber whose buffer is full the oldest unread item is evicted
// first; if the slot still cannot be taken the new item is counted as lost.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.ch <- v:
			continue
		default:
		}
		// Full: evict the oldest, then retry once.
		select {
		case <-s.ch:
			atomic.AddUint64(&s.lagged, 1)
		default:
		}
		select {
		case s.ch <- v:
		default:
			atomic.AddUint64(&s.lagged, 1)
		}
	}
}

// Subscribe registers a new subscriber positioned at the current tail.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	s := &Subscription[T]{h: h, ch: make(chan T, h.buffer)}
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	return s
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub[T]) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Subscription is one subscriber's slot on a hub. Dropping it (Close) frees
// the slot; the hub never learns anything else about its consumers.
type Subscription[T any] struct {
	h      *Hub[T]
	ch     chan T
	lagged uint64
	closed bool
}

// C returns the receive channel. It is closed when the subscription is.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Lagged returns the cumulative number of items this subscriber lost to
// drop-oldest eviction. A growing value is the lag signal.
func (s *Subscription[T]) Lagged() uint64 { return atomic.LoadUint64(&s.lagged) }

// Close unregisters the subscription and closes its channel. Safe to call
// once per subscription; concurrent Publish calls cannot race the close
// because both paths hold the hub mutex.
func (s *Subscription[T]) Close() {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.h.subs, s)
	close(s.ch)
}
