// Package observer fans committed changes out to in-process subscribers.
// Delivery is best effort: a subscriber whose buffer is full misses the change.
package observer

import (
	"sync"
	"sync/atomic"
)

const defaultBuffer = 64

// Hub broadcasts values of type T to every open subscription.
type Hub[T any] struct {
	mu      sync.RWMutex
	subs    map[uint64]*Subscription[T]
	nextID  uint64
	closed  bool
	dropped atomic.Int64
	onDrop  func(subscriber string)
}

// Subscription is one subscriber's buffered feed.
type Subscription[T any] struct {
	id   uint64
	name string
	ch   chan T
	hub  *Hub[T]
	once sync.Once
}

// NewHub builds a hub. onDrop, when set, is called with the subscriber name for
// every change that could not be buffered.
func NewHub[T any](onDrop func(subscriber string)) *Hub[T] {
	return &Hub[T]{subs: make(map[uint64]*Subscription[T]), onDrop: onDrop}
}

// Subscribe registers a named subscriber with the given buffer size.
func (h *Hub[T]) Subscribe(name string, buffer int) *Subscription[T] {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	sub := &Subscription[T]{name: name, ch: make(chan T, buffer), hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		sub.once.Do(func() { close(sub.ch) })
		return sub
	}
	h.nextID++
	sub.id = h.nextID
	h.subs[sub.id] = sub
	return sub
}

// Publish offers v to every subscriber without blocking and returns how many accepted it.
func (h *Hub[T]) Publish(v T) int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, sub := range h.subs {
		select {
		case sub.ch <- v:
			delivered++
		default:
			h.dropped.Add(1)
			if h.onDrop != nil {
				h.onDrop(sub.name)
			}
		}
	}
	return delivered
}

// Dropped reports how many deliveries were skipped because a buffer was full.
func (h *Hub[T]) Dropped() int64 {
	return h.dropped.Load()
}

// Close closes every subscription; later Subscribe calls get a closed feed.
func (h *Hub[T]) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		delete(h.subs, id)
		sub.once.Do(func() { close(sub.ch) })
	}
}

// C is the receive side of the feed. It is closed when the subscription or hub closes.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

func (s *Subscription[T]) Name() string {
	return s.name
}

// Close unregisters the subscription.
func (s *Subscription[T]) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s.id)
	s.once.Do(func() { close(s.ch) })
}
