package inputchan

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrChannelRegistered = errors.New("channel already registered")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Registry keeps one Consumer per live channel of a device class.
//
// Channels are added and removed from the goroutine that handles device
// connect/disconnect while the application takes snapshots and drains them
// from its own goroutine. The lock only covers the container, processors are
// always invoked outside of it.
type Registry[E Event] struct {
	mu        sync.Mutex
	consumers []*Consumer[E]
	index     map[ID]*Consumer[E]
}

func NewRegistry[E Event]() *Registry[E] {
	return &Registry[E]{
		index: make(map[ID]*Consumer[E]),
	}
}

// Add creates a consumer for ch. Registering a channel twice fails with
// ErrChannelRegistered and keeps the existing consumer.
func (r *Registry[E]) Add(ch *Channel[E], processor Processor[E]) (*Consumer[E], error) {
	if ch == nil || processor == nil {
		return nil, fmt.Errorf("%w: channel and processor are required", ErrInvalidArgument)
	}
	consumer := NewConsumer(ch, processor)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.index[ch.ID()]; ok {
		return nil, fmt.Errorf("%w: %s", ErrChannelRegistered, ch)
	}
	r.index[ch.ID()] = consumer
	r.consumers = append(r.consumers, consumer)
	return consumer, nil
}

// Remove forgets the consumer of ch. It reports whether one was registered;
// removing an unknown channel is not an error since disconnects may race.
// Snapshots taken before Remove keep the consumer and may finish draining it.
func (r *Registry[E]) Remove(ch *Channel[E]) bool {
	if ch == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	consumer, ok := r.index[ch.ID()]
	if !ok {
		return false
	}
	delete(r.index, ch.ID())
	r.consumers = slices.DeleteFunc(r.consumers, func(c *Consumer[E]) bool {
		return c == consumer
	})
	return true
}

func (r *Registry[E]) Get(ch *Channel[E]) (*Consumer[E], bool) {
	if ch == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	consumer, ok := r.index[ch.ID()]
	return consumer, ok
}

func (r *Registry[E]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.consumers)
}

// Snapshot returns a copy of the registered consumers in registration order.
// The copy is not affected by later Add or Remove calls.
func (r *Registry[E]) Snapshot() []*Consumer[E] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.consumers)
}

// ConsumeAll drains every consumer of a fresh snapshot and returns how many were drained.
func (r *Registry[E]) ConsumeAll() int {
	drained := 0
	for _, consumer := range r.Snapshot() {
		if consumer.Consume() {
			drained++
		}
	}
	return drained
}
