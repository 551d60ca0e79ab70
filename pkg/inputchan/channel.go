package inputchan

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// DefaultCapacity is used when a channel is created with a non-positive capacity.
const DefaultCapacity = 256

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrOutOfOrder    = errors.New("event timestamp is earlier than the previous event")
)

// ID identifies a channel for the lifetime of the process. IDs are never reused,
// so a device that reconnects gets a new identity.
type ID uint64

var lastID atomic.Uint64

// Channel is a double buffered circular queue of timestamped events for a single device.
//
// A producer (usually a backend reader goroutine) appends into the back buffer with Push.
// Draining moves the back buffer into the front buffer (Sync) and reads the front buffer
// starting at a caller-owned sequence number (Events). Both buffers hold Capacity events;
// when the producer outruns the drains the oldest events are overwritten and reported as lost.
//
// Push is safe to call from one producer goroutine. Sync and Events are safe for
// any number of concurrent readers, each tracking its own position.
type Channel[E Event] struct {
	id   ID
	name string

	backMu sync.Mutex
	back   ring[E]
	last   time.Time
	closed bool

	frontMu sync.RWMutex
	front   ring[E]
}

func NewChannel[E Event](name string, capacity int) *Channel[E] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Channel[E]{
		id:    ID(lastID.Inc()),
		name:  name,
		back:  newRing[E](capacity),
		front: newRing[E](capacity),
	}
}

func (c *Channel[E]) ID() ID {
	return c.id
}

func (c *Channel[E]) Name() string {
	return c.name
}

func (c *Channel[E]) String() string {
	return fmt.Sprintf("%s#%d", c.name, c.id)
}

func (c *Channel[E]) FrontBufferCapacity() int {
	return len(c.front.buf)
}

// Push appends events to the back buffer. Events must not go back in time;
// the first one that does is rejected with ErrOutOfOrder together with everything after it.
func (c *Channel[E]) Push(events ...E) error {
	c.backMu.Lock()
	defer c.backMu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	for i, e := range events {
		t := e.EventTime()
		if t.Before(c.last) {
			return fmt.Errorf("%w: event %d at %s, previous at %s", ErrOutOfOrder, i, t.Format(time.RFC3339Nano), c.last.Format(time.RFC3339Nano))
		}
		c.back.push(e)
		c.last = t
	}
	return nil
}

// Written returns the total number of events pushed so far.
func (c *Channel[E]) Written() uint64 {
	c.backMu.Lock()
	defer c.backMu.Unlock()
	return c.back.written
}

// Sync moves everything pushed since the previous Sync into the front buffer.
func (c *Channel[E]) Sync() {
	c.frontMu.Lock()
	defer c.frontMu.Unlock()
	c.backMu.Lock()
	defer c.backMu.Unlock()

	start := c.front.written
	if oldest := c.back.oldest(); start < oldest {
		start = oldest
	}
	c.front.skipTo(start)
	for seq := start; seq < c.back.written; seq++ {
		c.front.push(c.back.at(seq))
	}
}

// Events returns a copy of the front buffer events with sequence numbers >= from,
// the sequence number to continue from next time, and how many events at or after
// from were overwritten before they could be read.
func (c *Channel[E]) Events(from uint64) (events []E, next uint64, lost uint64) {
	c.frontMu.RLock()
	defer c.frontMu.RUnlock()

	next = c.front.written
	if oldest := c.front.oldest(); from < oldest {
		lost = oldest - from
		from = oldest
	}
	if from > next {
		from = next
	}
	events = make([]E, 0, next-from)
	for seq := from; seq < next; seq++ {
		events = append(events, c.front.at(seq))
	}
	return events, next, lost
}

// Oldest returns the sequence number of the oldest event that the next Sync keeps,
// looking at both buffers.
func (c *Channel[E]) Oldest() uint64 {
	c.frontMu.RLock()
	defer c.frontMu.RUnlock()
	c.backMu.Lock()
	defer c.backMu.Unlock()
	return max(c.front.oldest(), c.back.oldest())
}

// Close stops accepting new events. Events already pushed can still be drained.
func (c *Channel[E]) Close() {
	c.backMu.Lock()
	c.closed = true
	c.backMu.Unlock()
}

func (c *Channel[E]) Closed() bool {
	c.backMu.Lock()
	defer c.backMu.Unlock()
	return c.closed
}
