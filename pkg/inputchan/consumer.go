package inputchan

import "sync"

// Consumer drains one channel into one processor. Several consumers may read the same
// channel independently, each with its own position.
//
// The consumer does not own the channel. The channel must stay valid for as long
// as the consumer is drained.
type Consumer[E Event] struct {
	channel   *Channel[E]
	processor Processor[E]

	mu     sync.Mutex
	cursor uint64
}

// NewConsumer binds processor to ch. The consumer starts at the oldest event
// the channel still holds.
func NewConsumer[E Event](ch *Channel[E], processor Processor[E]) *Consumer[E] {
	return &Consumer[E]{
		channel:   ch,
		processor: processor,
		cursor:    ch.Oldest(),
	}
}

func (c *Consumer[E]) Channel() *Channel[E] {
	return c.channel
}

func (c *Consumer[E]) Processor() Processor[E] {
	return c.processor
}

// Consume hands everything appended since the previous call to the processor.
// The processor is invoked even when the range is empty. If events were overwritten
// in the meantime, Overflow is called once with their count and delivery continues
// with the oldest event still available.
//
// Consume never waits: when another goroutine is already draining this consumer
// it returns false without calling the processor.
func (c *Consumer[E]) Consume() bool {
	if !c.mu.TryLock() {
		return false
	}
	defer c.mu.Unlock()

	c.channel.Sync()
	events, next, lost := c.channel.Events(c.cursor)
	if lost > 0 {
		c.processor.Overflow(lost, c.channel)
	}
	c.cursor = next
	c.processor.Process(events, c.channel)
	return true
}
