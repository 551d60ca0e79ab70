package inputchan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	overflow bool
	lost     uint64
	events   []MouseEvent
}

// recorder keeps every processor invocation in order.
type recorder struct {
	calls []call
}

func (r *recorder) Process(events []MouseEvent, _ *Channel[MouseEvent]) {
	r.calls = append(r.calls, call{events: events})
}

func (r *recorder) Overflow(lost uint64, _ *Channel[MouseEvent]) {
	r.calls = append(r.calls, call{overflow: true, lost: lost})
}

func (r *recorder) reset() {
	r.calls = nil
}

func TestConsumerDeliversExactlyOnce(t *testing.T) {
	ch := NewChannel[MouseEvent]("mouse", 16)
	rec := &recorder{}
	consumer := NewConsumer[MouseEvent](ch, rec)

	require.NoError(t, ch.Push(moves(0, 5)...))
	require.True(t, consumer.Consume())
	require.Len(t, rec.calls, 1)
	assert.Equal(t, moves(0, 5), rec.calls[0].events)

	rec.reset()
	require.True(t, consumer.Consume())
	require.Len(t, rec.calls, 1, "process is invoked even without new events")
	assert.Empty(t, rec.calls[0].events)
	assert.False(t, rec.calls[0].overflow)
}

func TestConsumerOverflow(t *testing.T) {
	ch := NewChannel[MouseEvent]("mouse", 4)
	rec := &recorder{}
	consumer := NewConsumer[MouseEvent](ch, rec)

	require.NoError(t, ch.Push(moves(0, 11)...))
	consumer.Consume()
	require.Len(t, rec.calls, 2)
	assert.Equal(t, call{overflow: true, lost: 7}, rec.calls[0])
	assert.Equal(t, moves(7, 4), rec.calls[1].events)

	rec.reset()
	require.NoError(t, ch.Push(moves(11, 2)...))
	consumer.Consume()
	require.Len(t, rec.calls, 1, "no further overflow once the consumer caught up")
	assert.Equal(t, moves(11, 2), rec.calls[0].events)
}

func TestConsumersAreIndependent(t *testing.T) {
	ch := NewChannel[MouseEvent]("mouse", 16)
	first, second := &recorder{}, &recorder{}
	a := NewConsumer[MouseEvent](ch, first)
	b := NewConsumer[MouseEvent](ch, second)

	require.NoError(t, ch.Push(moves(0, 3)...))
	a.Consume()
	require.NoError(t, ch.Push(moves(3, 2)...))
	a.Consume()
	b.Consume()

	require.Len(t, first.calls, 2)
	assert.Equal(t, moves(0, 3), first.calls[0].events)
	assert.Equal(t, moves(3, 2), first.calls[1].events)
	require.Len(t, second.calls, 1)
	assert.Equal(t, moves(0, 5), second.calls[0].events)
}

func TestConsumerStartsAtOldestRetained(t *testing.T) {
	ch := NewChannel[MouseEvent]("mouse", 4)
	require.NoError(t, ch.Push(moves(0, 6)...))
	ch.Sync()

	rec := &recorder{}
	consumer := NewConsumer[MouseEvent](ch, rec)
	consumer.Consume()
	require.Len(t, rec.calls, 1, "history lost before the consumer existed is not an overflow")
	assert.Equal(t, moves(2, 4), rec.calls[0].events)
}

func TestConsumerStartsAtOldestPending(t *testing.T) {
	ch := NewChannel[MouseEvent]("mouse", 4)
	require.NoError(t, ch.Push(moves(0, 6)...))

	rec := &recorder{}
	consumer := NewConsumer[MouseEvent](ch, rec)
	consumer.Consume()
	require.Len(t, rec.calls, 1, "events overwritten in the back buffer before the consumer existed are not an overflow")
	assert.Equal(t, moves(2, 4), rec.calls[0].events)

	rec.reset()
	require.NoError(t, ch.Push(moves(6, 1)...))
	consumer.Consume()
	require.Len(t, rec.calls, 1)
	assert.Equal(t, moves(6, 1), rec.calls[0].events)
}

func TestConsumerSkipsWhileBusy(t *testing.T) {
	ch := NewChannel[MouseEvent]("mouse", 4)
	var consumer *Consumer[MouseEvent]
	nested := true
	consumer = NewConsumer[MouseEvent](ch, Funcs[MouseEvent]{
		OnProcess: func([]MouseEvent, *Channel[MouseEvent]) {
			nested = consumer.Consume()
		},
	})
	require.True(t, consumer.Consume())
	assert.False(t, nested, "a drain in progress is not re-entered")
}
