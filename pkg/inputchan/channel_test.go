package inputchan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func moves(start, n int) []MouseEvent {
	events := make([]MouseEvent, n)
	for i := range events {
		events[i] = MouseEvent{
			Timestamp: epoch.Add(time.Duration(start+i) * time.Millisecond),
			Type:      MouseMove,
			DeltaX:    int32(start + i),
		}
	}
	return events
}

func TestChannelSyncAndEvents(t *testing.T) {
	ch := NewChannel[MouseEvent]("mouse", 8)
	require.NoError(t, ch.Push(moves(0, 3)...))

	events, next, lost := ch.Events(0)
	assert.Empty(t, events, "events are not visible before sync")
	assert.Zero(t, next)
	assert.Zero(t, lost)

	ch.Sync()
	events, next, lost = ch.Events(0)
	assert.Equal(t, moves(0, 3), events)
	assert.Equal(t, uint64(3), next)
	assert.Zero(t, lost)

	events, next, lost = ch.Events(next)
	assert.Empty(t, events)
	assert.Equal(t, uint64(3), next)
	assert.Zero(t, lost)
}

func TestChannelOverwrite(t *testing.T) {
	ch := NewChannel[MouseEvent]("mouse", 4)
	require.NoError(t, ch.Push(moves(0, 10)...))
	ch.Sync()

	events, next, lost := ch.Events(0)
	assert.Equal(t, moves(6, 4), events)
	assert.Equal(t, uint64(10), next)
	assert.Equal(t, uint64(6), lost)
	assert.Equal(t, uint64(6), ch.Oldest())
	assert.Equal(t, uint64(10), ch.Written())
}

func TestChannelOverwriteAcrossSyncs(t *testing.T) {
	ch := NewChannel[MouseEvent]("mouse", 4)
	require.NoError(t, ch.Push(moves(0, 3)...))
	ch.Sync()
	require.NoError(t, ch.Push(moves(3, 3)...))
	ch.Sync()

	events, next, lost := ch.Events(0)
	assert.Equal(t, moves(2, 4), events)
	assert.Equal(t, uint64(6), next)
	assert.Equal(t, uint64(2), lost)

	events, _, lost = ch.Events(4)
	assert.Equal(t, moves(4, 2), events)
	assert.Zero(t, lost)
}

func TestChannelOutOfOrder(t *testing.T) {
	ch := NewChannel[KeyboardEvent]("keyboard", 8)
	err := ch.Push(
		KeyboardEvent{Timestamp: epoch.Add(2 * time.Millisecond), Action: KeyPressed, KeyCode: 30},
		KeyboardEvent{Timestamp: epoch.Add(2 * time.Millisecond), Action: KeyReleased, KeyCode: 30},
		KeyboardEvent{Timestamp: epoch.Add(1 * time.Millisecond), Action: KeyPressed, KeyCode: 31},
	)
	require.ErrorIs(t, err, ErrOutOfOrder)
	assert.Equal(t, uint64(2), ch.Written(), "events before the rejected one are kept")
}

func TestChannelClose(t *testing.T) {
	ch := NewChannel[MouseEvent]("mouse", 8)
	require.NoError(t, ch.Push(moves(0, 2)...))
	ch.Close()
	assert.True(t, ch.Closed())
	require.ErrorIs(t, ch.Push(moves(2, 1)...), ErrChannelClosed)

	ch.Sync()
	events, _, _ := ch.Events(0)
	assert.Len(t, events, 2, "closed channels can still be drained")
}

func TestChannelIdentity(t *testing.T) {
	a := NewChannel[MouseEvent]("mouse", 0)
	b := NewChannel[MouseEvent]("mouse", 0)
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, DefaultCapacity, a.FrontBufferCapacity())
	assert.Equal(t, "mouse", a.Name())
	assert.Contains(t, a.String(), "mouse#")
}
