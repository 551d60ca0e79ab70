package inputchan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogProcessor(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	processor := NewLogProcessor[MouseEvent](zap.New(core))
	ch := NewChannel[MouseEvent]("mouse", 4)

	processor.Process(nil, ch)
	assert.Zero(t, logs.Len(), "empty ranges are not logged")

	processor.Process(moves(0, 2), ch)
	processor.Overflow(5, ch)

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, int64(2), entries[0].ContextMap()["count"])
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, uint64(5), entries[1].ContextMap()["lost"])
	assert.Equal(t, int64(4), entries[1].ContextMap()["capacity"])
}

func TestLogProcessorWithoutLogger(t *testing.T) {
	processor := NewLogProcessor[KeyboardEvent](nil)
	ch := NewChannel[KeyboardEvent]("keyboard", 4)
	assert.NotPanics(t, func() {
		processor.Process([]KeyboardEvent{{Timestamp: epoch, Action: KeyPressed}}, ch)
		processor.Overflow(1, ch)
	})
}

func TestStatsProcessor(t *testing.T) {
	rec := &recorder{}
	stats := NewStatsProcessor[MouseEvent](rec)
	ch := NewChannel[MouseEvent]("mouse", 4)
	consumer := NewConsumer[MouseEvent](ch, stats)

	require.NoError(t, ch.Push(moves(0, 6)...))
	consumer.Consume()
	consumer.Consume()

	assert.Equal(t, Stats{Drains: 2, Events: 4, Overflows: 1, Lost: 2}, stats.Stats())
	assert.Len(t, rec.calls, 3, "calls are forwarded")
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	multi := Multi[MouseEvent](a, b)
	ch := NewChannel[MouseEvent]("mouse", 4)

	multi.Process(moves(0, 1), ch)
	multi.Overflow(3, ch)
	assert.Equal(t, a.calls, b.calls)
	require.Len(t, a.calls, 2)
	assert.Equal(t, uint64(3), a.calls[1].lost)
}

func TestFuncsNil(t *testing.T) {
	var f Funcs[MouseEvent]
	ch := NewChannel[MouseEvent]("mouse", 4)
	assert.NotPanics(t, func() {
		f.Process(nil, ch)
		f.Overflow(1, ch)
	})
}
