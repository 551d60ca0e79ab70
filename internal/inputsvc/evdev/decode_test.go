package evdev

import (
	"testing"
	"time"

	"github.com/neuroplastio/neio-input/pkg/inputchan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll[E inputchan.Event](dec decoder[E], events ...rawEvent) []E {
	var out []E
	for _, ev := range events {
		out = dec.decode(ev, out)
	}
	return out
}

func TestMouseDecoder(t *testing.T) {
	at := time.Unix(10, 0)
	dec := &mouseDecoder{}

	out := decodeAll[inputchan.MouseEvent](dec,
		rawEvent{Time: at, Type: evRel, Code: relX, Value: 4},
		rawEvent{Time: at, Type: evRel, Code: relY, Value: -2},
		rawEvent{Time: at, Type: evKey, Code: btnLeft, Value: 1},
		rawEvent{Time: at, Type: evSyn, Code: synReport},
	)
	require.Len(t, out, 2)
	assert.Equal(t, inputchan.MouseEvent{Timestamp: at, Type: inputchan.MouseMove, DeltaX: 4, DeltaY: -2}, out[0])
	assert.Equal(t, inputchan.MouseEvent{Timestamp: at, Type: inputchan.MouseButtonDown, Button: inputchan.MouseButtonLeft}, out[1])

	out = decodeAll[inputchan.MouseEvent](dec,
		rawEvent{Time: at, Type: evRel, Code: relWheel, Value: -1},
		rawEvent{Time: at, Type: evKey, Code: btnLeft, Value: 0},
		rawEvent{Time: at, Type: evSyn, Code: synReport},
	)
	assert.Equal(t, []inputchan.MouseEvent{
		{Timestamp: at, Type: inputchan.MouseScroll, DeltaY: -1},
		{Timestamp: at, Type: inputchan.MouseButtonUp, Button: inputchan.MouseButtonLeft},
	}, out)
}

func TestMouseDecoderDropped(t *testing.T) {
	dec := &mouseDecoder{}
	out := decodeAll[inputchan.MouseEvent](dec,
		rawEvent{Type: evRel, Code: relX, Value: 7},
		rawEvent{Type: evSyn, Code: synDropped},
		rawEvent{Type: evSyn, Code: synReport},
	)
	assert.Empty(t, out)
}

func TestKeyboardDecoder(t *testing.T) {
	at := time.Unix(20, 0)
	out := decodeAll[inputchan.KeyboardEvent](keyboardDecoder{},
		rawEvent{Time: at, Type: evKey, Code: 30, Value: 1},
		rawEvent{Time: at, Type: evSyn, Code: synReport},
		rawEvent{Time: at, Type: evKey, Code: 30, Value: 2},
		rawEvent{Time: at, Type: evKey, Code: btnLeft, Value: 1},
		rawEvent{Time: at, Type: evKey, Code: 30, Value: 0},
	)
	assert.Equal(t, []inputchan.KeyboardEvent{
		{Timestamp: at, Action: inputchan.KeyPressed, KeyCode: 30},
		{Timestamp: at, Action: inputchan.KeyRepeated, KeyCode: 30},
		{Timestamp: at, Action: inputchan.KeyReleased, KeyCode: 30},
	}, out)
}
