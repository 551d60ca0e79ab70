//go:build linux

package evdev

import (
	"syscall"
	"testing"
	"time"

	goevdev "github.com/holoplot/go-evdev"
	"github.com/neuroplastio/neio-input/pkg/inputchan"
	"github.com/stretchr/testify/assert"
)

func inputEvent(at time.Time, typ goevdev.EvType, code goevdev.EvCode, value int32) *goevdev.InputEvent {
	return &goevdev.InputEvent{
		Time:  syscall.NsecToTimeval(at.UnixNano()),
		Type:  typ,
		Code:  code,
		Value: value,
	}
}

func TestFromInputEvent(t *testing.T) {
	at := time.Unix(1700000000, 250000)
	ev := fromInputEvent(inputEvent(at, goevdev.EV_REL, goevdev.REL_Y, -3))
	assert.Equal(t, rawEvent{Time: at, Type: evRel, Code: relY, Value: -3}, ev)
}

func TestKernelCodes(t *testing.T) {
	assert.Equal(t, uint16(goevdev.EV_SYN), uint16(evSyn))
	assert.Equal(t, uint16(goevdev.EV_KEY), uint16(evKey))
	assert.Equal(t, uint16(goevdev.SYN_DROPPED), uint16(synDropped))
	assert.Equal(t, uint16(goevdev.REL_WHEEL), uint16(relWheel))
	assert.Equal(t, uint16(goevdev.REL_HWHEEL), uint16(relHWheel))
	assert.Equal(t, uint16(goevdev.BTN_LEFT), uint16(btnLeft))
	assert.Equal(t, uint16(goevdev.BTN_EXTRA), uint16(btnExtra))
	assert.Equal(t, uint16(goevdev.BTN_MISC), uint16(btnMisc))
}

func TestDecodeInputEvents(t *testing.T) {
	at := time.Unix(30, 0)
	dec := &mouseDecoder{}
	var out []inputchan.MouseEvent
	for _, ev := range []*goevdev.InputEvent{
		inputEvent(at, goevdev.EV_REL, goevdev.REL_X, 2),
		inputEvent(at, goevdev.EV_KEY, goevdev.BTN_RIGHT, 1),
		inputEvent(at, goevdev.EV_SYN, goevdev.SYN_REPORT, 0),
	} {
		out = dec.decode(fromInputEvent(ev), out)
	}
	assert.Equal(t, []inputchan.MouseEvent{
		{Timestamp: at, Type: inputchan.MouseMove, DeltaX: 2},
		{Timestamp: at, Type: inputchan.MouseButtonDown, Button: inputchan.MouseButtonRight},
	}, out)
}
