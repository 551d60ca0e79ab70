package evdev

import (
	"time"

	"github.com/neuroplastio/neio-input/pkg/inputchan"
)

const (
	evSyn = 0x00
	evKey = 0x01
	evRel = 0x02

	synReport  = 0
	synDropped = 3

	relX      = 0x00
	relY      = 0x01
	relHWheel = 0x06
	relWheel  = 0x08

	btnMisc   = 0x100
	btnLeft   = 0x110
	btnRight  = 0x111
	btnMiddle = 0x112
	btnSide   = 0x113
	btnExtra  = 0x114
)

// rawEvent is one kernel input event, independent of how it was read.
type rawEvent struct {
	Time  time.Time
	Type  uint16
	Code  uint16
	Value int32
}

type decoder[E inputchan.Event] interface {
	decode(ev rawEvent, out []E) []E
}

var mouseButtons = map[uint16]inputchan.MouseButton{
	btnLeft:   inputchan.MouseButtonLeft,
	btnRight:  inputchan.MouseButtonRight,
	btnMiddle: inputchan.MouseButtonMiddle,
	btnSide:   inputchan.MouseButtonSide,
	btnExtra:  inputchan.MouseButtonExtra,
}

// mouseDecoder turns one report (everything up to SYN_REPORT) into mouse events.
// Relative X and Y motion of a report is merged into a single move.
type mouseDecoder struct {
	move    inputchan.MouseEvent
	moved   bool
	pending []inputchan.MouseEvent
}

func (d *mouseDecoder) decode(ev rawEvent, out []inputchan.MouseEvent) []inputchan.MouseEvent {
	switch ev.Type {
	case evRel:
		switch ev.Code {
		case relX:
			d.move.DeltaX += ev.Value
			d.moved = true
		case relY:
			d.move.DeltaY += ev.Value
			d.moved = true
		case relWheel:
			d.pending = append(d.pending, inputchan.MouseEvent{Timestamp: ev.Time, Type: inputchan.MouseScroll, DeltaY: ev.Value})
		case relHWheel:
			d.pending = append(d.pending, inputchan.MouseEvent{Timestamp: ev.Time, Type: inputchan.MouseScroll, DeltaX: ev.Value})
		}
		if d.moved {
			d.move.Timestamp = ev.Time
			d.move.Type = inputchan.MouseMove
		}
	case evKey:
		button, ok := mouseButtons[ev.Code]
		if !ok {
			return out
		}
		typ := inputchan.MouseButtonUp
		switch ev.Value {
		case 1:
			typ = inputchan.MouseButtonDown
		case 2:
			return out
		}
		d.pending = append(d.pending, inputchan.MouseEvent{Timestamp: ev.Time, Type: typ, Button: button})
	case evSyn:
		switch ev.Code {
		case synReport:
			if d.moved {
				out = append(out, d.move)
			}
			out = append(out, d.pending...)
			d.reset()
		case synDropped:
			d.reset()
		}
	}
	return out
}

func (d *mouseDecoder) reset() {
	d.move = inputchan.MouseEvent{}
	d.moved = false
	d.pending = d.pending[:0]
}

// keyboardDecoder emits key events as they arrive. Button codes are ignored.
type keyboardDecoder struct{}

func (keyboardDecoder) decode(ev rawEvent, out []inputchan.KeyboardEvent) []inputchan.KeyboardEvent {
	if ev.Type != evKey || ev.Code >= btnMisc {
		return out
	}
	var action inputchan.KeyAction
	switch ev.Value {
	case 0:
		action = inputchan.KeyReleased
	case 1:
		action = inputchan.KeyPressed
	case 2:
		action = inputchan.KeyRepeated
	default:
		return out
	}
	return append(out, inputchan.KeyboardEvent{Timestamp: ev.Time, Action: action, KeyCode: ev.Code})
}
