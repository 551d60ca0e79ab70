package inputchan

import (
	"fmt"
	"time"
)

// Event is implemented by everything that can be pushed into a Channel.
type Event interface {
	EventTime() time.Time
}

type MouseEventType uint8

const (
	MouseMove MouseEventType = iota
	MouseButtonDown
	MouseButtonUp
	MouseScroll
)

func (t MouseEventType) String() string {
	switch t {
	case MouseMove:
		return "move"
	case MouseButtonDown:
		return "buttonDown"
	case MouseButtonUp:
		return "buttonUp"
	case MouseScroll:
		return "scroll"
	}
	return fmt.Sprintf("MouseEventType(%d)", uint8(t))
}

type MouseButton uint8

const (
	MouseButtonNone MouseButton = iota
	MouseButtonLeft
	MouseButtonRight
	MouseButtonMiddle
	MouseButtonSide
	MouseButtonExtra
)

type MouseEvent struct {
	Timestamp time.Time
	Type      MouseEventType
	Button    MouseButton

	// Relative movement for MouseMove, wheel steps for MouseScroll.
	DeltaX int32
	DeltaY int32
}

func (e MouseEvent) EventTime() time.Time {
	return e.Timestamp
}

func (e MouseEvent) String() string {
	switch e.Type {
	case MouseMove, MouseScroll:
		return fmt.Sprintf("%s(%d,%d)", e.Type, e.DeltaX, e.DeltaY)
	default:
		return fmt.Sprintf("%s(%d)", e.Type, e.Button)
	}
}

type KeyAction uint8

const (
	KeyReleased KeyAction = iota
	KeyPressed
	KeyRepeated
)

func (a KeyAction) String() string {
	switch a {
	case KeyReleased:
		return "-"
	case KeyPressed:
		return "+"
	case KeyRepeated:
		return "*"
	}
	return "?"
}

// KeyboardEvent carries a Linux input key code (KEY_A is 30) regardless of the backend.
type KeyboardEvent struct {
	Timestamp time.Time
	Action    KeyAction
	KeyCode   uint16
}

func (e KeyboardEvent) EventTime() time.Time {
	return e.Timestamp
}

func (e KeyboardEvent) String() string {
	return fmt.Sprintf("%s%d", e.Action, e.KeyCode)
}
