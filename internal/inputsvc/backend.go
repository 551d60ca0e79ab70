package inputsvc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iancoleman/strcase"
	"github.com/neuroplastio/neio-input/pkg/bus"
	"github.com/neuroplastio/neio-input/pkg/inputchan"
)

type DeviceClass uint8

const (
	DeviceClassUnknown DeviceClass = iota
	DeviceClassMouse
	DeviceClassKeyboard
)

func (c DeviceClass) String() string {
	switch c {
	case DeviceClassMouse:
		return "mouse"
	case DeviceClassKeyboard:
		return "keyboard"
	}
	return "unknown"
}

// ParseDeviceClass accepts any casing, e.g. "mouse", "Mouse" or "KEYBOARD".
func ParseDeviceClass(s string) (DeviceClass, error) {
	switch strcase.ToSnake(s) {
	case "mouse":
		return DeviceClassMouse, nil
	case "keyboard":
		return DeviceClassKeyboard, nil
	}
	return DeviceClassUnknown, fmt.Errorf("unknown device class: %q", s)
}

func (c DeviceClass) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c DeviceClass) MarshalYAML() (any, error) {
	return c.String(), nil
}

func (c *DeviceClass) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDeviceClass(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type (
	BackendBus       = bus.Bus[string, BackendEvent]
	BackendPublisher = bus.Publisher[BackendEvent]
)

type BackendEvent struct {
	DevicesChanged *BackendEventDevicesChanged
}

type BackendEventDevicesChanged struct {
	Connected    []BackendDevice
	Disconnected []string
}

type BackendDevice struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Class DeviceClass `json:"class"`
}

// Backend discovers input devices and produces their events.
//
// Start blocks until ctx is done and publishes device changes through pub.
// OpenDevice is called by the service after a device was reported connected;
// the returned device owns its channel and keeps producing into it until closed.
type Backend interface {
	Start(ctx context.Context, pub BackendPublisher) error
	Ready() <-chan struct{}
	OpenDevice(id string, capacity int) (Device, error)
}

type Device interface {
	Close() error
}

type MouseDevice interface {
	Device
	Channel() *inputchan.Channel[inputchan.MouseEvent]
}

type KeyboardDevice interface {
	Device
	Channel() *inputchan.Channel[inputchan.KeyboardEvent]
}
