//go:build linux

// Package evdev implements an input backend for Linux event devices (/dev/input/event*).
// Devices are discovered with udev, classified by the ID_INPUT_* properties and read with go-evdev.
package evdev

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goevdev "github.com/holoplot/go-evdev"
	"github.com/jochenvg/go-udev"
	"github.com/neuroplastio/neio-input/internal/inputsvc"
	"github.com/neuroplastio/neio-input/pkg/inputchan"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type backendOptions struct {
	pollInterval time.Duration
}

type Option func(*backendOptions)

func WithPollInterval(d time.Duration) Option {
	return func(o *backendOptions) {
		o.pollInterval = d
	}
}

type deviceInfo struct {
	devnode string
	name    string
	class   inputsvc.DeviceClass
}

type Backend struct {
	log     *zap.Logger
	options backendOptions

	udev    *udev.Udev
	devices *xsync.MapOf[string, deviceInfo]

	publisher inputsvc.BackendPublisher
	readyOnce sync.Once
	ready     chan struct{}
}

func NewBackend(log *zap.Logger, opts ...Option) *Backend {
	options := backendOptions{
		pollInterval: time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Backend{
		log:     log,
		options: options,
		udev:    &udev.Udev{},
		devices: xsync.NewMapOf[string, deviceInfo](),
		ready:   make(chan struct{}),
	}
}

func (b *Backend) Ready() <-chan struct{} {
	return b.ready
}

func (b *Backend) Start(ctx context.Context, publisher inputsvc.BackendPublisher) error {
	b.publisher = publisher
	b.log.Info("Starting evdev backend")
	if err := b.refreshDevices(ctx); err != nil {
		return fmt.Errorf("failed to refresh input devices: %w", err)
	}
	b.readyOnce.Do(func() {
		close(b.ready)
	})
	b.log.Info("Evdev backend started")

	pollTicker := time.NewTicker(b.options.pollInterval)
	defer pollTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pollTicker.C:
			if err := b.refreshDevices(ctx); err != nil {
				b.log.Error("failed to refresh input devices", zap.Error(err))
			}
		}
	}
}

func (b *Backend) refreshDevices(ctx context.Context) error {
	newDevices, err := b.enumerateDevices()
	if err != nil {
		return err
	}
	var disconnected []string
	var connected []inputsvc.BackendDevice
	b.devices.Range(func(id string, dev deviceInfo) bool {
		if _, ok := newDevices[id]; !ok {
			disconnected = append(disconnected, id)
			b.devices.Delete(id)
			return true
		}
		delete(newDevices, id)
		return true
	})
	for id, dev := range newDevices {
		b.devices.Store(id, dev)
		connected = append(connected, inputsvc.BackendDevice{
			ID:    id,
			Name:  dev.name,
			Class: dev.class,
		})
	}
	if len(connected) > 0 || len(disconnected) > 0 {
		b.publisher(ctx, inputsvc.BackendEvent{
			DevicesChanged: &inputsvc.BackendEventDevicesChanged{
				Connected:    connected,
				Disconnected: disconnected,
			},
		})
	}
	return nil
}

func (b *Backend) enumerateDevices() (map[string]deviceInfo, error) {
	e := b.udev.NewEnumerate()
	if err := e.AddMatchSubsystem("input"); err != nil {
		return nil, err
	}
	if err := e.AddMatchIsInitialized(); err != nil {
		return nil, err
	}
	list, err := e.Devices()
	if err != nil {
		return nil, err
	}
	devices := make(map[string]deviceInfo)
	for _, dev := range list {
		sysname := dev.Sysname()
		if !strings.HasPrefix(sysname, "event") || dev.Devnode() == "" {
			continue
		}
		var class inputsvc.DeviceClass
		switch {
		case dev.PropertyValue("ID_INPUT_MOUSE") == "1":
			class = inputsvc.DeviceClassMouse
		case dev.PropertyValue("ID_INPUT_KEYBOARD") == "1":
			class = inputsvc.DeviceClassKeyboard
		default:
			continue
		}
		devices[sysname] = deviceInfo{
			devnode: dev.Devnode(),
			name:    deviceName(dev),
			class:   class,
		}
	}
	return devices, nil
}

func deviceName(dev *udev.Device) string {
	if parent := dev.Parent(); parent != nil {
		if name := strings.Trim(parent.PropertyValue("NAME"), `"`); name != "" {
			return name
		}
	}
	return dev.Sysname()
}

func (b *Backend) OpenDevice(id string, capacity int) (inputsvc.Device, error) {
	info, ok := b.devices.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", inputsvc.ErrDeviceNotFound, id)
	}
	dev, err := goevdev.Open(info.devnode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", info.devnode, err)
	}
	log := b.log.With(zap.String("device", id))
	switch info.class {
	case inputsvc.DeviceClassMouse:
		return openDevice[inputchan.MouseEvent](log, dev, info.name, capacity, &mouseDecoder{}), nil
	case inputsvc.DeviceClassKeyboard:
		return openDevice[inputchan.KeyboardEvent](log, dev, info.name, capacity, keyboardDecoder{}), nil
	}
	dev.Close()
	return nil, fmt.Errorf("unsupported device class %s", info.class)
}

func fromInputEvent(ev *goevdev.InputEvent) rawEvent {
	return rawEvent{
		Time:  time.Unix(0, ev.Time.Nano()),
		Type:  uint16(ev.Type),
		Code:  uint16(ev.Code),
		Value: ev.Value,
	}
}

type device[E inputchan.Event] struct {
	log    *zap.Logger
	input  *goevdev.InputDevice
	ch     *inputchan.Channel[E]
	dec    decoder[E]
	closed atomic.Bool
	done   chan struct{}
}

func openDevice[E inputchan.Event](log *zap.Logger, input *goevdev.InputDevice, name string, capacity int, dec decoder[E]) *device[E] {
	d := &device[E]{
		log:   log,
		input: input,
		ch:    inputchan.NewChannel[E](name, capacity),
		dec:   dec,
		done:  make(chan struct{}),
	}
	go d.read()
	return d
}

func (d *device[E]) Channel() *inputchan.Channel[E] {
	return d.ch
}

func (d *device[E]) read() {
	defer close(d.done)
	defer d.ch.Close()
	var out []E
	for {
		ev, err := d.input.ReadOne()
		if err != nil {
			if !d.closed.Load() {
				d.log.Warn("device read failed", zap.Error(err))
			}
			return
		}
		out = d.dec.decode(fromInputEvent(ev), out[:0])
		if len(out) == 0 {
			continue
		}
		err = d.ch.Push(out...)
		switch {
		case errors.Is(err, inputchan.ErrChannelClosed):
			return
		case errors.Is(err, inputchan.ErrOutOfOrder):
			d.log.Warn("dropped events with a clock going backwards", zap.Error(err))
		case err != nil:
			d.log.Error("failed to push events", zap.Error(err))
		}
	}
}

func (d *device[E]) Close() error {
	if d.closed.Swap(true) {
		<-d.done
		return nil
	}
	err := d.input.Close()
	<-d.done
	return err
}
