// Package virtual implements an input backend with synthetic devices declared in a
// YAML file. Editing the file connects and disconnects devices while the agent runs.
package virtual

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/neuroplastio/neio-input/internal/configsvc"
	"github.com/neuroplastio/neio-input/internal/inputsvc"
	"github.com/neuroplastio/neio-input/pkg/inputchan"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	defaultRate  = 60
	defaultBurst = 1
)

type DevicesConfig struct {
	Devices []DeviceConfig `json:"devices"`
}

type DeviceConfig struct {
	ID    string               `json:"id"`
	Name  string               `json:"name"`
	Class inputsvc.DeviceClass `json:"class"`
	// Rate is the number of bursts per second.
	Rate  float64 `json:"rate,omitempty"`
	Burst int     `json:"burst,omitempty"`
}

func (c DeviceConfig) interval() time.Duration {
	rate := c.Rate
	if rate <= 0 {
		rate = defaultRate
	}
	return time.Duration(float64(time.Second) / rate)
}

func (c DeviceConfig) burst() int {
	if c.Burst <= 0 {
		return defaultBurst
	}
	return c.Burst
}

// DefaultDevices is written to the devices file when it does not exist yet.
var DefaultDevices = DevicesConfig{
	Devices: []DeviceConfig{
		{ID: "mouse-0", Name: "Virtual Mouse", Class: inputsvc.DeviceClassMouse, Rate: 120},
		{ID: "keyboard-0", Name: "Virtual Keyboard", Class: inputsvc.DeviceClassKeyboard, Rate: 10},
	},
}

type Backend struct {
	log    *zap.Logger
	config *configsvc.Service
	path   string
	now    func() time.Time

	devices   *xsync.MapOf[string, DeviceConfig]
	generated atomic.Uint64

	mu        sync.Mutex
	ctx       context.Context
	publisher inputsvc.BackendPublisher

	// serializes refreshDevices between Start and config reloads
	refreshMu sync.Mutex

	readyOnce sync.Once
	ready     chan struct{}
}

func NewBackend(log *zap.Logger, configSvc *configsvc.Service, path string, now func() time.Time) *Backend {
	return &Backend{
		log:     log,
		config:  configSvc,
		path:    path,
		now:     now,
		devices: xsync.NewMapOf[string, DeviceConfig](),
		ready:   make(chan struct{}),
	}
}

func (b *Backend) Ready() <-chan struct{} {
	return b.ready
}

// Generated returns the number of events produced by all devices so far.
func (b *Backend) Generated() uint64 {
	return b.generated.Load()
}

func (b *Backend) Start(ctx context.Context, publisher inputsvc.BackendPublisher) error {
	b.mu.Lock()
	b.ctx = ctx
	b.publisher = publisher
	b.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil
	case <-b.config.Ready():
	}

	cfg, err := configsvc.RegisterWriteable(b.config, b.path, DefaultDevices, func(cfg DevicesConfig, err error) {
		if err != nil {
			b.log.Error("failed to read devices config", zap.Error(err))
			return
		}
		b.refreshDevices(ctx, cfg)
	})
	if err != nil {
		return fmt.Errorf("failed to register devices config: %w", err)
	}
	b.refreshDevices(ctx, cfg)

	b.readyOnce.Do(func() {
		close(b.ready)
	})
	b.log.Info("Virtual backend started", zap.String("config", b.path))
	<-ctx.Done()
	return nil
}

func (b *Backend) refreshDevices(ctx context.Context, cfg DevicesConfig) {
	b.refreshMu.Lock()
	defer b.refreshMu.Unlock()
	b.mu.Lock()
	publish := b.publisher
	b.mu.Unlock()

	newDevices := make(map[string]DeviceConfig, len(cfg.Devices))
	for _, dev := range cfg.Devices {
		if dev.ID == "" || dev.Class == inputsvc.DeviceClassUnknown {
			b.log.Warn("skipping invalid virtual device", zap.String("id", dev.ID))
			continue
		}
		newDevices[dev.ID] = dev
	}
	var disconnected []string
	var connected []inputsvc.BackendDevice
	b.devices.Range(func(id string, dev DeviceConfig) bool {
		next, ok := newDevices[id]
		switch {
		case !ok:
			disconnected = append(disconnected, id)
			b.devices.Delete(id)
		case next != dev:
			// changed devices are replugged
			disconnected = append(disconnected, id)
		default:
			delete(newDevices, id)
		}
		return true
	})
	for id, dev := range newDevices {
		b.devices.Store(id, dev)
		connected = append(connected, inputsvc.BackendDevice{
			ID:    id,
			Name:  dev.Name,
			Class: dev.Class,
		})
	}
	if len(connected) > 0 || len(disconnected) > 0 {
		publish(ctx, inputsvc.BackendEvent{
			DevicesChanged: &inputsvc.BackendEventDevicesChanged{
				Connected:    connected,
				Disconnected: disconnected,
			},
		})
	}
}

var errNotStarted = errors.New("backend is not started")

func (b *Backend) OpenDevice(id string, capacity int) (inputsvc.Device, error) {
	cfg, ok := b.devices.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", inputsvc.ErrDeviceNotFound, id)
	}
	b.mu.Lock()
	parent := b.ctx
	b.mu.Unlock()
	if parent == nil {
		return nil, errNotStarted
	}
	ctx, cancel := context.WithCancel(parent)
	p := &producer{
		log:    b.log.With(zap.String("device", id)),
		cfg:    cfg,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	switch cfg.Class {
	case inputsvc.DeviceClassMouse:
		ch := inputchan.NewChannel[inputchan.MouseEvent](cfg.Name, capacity)
		go p.run(ctx, func(seq uint64) error {
			b.generated.Inc()
			return ch.Push(syntheticMove(seq, b.now()))
		}, ch.Close)
		return &mouse{producer: p, ch: ch}, nil
	case inputsvc.DeviceClassKeyboard:
		ch := inputchan.NewChannel[inputchan.KeyboardEvent](cfg.Name, capacity)
		go p.run(ctx, func(seq uint64) error {
			b.generated.Inc()
			return ch.Push(syntheticKey(seq, b.now()))
		}, ch.Close)
		return &keyboard{producer: p, ch: ch}, nil
	}
	cancel()
	return nil, fmt.Errorf("unsupported device class %s", cfg.Class)
}

type producer struct {
	log    *zap.Logger
	cfg    DeviceConfig
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *producer) run(ctx context.Context, emit func(seq uint64) error, closeChannel func()) {
	defer close(p.done)
	defer closeChannel()
	ticker := time.NewTicker(p.cfg.interval())
	defer ticker.Stop()
	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := 0; i < p.cfg.burst(); i++ {
				err := emit(seq)
				seq++
				if errors.Is(err, inputchan.ErrChannelClosed) {
					return
				}
				if err != nil {
					p.log.Warn("dropped synthetic event", zap.Error(err))
				}
			}
		}
	}
}

func (p *producer) Close() error {
	p.cancel()
	<-p.done
	return nil
}

type mouse struct {
	*producer
	ch *inputchan.Channel[inputchan.MouseEvent]
}

func (m *mouse) Channel() *inputchan.Channel[inputchan.MouseEvent] {
	return m.ch
}

type keyboard struct {
	*producer
	ch *inputchan.Channel[inputchan.KeyboardEvent]
}

func (k *keyboard) Channel() *inputchan.Channel[inputchan.KeyboardEvent] {
	return k.ch
}

// octagon of unit moves, so a virtual cursor keeps circling in place
var moveDeltas = [8][2]int32{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}

func syntheticMove(seq uint64, now time.Time) inputchan.MouseEvent {
	d := moveDeltas[seq%uint64(len(moveDeltas))]
	return inputchan.MouseEvent{
		Timestamp: now,
		Type:      inputchan.MouseMove,
		DeltaX:    d[0],
		DeltaY:    d[1],
	}
}

// KEY_H, KEY_E, KEY_L, KEY_L, KEY_O
var helloKeys = []uint16{35, 18, 38, 38, 24}

// syntheticKey alternates press and release, typing "hello" over and over.
func syntheticKey(seq uint64, now time.Time) inputchan.KeyboardEvent {
	action := inputchan.KeyPressed
	if seq%2 == 1 {
		action = inputchan.KeyReleased
	}
	return inputchan.KeyboardEvent{
		Timestamp: now,
		Action:    action,
		KeyCode:   helloKeys[(seq/2)%uint64(len(helloKeys))],
	}
}
