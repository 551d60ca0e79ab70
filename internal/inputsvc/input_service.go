package inputsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/neuroplastio/neio-input/pkg/bus"
	"github.com/neuroplastio/neio-input/pkg/inputchan"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

type (
	MouseRegistry    = inputchan.Registry[inputchan.MouseEvent]
	KeyboardRegistry = inputchan.Registry[inputchan.KeyboardEvent]
	MouseConsumer    = inputchan.Consumer[inputchan.MouseEvent]
	KeyboardConsumer = inputchan.Consumer[inputchan.KeyboardEvent]
)

// Service connects backends to the channel registries. Every device a backend reports
// gets a channel, and the channel gets a consumer in the registry of its class until
// the device disconnects. The application drains the registries from its own goroutine.
type Service struct {
	log        *zap.Logger
	store      *DeviceStore
	options    serviceOptions
	now        func() time.Time
	ready      chan struct{}
	backendBus *BackendBus

	connected *xsync.MapOf[Address, connectedDevice]
	mice      *MouseRegistry
	keyboards *KeyboardRegistry
}

type connectedDevice struct {
	info   BackendDevice
	device Device
}

type serviceOptions struct {
	backends          map[string]Backend
	backoffTimeout    time.Duration
	capacity          int
	mouseProcessor    inputchan.Processor[inputchan.MouseEvent]
	keyboardProcessor inputchan.Processor[inputchan.KeyboardEvent]
}

type Option func(*serviceOptions)

// device changes waiting for the handler, so a backend refresh does not block on a slow connect
const backendBusBuffer = 16

func WithBackend(name string, backend Backend) Option {
	return func(o *serviceOptions) {
		o.backends[name] = backend
	}
}

func WithBackoffTimeout(d time.Duration) Option {
	return func(o *serviceOptions) {
		o.backoffTimeout = d
	}
}

// WithChannelCapacity sets the buffer size of the channels opened for new devices.
func WithChannelCapacity(capacity int) Option {
	return func(o *serviceOptions) {
		o.capacity = capacity
	}
}

// WithMouseProcessor sets the processor bound to every mouse channel.
func WithMouseProcessor(p inputchan.Processor[inputchan.MouseEvent]) Option {
	return func(o *serviceOptions) {
		o.mouseProcessor = p
	}
}

// WithKeyboardProcessor sets the processor bound to every keyboard channel.
func WithKeyboardProcessor(p inputchan.Processor[inputchan.KeyboardEvent]) Option {
	return func(o *serviceOptions) {
		o.keyboardProcessor = p
	}
}

func New(store *DeviceStore, log *zap.Logger, now func() time.Time, opts ...Option) *Service {
	options := serviceOptions{
		backends:       make(map[string]Backend),
		backoffTimeout: 5 * time.Second,
		capacity:       inputchan.DefaultCapacity,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.mouseProcessor == nil {
		options.mouseProcessor = inputchan.NewLogProcessor[inputchan.MouseEvent](log.Named("mouse"))
	}
	if options.keyboardProcessor == nil {
		options.keyboardProcessor = inputchan.NewLogProcessor[inputchan.KeyboardEvent](log.Named("keyboard"))
	}
	return &Service{
		log:        log,
		store:      store,
		options:    options,
		now:        now,
		ready:      make(chan struct{}),
		backendBus: bus.NewBus[string, BackendEvent](log.Named("bus"), bus.WithBuffer(backendBusBuffer)),

		connected: xsync.NewMapOf[Address, connectedDevice](),
		mice:      inputchan.NewRegistry[inputchan.MouseEvent](),
		keyboards: inputchan.NewRegistry[inputchan.KeyboardEvent](),
	}
}

func (s *Service) Start(ctx context.Context) error {
	err := s.backendBus.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start backend bus: %w", err)
	}

	backendIDs := make([]string, 0, len(s.options.backends))
	for backendID := range s.options.backends {
		backendIDs = append(backendIDs, backendID)
	}
	handlerDone := make(chan struct{})
	events := s.backendBus.CreateSubscriber(backendIDs...)(ctx)
	go func() {
		defer close(handlerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg := <-events:
				s.handleBackendEvent(msg.Key, msg.Message)
			}
		}
	}()

	for backendID := range s.options.backends {
		go s.runBackend(ctx, backendID)
	}
	for _, backend := range s.options.backends {
		select {
		case <-ctx.Done():
			<-handlerDone
			s.disconnectAll()
			return nil
		case <-backend.Ready():
		}
	}
	close(s.ready)
	s.log.Info("Service started")
	<-ctx.Done()
	<-handlerDone
	s.disconnectAll()
	s.log.Info("Service stopped")
	return nil
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Mice returns the registry of connected mouse channels.
func (s *Service) Mice() *MouseRegistry {
	return s.mice
}

// Keyboards returns the registry of connected keyboard channels.
func (s *Service) Keyboards() *KeyboardRegistry {
	return s.keyboards
}

// MouseConsumers returns a snapshot of the current mouse consumers.
func (s *Service) MouseConsumers() []*MouseConsumer {
	return s.mice.Snapshot()
}

// KeyboardConsumers returns a snapshot of the current keyboard consumers.
func (s *Service) KeyboardConsumers() []*KeyboardConsumer {
	return s.keyboards.Snapshot()
}

func (s *Service) handleBackendEvent(backendID string, event BackendEvent) {
	if event.DevicesChanged == nil {
		return
	}
	s.log.Debug("devices changed", zap.String("backend", backendID))
	for _, id := range event.DevicesChanged.Disconnected {
		s.onDeviceDisconnected(backendID, id)
	}
	for _, dev := range event.DevicesChanged.Connected {
		s.onDeviceConnected(backendID, dev)
	}
}

func (s *Service) onDeviceConnected(backendID string, bdev BackendDevice) {
	addr := Address{Backend: backendID, ID: bdev.ID}
	if _, ok := s.connected.Load(addr); ok {
		s.log.Warn("device is already connected", zap.Stringer("addr", addr))
		return
	}
	log := s.log.With(zap.Stringer("addr", addr), zap.String("name", bdev.Name))

	record, err := s.store.Touch(addr, bdev, s.now())
	if err != nil {
		log.Error("failed to record device", zap.Error(err))
	} else {
		log = log.With(zap.Time("firstSeenAt", record.FirstSeenAt), zap.Uint64("connectCount", record.ConnectCount))
	}

	backend, ok := s.options.backends[backendID]
	if !ok {
		log.Error("unknown backend")
		return
	}
	dev, err := backend.OpenDevice(bdev.ID, s.options.capacity)
	if err != nil {
		log.Error("failed to open device", zap.Error(err))
		return
	}

	switch d := dev.(type) {
	case MouseDevice:
		_, err = s.mice.Add(d.Channel(), s.options.mouseProcessor)
		if err == nil {
			log.Info("A mouse has been connected", zap.Stringer("channel", d.Channel()))
		}
	case KeyboardDevice:
		_, err = s.keyboards.Add(d.Channel(), s.options.keyboardProcessor)
		if err == nil {
			log.Info("A keyboard has been connected", zap.Stringer("channel", d.Channel()))
		}
	default:
		err = fmt.Errorf("unsupported device type %T", dev)
	}
	if err != nil {
		log.Error("failed to register device", zap.Error(err))
		if err := dev.Close(); err != nil {
			log.Error("failed to close device", zap.Error(err))
		}
		return
	}
	s.connected.Store(addr, connectedDevice{info: bdev, device: dev})
}

func (s *Service) onDeviceDisconnected(backendID, id string) {
	addr := Address{Backend: backendID, ID: id}
	cd, ok := s.connected.LoadAndDelete(addr)
	if !ok {
		s.log.Debug("disconnected device was not connected", zap.Stringer("addr", addr))
		return
	}
	s.release(addr, cd)
}

// release removes the device channel from its registry before closing the device,
// so no new snapshot can reach a closed channel.
func (s *Service) release(addr Address, cd connectedDevice) {
	log := s.log.With(zap.Stringer("addr", addr), zap.String("name", cd.info.Name))
	switch d := cd.device.(type) {
	case MouseDevice:
		s.mice.Remove(d.Channel())
		log.Info("A mouse has been disconnected", zap.Stringer("channel", d.Channel()))
	case KeyboardDevice:
		s.keyboards.Remove(d.Channel())
		log.Info("A keyboard has been disconnected", zap.Stringer("channel", d.Channel()))
	}
	if err := cd.device.Close(); err != nil {
		log.Error("failed to close device", zap.Error(err))
	}
}

func (s *Service) disconnectAll() {
	s.connected.Range(func(addr Address, cd connectedDevice) bool {
		s.connected.Delete(addr)
		s.release(addr, cd)
		return true
	})
}

func (s *Service) runBackend(ctx context.Context, backendID string) {
	backend := s.options.backends[backendID]
	for {
		err := backend.Start(ctx, s.backendBus.CreatePublisher(backendID))
		if err != nil {
			s.log.Error("failed to start the backend", zap.String("backend", backendID), zap.Error(err))
		}
		t := time.NewTimer(s.options.backoffTimeout)
		// retry after backoff
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return
		case <-t.C:
		}
	}
}

func (s *Service) IsConnected(addr Address) bool {
	_, ok := s.connected.Load(addr)
	return ok
}

func (s *Service) ListDevices() ([]DeviceRecord, error) {
	return s.store.List()
}

func (s *Service) GetDevice(addr Address) (DeviceRecord, error) {
	return s.store.Get(addr)
}
