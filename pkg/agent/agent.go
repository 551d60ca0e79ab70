package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/neuroplastio/neio-input/internal/configsvc"
	"github.com/neuroplastio/neio-input/internal/inputsvc"
	"github.com/neuroplastio/neio-input/internal/inputsvc/virtual"
	"github.com/neuroplastio/neio-input/pkg/inputchan"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

type Agent struct {
	config Config
	log    *zap.Logger

	db        *badger.DB
	configSvc *configsvc.Service
	inputSvc  *inputsvc.Service
	virtual   *virtual.Backend

	mouseStats    *inputchan.StatsProcessor[inputchan.MouseEvent]
	keyboardStats *inputchan.StatsProcessor[inputchan.KeyboardEvent]
}

func NewAgent(config Config) (*Agent, error) {
	level, err := zap.ParseAtomicLevel(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	loggerConfig := zap.NewDevelopmentConfig()
	loggerConfig.Level = level
	loggerConfig.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000000000")
	loggerConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	dbOptions := badger.DefaultOptions(filepath.Join(config.DataDir, "db"))
	dbOptions.Logger = &badgerLogger{l: logger.Named("badger")}

	db, err := badger.Open(dbOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	configSvc := configsvc.New(logger.Named("config"))
	virtualBackend := virtual.NewBackend(logger.Named("input.virtual"), configSvc, config.DevicesConfig, time.Now)

	mouseStats := inputchan.NewStatsProcessor[inputchan.MouseEvent](
		inputchan.NewLogProcessor[inputchan.MouseEvent](logger.Named("mouse")),
	)
	keyboardStats := inputchan.NewStatsProcessor[inputchan.KeyboardEvent](
		inputchan.NewLogProcessor[inputchan.KeyboardEvent](logger.Named("keyboard")),
	)
	opts := []inputsvc.Option{
		inputsvc.WithBackend("virtual", virtualBackend),
		inputsvc.WithMouseProcessor(mouseStats),
		inputsvc.WithKeyboardProcessor(keyboardStats),
	}
	if config.ChannelCapacity > 0 {
		opts = append(opts, inputsvc.WithChannelCapacity(config.ChannelCapacity))
	}
	opts = append(opts, platformBackends(logger, config)...)
	inputSvc := inputsvc.New(inputsvc.NewDeviceStore(db), logger.Named("input"), time.Now, opts...)

	return &Agent{
		config:        config,
		log:           logger,
		db:            db,
		configSvc:     configSvc,
		inputSvc:      inputSvc,
		virtual:       virtualBackend,
		mouseStats:    mouseStats,
		keyboardStats: keyboardStats,
	}, nil
}

func (a *Agent) Close() error {
	err := a.db.Close()
	_ = a.log.Sync()
	return err
}

type badgerLogger struct {
	l *zap.Logger
}

func (l badgerLogger) Errorf(msg string, args ...any) {
	l.l.Error(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Warningf(msg string, args ...any) {
	l.l.Warn(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Infof(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}

func (l badgerLogger) Debugf(msg string, args ...any) {
	l.l.Debug(fmt.Sprintf(msg, args...))
}

// Run starts the agent and blocks until the context is cancelled or the configured timeout expires.
// Every tick it drains all mouse channels, then all keyboard channels.
func (a *Agent) Run(ctx context.Context) error {
	var cancel context.CancelFunc
	if a.config.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.configSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return a.inputSvc.Start(groupCtx)
	})
	group.Go(func() error {
		return a.tick(groupCtx)
	})

	err := group.Wait()
	totals := a.Totals()
	a.log.Info("Agent stopped",
		zap.Any("mice", totals.Mice),
		zap.Any("keyboards", totals.Keyboards),
		zap.Uint64("generated", a.virtual.Generated()),
	)
	if err != nil {
		return fmt.Errorf("agent failed: %w", err)
	}
	return nil
}

func (a *Agent) tick(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case <-a.inputSvc.Ready():
	}
	interval := a.config.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.inputSvc.Mice().ConsumeAll()
			a.inputSvc.Keyboards().ConsumeAll()
		}
	}
}

type Totals struct {
	Mice      inputchan.Stats `json:"mice"`
	Keyboards inputchan.Stats `json:"keyboards"`
}

func (a *Agent) Totals() Totals {
	return Totals{
		Mice:      a.mouseStats.Stats(),
		Keyboards: a.keyboardStats.Stats(),
	}
}

func (a *Agent) Input() *inputsvc.Service {
	return a.inputSvc
}
