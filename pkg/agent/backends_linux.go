//go:build linux

package agent

import (
	"github.com/neuroplastio/neio-input/internal/inputsvc"
	"github.com/neuroplastio/neio-input/internal/inputsvc/evdev"
	"go.uber.org/zap"
)

func platformBackends(log *zap.Logger, config Config) []inputsvc.Option {
	if !config.Evdev {
		return nil
	}
	var opts []evdev.Option
	if config.EvdevPollInterval > 0 {
		opts = append(opts, evdev.WithPollInterval(config.EvdevPollInterval))
	}
	return []inputsvc.Option{
		inputsvc.WithBackend("evdev", evdev.NewBackend(log.Named("input.evdev"), opts...)),
	}
}
