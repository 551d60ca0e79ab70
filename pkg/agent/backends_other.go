//go:build !linux

package agent

import (
	"github.com/neuroplastio/neio-input/internal/inputsvc"
	"go.uber.org/zap"
)

func platformBackends(log *zap.Logger, config Config) []inputsvc.Option {
	if config.Evdev {
		log.Warn("evdev backend is only available on Linux")
	}
	return nil
}
