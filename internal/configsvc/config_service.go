// Package configsvc watches YAML configuration files and notifies subscribers of changes.
package configsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ghodss/yaml"
	"go.uber.org/zap"
)

var ErrNotStarted = errors.New("config service is not started")

// emptyFileDelay is how long an emptied config file may stay empty before it is applied.
var emptyFileDelay = 200 * time.Millisecond

type subscriber func(event fsnotify.Event)

type Service struct {
	log *zap.Logger

	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	watched     map[string]struct{}
	subscribers []subscriber
	ready       chan struct{}
}

func New(log *zap.Logger) *Service {
	return &Service{
		log:     log,
		watched: make(map[string]struct{}),
		ready:   make(chan struct{}),
	}
}

func (s *Service) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer watcher.Close()
	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()
	close(s.ready)
	s.log.Info("Config service started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			s.mu.Lock()
			subs := make([]subscriber, len(s.subscribers))
			copy(subs, s.subscribers)
			s.mu.Unlock()
			for _, sub := range subs {
				sub(event)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Error("Watcher error", zap.Error(err))
		}
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) watch(dir string, sub subscriber) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return ErrNotStarted
	}
	if _, ok := s.watched[dir]; !ok {
		if err := s.watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to add path to watcher %s: %w", dir, err)
		}
		s.watched[dir] = struct{}{}
	}
	s.subscribers = append(s.subscribers, sub)
	return nil
}

// Register starts watching a configuration file and calls fn with every new version of it.
// It returns the initial configuration, or an error if the file cannot be read.
// The service is a parameter instead of the receiver so that the configuration type can be generic.
func Register[T any](s *Service, path string, def T, fn func(config T, err error)) (T, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return def, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}
	config, err := readConfig(absPath, def)
	if err != nil {
		return def, fmt.Errorf("failed to read config: %w", err)
	}

	reload := func() {
		newConfig, err := readConfig(absPath, def)
		fn(newConfig, err)
	}
	var (
		pendingMu sync.Mutex
		pending   *time.Timer
	)
	err = s.watch(filepath.Dir(absPath), func(event fsnotify.Event) {
		// TODO: debounce, editors emit several writes per save
		if event.Name != absPath || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
			return
		}
		s.log.Debug("Config changed", zap.String("path", absPath))
		pendingMu.Lock()
		defer pendingMu.Unlock()
		if pending != nil {
			pending.Stop()
			pending = nil
		}
		if info, err := os.Stat(absPath); err == nil && info.Size() == 0 {
			// a truncate is usually followed by the new content, read again if it is not
			pending = time.AfterFunc(emptyFileDelay, reload)
			return
		}
		reload()
	})
	if err != nil {
		return def, err
	}
	return config, nil
}

// RegisterWriteable is like Register but writes def to path first when the file does not exist.
func RegisterWriteable[T any](s *Service, path string, def T, fn func(config T, err error)) (T, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return def, fmt.Errorf("failed to get absolute path for %s: %w", path, err)
	}
	_, err = os.Stat(absPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return def, fmt.Errorf("failed to create config directory: %w", err)
		}
		if err := writeConfig(absPath, def); err != nil {
			return def, fmt.Errorf("failed to initialize config: %w", err)
		}
		s.log.Info("Default config written", zap.String("path", absPath))
	case err != nil:
		return def, fmt.Errorf("failed to stat config: %w", err)
	}
	return Register(s, absPath, def, fn)
}

func writeConfig[T any](path string, config T) error {
	jsonB, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	yamlB, err := yaml.JSONToYAML(jsonB)
	if err != nil {
		return fmt.Errorf("failed to convert json to yaml: %w", err)
	}

	err = os.WriteFile(path, yamlB, 0644)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func readConfig[T any](path string, def T) (T, error) {
	yamlB, err := os.ReadFile(path)
	if err != nil {
		return def, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(bytes.TrimSpace(yamlB)) == 0 {
		var empty T
		return empty, nil
	}

	jsonB, err := yaml.YAMLToJSON(yamlB)
	if err != nil {
		return def, fmt.Errorf("failed to convert yaml to json: %w", err)
	}
	err = json.Unmarshal(jsonB, &def)
	if err != nil {
		return def, fmt.Errorf("failed to unmarshal json: %w", err)
	}
	return def, nil
}
