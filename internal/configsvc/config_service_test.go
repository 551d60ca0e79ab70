package configsvc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testConfig struct {
	Name  string   `json:"name"`
	Items []string `json:"items"`
}

func startService(t *testing.T) *Service {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	svc := New(zaptest.NewLogger(t))
	done := make(chan error, 1)
	go func() {
		done <- svc.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	select {
	case <-svc.Ready():
	case <-time.After(time.Second):
		t.Fatal("config service did not start")
	}
	return svc
}

func TestRegisterNotStarted(t *testing.T) {
	svc := New(zaptest.NewLogger(t))
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: a\n"), 0644))

	_, err := Register(svc, path, testConfig{}, func(testConfig, error) {})
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestRegisterReload(t *testing.T) {
	svc := startService(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: first\nitems: [a, b]\n"), 0644))

	updates := make(chan testConfig, 8)
	cfg, err := Register(svc, path, testConfig{}, func(cfg testConfig, err error) {
		if err == nil {
			updates <- cfg
		}
	})
	require.NoError(t, err)
	assert.Equal(t, testConfig{Name: "first", Items: []string{"a", "b"}}, cfg)

	require.NoError(t, os.WriteFile(path, []byte("name: second\n"), 0644))
	require.Eventually(t, func() bool {
		for {
			select {
			case cfg := <-updates:
				if cfg.Name == "second" {
					return true
				}
			default:
				return false
			}
		}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRegisterMissingFile(t *testing.T) {
	svc := startService(t)
	_, err := Register(svc, filepath.Join(t.TempDir(), "missing.yml"), testConfig{}, func(testConfig, error) {})
	require.Error(t, err)
}

func TestRegisterWriteable(t *testing.T) {
	svc := startService(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yml")
	def := testConfig{Name: "default", Items: []string{"x"}}

	cfg, err := RegisterWriteable(svc, path, def, func(testConfig, error) {})
	require.NoError(t, err)
	assert.Equal(t, def, cfg)

	written, err := readConfig(path, testConfig{})
	require.NoError(t, err)
	assert.Equal(t, def, written)
}

func TestRegisterEmptiedFile(t *testing.T) {
	svc := startService(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("name: first\nitems: [a]\n"), 0644))

	updates := make(chan testConfig, 8)
	def := testConfig{Name: "default"}
	_, err := Register(svc, path, def, func(cfg testConfig, err error) {
		if err == nil {
			updates <- cfg
		}
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, nil, 0644))
	select {
	case cfg := <-updates:
		assert.Equal(t, testConfig{}, cfg, "an empty file is an empty config, not the default")
	case <-time.After(2 * time.Second):
		t.Fatal("emptied config was never applied")
	}
}
