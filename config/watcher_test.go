package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, path string, cap int) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Realtime.MaxPostChannels = cap
	require.NoError(t, cfg.SaveToFile(path))
}

func startWatcher(t *testing.T, path string) *Watcher {
	t.Helper()

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	t.Cleanup(func() {
		cancel()
		_ = w.Stop()
	})
	return w
}

func TestWatcher_EmitsReloadedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedsync.yaml")
	writeConfigFile(t, path, 10)

	w := startWatcher(t, path)

	writeConfigFile(t, path, 42)

	select {
	case cfg := <-w.Updates():
		assert.Equal(t, 42, cfg.Realtime.MaxPostChannels)
	case <-time.After(3 * time.Second):
		t.Fatal("no config update received")
	}
}

func TestWatcher_SkipsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feedsync.yaml")
	writeConfigFile(t, path, 10)

	w := startWatcher(t, path)

	// Broken YAML must not emit anything.
	require.NoError(t, os.WriteFile(path, []byte("api: ["), 0644))
	select {
	case cfg := <-w.Updates():
		t.Fatalf("unexpected update for invalid config: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}

	// A following valid write still gets through.
	writeConfigFile(t, path, 7)
	select {
	case cfg := <-w.Updates():
		assert.Equal(t, 7, cfg.Realtime.MaxPostChannels)
	case <-time.After(3 * time.Second):
		t.Fatal("no config update after recovery")
	}
}

func TestWatcher_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feedsync.yaml")
	writeConfigFile(t, path, 10)

	w := startWatcher(t, path)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1"), 0644))

	select {
	case cfg := <-w.Updates():
		t.Fatalf("unexpected update for sibling file: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}
