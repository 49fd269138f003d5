package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/easepack/internal/config"
)

func newWatchConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Build.Root = t.TempDir()
	cfg.Watch.Debounce = "50ms"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Build.Root, "screen_overlay.py"), []byte("print()"), 0o600))
	return cfg
}

func TestWatchedPathsDeduplicated(t *testing.T) {
	cfg := newWatchConfig(t)
	cfg.Watch.Paths = []string{"extra"}
	w, err := New(cfg, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	defer func() { _ = w.watcher.Close() }()

	paths := w.watchedPaths()
	// Entry script and both assets share the workspace root; extra is separate.
	assert.Len(t, paths, 2)
	assert.Contains(t, paths, cfg.Build.Root)
	assert.Contains(t, paths, filepath.Join(cfg.Build.Root, "extra"))
}

func TestRelevantFiltersGeneratedOutputs(t *testing.T) {
	cfg := newWatchConfig(t)
	w, err := New(cfg, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	defer func() { _ = w.watcher.Close() }()

	assert.True(t, w.relevant(filepath.Join(cfg.Build.Root, "screen_overlay.py")))
	assert.False(t, w.relevant(filepath.Join(cfg.Build.Root, "build-report.json")))
	assert.False(t, w.relevant(filepath.Join(cfg.Build.Root, "build")))
	assert.False(t, w.relevant(filepath.Join(cfg.Build.Root, "dist")))
	assert.False(t, w.relevant(filepath.Join(cfg.Build.Root, "EaseView.spec")))
}

func TestRunRebuildsOnSourceChange(t *testing.T) {
	cfg := newWatchConfig(t)
	var builds atomic.Int32
	built := make(chan struct{}, 4)
	w, err := New(cfg, func(context.Context) error {
		builds.Add(1)
		built <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Let the watcher register its paths before touching files.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Build.Root, "screen_overlay.py"), []byte("print('v2')"), 0o600))

	select {
	case <-built:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after source change")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
	assert.GreaterOrEqual(t, builds.Load(), int32(1))
}

func TestDebounceCoalescesBursts(t *testing.T) {
	cfg := newWatchConfig(t)
	var builds atomic.Int32
	built := make(chan struct{}, 16)
	w, err := New(cfg, func(context.Context) error {
		builds.Add(1)
		built <- struct{}{}
		return nil
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()
	time.Sleep(100 * time.Millisecond)

	src := filepath.Join(cfg.Build.Root, "screen_overlay.py")
	for i := 0; i < 10; i++ {
		require.NoError(t, os.WriteFile(src, []byte("print()"), 0o600))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-built:
	case <-time.After(5 * time.Second):
		t.Fatal("no rebuild after burst")
	}
	// The burst fits inside one debounce window, so at most a couple of
	// builds fire (never one per write).
	time.Sleep(200 * time.Millisecond)
	assert.LessOrEqual(t, builds.Load(), int32(3))
}
