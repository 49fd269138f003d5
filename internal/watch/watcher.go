// Package watch rebuilds the application whenever its sources change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/easepack/internal/config"
	eperr "git.home.luguber.info/inful/easepack/internal/errors"
	"git.home.luguber.info/inful/easepack/internal/logfields"
	"git.home.luguber.info/inful/easepack/internal/metrics"
)

// BuildFunc triggers one rebuild. The watcher serializes invocations.
type BuildFunc func(ctx context.Context) error

// Watcher debounces file system events over the packaged sources and triggers
// rebuilds. It can additionally run builds on a fixed schedule and expose
// Prometheus metrics over HTTP.
type Watcher struct {
	cfg      *config.Config
	buildFn  BuildFunc
	registry *prom.Registry

	watcher   *fsnotify.Watcher
	scheduler gocron.Scheduler
	trigger   chan string

	mu       sync.Mutex
	building bool
	pending  bool
}

// New creates a Watcher. registry may be nil when metrics serving is disabled.
func New(cfg *config.Config, buildFn BuildFunc, registry *prom.Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, eperr.Wrap(err, eperr.CategoryWatch, eperr.SeverityFatal, "create file watcher")
	}
	return &Watcher{
		cfg:      cfg,
		buildFn:  buildFn,
		registry: registry,
		watcher:  fsw,
		trigger:  make(chan string, 1),
	}, nil
}

// watchedPaths derives the set of directories to watch: the workspace root
// (entry script and assets live there) plus any configured extra paths.
func (w *Watcher) watchedPaths() []string {
	root := w.cfg.Build.Root
	if root == "" {
		root = "."
	}
	seen := map[string]bool{}
	var paths []string
	add := func(p string) {
		if p == "" {
			return
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		if !seen[p] {
			seen[p] = true
			paths = append(paths, p)
		}
	}
	add(filepath.Dir(filepath.Join(root, w.cfg.App.EntryScript)))
	for _, a := range w.cfg.App.Assets {
		add(filepath.Dir(filepath.Join(root, a.Source)))
	}
	for _, p := range w.cfg.Watch.Paths {
		add(p)
	}
	return paths
}

// relevant filters out events for generated outputs, which would otherwise
// retrigger builds forever.
func (w *Watcher) relevant(name string) bool {
	base := filepath.Base(name)
	if base == "build-report.json" || base == "build-report.txt" {
		return false
	}
	for _, artifact := range w.cfg.Build.Artifacts {
		if base == filepath.Base(artifact) {
			return false
		}
		rel, err := filepath.Rel(filepath.Join(w.cfg.Build.Root, artifact), name)
		if err == nil && rel != ".." && !filepath.IsAbs(rel) && len(rel) > 0 && rel[0] != '.' {
			return false
		}
	}
	return true
}

// Run blocks, rebuilding on changes, until the context is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	for _, p := range w.watchedPaths() {
		if err := w.watcher.Add(p); err != nil {
			return eperr.Wrap(err, eperr.CategoryWatch, eperr.SeverityFatal, fmt.Sprintf("watch path %s", p))
		}
		slog.Info("Watching path", logfields.Path(p))
	}

	if interval := w.cfg.Watch.IntervalDuration(); interval > 0 {
		if err := w.startScheduler(interval); err != nil {
			return err
		}
		defer func() {
			if err := w.scheduler.Shutdown(); err != nil {
				slog.Warn("Scheduler shutdown failed", logfields.Error(err))
			}
		}()
	}

	if addr := w.cfg.Watch.MetricsAddr; addr != "" && w.registry != nil {
		w.serveMetrics(ctx, addr)
	}

	go w.eventLoop(ctx)
	w.buildLoop(ctx)

	return w.watcher.Close()
}

func (w *Watcher) startScheduler(interval time.Duration) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return eperr.Wrap(err, eperr.CategoryWatch, eperr.SeverityFatal, "create scheduler")
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { w.requestBuild("schedule") }),
		gocron.WithName("periodic-rebuild"),
	)
	if err != nil {
		return eperr.Wrap(err, eperr.CategoryWatch, eperr.SeverityFatal, "create periodic rebuild job")
	}
	s.Start()
	w.scheduler = s
	slog.Info("Periodic rebuild scheduled", slog.Duration("interval", interval))
	return nil
}

func (w *Watcher) serveMetrics(ctx context.Context, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(w.registry))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		slog.Info("Serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("Metrics server stopped", logfields.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

// eventLoop converts raw fsnotify events into debounced build requests.
func (w *Watcher) eventLoop(ctx context.Context) {
	debounce := w.cfg.Watch.DebounceDuration()
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.relevant(event.Name) {
				continue
			}
			slog.Debug("Source change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
			if timer == nil {
				timer = time.AfterFunc(debounce, func() { w.requestBuild("change") })
			} else {
				timer.Reset(debounce)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error", logfields.Error(err))
		}
	}
}

// requestBuild coalesces triggers: a build already in flight marks a pending
// rerun instead of queueing duplicates.
func (w *Watcher) requestBuild(reason string) {
	w.mu.Lock()
	if w.building {
		w.pending = true
		w.mu.Unlock()
		return
	}
	w.mu.Unlock()
	select {
	case w.trigger <- reason:
	default:
	}
}

func (w *Watcher) buildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case reason := <-w.trigger:
			w.runBuild(ctx, reason)
		}
	}
}

func (w *Watcher) runBuild(ctx context.Context, reason string) {
	w.mu.Lock()
	w.building = true
	w.mu.Unlock()

	slog.Info("Rebuild triggered", slog.String("reason", reason))
	if err := w.buildFn(ctx); err != nil {
		slog.Error("Rebuild failed", logfields.Error(err))
	}

	w.mu.Lock()
	w.building = false
	rerun := w.pending
	w.pending = false
	w.mu.Unlock()
	if rerun && ctx.Err() == nil {
		w.requestBuild("pending-change")
	}
}
