package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/easepack/internal/build"
	"git.home.luguber.info/inful/easepack/internal/config"
	"git.home.luguber.info/inful/easepack/internal/history"
	"git.home.luguber.info/inful/easepack/internal/metrics"
	"git.home.luguber.info/inful/easepack/internal/notify"
	"git.home.luguber.info/inful/easepack/internal/version"
	"git.home.luguber.info/inful/easepack/internal/watch"
)

type cli struct {
	Config  string `short:"c" help:"Configuration file path" default:"easepack.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Build struct {
		Pause           bool `help:"Wait for Enter after the completion notice"`
		ContinueOnError bool `help:"Run remaining stages even after a fatal stage failure"`
	} `cmd:"" default:"withargs" help:"Clean, install dependencies, and package the application"`

	Clean struct{} `cmd:"" help:"Remove stale build artifacts without building"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Watch struct{} `cmd:"" help:"Rebuild automatically when sources change"`

	History struct {
		Limit int `short:"n" help:"Number of runs to show" default:"10"`
	} `cmd:"" help:"Show recent build runs"`

	Version struct{} `cmd:"" help:"Print version information"`
}

var CLI cli

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "build":
		cfg, err := loadConfig()
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if CLI.Build.Pause {
			cfg.Build.Pause = true
		}
		if CLI.Build.ContinueOnError {
			cfg.Build.ContinueOnError = true
		}
		if err := runBuild(cfg); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(1)
		}
	case "clean":
		cfg, err := loadConfig()
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runClean(cfg); err != nil {
			slog.Error("Clean failed", "error", err)
			os.Exit(1)
		}
	case "init":
		if err := config.Init(CLI.Config, CLI.Init.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration written", "path", CLI.Config)
	case "watch":
		cfg, err := loadConfig()
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runWatch(cfg); err != nil {
			slog.Error("Watch failed", "error", err)
			os.Exit(1)
		}
	case "history":
		cfg, err := loadConfig()
		if err != nil {
			slog.Error("Failed to load configuration", "error", err)
			os.Exit(1)
		}
		if err := runHistory(cfg, CLI.History.Limit); err != nil {
			slog.Error("History failed", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("easepack %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

// loadConfig reads the configured file; a missing file at the default path
// falls back to the built-in legacy configuration so the tool works with
// zero setup, like the script it replaces.
func loadConfig() (*config.Config, error) {
	if _, err := os.Stat(CLI.Config); os.IsNotExist(err) && CLI.Config == "easepack.yaml" {
		slog.Debug("No configuration file; using built-in defaults")
		return config.Default(), nil
	}
	return config.Load(CLI.Config)
}

func runBuild(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, closers, err := serviceOptions(cfg)
	if err != nil {
		return err
	}
	defer closers()

	svc := build.NewService(cfg, opts...)
	report, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	slog.Info("Build report", "summary", report.Summary())
	return nil
}

func runClean(cfg *config.Config) error {
	svc := build.NewService(cfg)
	res, err := svc.Clean(context.Background())
	if err != nil {
		return err
	}
	slog.Info("Artifacts cleaned", "removed", len(res.Removed), "absent", len(res.Absent))
	return nil
}

func runWatch(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	opts, closers, err := serviceOptions(cfg)
	if err != nil {
		return err
	}
	defer closers()
	opts = append(opts, build.WithRecorder(recorder))

	svc := build.NewService(cfg, opts...)
	watcher, err := watch.New(cfg, func(ctx context.Context) error {
		_, err := svc.Run(ctx)
		return err
	}, registry)
	if err != nil {
		return err
	}
	return watcher.Run(ctx)
}

func runHistory(cfg *config.Config, limit int) error {
	if !cfg.History.Enabled {
		return fmt.Errorf("history is not enabled in configuration")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded builds.")
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %-8s  %-10s  %8s  errors=%d warnings=%d retries=%d\n",
			r.StartedAt.Format("2006-01-02 15:04:05"), r.Outcome, r.App,
			r.Duration().Truncate(time.Millisecond), r.Errors, r.Warnings, r.Retries)
	}
	return nil
}

// serviceOptions wires the optional sinks (history, notifications) from config.
// The returned func closes whatever was opened.
func serviceOptions(cfg *config.Config) ([]build.Option, func(), error) {
	var opts []build.Option
	var cleanup []func()

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, nil, err
		}
		cleanup = append(cleanup, func() { _ = store.Close() })
		opts = append(opts, build.WithHistory(store))
	}

	if cfg.Notifications.NATS.Enabled {
		pub, err := notify.Connect(cfg.Notifications.NATS)
		if err != nil {
			// Notifications are best effort; the build proceeds without them.
			slog.Warn("Notifications unavailable", "error", err)
		} else {
			cleanup = append(cleanup, pub.Close)
			opts = append(opts, build.WithPublisher(pub))
		}
	}

	return opts, func() {
		for _, f := range cleanup {
			f()
		}
	}, nil
}
