package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/easepack/internal/build/models"
	"git.home.luguber.info/inful/easepack/internal/logfields"
)

// StageInstallDeps ensures the packaging toolchain and bundled runtime
// packages are present. Installer failures are treated as transient and
// retried per the configured policy before becoming fatal.
func StageInstallDeps(ctx context.Context, bs *models.BuildState) error {
	packages := bs.Config.Build.Packages
	if len(packages) == 0 {
		slog.Debug("No packages configured; skipping installer")
		return nil
	}

	pip := bs.Config.Tools.Pip
	args := append([]string{"install"}, packages...)

	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return models.NewCanceledStageError(models.StageInstallDeps, err)
		}
		if attempt > 0 {
			delay := bs.Retry.Delay(attempt)
			slog.Warn("Installer failed; retrying",
				logfields.Tool(pip),
				logfields.Attempt(attempt),
				slog.Duration("delay", delay),
				logfields.Error(lastErr))
			bs.Report.Retries++
			if bs.Recorder != nil {
				bs.Recorder.IncBuildRetry(string(models.StageInstallDeps))
			}
			select {
			case <-ctx.Done():
				return models.NewCanceledStageError(models.StageInstallDeps, ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = bs.Runner.Run(ctx, pip, args...)
		if lastErr == nil {
			slog.Info("Dependencies installed", logfields.Tool(pip), slog.Any("packages", packages))
			return nil
		}
		if ctx.Err() != nil {
			return models.NewCanceledStageError(models.StageInstallDeps, ctx.Err())
		}
		if attempt >= bs.Retry.MaxRetries {
			break
		}
	}

	bs.Report.RetriesExhausted = true
	if bs.Recorder != nil {
		bs.Recorder.IncBuildRetryExhausted(string(models.StageInstallDeps))
	}
	return models.NewFatalStageError(models.StageInstallDeps,
		fmt.Errorf("installer failed after %d attempts: %w", bs.Retry.MaxRetries+1, lastErr))
}
