package stages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/easepack/internal/build/models"
	"git.home.luguber.info/inful/easepack/internal/logfields"
)

// ErrIconGeneratorMissing marks the degraded-mode condition where the icon
// generator script is absent from the workspace.
var ErrIconGeneratorMissing = errors.New("icon generator script not found")

// StageGenerateIcon runs the optional icon generator script when present.
// A missing script or a failed generation degrades the build (warning),
// relying on previously generated icon assets instead of aborting.
func StageGenerateIcon(ctx context.Context, bs *models.BuildState) error {
	gen := bs.Config.App.IconGenerator
	if gen == "" {
		slog.Debug("No icon generator configured; skipping")
		return nil
	}

	exists := bs.Exists
	if exists == nil {
		exists = func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		}
	}

	genPath := gen
	if bs.Config.Build.Root != "" && !filepath.IsAbs(gen) {
		genPath = filepath.Join(bs.Config.Build.Root, gen)
	}

	if !exists(genPath) {
		slog.Warn("Icon generator script missing; relying on existing icon assets",
			logfields.Path(genPath))
		return models.NewWarnStageError(models.StageGenerateIcon,
			fmt.Errorf("%w: %s", ErrIconGeneratorMissing, gen))
	}

	python := bs.Config.Tools.Python
	if err := bs.Runner.Run(ctx, python, gen); err != nil {
		if ctx.Err() != nil {
			return models.NewCanceledStageError(models.StageGenerateIcon, ctx.Err())
		}
		slog.Warn("Icon generation failed; relying on existing icon assets",
			logfields.Tool(python), logfields.Error(err))
		return models.NewWarnStageError(models.StageGenerateIcon,
			fmt.Errorf("icon generation: %w", err))
	}

	bs.Report.IconGenerated = true
	slog.Info("Icon assets generated", logfields.Tool(python), logfields.Path(gen))
	return nil
}
