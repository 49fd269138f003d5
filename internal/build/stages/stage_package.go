package stages

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"

	"git.home.luguber.info/inful/easepack/internal/build/models"
	"git.home.luguber.info/inful/easepack/internal/logfields"
)

// addDataSeparator is the packaging tool's source/dest separator, which is
// platform dependent (";" on Windows, ":" elsewhere).
func addDataSeparator() string {
	if runtime.GOOS == "windows" {
		return ";"
	}
	return ":"
}

// PackagerArgs builds the deterministic packaging tool argument list from config.
// Flag order is stable: mode flags, name, icon, data pairs, entry script.
func PackagerArgs(cfg *models.BuildState) []string {
	c := cfg.Config
	sep := addDataSeparator()

	var args []string
	if c.Build.OneFile {
		args = append(args, "--onefile")
	}
	if c.Build.Windowed {
		args = append(args, "--windowed")
	}
	if c.Build.Clean {
		args = append(args, "--clean")
	}
	args = append(args, "--name", c.App.Name)
	if c.App.Icon != "" {
		args = append(args, "--icon", c.App.Icon)
	}
	for _, a := range c.App.Assets {
		args = append(args, "--add-data", a.Source+sep+a.Dest)
	}
	args = append(args, c.App.EntryScript)
	return args
}

// expectedOutputPath is where the packaging tool places the single-file binary.
func expectedOutputPath(bs *models.BuildState) string {
	name := bs.Config.App.Name
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return filepath.Join(bs.Config.Build.Root, "dist", name)
}

// StagePackage invokes the packaging tool with the assembled argument list.
// Any failure here is fatal: without a packaged executable the run has no product.
func StagePackage(ctx context.Context, bs *models.BuildState) error {
	tool := bs.Config.Tools.PyInstaller
	args := PackagerArgs(bs)

	slog.Info("Packaging application",
		logfields.BuildID(bs.ID),
		logfields.Tool(tool),
		slog.String("app", bs.Config.App.Name),
		slog.String("entry", bs.Config.App.EntryScript))

	if err := bs.Runner.Run(ctx, tool, args...); err != nil {
		if ctx.Err() != nil {
			return models.NewCanceledStageError(models.StagePackage, ctx.Err())
		}
		return models.NewFatalStageError(models.StagePackage, fmt.Errorf("packaging tool: %w", err))
	}

	bs.Report.Packaged = true
	bs.Report.OutputPath = expectedOutputPath(bs)
	slog.Info("Packaging complete", logfields.Path(bs.Report.OutputPath))
	return nil
}
