package stages

import (
	"context"
	"log/slog"
	"os"
	"slices"

	"git.home.luguber.info/inful/easepack/internal/build/models"
	"git.home.luguber.info/inful/easepack/internal/logfields"
	"git.home.luguber.info/inful/easepack/internal/workspace"
)

// StageCleanArtifacts removes stale build outputs so packaging starts from a
// known state. Running it twice in a row is a no-op the second time.
func StageCleanArtifacts(ctx context.Context, bs *models.BuildState) error {
	if err := ctx.Err(); err != nil {
		return models.NewCanceledStageError(models.StageCleanArtifacts, err)
	}

	root := bs.Config.Build.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return models.NewFatalStageError(models.StageCleanArtifacts, err)
		}
		root = wd
	}

	artifacts := slices.Clone(bs.Config.Build.Artifacts)
	res, err := workspace.CleanArtifacts(root, artifacts)
	bs.Report.ArtifactsRemoved = len(res.Removed)
	bs.Report.ArtifactsAbsent = len(res.Absent)
	if err != nil {
		return models.NewFatalStageError(models.StageCleanArtifacts, err)
	}

	slog.Info("Workspace cleaned",
		logfields.BuildID(bs.ID),
		slog.Int("removed", len(res.Removed)),
		slog.Int("absent", len(res.Absent)))
	return nil
}
