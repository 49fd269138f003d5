// Package workspace manipulates the packaging workspace on disk.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	eperr "git.home.luguber.info/inful/easepack/internal/errors"
	"git.home.luguber.info/inful/easepack/internal/logfields"
)

// CleanResult summarizes a cleanup pass.
type CleanResult struct {
	Removed []string // paths that existed and were deleted
	Absent  []string // paths that were already gone
}

// CleanArtifacts removes the named artifact paths under root. Paths are
// resolved relative to root and must stay inside it. The operation is
// idempotent: already-absent paths are recorded, not errors.
func CleanArtifacts(root string, artifacts []string) (CleanResult, error) {
	var res CleanResult
	for _, a := range artifacts {
		path, err := resolveInside(root, a)
		if err != nil {
			return res, err
		}
		if _, err := os.Lstat(path); err != nil {
			if os.IsNotExist(err) {
				res.Absent = append(res.Absent, a)
				slog.Debug("Artifact already absent", logfields.Artifact(a))
				continue
			}
			return res, eperr.Wrap(err, eperr.CategoryFileSystem, eperr.SeverityFatal, fmt.Sprintf("stat artifact %s", a))
		}
		if err := os.RemoveAll(path); err != nil {
			return res, eperr.Wrap(err, eperr.CategoryFileSystem, eperr.SeverityFatal, fmt.Sprintf("remove artifact %s", a))
		}
		res.Removed = append(res.Removed, a)
		slog.Debug("Artifact removed", logfields.Artifact(a), logfields.Path(path))
	}
	return res, nil
}

// resolveInside joins rel onto root and rejects escapes outside the workspace.
func resolveInside(root, rel string) (string, error) {
	if rel == "" {
		return "", eperr.ValidationError("empty artifact path")
	}
	if filepath.IsAbs(rel) {
		return "", eperr.ValidationError(fmt.Sprintf("artifact path must be relative: %s", rel))
	}
	path := filepath.Join(root, rel)
	cleanRoot := filepath.Clean(root)
	if path != cleanRoot && !isWithin(cleanRoot, path) {
		return "", eperr.ValidationError(fmt.Sprintf("artifact path escapes workspace: %s", rel))
	}
	return path, nil
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !isParentTraversal(rel)
}

func isParentTraversal(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
