// Package vcs stamps builds with workspace provenance: the git HEAD commit
// and a content hash over the packaged sources.
package vcs

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
)

// HeadCommit returns the HEAD commit hash of the repository containing dir.
// It returns an empty string (no error) when dir is not inside a repository;
// provenance stamping is best effort.
func HeadCommit(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

// SourceHash computes a stable content hash over the given files (resolved
// relative to root). Missing files contribute their name only, so the hash
// still changes when a file appears or disappears.
func SourceHash(root string, files []string) string {
	sorted := make([]string, len(files))
	copy(sorted, files)
	sort.Strings(sorted)

	h := sha256.New()
	for _, f := range sorted {
		_, _ = io.WriteString(h, f)
		_, _ = h.Write([]byte{0})
		path := f
		if !filepath.IsAbs(f) {
			path = filepath.Join(root, f)
		}
		fh, err := os.Open(path) // #nosec G304 - paths come from validated config
		if err != nil {
			continue
		}
		_, _ = io.Copy(h, fh)
		_ = fh.Close()
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
