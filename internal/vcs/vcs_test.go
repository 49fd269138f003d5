package vcs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeadCommitOutsideRepository(t *testing.T) {
	assert.Empty(t, HeadCommit(t.TempDir()))
}

func TestHeadCommitInRepository(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "screen_overlay.py"), []byte("print()"), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("screen_overlay.py")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, hash.String(), HeadCommit(dir))

	// Detection walks up from subdirectories.
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	assert.Equal(t, hash.String(), HeadCommit(sub))
}

func TestSourceHashStableAndOrderIndependent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("a"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.png"), []byte("b"), 0o600))

	h1 := SourceHash(root, []string{"a.py", "b.png"})
	h2 := SourceHash(root, []string{"b.png", "a.py"})
	assert.Equal(t, h1, h2)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("changed"), 0o600))
	assert.NotEqual(t, h1, SourceHash(root, []string{"a.py", "b.png"}))
}

func TestSourceHashMissingFileStillDistinct(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte("a"), 0o600))

	with := SourceHash(root, []string{"a.py", "missing.png"})
	without := SourceHash(root, []string{"a.py"})
	assert.NotEqual(t, with, without)
}
