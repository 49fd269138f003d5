package workspace

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanArtifactsRemovesExisting(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build", "nested"), 0o750))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dist"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "EaseView.spec"), []byte("# spec"), 0o600))

	res, err := CleanArtifacts(root, []string{"build", "dist", "EaseView.spec"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"build", "dist", "EaseView.spec"}, res.Removed)
	assert.Empty(t, res.Absent)

	for _, p := range []string{"build", "dist", "EaseView.spec"} {
		_, err := os.Stat(filepath.Join(root, p))
		assert.True(t, os.IsNotExist(err), "expected %s to be gone", p)
	}
}

func TestCleanArtifactsIdempotent(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o750))

	first, err := CleanArtifacts(root, []string{"build", "dist"})
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, first.Removed)
	assert.Equal(t, []string{"dist"}, first.Absent)

	second, err := CleanArtifacts(root, []string{"build", "dist"})
	require.NoError(t, err)
	assert.Empty(t, second.Removed)
	assert.ElementsMatch(t, []string{"build", "dist"}, second.Absent)
}

func TestCleanArtifactsRejectsEscape(t *testing.T) {
	root := t.TempDir()
	_, err := CleanArtifacts(root, []string{"../outside"})
	require.Error(t, err)

	_, err = CleanArtifacts(root, []string{"/etc/passwd"})
	require.Error(t, err)

	_, err = CleanArtifacts(root, []string{""})
	require.Error(t, err)
}

func TestCleanArtifactsKeepsUnlistedFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "screen_overlay.py"), []byte("print()"), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o750))

	_, err := CleanArtifacts(root, []string{"build"})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "screen_overlay.py"))
	require.NoError(t, err)
}
