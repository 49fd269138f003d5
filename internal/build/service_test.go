package build

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/easepack/internal/build/models"
	"git.home.luguber.info/inful/easepack/internal/config"
	"git.home.luguber.info/inful/easepack/internal/history"
	"git.home.luguber.info/inful/easepack/internal/toolrunner"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *toolrunner.FakeRunner, *config.Config) {
	t.Helper()
	cfg := config.Default()
	cfg.Build.Root = t.TempDir()
	cfg.App.IconGenerator = "" // no generator by default; tests opt in
	fr := toolrunner.NewFakeRunner()
	opts = append([]Option{
		WithRunner(fr),
		WithStreams(&bytes.Buffer{}, strings.NewReader("")),
	}, opts...)
	return NewService(cfg, opts...), fr, cfg
}

func TestRunHappyPath(t *testing.T) {
	svc, fr, cfg := newTestService(t)

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, report.Outcome)
	assert.NotEmpty(t, report.BuildID)
	assert.True(t, report.Packaged)

	// pip install then pyinstaller, nothing else.
	require.Len(t, fr.Calls, 2)
	assert.Equal(t, "pip", fr.Calls[0].Tool)
	assert.Equal(t, "pyinstaller", fr.Calls[1].Tool)

	// Report persisted under the workspace report dir.
	data, err := os.ReadFile(filepath.Join(cfg.Build.Root, "dist", "build-report.json"))
	require.NoError(t, err)
	var persisted map[string]any
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Equal(t, report.BuildID, persisted["build_id"])
	assert.Equal(t, "success", persisted["outcome"])
}

// Full legacy trace: stale build/ and spec file present, dist absent,
// generator script present. Cleanup removes two artifacts, then pip,
// the generator, and the packager run in order, and the banner prints.
func TestRunFullLegacyTrace(t *testing.T) {
	var out bytes.Buffer
	svc, fr, cfg := newTestService(t, WithStreams(&out, strings.NewReader("")))
	cfg.App.IconGenerator = "create_icons.py"
	root := cfg.Build.Root
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "EaseView.spec"), []byte("# stale"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(root, "create_icons.py"), []byte("print()"), 0o600))

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, report.Outcome)
	assert.Equal(t, 2, report.ArtifactsRemoved, "build dir and stale spec file")
	assert.Equal(t, 1, report.ArtifactsAbsent, "dist was already gone")
	assert.True(t, report.IconGenerated)

	require.Len(t, fr.Calls, 3)
	assert.Equal(t, "pip install pyinstaller pillow pystray", fr.Calls[0].String())
	assert.Equal(t, "python create_icons.py", fr.Calls[1].String())
	assert.Equal(t, "pyinstaller", fr.Calls[2].Tool)
	assert.Contains(t, fr.Calls[2].Args, "--name")
	assert.Contains(t, fr.Calls[2].Args, "EaseView")
	assert.Equal(t, "screen_overlay.py", fr.Calls[2].Args[len(fr.Calls[2].Args)-1])

	assert.Contains(t, out.String(), "Build complete!")
}

func TestRunDegradesOnMissingIconGenerator(t *testing.T) {
	svc, _, cfg := newTestService(t)
	cfg.App.IconGenerator = "create_icons.py" // not present in the temp workspace

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeWarning, report.Outcome)
	assert.True(t, report.Packaged, "degraded runs still package")
	assert.False(t, report.IconGenerated)
}

func TestRunFailsFastOnPackagerError(t *testing.T) {
	svc, fr, _ := newTestService(t)
	fr.FailWith("pyinstaller", errors.New("missing module"), errors.New("missing module"), errors.New("missing module"))

	report, err := svc.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.OutcomeFailed, report.Outcome)
	assert.False(t, report.Packaged)
}

func TestRunContinueOnErrorStillPrintsBanner(t *testing.T) {
	var out bytes.Buffer
	svc, fr, cfg := newTestService(t, WithStreams(&out, strings.NewReader("")))
	cfg.Build.ContinueOnError = true
	fr.FailWith("pip", errors.New("down"))
	cfg.Retry.MaxRetries = 0

	report, err := svc.Run(context.Background())
	require.Error(t, err, "the failure is still surfaced")
	assert.Equal(t, models.OutcomeFailed, report.Outcome)
	assert.Contains(t, out.String(), "Build complete!", "legacy mode runs every stage")
	assert.True(t, report.Packaged, "packaging still attempted")
}

func TestRunCanceledContext(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := svc.Run(ctx)
	require.Error(t, err)
	assert.Equal(t, models.OutcomeCanceled, report.Outcome)
}

func TestRunAppendsHistory(t *testing.T) {
	store, err := history.Open(":memory:")
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	svc, _, _ := newTestService(t, WithHistory(store))
	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	runs, err := store.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.BuildID, runs[0].BuildID)
	assert.Equal(t, "success", runs[0].Outcome)
}

func TestCleanRemovesConfiguredArtifacts(t *testing.T) {
	svc, _, cfg := newTestService(t)
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.Build.Root, "build"), 0o750))

	res, err := svc.Clean(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"build"}, res.Removed)
}
