package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultMirrorsLegacyScript(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "EaseView", cfg.App.Name)
	assert.Equal(t, "screen_overlay.py", cfg.App.EntryScript)
	assert.Equal(t, "icon.ico", cfg.App.Icon)
	assert.Equal(t, "create_icons.py", cfg.App.IconGenerator)
	require.Len(t, cfg.App.Assets, 2)
	assert.Equal(t, AssetPair{Source: "icon.ico", Dest: "."}, cfg.App.Assets[0])
	assert.Equal(t, AssetPair{Source: "tray_icon.png", Dest: "."}, cfg.App.Assets[1])

	assert.Equal(t, []string{"build", "dist", "EaseView.spec"}, cfg.Build.Artifacts)
	assert.Equal(t, []string{"pyinstaller", "pillow", "pystray"}, cfg.Build.Packages)
	assert.True(t, cfg.Build.OneFile)
	assert.True(t, cfg.Build.Windowed)
	assert.True(t, cfg.Build.Clean)
	assert.False(t, cfg.Build.ContinueOnError, "fail-fast is the hardened default")
	assert.False(t, cfg.Build.Pause, "interactive pause must be opt-in")
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "easepack.yaml")
	content := `
app:
  name: MyTool
  entry_script: main.py
build:
  onefile: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "MyTool", cfg.App.Name)
	// Artifact list derives from the configured app name.
	assert.Contains(t, cfg.Build.Artifacts, "MyTool.spec")
	assert.Equal(t, "pip", cfg.Tools.Pip)
	assert.Equal(t, RetryBackoffLinear, cfg.Retry.Backoff)
	assert.Equal(t, "1s", cfg.Retry.InitialDelay)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("EASEPACK_TEST_NAME", "EnvApp")

	dir := t.TempDir()
	path := filepath.Join(dir, "easepack.yaml")
	content := "app:\n  name: ${EASEPACK_TEST_NAME}\n  entry_script: app.py\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "EnvApp", cfg.App.Name)
}

func TestValidateRejectsBadDurations(t *testing.T) {
	cfg := Default()
	cfg.Retry.InitialDelay = "soon"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Retry.InitialDelay = "10s"
	cfg.Retry.MaxDelay = "1s"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_delay")
}

func TestValidateNATSRequiresURL(t *testing.T) {
	cfg := Default()
	cfg.Notifications.NATS.Enabled = true
	require.Error(t, cfg.Validate())

	cfg.Notifications.NATS.URL = "nats://localhost:4222"
	require.NoError(t, cfg.Validate())
}

func TestInitRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "easepack.yaml")

	require.NoError(t, Init(path, false))
	err := Init(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, Init(path, true))

	// The generated file must round-trip through Load.
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "EaseView", cfg.App.Name)
}

func TestNormalizeRetryBackoff(t *testing.T) {
	assert.Equal(t, RetryBackoffFixed, NormalizeRetryBackoff(" Fixed "))
	assert.Equal(t, RetryBackoffExponential, NormalizeRetryBackoff("EXPONENTIAL"))
	assert.Equal(t, RetryBackoffMode(""), NormalizeRetryBackoff("bogus"))
}
