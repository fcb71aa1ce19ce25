package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.Equal(t, "release", cfg.Mode)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 10, cfg.History.MaxEndedCalls)
	require.Equal(t, 50, cfg.Captions.MaxCaptions)
	require.Zero(t, cfg.Render.CreateTimeout)
	require.Equal(t, 2*time.Second, cfg.Demo.Interval)
	require.NoError(t, cfg.Validate())

	caps := cfg.Capacities()
	require.Equal(t, 10, caps.EndedParticipants)
	require.Equal(t, 50, caps.Captions)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "config"), 0o755))
	yaml := "mode: debug\nport: 9090\nhistory:\n  max_ended_calls: 3\nrender:\n  create_timeout: 5s\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config", "config.test.yaml"), []byte(yaml), 0o644))

	t.Chdir(dir)
	t.Setenv("CONFIG_ENV", "test")
	t.Setenv("CALLSTATE_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Mode)
	require.Equal(t, 9191, cfg.Port)
	require.Equal(t, 3, cfg.History.MaxEndedCalls)
	require.Equal(t, 10, cfg.History.MaxEndedParticipants)
	require.Equal(t, 5*time.Second, cfg.Render.CreateTimeout)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_ENV", "missing")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Mode = "loud"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Render.CreateTimeout = -time.Second
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.History.MaxEndedParticipants = 0
	require.Error(t, cfg.Validate())
}
