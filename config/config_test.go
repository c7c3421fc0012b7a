package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hwci/hwci/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	t.Setenv(HomeEnv, "/srv/hwci")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/srv/hwci", cfg.Home)
	assert.Equal(t, "/srv/hwci/builds", cfg.BuildsDir())
	assert.Equal(t, 5*time.Second, cfg.CI.PollInterval.Std())
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	t.Setenv("RIG", "/opt/rig")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
home: /var/lib/hwci
ci:
  repository_url: https://github.com/hwci/fpga.git
  branch: develop
  flash_timeout: 90s
  keep_clone: true
tests:
  suites:
    nightly: [camera_status, mock]
scripts:
  flash:
    path: ${RIG}/flash.sh
    args: [--verify]
  reset:
    class: repo
    path: scripts/reset.sh
    fallback: ${RIG}/reset.sh
camera:
  class: mock
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/hwci", cfg.Home)
	assert.Equal(t, "develop", cfg.CI.Branch)
	assert.Equal(t, "**/*.bit", cfg.CI.Bitfile, "unset values keep their default")
	assert.Equal(t, 90*time.Second, cfg.CI.FlashTimeout.Std())
	assert.True(t, cfg.CI.KeepClone)
	assert.Equal(t, []string{"camera_status", "mock"}, cfg.Tests.Suites["nightly"])
	assert.Equal(t, script.Definition{Path: "/opt/rig/flash.sh", Args: []string{"--verify"}}, cfg.Scripts["flash"])
	assert.Equal(t, "/opt/rig/reset.sh", cfg.Scripts["reset"].Fallback)
	assert.Equal(t, "mock", cfg.Camera.Class)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "bad duration", data: "ci:\n  poll_interval: soon\n"},
		{name: "bad yaml", data: "ci: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{name: "zero poll", mutate: func(c *Config) { c.CI.PollInterval = 0 }, errMsg: "poll_interval"},
		{name: "no home", mutate: func(c *Config) { c.Home = "" }, errMsg: "home"},
		{name: "unknown camera", mutate: func(c *Config) { c.Camera.Class = "ufo" }, errMsg: "camera.class"},
		{name: "no flash script", mutate: func(c *Config) { c.CI.FlashScript = "" }, errMsg: "flash_script"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}
