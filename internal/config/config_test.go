package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "local", cfg.Timezone)
	assert.False(t, cfg.Sessions.SwitchOnStart)
	assert.True(t, cfg.Intents.UniqueAliases)
	assert.Equal(t, 10*time.Second, cfg.Plans.PullTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), withoutNilRemotes(cfg))
}

func withoutNilRemotes(c *Config) *Config {
	if len(c.Plans.Remotes) == 0 {
		c.Plans.Remotes = nil
	}
	return c
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	doc := `timezone: Europe/London
sessions:
  switch_on_start: true
intents:
  unique_aliases: false
plans:
  pull_timeout: 3s
  remotes:
    - name: team
      dir: ../shared/plans
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(doc), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", cfg.Timezone)
	assert.True(t, cfg.Sessions.SwitchOnStart)
	assert.False(t, cfg.Intents.UniqueAliases)
	assert.Equal(t, 3*time.Second, cfg.Plans.PullTimeout)
	require.Len(t, cfg.Plans.Remotes, 1)
	assert.Equal(t, "team", cfg.Plans.Remotes[0].Name)
	assert.Equal(t, filepath.Join(dir, "../shared/plans"), cfg.Plans.Remotes[0].RemoteDir(dir))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("timezone: UTC\n"), 0o644))
	t.Setenv("FAFF_TIMEZONE", "Asia/Tokyo")
	t.Setenv("FAFF_SESSIONS_SWITCH_ON_START", "true")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", cfg.Timezone)
	assert.True(t, cfg.Sessions.SwitchOnStart)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := "FAFF_PLANS_PULL_TIMEOUT=2s\nFAFF_LOG_LEVEL=warn\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0o600))
	t.Setenv("FAFF_LOG_LEVEL", "error")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Plans.PullTimeout)
	assert.Equal(t, "error", cfg.Log.Level, "process environment wins over .env")
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("timezone: [\n"), 0o644))
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Timezone = "UTC"
	cfg.Plans.Remotes = []Remote{{Name: "team", Dir: "/srv/plans"}}
	require.NoError(t, cfg.Save(dir))

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "pull_timeout: 10s")

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"iana zone", func(c *Config) { c.Timezone = "America/New_York" }, true},
		{"bad zone", func(c *Config) { c.Timezone = "Nowhere/Special" }, false},
		{"zero timeout", func(c *Config) { c.Plans.PullTimeout = 0 }, false},
		{"remote without dir", func(c *Config) { c.Plans.Remotes = []Remote{{Name: "x"}} }, false},
		{"reserved remote", func(c *Config) { c.Plans.Remotes = []Remote{{Name: "local", Dir: "d"}} }, false},
		{"duplicate remote", func(c *Config) {
			c.Plans.Remotes = []Remote{{Name: "x", Dir: "a"}, {Name: "x", Dir: "b"}}
		}, false},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
