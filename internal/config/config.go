// Package config handles ledger configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/faff/internal/logger"
)

// FileName is the config document inside the ledger directory.
const FileName = "config.yaml"

// EnvPrefix prefixes environment overrides, e.g. FAFF_TIMEZONE or
// FAFF_SESSIONS_SWITCH_ON_START.
const EnvPrefix = "FAFF"

// Config represents the ledger's config.yaml.
type Config struct {
	// Timezone is an IANA zone name, or "local" for the system zone.
	Timezone string         `mapstructure:"timezone" yaml:"timezone"`
	Sessions SessionsConfig `mapstructure:"sessions" yaml:"sessions"`
	Intents  IntentsConfig  `mapstructure:"intents" yaml:"intents"`
	Plans    PlansConfig    `mapstructure:"plans" yaml:"plans"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
}

// SessionsConfig controls the session state machine.
type SessionsConfig struct {
	// SwitchOnStart stops a running session when another is started instead
	// of refusing the start.
	SwitchOnStart bool `mapstructure:"switch_on_start" yaml:"switch_on_start"`
}

// IntentsConfig controls intent creation.
type IntentsConfig struct {
	UniqueAliases bool `mapstructure:"unique_aliases" yaml:"unique_aliases"`
}

// PlansConfig controls plan sources.
type PlansConfig struct {
	PullTimeout time.Duration `mapstructure:"pull_timeout" yaml:"pull_timeout"`
	Remotes     []Remote      `mapstructure:"remotes" yaml:"remotes,omitempty"`
}

// MarshalYAML writes the timeout as a duration string such as "10s".
func (p PlansConfig) MarshalYAML() (interface{}, error) {
	return struct {
		PullTimeout string   `yaml:"pull_timeout"`
		Remotes     []Remote `yaml:"remotes,omitempty"`
	}{p.PullTimeout.String(), p.Remotes}, nil
}

// Remote is a directory of plan documents pulled under Name.
type Remote struct {
	Name string `mapstructure:"name" yaml:"name"`
	Dir  string `mapstructure:"dir" yaml:"dir"`
}

// LogConfig sets the diagnostic log.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
	File  string `mapstructure:"file" yaml:"file,omitempty"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timezone: "local",
		Sessions: SessionsConfig{SwitchOnStart: false},
		Intents:  IntentsConfig{UniqueAliases: true},
		Plans:    PlansConfig{PullTimeout: 10 * time.Second},
		Log:      LogConfig{Level: "info"},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("timezone", d.Timezone)
	v.SetDefault("sessions.switch_on_start", d.Sessions.SwitchOnStart)
	v.SetDefault("intents.unique_aliases", d.Intents.UniqueAliases)
	v.SetDefault("plans.pull_timeout", d.Plans.PullTimeout)
	v.SetDefault("plans.remotes", []Remote{})
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// Load reads dir/config.yaml, applying FAFF_* environment overrides and
// dir/.env. A missing file yields the defaults. The process environment wins
// over .env.
func Load(dir string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(filepath.Join(dir, FileName))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.Is(err, fs.ErrNotExist) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		logger.Debug("using config file", "path", v.ConfigFileUsed())
	}

	if err := applyDotEnv(v, filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

func applyDotEnv(v *viper.Viper, path string) error {
	env, err := godotenv.Read(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	for _, key := range v.AllKeys() {
		name := envName(key)
		val, ok := env[name]
		if !ok {
			continue
		}
		if _, set := os.LookupEnv(name); set {
			continue
		}
		v.Set(key, val)
	}
	return nil
}

// Save writes the configuration to dir/config.yaml.
func (c *Config) Save(dir string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	switch strings.ToLower(c.Timezone) {
	case "", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %s", c.Timezone)
	}
	return loc, nil
}

// RemoteDir returns the directory of r, relative paths taken from dir.
func (r Remote) RemoteDir(dir string) string {
	if filepath.IsAbs(r.Dir) {
		return r.Dir
	}
	return filepath.Join(dir, r.Dir)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Plans.PullTimeout <= 0 {
		return fmt.Errorf("plans.pull_timeout must be positive")
	}
	seen := make(map[string]bool)
	for _, r := range c.Plans.Remotes {
		if r.Name == "" || r.Dir == "" {
			return fmt.Errorf("plans.remotes entries need a name and a dir")
		}
		if strings.EqualFold(r.Name, "local") {
			return fmt.Errorf("remote name %q is reserved", r.Name)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate remote: %s", r.Name)
		}
		seen[r.Name] = true
	}
	if !logger.ValidLevel(c.Log.Level) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
	}
	return nil
}
