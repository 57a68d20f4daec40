// Package config loads bridge configuration from YAML with environment
// overrides, and watches the file for changes.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wippyai/mfe-bridge/errors"
	"github.com/wippyai/mfe-bridge/remote"
)

// Environment variables that override file settings.
const (
	EnvDefaultOrigin = "MFE_BRIDGE_DEFAULT_ORIGIN"
	EnvLogLevel      = "MFE_BRIDGE_LOG_LEVEL"
)

// Config is the bridge configuration.
type Config struct {
	Remotes       map[string]string `yaml:"remotes,omitempty"`
	DefaultOrigin string            `yaml:"default_origin,omitempty"`
	Log           LogConfig         `yaml:"log"`
	Fetch         FetchConfig       `yaml:"fetch"`
	Engine        EngineConfig      `yaml:"engine"`
	// Mount is the component the CLI mounts when no flags override it.
	Mount MountConfig `yaml:"mount,omitempty"`
}

// FetchConfig bounds remote downloads.
type FetchConfig struct {
	Timeout  time.Duration `yaml:"timeout"`
	MaxBytes int64         `yaml:"max_bytes"`
}

// EngineConfig configures the wasm engine.
type EngineConfig struct {
	MemoryLimitPages uint32 `yaml:"memory_limit_pages"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MountConfig names a component and its static inputs.
type MountConfig struct {
	Inputs map[string]any `yaml:"inputs,omitempty"`
	remote.Spec `yaml:",inline"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Fetch: FetchConfig{
			Timeout:  remote.DefaultTimeout,
			MaxBytes: remote.DefaultMaxBytes,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads path, applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "read config "+path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidData, err, "parse config")
	}
	return cfg, nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvDefaultOrigin); v != "" {
		c.DefaultOrigin = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
}

// Validate checks value ranges and log level names.
func (c *Config) Validate() error {
	if c.Fetch.Timeout < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "fetch.timeout must not be negative")
	}
	if c.Fetch.MaxBytes < 0 {
		return errors.InvalidInput(errors.PhaseConfig, "fetch.max_bytes must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level")
	}
	for alias, origin := range c.Remotes {
		if strings.TrimSpace(origin) == "" {
			return errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("remote alias %q has no origin", alias))
		}
	}
	return nil
}

// ResolverOptions returns the resolver options this configuration implies.
func (c *Config) ResolverOptions() []remote.Option {
	opts := []remote.Option{
		remote.WithFetcher(remote.NewHTTPFetcher(c.Fetch.Timeout, c.Fetch.MaxBytes)),
	}
	if c.DefaultOrigin != "" {
		opts = append(opts, remote.WithDefaultOrigin(c.DefaultOrigin))
	}
	if len(c.Remotes) > 0 {
		opts = append(opts, remote.WithAliases(c.Remotes))
	}
	return opts
}
