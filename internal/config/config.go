// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TrackRank Contributors

// Package config loads TrackRank configuration from an optional YAML
// file and command-line flags, in that order of precedence (flags win).
package config

import (
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
)

// Config is the full runtime configuration.
type Config struct {
	Database      DatabaseConfig      `koanf:"database"`
	Session       SessionConfig       `koanf:"session"`
	Log           LogConfig           `koanf:"log"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// SessionConfig holds the session TTL policy and pruner settings.
type SessionConfig struct {
	ShortTTL      time.Duration `koanf:"short_ttl"`
	LongTTL       time.Duration `koanf:"long_ttl"`
	PruneInterval time.Duration `koanf:"prune_interval"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Format string `koanf:"format"` // "json" or "text"
}

// ObservabilityConfig holds the metrics/health listen address.
type ObservabilityConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the stock configuration. The database URL defaults to
// the DATABASE_URL environment variable so one-off commands work
// without a config file.
func Default() Config {
	return Config{
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		Session: SessionConfig{
			ShortTTL:      24 * time.Hour,
			LongTTL:       90 * 24 * time.Hour,
			PruneInterval: time.Hour,
		},
		Log: LogConfig{
			Format: "json",
		},
		Observability: ObservabilityConfig{
			Addr: "127.0.0.1:9100",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and flag overrides. path may be empty; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// Defaults go in first so posflag can tell a flag left at its zero
	// value apart from one the operator actually set.
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "load defaults").
			Wrap(err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "merge flags").
				Wrap(err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_PARSE_FAILED").Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field invariants. The database URL is checked
// by the commands that need it, not here, so read-only commands run
// without one.
func (c *Config) Validate() error {
	if c.Session.ShortTTL <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session.short_ttl must be positive")
	}
	if c.Session.LongTTL <= c.Session.ShortTTL {
		return oops.Code("CONFIG_INVALID").
			With("short_ttl", c.Session.ShortTTL.String()).
			With("long_ttl", c.Session.LongTTL.String()).
			Errorf("session.long_ttl must exceed session.short_ttl")
	}
	if c.Session.PruneInterval <= 0 {
		return oops.Code("CONFIG_INVALID").Errorf("session.prune_interval must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("format", c.Log.Format).
			Errorf("log.format must be json or text")
	}
	return nil
}
