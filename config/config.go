// Package config loads store configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tandemlab/oauthstore/sqlstore"
)

// Duration wraps time.Duration so YAML values like "10m" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the on-disk configuration.
type Config struct {
	// Driver is one of "sqlite", "mysql" or "postgres".
	Driver string `yaml:"driver"`

	// DSN overrides the discrete connection fields when set.
	DSN string `yaml:"dsn,omitempty"`

	Server   string `yaml:"server,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Database string `yaml:"database,omitempty"`

	MaxTimestampSkew Duration `yaml:"max_timestamp_skew,omitempty"`
	RequestTokenTTL  Duration `yaml:"request_token_ttl,omitempty"`
}

// Default is the configuration used when no file is given: a local SQLite
// database in the working directory.
func Default() *Config {
	return &Config{
		Driver:   "sqlite",
		Database: "oauthstore.db",
	}
}

// Load reads the configuration file at path and applies environment
// overrides. An empty path yields the default configuration, still subject
// to overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Environment overrides, mainly for passwords that should stay out of
// config files.
func (c *Config) applyEnv() error {
	setStr := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setStr(&c.Driver, "OAUTHSTORE_DRIVER")
	setStr(&c.DSN, "OAUTHSTORE_DSN")
	setStr(&c.Server, "OAUTHSTORE_SERVER")
	setStr(&c.Username, "OAUTHSTORE_USERNAME")
	setStr(&c.Password, "OAUTHSTORE_PASSWORD")
	setStr(&c.Database, "OAUTHSTORE_DATABASE")

	if v := os.Getenv("OAUTHSTORE_MAX_TIMESTAMP_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OAUTHSTORE_MAX_TIMESTAMP_SKEW: %w", err)
		}
		c.MaxTimestampSkew = Duration(d)
	}
	if v := os.Getenv("OAUTHSTORE_REQUEST_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("OAUTHSTORE_REQUEST_TOKEN_TTL: %w", err)
		}
		c.RequestTokenTTL = Duration(d)
	}
	return nil
}

func (c *Config) validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "sqlite", "sqlite3", "mysql", "postgres", "postgresql", "pgx":
	default:
		return fmt.Errorf("invalid driver %q (expected sqlite|mysql|postgres)", c.Driver)
	}
	if c.MaxTimestampSkew < 0 {
		return fmt.Errorf("max_timestamp_skew must not be negative")
	}
	if c.RequestTokenTTL < 0 {
		return fmt.Errorf("request_token_ttl must not be negative")
	}
	return nil
}

// StoreOptions converts the configuration into sqlstore options.
func (c *Config) StoreOptions() sqlstore.Options {
	return sqlstore.Options{
		Driver:           c.Driver,
		DSN:              c.DSN,
		Server:           c.Server,
		Username:         c.Username,
		Password:         c.Password,
		Database:         c.Database,
		MaxTimestampSkew: time.Duration(c.MaxTimestampSkew),
		RequestTokenTTL:  time.Duration(c.RequestTokenTTL),
	}
}
