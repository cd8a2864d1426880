// Copyright (C) 2026 fedtrust authors
//
// This file is part of fedtrust.
//
// fedtrust is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// fedtrust is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with fedtrust.  If not, see <https://www.gnu.org/licenses/>.

// Package config loads fedtrust configuration.
//
// Configuration comes from one YAML file (optional) followed by FEDTRUST_*
// environment variables, which always win. Keys map to variables by
// upper-casing and replacing dots with underscores, so fetch.timeout is
// FEDTRUST_FETCH_TIMEOUT. List values in the environment are comma
// separated.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fedtrust/fedtrust/pkg/guard"
	"github.com/fedtrust/fedtrust/pkg/resolver"
	"github.com/fedtrust/fedtrust/pkg/server"
	"github.com/fedtrust/fedtrust/pkg/transport"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FEDTRUST_"

// Config is the complete fedtrust configuration.
type Config struct {
	// Host is this server's host, with port when non-default.
	Host string `yaml:"host"`

	// SignedFetch signs every outbound GET with the instance actor key.
	SignedFetch bool `yaml:"signed_fetch"`

	Federation FederationConfig `yaml:"federation"`
	Resolver   ResolverConfig   `yaml:"resolver"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Inbox      InboxConfig      `yaml:"inbox"`
	Keys       KeysConfig       `yaml:"keys"`
	Log        LogConfig        `yaml:"log"`
}

// FederationConfig decides which hosts we talk to.
type FederationConfig struct {
	// Mode is "blocklist" or "allowlist".
	Mode string `yaml:"mode"`

	AllowedHosts    []string `yaml:"allowed_hosts"`
	BlockedHosts    []string `yaml:"blocked_hosts"`
	SpecialSuffixes []string `yaml:"special_suffixes"`
}

// ResolverConfig configures object resolution.
type ResolverConfig struct {
	// RecursionLimit is the number of distinct URIs one session may visit.
	RecursionLimit int `yaml:"recursion_limit"`
}

// FetchConfig configures outbound HTTP.
type FetchConfig struct {
	Timeout              time.Duration `yaml:"timeout"`
	MaxBodyBytes         int64         `yaml:"max_body_bytes"`
	MaxRedirects         int           `yaml:"max_redirects"`
	RatePerHost          float64       `yaml:"rate_per_host"`
	Burst                int           `yaml:"burst"`
	AllowPrivateNetworks bool          `yaml:"allow_private_networks"`
}

// InboxConfig configures the inbox surface.
type InboxConfig struct {
	Listen       string        `yaml:"listen"`
	MaxBodyBytes int64         `yaml:"max_body_bytes"`
	MaxClockSkew time.Duration `yaml:"max_clock_skew"`
	Workers      int           `yaml:"workers"`
	QueueSize    int           `yaml:"queue_size"`
	MaxAttempts  int           `yaml:"max_attempts"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// KeysConfig configures the remote actor key cache.
type KeysConfig struct {
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Defaults returns the configuration used for anything not set.
func Defaults() *Config {
	return &Config{
		Host: "localhost",
		Federation: FederationConfig{
			Mode: string(guard.ModeBlocklist),
		},
		Resolver: ResolverConfig{
			RecursionLimit: resolver.DefaultRecursionLimit,
		},
		Fetch: FetchConfig{
			Timeout:      transport.DefaultTimeout,
			MaxBodyBytes: transport.DefaultMaxBodyBytes,
			MaxRedirects: transport.DefaultMaxRedirects,
			RatePerHost:  4,
			Burst:        8,
		},
		Inbox: InboxConfig{
			Listen:       ":8080",
			MaxBodyBytes: server.DefaultMaxBodyBytes,
			MaxClockSkew: server.DefaultMaxClockSkew,
			Workers:      4,
			QueueSize:    1024,
			MaxAttempts:  5,
			RetryBackoff: time.Second,
		},
		Keys: KeysConfig{
			CacheSize: 1024,
			CacheTTL:  time.Hour,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path (skipped when empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	} else if _, err := guard.ExtractHost("https://" + c.Host + "/"); err != nil {
		errs = append(errs, fmt.Errorf("host %q is invalid: %w", c.Host, err))
	}

	switch guard.Mode(c.Federation.Mode) {
	case guard.ModeBlocklist:
	case guard.ModeAllowlist:
		if len(c.Federation.AllowedHosts) == 0 {
			errs = append(errs, errors.New("federation.allowed_hosts must not be empty in allowlist mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("federation.mode must be blocklist or allowlist, got %q", c.Federation.Mode))
	}

	if c.Resolver.RecursionLimit < 1 {
		errs = append(errs, errors.New("resolver.recursion_limit must be positive"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("fetch.max_body_bytes must be positive"))
	}
	if c.Fetch.MaxRedirects < 0 {
		errs = append(errs, errors.New("fetch.max_redirects must not be negative"))
	}
	if c.Fetch.RatePerHost < 0 || c.Fetch.Burst < 0 {
		errs = append(errs, errors.New("fetch.rate_per_host and fetch.burst must not be negative"))
	}
	if c.Fetch.RatePerHost > 0 && c.Fetch.Burst == 0 {
		errs = append(errs, errors.New("fetch.burst must be positive when fetch.rate_per_host is set"))
	}
	if c.Inbox.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("inbox.max_body_bytes must be positive"))
	}
	if c.Inbox.MaxClockSkew <= 0 {
		errs = append(errs, errors.New("inbox.max_clock_skew must be positive"))
	}
	if c.Inbox.Workers < 1 || c.Inbox.QueueSize < 1 || c.Inbox.MaxAttempts < 1 {
		errs = append(errs, errors.New("inbox.workers, inbox.queue_size and inbox.max_attempts must be positive"))
	}
	if c.Keys.CacheSize < 1 {
		errs = append(errs, errors.New("keys.cache_size must be positive"))
	}
	if c.Keys.CacheTTL <= 0 {
		errs = append(errs, errors.New("keys.cache_ttl must be positive"))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GuardOptions returns the federation policy for guard.NewDefaultGuard.
func (c *Config) GuardOptions() guard.Options {
	return guard.Options{
		SelfHost:        c.Host,
		Mode:            guard.Mode(c.Federation.Mode),
		AllowedHosts:    c.Federation.AllowedHosts,
		BlockedHosts:    c.Federation.BlockedHosts,
		SpecialSuffixes: c.Federation.SpecialSuffixes,
	}
}

// InstanceActorID is the URI of the server-wide signing actor.
func (c *Config) InstanceActorID() string {
	return "https://" + c.Host + "/actor"
}
