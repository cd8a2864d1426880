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

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type lookupFunc func(key string) (string, bool)

// envBinding applies one FEDTRUST_* variable.
type envBinding struct {
	key string
	set func(c *Config, value string) error
}

var envBindings = []envBinding{
	{"host", str(func(c *Config) *string { return &c.Host })},
	{"signed_fetch", boolean(func(c *Config) *bool { return &c.SignedFetch })},
	{"federation.mode", str(func(c *Config) *string { return &c.Federation.Mode })},
	{"federation.allowed_hosts", list(func(c *Config) *[]string { return &c.Federation.AllowedHosts })},
	{"federation.blocked_hosts", list(func(c *Config) *[]string { return &c.Federation.BlockedHosts })},
	{"federation.special_suffixes", list(func(c *Config) *[]string { return &c.Federation.SpecialSuffixes })},
	{"resolver.recursion_limit", integer(func(c *Config) *int { return &c.Resolver.RecursionLimit })},
	{"fetch.timeout", duration(func(c *Config) *time.Duration { return &c.Fetch.Timeout })},
	{"fetch.max_body_bytes", int64s(func(c *Config) *int64 { return &c.Fetch.MaxBodyBytes })},
	{"fetch.max_redirects", integer(func(c *Config) *int { return &c.Fetch.MaxRedirects })},
	{"fetch.rate_per_host", float(func(c *Config) *float64 { return &c.Fetch.RatePerHost })},
	{"fetch.burst", integer(func(c *Config) *int { return &c.Fetch.Burst })},
	{"fetch.allow_private_networks", boolean(func(c *Config) *bool { return &c.Fetch.AllowPrivateNetworks })},
	{"inbox.listen", str(func(c *Config) *string { return &c.Inbox.Listen })},
	{"inbox.max_body_bytes", int64s(func(c *Config) *int64 { return &c.Inbox.MaxBodyBytes })},
	{"inbox.max_clock_skew", duration(func(c *Config) *time.Duration { return &c.Inbox.MaxClockSkew })},
	{"inbox.workers", integer(func(c *Config) *int { return &c.Inbox.Workers })},
	{"inbox.queue_size", integer(func(c *Config) *int { return &c.Inbox.QueueSize })},
	{"inbox.max_attempts", integer(func(c *Config) *int { return &c.Inbox.MaxAttempts })},
	{"inbox.retry_backoff", duration(func(c *Config) *time.Duration { return &c.Inbox.RetryBackoff })},
	{"keys.cache_size", integer(func(c *Config) *int { return &c.Keys.CacheSize })},
	{"keys.cache_ttl", duration(func(c *Config) *time.Duration { return &c.Keys.CacheTTL })},
	{"log.level", str(func(c *Config) *string { return &c.Log.Level })},
	{"log.development", boolean(func(c *Config) *bool { return &c.Log.Development })},
}

// EnvName returns the environment variable overriding key.
func EnvName(key string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func applyEnv(c *Config, lookup lookupFunc) error {
	for _, b := range envBindings {
		name := EnvName(b.key)
		value, ok := lookup(name)
		if !ok {
			continue
		}
		if err := b.set(c, strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

func str(field func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*field(c) = v
		return nil
	}
}

func boolean(field func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(c) = b
		return nil
	}
}

func integer(field func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func int64s(field func(*Config) *int64) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}
}

func float(field func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*field(c) = f
		return nil
	}
}

func duration(field func(*Config) *time.Duration) func(*Config, string) error {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(c) = d
		return nil
	}
}

// list splits on commas; an empty value clears the list.
func list(field func(*Config) *[]string) func(*Config, string) error {
	return func(c *Config, v string) error {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*field(c) = out
		return nil
	}
}
