// Copyright (C) ConfigHub, Inc.
// SPDX-License-Identifier: MIT

// Package config loads and stores crpm settings.
//
// Settings live in ~/.crpm/config.yaml. CRPM_API_URL, CRPM_TOKEN and
// CRPM_TENANT override the file. A missing file means defaults.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
	"k8s.io/client-go/util/homedir"

	"github.com/recoveryvault/crpm/pkg/api"
)

// Environment variables that override the file.
const (
	EnvAPIURL = "CRPM_API_URL"
	EnvToken  = "CRPM_TOKEN"
	EnvTenant = "CRPM_TENANT"
)

// Config is the persisted crpm configuration.
type Config struct {
	APIURL         string `yaml:"api_url" json:"api_url"`
	Token          string `yaml:"token,omitempty" json:"token,omitempty"`
	Tenant         string `yaml:"tenant,omitempty" json:"tenant,omitempty"`
	DefaultAccount string `yaml:"default_account,omitempty" json:"default_account,omitempty"`
	RedirectTarget string `yaml:"redirect_target,omitempty" json:"redirect_target,omitempty"`
	LogDir         string `yaml:"log_dir,omitempty" json:"log_dir,omitempty"`
	Timeout        string `yaml:"timeout,omitempty" json:"timeout,omitempty"` // Go duration; empty means none
}

// Dir returns the crpm configuration directory, ~/.crpm.
func Dir() string {
	return filepath.Join(homedir.HomeDir(), ".crpm")
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		APIURL:         api.DefaultBaseURL,
		RedirectTarget: api.DiscoveryHistoryRoute,
		LogDir:         filepath.Join(Dir(), "logs"),
	}
}

// Load reads path over the defaults and applies environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// LoadFile reads path over the defaults without environment overrides.
// It is what `config set` edits, so env values never leak into the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if cfg.APIURL == "" {
		cfg.APIURL = api.DefaultBaseURL
	}
	if cfg.RedirectTarget == "" {
		cfg.RedirectTarget = api.DiscoveryHistoryRoute
	}
	if cfg.LogDir == "" {
		cfg.LogDir = Default().LogDir
	}
	return cfg, nil
}

// ApplyEnv overrides fields from CRPM_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(EnvToken); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvTenant); v != "" {
		c.Tenant = v
	}
}

// Save writes c to path, readable only by the owner since it may hold a token.
func Save(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

type field struct {
	get      func(*Config) string
	set      func(*Config, string)
	validate func(string) error
}

var fields = map[string]field{
	"api_url": {
		get:      func(c *Config) string { return c.APIURL },
		set:      func(c *Config, v string) { c.APIURL = v },
		validate: validateURL,
	},
	"token": {
		get: func(c *Config) string { return c.Token },
		set: func(c *Config, v string) { c.Token = v },
	},
	"tenant": {
		get: func(c *Config) string { return c.Tenant },
		set: func(c *Config, v string) { c.Tenant = v },
	},
	"default_account": {
		get: func(c *Config) string { return c.DefaultAccount },
		set: func(c *Config, v string) { c.DefaultAccount = v },
	},
	"redirect_target": {
		get: func(c *Config) string { return c.RedirectTarget },
		set: func(c *Config, v string) { c.RedirectTarget = v },
		validate: func(v string) error {
			if !strings.HasPrefix(v, "/") {
				return fmt.Errorf("redirect_target must be a route starting with /")
			}
			return nil
		},
	},
	"log_dir": {
		get: func(c *Config) string { return c.LogDir },
		set: func(c *Config, v string) { c.LogDir = v },
	},
	"timeout": {
		get: func(c *Config) string { return c.Timeout },
		set: func(c *Config, v string) { c.Timeout = v },
		validate: func(v string) error {
			if v == "" {
				return nil
			}
			d, err := time.ParseDuration(v)
			if err != nil || d < 0 {
				return fmt.Errorf("timeout must be a duration such as 30s or 2m")
			}
			return nil
		},
	},
}

// Keys returns the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key.
func (c *Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", unknownKey(key)
	}
	return f.get(c), nil
}

// Set validates and assigns value to key.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return unknownKey(key)
	}
	value = strings.TrimSpace(value)
	if f.validate != nil {
		if err := f.validate(value); err != nil {
			return err
		}
	}
	f.set(c, value)
	return nil
}

// TimeoutDuration parses Timeout. Zero means no client-side timeout.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// Auth returns the credentials for API requests.
func (c *Config) Auth() *api.Auth {
	return &api.Auth{Token: c.Token, Tenant: c.Tenant}
}

// Redacted returns a copy with the token masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	out.Token = MaskToken(c.Token)
	return &out
}

// MaskToken keeps only the last four characters of a token.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return "****" + token[len(token)-4:]
}

func validateURL(v string) error {
	u, err := url.Parse(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", v)
	}
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q (valid keys: %s)", key, strings.Join(Keys(), ", "))
}
