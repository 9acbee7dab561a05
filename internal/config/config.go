package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBaseURL is used when no base URL is configured anywhere.
const DefaultBaseURL = "http://localhost:8000"

// Config is the root configuration for a flowctl project.
type Config struct {
	Version      int               `yaml:"version"`
	BaseURL      string            `yaml:"base_url,omitempty"`
	TimeoutSec   int               `yaml:"timeout_sec,omitempty"`   // Request timeout (0 = default 30)
	RunningLimit int               `yaml:"running_limit,omitempty"` // Page size for running lists (0 = default 100)
	RefreshSec   int               `yaml:"refresh_sec,omitempty"`   // Dashboard refresh interval (0 = default 3)
	Parallel     int               `yaml:"parallel,omitempty"`      // Concurrent tree fetches (0 = default 4)
	Headers      map[string]string `yaml:"headers,omitempty"`
	LLMKeys      map[string]LLMKey `yaml:"llm_keys,omitempty"`
}

// LLMKey forwards a provider API key from the environment as a request header.
type LLMKey struct {
	Header    string `yaml:"header"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Timeout returns the effective request timeout.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSec > 0 {
		return time.Duration(c.TimeoutSec) * time.Second
	}
	return 30 * time.Second
}

// Limit returns the effective running-list page size.
func (c *Config) Limit() int {
	if c.RunningLimit > 0 {
		return c.RunningLimit
	}
	return 100
}

// Refresh returns the effective dashboard refresh interval.
func (c *Config) Refresh() time.Duration {
	if c.RefreshSec > 0 {
		return time.Duration(c.RefreshSec) * time.Second
	}
	return 3 * time.Second
}

// Workers returns the effective number of concurrent fetches.
func (c *Config) Workers() int {
	if c.Parallel > 0 {
		return c.Parallel
	}
	return 4
}

// ExtraHeaders builds the headers sent on every request: the static headers
// plus one header per LLM key whose environment variable is set. lookup is
// usually os.LookupEnv.
func (c *Config) ExtraHeaders(lookup func(string) (string, bool)) http.Header {
	h := make(http.Header)
	for k, v := range c.Headers {
		h.Set(k, v)
	}
	for _, key := range c.LLMKeys {
		val, ok := lookup(key.APIKeyEnv)
		if !ok || strings.TrimSpace(val) == "" {
			continue
		}
		h.Set(key.Header, strings.TrimSpace(val))
	}
	return h
}

// Load reads and parses the config file at the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields DefaultConfig.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// Save writes the config to the given path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns a starter config.
func DefaultConfig() *Config {
	return &Config{
		Version:      1,
		BaseURL:      DefaultBaseURL,
		TimeoutSec:   30,
		RunningLimit: 100,
		RefreshSec:   3,
		Parallel:     4,
		LLMKeys: map[string]LLMKey{
			"openai":    {Header: "X-OpenAI-API-Key", APIKeyEnv: "OPENAI_API_KEY"},
			"anthropic": {Header: "X-Anthropic-API-Key", APIKeyEnv: "ANTHROPIC_API_KEY"},
		},
	}
}

func (c *Config) validate() error {
	if c.BaseURL != "" {
		if err := checkURL(c.BaseURL); err != nil {
			return fmt.Errorf("base_url: %w", err)
		}
	}
	for name, v := range map[string]int{
		"timeout_sec":   c.TimeoutSec,
		"running_limit": c.RunningLimit,
		"refresh_sec":   c.RefreshSec,
		"parallel":      c.Parallel,
	} {
		if v < 0 {
			return fmt.Errorf("%s must not be negative, got %d", name, v)
		}
	}
	for provider, key := range c.LLMKeys {
		if key.Header == "" {
			return fmt.Errorf("llm key %q: header is required", provider)
		}
		if key.APIKeyEnv == "" {
			return fmt.Errorf("llm key %q: api_key_env is required", provider)
		}
	}
	return nil
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is required")
	}
	return nil
}

// ResolveBaseURL returns the first non-empty candidate, in priority order,
// or DefaultBaseURL.
func ResolveBaseURL(candidates ...string) string {
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			return strings.TrimRight(c, "/")
		}
	}
	return DefaultBaseURL
}
