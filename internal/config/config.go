// Package config loads LootForge's runtime configuration: provider
// adapter settings, soft-metric adapter wiring, and the HTTP service's
// bind address, layered as YAML defaults overridden by environment
// variables (environment always wins), grounded on the teacher's
// internal/config/config.go DefaultConfig-plus-applyEnvOverrides
// pattern.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig is one provider adapter's runtime settings.
type ProviderConfig struct {
	Endpoint           string `yaml:"endpoint,omitempty"`
	APIKey             string `yaml:"apiKey,omitempty"`
	TimeoutMs          int    `yaml:"timeoutMs,omitempty"`
	MaxRetries         int    `yaml:"maxRetries,omitempty"`
	MinDelayMs         int    `yaml:"minDelayMs,omitempty"`
	DefaultConcurrency int    `yaml:"defaultConcurrency,omitempty"`
}

// Timeout returns TimeoutMs as a Duration, defaulting to 60s.
func (p ProviderConfig) Timeout() time.Duration {
	if p.TimeoutMs <= 0 {
		return 60 * time.Second
	}
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// AdapterConfig is one soft-metric adapter's runtime settings: command
// mode (Cmd non-empty) or HTTP mode (URL non-empty), mutually exclusive.
type AdapterConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Cmd       string `yaml:"cmd,omitempty"`
	URL       string `yaml:"url,omitempty"`
	TimeoutMs int    `yaml:"timeoutMs,omitempty"`
}

// ServiceConfig is the HTTP facade's bind settings.
type ServiceConfig struct {
	Host string `yaml:"host,omitempty"`
	Port int    `yaml:"port,omitempty"`
	Out  string `yaml:"out,omitempty"`
}

// Config is LootForge's top-level runtime configuration.
type Config struct {
	Providers map[string]ProviderConfig `yaml:"providers,omitempty"`
	Adapters  map[string]AdapterConfig  `yaml:"adapters,omitempty"`
	Service   ServiceConfig             `yaml:"service,omitempty"`
}

// DefaultConfig returns LootForge's baked-in defaults: openai/nano/local
// provider entries with conservative timeouts, every soft-metric adapter
// disabled until an environment variable turns it on, and the HTTP
// service bound to localhost:8787.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"openai": {TimeoutMs: 60000, MaxRetries: 2, MinDelayMs: 0, DefaultConcurrency: 4},
			"nano":   {TimeoutMs: 60000, MaxRetries: 2, MinDelayMs: 100, DefaultConcurrency: 4},
			"local":  {Endpoint: "http://localhost:7860", TimeoutMs: 120000, MaxRetries: 1, DefaultConcurrency: 1},
		},
		Adapters: map[string]AdapterConfig{
			"clip":  {},
			"lpips": {},
			"ssim":  {},
		},
		Service: ServiceConfig{Host: "127.0.0.1", Port: 8787, Out: "./out"},
	}
}

// Load reads path as YAML over DefaultConfig, then applies environment
// overrides. A missing file is not an error — it just means "use
// defaults plus whatever the environment sets".
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: read %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides implements the documented variable set:
// OPENAI_API_KEY, GEMINI_API_KEY; LOOTFORGE_<PROVIDER>_{ENDPOINT,
// TIMEOUT_MS,MAX_RETRIES,MIN_DELAY_MS,DEFAULT_CONCURRENCY};
// LOOTFORGE_ENABLE_{CLIP,LPIPS,SSIM}_ADAPTER with _CMD/_URL/
// _TIMEOUT_MS variants; LOOTFORGE_SERVICE_{HOST,PORT,OUT}.
// Environment always wins over the YAML file and the baked-in default.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.setProviderField("openai", func(p *ProviderConfig) { p.APIKey = key })
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.setProviderField("nano", func(p *ProviderConfig) { p.APIKey = key })
	}

	for name := range c.Providers {
		prefix := "LOOTFORGE_" + strings.ToUpper(name) + "_"
		if v := os.Getenv(prefix + "ENDPOINT"); v != "" {
			c.setProviderField(name, func(p *ProviderConfig) { p.Endpoint = v })
		}
		if v, ok := envInt(prefix + "TIMEOUT_MS"); ok {
			c.setProviderField(name, func(p *ProviderConfig) { p.TimeoutMs = v })
		}
		if v, ok := envInt(prefix + "MAX_RETRIES"); ok {
			c.setProviderField(name, func(p *ProviderConfig) { p.MaxRetries = v })
		}
		if v, ok := envInt(prefix + "MIN_DELAY_MS"); ok {
			c.setProviderField(name, func(p *ProviderConfig) { p.MinDelayMs = v })
		}
		if v, ok := envInt(prefix + "DEFAULT_CONCURRENCY"); ok {
			c.setProviderField(name, func(p *ProviderConfig) { p.DefaultConcurrency = v })
		}
	}

	for _, name := range []string{"clip", "lpips", "ssim"} {
		upper := strings.ToUpper(name)
		if v := os.Getenv("LOOTFORGE_ENABLE_" + upper + "_ADAPTER"); v != "" {
			enabled, _ := strconv.ParseBool(v)
			c.setAdapterField(name, func(a *AdapterConfig) { a.Enabled = enabled })
		}
		if v := os.Getenv("LOOTFORGE_ENABLE_" + upper + "_ADAPTER_CMD"); v != "" {
			c.setAdapterField(name, func(a *AdapterConfig) { a.Cmd = v })
		}
		if v := os.Getenv("LOOTFORGE_ENABLE_" + upper + "_ADAPTER_URL"); v != "" {
			c.setAdapterField(name, func(a *AdapterConfig) { a.URL = v })
		}
		if v, ok := envInt("LOOTFORGE_ENABLE_" + upper + "_ADAPTER_TIMEOUT_MS"); ok {
			c.setAdapterField(name, func(a *AdapterConfig) { a.TimeoutMs = v })
		}
	}

	if v := os.Getenv("LOOTFORGE_SERVICE_HOST"); v != "" {
		c.Service.Host = v
	}
	if v, ok := envInt("LOOTFORGE_SERVICE_PORT"); ok {
		c.Service.Port = v
	}
	if v := os.Getenv("LOOTFORGE_SERVICE_OUT"); v != "" {
		c.Service.Out = v
	}
}

func (c *Config) setProviderField(name string, mutate func(*ProviderConfig)) {
	if c.Providers == nil {
		c.Providers = map[string]ProviderConfig{}
	}
	p := c.Providers[name]
	mutate(&p)
	c.Providers[name] = p
}

func (c *Config) setAdapterField(name string, mutate func(*AdapterConfig)) {
	if c.Adapters == nil {
		c.Adapters = map[string]AdapterConfig{}
	}
	a := c.Adapters[name]
	mutate(&a)
	c.Adapters[name] = a
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
