// Package config loads memoforge configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Config holds the complete memoforge configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	LLM        LLMConfig        `koanf:"llm"`
	Retry      RetryConfig      `koanf:"retry"`
	Generation GenerationConfig `koanf:"generation"`
	Store      StoreConfig      `koanf:"store"`
	NATS       NATSConfig       `koanf:"nats"`
	Auth       AuthConfig       `koanf:"auth"`
	Scrub      ScrubConfig      `koanf:"scrub"`
	Logging    LoggingConfig    `koanf:"logging"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LLMConfig selects and tunes the model backend.
type LLMConfig struct {
	// Provider is one of anthropic, openai, gemini, static.
	Provider    string   `koanf:"provider"`
	Model       string   `koanf:"model"`
	APIKey      Secret   `koanf:"api_key"`
	BaseURL     string   `koanf:"base_url"`
	Timeout     Duration `koanf:"timeout"`
	MaxTokens   int      `koanf:"max_tokens"`
	Temperature float64  `koanf:"temperature"`
	// RateLimit is calls per second across the process; Burst is the bucket size.
	RateLimit float64 `koanf:"rate_limit"`
	Burst     int     `koanf:"burst"`
}

// MaxRetryLimit bounds retry.max_retries.
const MaxRetryLimit = 10

// RetryConfig is the default budget for model calls.
type RetryConfig struct {
	MaxRetries int      `koanf:"max_retries"`
	BaseDelay  Duration `koanf:"base_delay"`
}

// GenerationConfig bounds a single memo run.
type GenerationConfig struct {
	// Timeout caps a whole run; zero means no deadline.
	Timeout Duration `koanf:"timeout"`
	// MaxConcepts caps the concepts of a plan; zero means no cap.
	MaxConcepts int `koanf:"max_concepts"`
}

// StoreConfig locates the memo database.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// NATSConfig enables publishing stream frames to NATS when URL is set.
type NATSConfig struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// AuthConfig maps bearer tokens to subjects. Empty means single-user mode.
type AuthConfig struct {
	Tokens map[string]string `koanf:"tokens"`
}

// ScrubConfig controls secret scrubbing of topics before model calls.
type ScrubConfig struct {
	Enabled bool `koanf:"enabled"`
}

// LoggingConfig is the subset of logging settings exposed to operators.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Buffer int    `koanf:"buffer"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled     bool    `koanf:"enabled"`
	ServiceName string  `koanf:"service_name"`
	Endpoint    string  `koanf:"endpoint"`
	Protocol    string  `koanf:"protocol"`
	Insecure    bool    `koanf:"insecure"`
	SampleRate  float64 `koanf:"sample_rate"`
}

var providers = map[string]bool{"anthropic": true, "openai": true, "gemini": true, "static": true}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port))
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		errs = append(errs, errors.New("shutdown timeout must be positive"))
	}

	if !providers[c.LLM.Provider] {
		errs = append(errs, fmt.Errorf("unknown llm provider %q", c.LLM.Provider))
	}
	if c.LLM.Provider != "static" && !c.LLM.APIKey.IsSet() {
		errs = append(errs, fmt.Errorf("llm.api_key is required for provider %q", c.LLM.Provider))
	}
	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid llm.base_url %q", c.LLM.BaseURL))
		}
	}
	if c.LLM.RateLimit < 0 || c.LLM.Burst < 1 {
		errs = append(errs, errors.New("llm.rate_limit must be >= 0 and llm.burst >= 1"))
	}

	if c.Retry.MaxRetries < 0 || c.Retry.MaxRetries > MaxRetryLimit {
		errs = append(errs, fmt.Errorf("retry.max_retries must be between 0 and %d, got %d", MaxRetryLimit, c.Retry.MaxRetries))
	}
	if c.Generation.MaxConcepts < 0 {
		errs = append(errs, fmt.Errorf("generation.max_concepts must be >= 0, got %d", c.Generation.MaxConcepts))
	}

	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.NATS.URL != "" && !strings.HasPrefix(c.NATS.URL, "nats://") && !strings.HasPrefix(c.NATS.URL, "tls://") {
		errs = append(errs, fmt.Errorf("nats.url must use nats:// or tls://, got %q", c.NATS.URL))
	}
	for token, subject := range c.Auth.Tokens {
		if token == "" || subject == "" {
			errs = append(errs, errors.New("auth.tokens entries need a token and a subject"))
			break
		}
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.ServiceName == "" {
			errs = append(errs, errors.New("telemetry.service_name is required when telemetry is enabled"))
		}
		if c.Telemetry.Protocol != "grpc" && c.Telemetry.Protocol != "http" {
			errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol))
		}
		if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
			errs = append(errs, fmt.Errorf("telemetry.sample_rate must be within [0,1], got %v", c.Telemetry.SampleRate))
		}
	}

	return errors.Join(errs...)
}

// defaultYAML is loaded before the config file, so explicit zero values in
// the file or environment are preserved.
const defaultYAML = `
server:
  http_host: 127.0.0.1
  http_port: 9191
  shutdown_timeout: 10s
llm:
  provider: anthropic
  timeout: 60s
  max_tokens: 1024
  temperature: 0.7
  rate_limit: 2
  burst: 1
retry:
  max_retries: 3
  base_delay: 1s
generation:
  timeout: 0s
  max_concepts: 0
nats:
  subject_prefix: memos
scrub:
  enabled: true
logging:
  level: info
  format: json
  buffer: 100
telemetry:
  enabled: false
  service_name: memoforge
  endpoint: localhost:4317
  protocol: grpc
  sample_rate: 1.0
`

// applyDefaults fills values that depend on other settings.
func applyDefaults(cfg *Config) {
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = defaultModels[cfg.LLM.Provider]
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultDataPath("memos.db")
	}
}

var defaultModels = map[string]string{
	"anthropic": "claude-3-5-haiku-latest",
	"openai":    "gpt-4o-mini",
	"gemini":    "gemini-2.0-flash",
	"static":    "fixture",
}
