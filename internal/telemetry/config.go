package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/memoforge/internal/config"
)

// Supported OTLP transports.
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
)

// Config holds exporter settings.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Protocol       string
	Insecure       bool
	SampleRate     float64

	// ExportInterval is the metric push period.
	ExportInterval time.Duration
	// ShutdownTimeout bounds Shutdown when the caller sets no deadline.
	ShutdownTimeout time.Duration
}

// NewDefaultConfig returns a disabled configuration pointing at a local
// collector.
func NewDefaultConfig() *Config {
	return &Config{
		ServiceName:     "memoforge",
		ServiceVersion:  "dev",
		Endpoint:        "localhost:4317",
		Protocol:        ProtocolGRPC,
		Insecure:        true,
		SampleRate:      1.0,
		ExportInterval:  15 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// FromConfig maps the telemetry section of the daemon config.
func FromConfig(tc config.TelemetryConfig, version string) *Config {
	cfg := NewDefaultConfig()
	cfg.Enabled = tc.Enabled
	cfg.Insecure = tc.Insecure
	cfg.SampleRate = tc.SampleRate
	if tc.ServiceName != "" {
		cfg.ServiceName = tc.ServiceName
	}
	if tc.Endpoint != "" {
		cfg.Endpoint = tc.Endpoint
	}
	if tc.Protocol != "" {
		cfg.Protocol = tc.Protocol
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// Validate checks an enabled configuration. A disabled one is always valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil telemetry config")
	}
	if !c.Enabled {
		return nil
	}
	var errs []error
	if c.ServiceName == "" {
		errs = append(errs, errors.New("service name is required"))
	}
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint is required"))
	}
	if c.Protocol != ProtocolGRPC && c.Protocol != ProtocolHTTP {
		errs = append(errs, fmt.Errorf("unknown protocol %q", c.Protocol))
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		errs = append(errs, fmt.Errorf("sample rate %v outside [0,1]", c.SampleRate))
	}
	return errors.Join(errs...)
}
