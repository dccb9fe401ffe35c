// Package llm is the model call surface used by every generation stage.
//
// A Client turns a system prompt and user content into raw text. Providers
// do not retry: transient failures surface as *ProviderError or transport
// errors and the caller's retry executor decides what to do with them.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/memoforge/internal/config"
	"github.com/fyrsmithlabs/memoforge/internal/logging"
)

// Client performs one model call.
type Client interface {
	Call(ctx context.Context, system, user string) (string, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, system, user string) (string, error)

func (f ClientFunc) Call(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// ProviderError is a failure reported by the model backend itself.
type ProviderError struct {
	Backend    string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s api error: %s", e.Backend, e.Message)
	}
	return fmt.Sprintf("%s api error (%d): %s", e.Backend, e.StatusCode, e.Message)
}

// Provider names the backend.
func (e *ProviderError) Provider() string { return e.Backend }

// ErrEmptyResponse is returned when the backend answers without text.
var ErrEmptyResponse = errors.New("empty response from model")

// isTransport reports whether err is a connectivity failure that should be
// classified as a network error rather than a provider error.
func isTransport(err error) bool {
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) || errors.As(err, &netErr)
}

// Settings are the provider-independent knobs.
type Settings struct {
	Model       string
	APIKey      string
	BaseURL     string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// SettingsFrom converts the loaded configuration.
func SettingsFrom(cfg config.LLMConfig) Settings {
	return Settings{
		Model:       cfg.Model,
		APIKey:      cfg.APIKey.Value(),
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout.Duration(),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}
}

type factoryOptions struct {
	static Client
}

// Option configures New.
type Option func(*factoryOptions)

// WithStatic supplies the client used for the "static" provider.
func WithStatic(c Client) Option {
	return func(o *factoryOptions) { o.static = c }
}

// New builds the configured provider, wrapped with rate limiting and
// instrumentation.
func New(ctx context.Context, cfg config.LLMConfig, logger *logging.Logger, opts ...Option) (Client, error) {
	var fo factoryOptions
	for _, opt := range opts {
		opt(&fo)
	}

	s := SettingsFrom(cfg)
	var (
		base Client
		err  error
	)
	switch cfg.Provider {
	case "anthropic":
		base, err = NewAnthropic(s)
	case "openai":
		base, err = NewOpenAI(s)
	case "gemini":
		base, err = NewGemini(ctx, s)
	case "static":
		if fo.static == nil {
			return nil, errors.New("static provider needs fixtures")
		}
		base = fo.static
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("creating %s client: %w", cfg.Provider, err)
	}

	limited := WithRateLimit(base, rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst))
	return Instrument(limited, cfg.Provider, logger), nil
}

// WithRateLimit gates c behind limiter. A nil limiter or an infinite/zero
// limit disables gating.
func WithRateLimit(c Client, limiter *rate.Limiter) Client {
	if limiter == nil || limiter.Limit() == 0 || limiter.Limit() == rate.Inf {
		return c
	}
	return ClientFunc(func(ctx context.Context, system, user string) (string, error) {
		if err := limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
		return c.Call(ctx, system, user)
	})
}

type instrumented struct {
	next     Client
	provider string
	logger   *logging.Logger
	calls    metric.Int64Counter
	latency  metric.Float64Histogram
}

// Instrument logs and counts every call made through c.
func Instrument(c Client, provider string, logger *logging.Logger) Client {
	if logger == nil {
		logger = logging.NewNop()
	}
	meter := otel.Meter("github.com/fyrsmithlabs/memoforge/internal/llm")
	calls, _ := meter.Int64Counter("memoforge.model.calls_total",
		metric.WithDescription("Model calls by provider and outcome"))
	latency, _ := meter.Float64Histogram("memoforge.model.call_duration_seconds",
		metric.WithDescription("Model call latency"), metric.WithUnit("s"))
	return &instrumented{
		next:     c,
		provider: provider,
		logger:   logger.Named("llm"),
		calls:    calls,
		latency:  latency,
	}
}

func (i *instrumented) Call(ctx context.Context, system, user string) (string, error) {
	start := time.Now()
	i.logger.Trace(ctx, "model call",
		zap.String("provider", i.provider),
		zap.Int("system_len", len(system)),
		zap.Int("user_len", len(user)))

	out, err := i.next.Call(ctx, system, user)

	elapsed := time.Since(start)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", i.provider),
		attribute.String("outcome", outcome),
	)
	if i.calls != nil {
		i.calls.Add(ctx, 1, attrs)
	}
	if i.latency != nil {
		i.latency.Record(ctx, elapsed.Seconds(), attrs)
	}

	if err != nil {
		i.logger.Debug(ctx, "model call failed",
			zap.String("provider", i.provider), zap.Duration("elapsed", elapsed), zap.Error(err))
		return "", err
	}
	i.logger.Debug(ctx, "model call completed",
		zap.String("provider", i.provider), zap.Duration("elapsed", elapsed), zap.Int("response_len", len(out)))
	return out, nil
}
