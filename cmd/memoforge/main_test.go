package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/memoforge/internal/assembler"
	"github.com/fyrsmithlabs/memoforge/internal/config"
	"github.com/fyrsmithlabs/memoforge/internal/logging"
	"github.com/fyrsmithlabs/memoforge/internal/memo"
)

func TestLoggingConfig(t *testing.T) {
	cfg := &config.Config{Logging: config.LoggingConfig{Level: "debug", Format: "console", Buffer: 50}}
	lc, err := loggingConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, lc.Level)
	assert.Equal(t, "console", lc.Format)
	assert.Equal(t, 50, lc.Output.Buffer)
	assert.False(t, lc.Output.OTEL)

	cfg.Logging.Level = "trace"
	lc, err = loggingConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, logging.TraceLevel, lc.Level)

	cfg.Logging.Level = "loud"
	_, err = loggingConfig(cfg)
	assert.Error(t, err)
}

func TestNewPipeline_Static(t *testing.T) {
	cfg := &config.Config{
		LLM:        config.LLMConfig{Provider: "static"},
		Retry:      config.RetryConfig{MaxRetries: 0},
		Generation: config.GenerationConfig{MaxConcepts: 8},
		Scrub:      config.ScrubConfig{Enabled: true},
	}
	asm, err := newPipeline(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)

	m, err := asm.Generate(context.Background(), assembler.Request{Topic: "les saisons"})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Count(memo.Concept))
}

func TestNewPipeline_UnknownProvider(t *testing.T) {
	_, err := newPipeline(context.Background(), &config.Config{LLM: config.LLMConfig{Provider: "nope"}}, logging.NewNop())
	assert.Error(t, err)
}
