package logging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/memoforge/internal/config"
)

func encode(t *testing.T, cfg RedactionConfig, fields ...zap.Field) string {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), cfg)
	require.NoError(t, err)
	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m", Time: time.Unix(0, 0)}, fields)
	require.NoError(t, err)
	return buf.String()
}

func TestRedactingEncoder_Keys(t *testing.T) {
	out := encode(t, NewDefaultConfig().Redaction,
		zap.String("api_key", "abc"),
		zap.String("Authorization", "xyz"),
		zap.String("topic", "Le feedback"),
	)

	assert.NotContains(t, out, "abc")
	assert.NotContains(t, out, "xyz")
	assert.Contains(t, out, `"api_key":"[REDACTED]"`)
	assert.Contains(t, out, `"topic":"Le feedback"`)
}

func TestRedactingEncoder_Patterns(t *testing.T) {
	out := encode(t, NewDefaultConfig().Redaction,
		zap.String("header", "Bearer abc.def"),
		zap.String("note", "key is sk-abcdefghijklmnopqrstuv"),
	)

	assert.NotContains(t, out, "abc.def")
	assert.NotContains(t, out, "sk-abcdefghijklmnop")
	assert.Contains(t, out, "[REDACTED:pattern]")
}

func TestRedactingEncoder_Disabled(t *testing.T) {
	out := encode(t, RedactionConfig{}, zap.String("token", "visible"))
	assert.Contains(t, out, "visible")
}

func TestRedactingEncoder_RejectsLongPattern(t *testing.T) {
	long := make([]byte, maxPatternLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := NewRedactingEncoder(newEncoder("json"), RedactionConfig{Enabled: true, Patterns: []string{string(long)}})
	assert.Error(t, err)
}

func TestRedactingEncoder_WithFields(t *testing.T) {
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)
	enc.AddString("password", "hunter2")

	buf, err := enc.EncodeEntry(zapcore.Entry{Message: "m"}, nil)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "hunter2")
}

func TestSecretAndRedactedString(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "creds",
		Secret("key", config.Secret("sk-123")),
		RedactedString("token", "abcd"),
	)

	tl.AssertField(t, "creds", "token", "[REDACTED:4]")
	tl.AssertNoSubstring(t, "sk-123")
	tl.AssertNoSubstring(t, "abcd")
}
