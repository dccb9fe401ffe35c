package logging

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// BufferedEntry is a log entry retained by a RingBuffer.
type BufferedEntry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Logger  string         `json:"logger,omitempty"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

type ring struct {
	mu      sync.Mutex
	entries []BufferedEntry
	next    int
	full    bool
	redact  map[string]bool
}

// RingBuffer is a zapcore.Core keeping the most recent entries in memory.
// When full, the oldest entry is overwritten.
type RingBuffer struct {
	zapcore.LevelEnabler
	ring   *ring
	fields []zapcore.Field
}

// NewRingBuffer returns a buffer holding up to size entries at or above level.
func NewRingBuffer(size int, level zapcore.LevelEnabler) *RingBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &RingBuffer{
		LevelEnabler: level,
		ring:         &ring{entries: make([]BufferedEntry, size)},
	}
}

// RedactFields masks values of the named fields in retained entries.
func (b *RingBuffer) RedactFields(names ...string) {
	b.ring.mu.Lock()
	defer b.ring.mu.Unlock()
	if b.ring.redact == nil {
		b.ring.redact = make(map[string]bool, len(names))
	}
	for _, n := range names {
		b.ring.redact[strings.ToLower(n)] = true
	}
}

func (b *RingBuffer) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(b.fields)+len(fields))
	merged = append(merged, b.fields...)
	merged = append(merged, fields...)
	return &RingBuffer{LevelEnabler: b.LevelEnabler, ring: b.ring, fields: merged}
}

func (b *RingBuffer) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if b.Enabled(e.Level) {
		return ce.AddCore(e, b)
	}
	return ce
}

func (b *RingBuffer) Write(e zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range b.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	r := b.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	for k := range enc.Fields {
		if r.redact[strings.ToLower(k)] {
			enc.Fields[k] = "[REDACTED]"
		}
	}
	entry := BufferedEntry{
		Time:    e.Time,
		Level:   e.Level.String(),
		Logger:  e.LoggerName,
		Message: e.Message,
	}
	if e.Level == TraceLevel {
		entry.Level = "trace"
	}
	if len(enc.Fields) > 0 {
		entry.Fields = enc.Fields
	}

	r.entries[r.next] = entry
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
	return nil
}

func (b *RingBuffer) Sync() error { return nil }

// Len returns the number of retained entries.
func (b *RingBuffer) Len() int {
	b.ring.mu.Lock()
	defer b.ring.mu.Unlock()
	if b.ring.full {
		return len(b.ring.entries)
	}
	return b.ring.next
}

// Snapshot returns retained entries, oldest first.
func (b *RingBuffer) Snapshot() []BufferedEntry {
	r := b.ring
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]BufferedEntry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]BufferedEntry, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	return append(out, r.entries[:r.next]...)
}
