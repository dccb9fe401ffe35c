package stream

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/fyrsmithlabs/memoforge/internal/memo"
)

// ErrClosed is returned for writes after the terminal frame.
var ErrClosed = errors.New("stream closed")

// Observer is told about every frame the Writer delivered.
type Observer func(ctx context.Context, f Frame)

// Writer writes frames and enforces the single-terminal-frame rule. It is
// safe for concurrent use.
type Writer struct {
	mu        sync.Mutex
	w         io.Writer
	flusher   http.Flusher
	closed    bool
	err       error
	observers []Observer
}

// NewWriter writes frames to w, flushing after each one when w supports it.
func NewWriter(w io.Writer, observers ...Observer) *Writer {
	sw := &Writer{w: w, observers: observers}
	if f, ok := w.(http.Flusher); ok {
		sw.flusher = f
	}
	return sw
}

// Write sends f. After a terminal frame has been sent every call returns
// ErrClosed. A transport error is remembered and returned by Err; observers
// still see the frame so other sinks keep receiving the stream.
func (w *Writer) Write(ctx context.Context, f Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	data, err := Encode(f)
	if err != nil {
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if f.Type.Terminal() {
		w.closed = true
	}

	var werr error
	if w.err == nil {
		if _, werr = w.w.Write(data); werr == nil && w.flusher != nil {
			w.flusher.Flush()
		}
		w.err = werr
	}
	observers := w.observers
	w.mu.Unlock()

	for _, o := range observers {
		o(ctx, f)
	}
	return werr
}

// Emit implements memo.Emitter by writing an update frame. Failures are
// available from Err.
func (w *Writer) Emit(ctx context.Context, s memo.Section) {
	_ = w.Write(ctx, Update(s))
}

// Complete writes the success frame.
func (w *Writer) Complete(ctx context.Context, m *memo.Memo) error {
	return w.Write(ctx, Complete(m))
}

// Fail writes the error frame for err.
func (w *Writer) Fail(ctx context.Context, err error) error {
	return w.Write(ctx, Failure(err))
}

// Closed reports whether the terminal frame was sent.
func (w *Writer) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Err returns the first transport error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}
