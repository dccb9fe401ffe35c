package stream

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxFrameSize bounds a single frame; a complete memo fits easily.
const maxFrameSize = 4 << 20

// Reader decodes frames from an SSE body.
type Reader struct {
	sc   *bufio.Scanner
	done bool
}

// NewReader reads frames from r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxFrameSize)
	return &Reader{sc: sc}
}

// Next returns the next frame. It returns io.EOF after the terminal frame
// and io.ErrUnexpectedEOF if the body ends before one.
func (r *Reader) Next() (Frame, error) {
	if r.done {
		return Frame{}, io.EOF
	}

	var data []string
	for r.sc.Scan() {
		line := r.sc.Text()
		switch {
		case line == "":
			if len(data) == 0 {
				continue
			}
			return r.decode(strings.Join(data, "\n"))
		case strings.HasPrefix(line, ":"):
			// comment / heartbeat
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := r.sc.Err(); err != nil {
		return Frame{}, err
	}
	if len(data) > 0 {
		return r.decode(strings.Join(data, "\n"))
	}
	return Frame{}, io.ErrUnexpectedEOF
}

func (r *Reader) decode(payload string) (Frame, error) {
	var f Frame
	if err := json.Unmarshal([]byte(payload), &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if err := f.Validate(); err != nil {
		return Frame{}, err
	}
	if f.Type.Terminal() {
		r.done = true
	}
	return f, nil
}

// Each calls fn for every frame up to and including the terminal one.
func (r *Reader) Each(fn func(Frame) error) error {
	for {
		f, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			return err
		}
	}
}
