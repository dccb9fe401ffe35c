// Package stream implements the memo progress protocol: a sequence of
// Server-Sent-Events frames, each "data: <JSON>\n\n".
//
// Frame payloads:
//
//	{"type":"update","section":{...}}   once per generated section
//	{"type":"complete","memo":{...}}    terminal, on success
//	{"type":"error","message":"..."}    terminal, on failure
//
// Exactly one terminal frame is written and nothing follows it.
package stream

import (
	"encoding/json"
	"errors"

	"github.com/fyrsmithlabs/memoforge/internal/memo"
	"github.com/fyrsmithlabs/memoforge/internal/memoerr"
)

// FrameType is the "type" field of a frame.
type FrameType string

const (
	TypeUpdate   FrameType = "update"
	TypeComplete FrameType = "complete"
	TypeError    FrameType = "error"
)

// Terminal reports whether t ends a stream.
func (t FrameType) Terminal() bool {
	return t == TypeComplete || t == TypeError
}

// Frame is one event of the stream.
type Frame struct {
	Type    FrameType     `json:"type"`
	Section *memo.Section `json:"section,omitempty"`
	Memo    *memo.Memo    `json:"memo,omitempty"`
	Message string        `json:"message,omitempty"`
	// Code is the error category of an error frame.
	Code string `json:"code,omitempty"`
}

// Update builds an update frame.
func Update(s memo.Section) Frame {
	return Frame{Type: TypeUpdate, Section: &s}
}

// Complete builds the success frame.
func Complete(m *memo.Memo) Frame {
	return Frame{Type: TypeComplete, Memo: m}
}

// Failure builds the error frame for err. The message is the classified
// error's message; nothing else about err is exposed.
func Failure(err error) Frame {
	me := memoerr.Classify(err, nil)
	if me == nil {
		me = memoerr.New(memoerr.CodeAPI, "unknown error")
	}
	return Frame{Type: TypeError, Message: me.Error(), Code: string(me.Code)}
}

// ErrInvalidFrame is returned for frames that violate the protocol.
var ErrInvalidFrame = errors.New("invalid frame")

// Validate checks that f carries the payload its type requires.
func (f Frame) Validate() error {
	switch f.Type {
	case TypeUpdate:
		if f.Section == nil {
			return errors.Join(ErrInvalidFrame, errors.New("update frame without section"))
		}
	case TypeComplete:
		if f.Memo == nil {
			return errors.Join(ErrInvalidFrame, errors.New("complete frame without memo"))
		}
	case TypeError:
		if f.Message == "" {
			return errors.Join(ErrInvalidFrame, errors.New("error frame without message"))
		}
	default:
		return errors.Join(ErrInvalidFrame, errors.New("unknown frame type "+string(f.Type)))
	}
	return nil
}

// Encode renders f as an SSE frame.
func Encode(f Frame) ([]byte, error) {
	payload, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(payload)+8)
	out = append(out, "data: "...)
	out = append(out, payload...)
	out = append(out, '\n', '\n')
	return out, nil
}
