// Package memoerr defines the error taxonomy shared by every stage of memo
// generation and the classifier that maps arbitrary failures onto it.
//
// MemoError is the only error type that crosses component boundaries. Code
// inside a package wraps errors with fmt.Errorf as usual; the retry executor
// and the assembler classify them before returning to callers.
package memoerr

import (
	"errors"
	"fmt"
)

// Code identifies a failure category.
type Code string

// Failure categories.
const (
	// CodeAPI is the default for unclassified upstream failures.
	CodeAPI Code = "API_ERROR"
	// CodeProvider is a model-provider specific failure (quota, 4xx/5xx, refusals).
	CodeProvider Code = "OPENAI_ERROR"
	// CodeParsing is reserved for hard parser failures.
	CodeParsing Code = "PARSING_ERROR"
	// CodeNetwork covers connectivity problems and transport timeouts.
	CodeNetwork Code = "NETWORK_ERROR"
	// CodeValidation marks a structural or semantic contract violation. Never retried.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeTimeout is an explicit deadline being exceeded.
	CodeTimeout Code = "TIMEOUT_ERROR"
)

// Codes lists every category in declaration order.
var Codes = []Code{CodeAPI, CodeProvider, CodeParsing, CodeNetwork, CodeValidation, CodeTimeout}

// Valid reports whether c is a known code.
func (c Code) Valid() bool {
	for _, known := range Codes {
		if c == known {
			return true
		}
	}
	return false
}

// MemoError is a classified failure.
type MemoError struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`

	cause error
}

// Error implements error.
func (e *MemoError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any.
func (e *MemoError) Unwrap() error {
	return e.cause
}

// Is matches another *MemoError by code, so errors.Is(err, memoerr.ErrValidation) works.
func (e *MemoError) Is(target error) bool {
	t, ok := target.(*MemoError)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.cause == nil
}

// Sentinels for errors.Is comparisons by code.
var (
	ErrAPI        = &MemoError{Code: CodeAPI}
	ErrProvider   = &MemoError{Code: CodeProvider}
	ErrParsing    = &MemoError{Code: CodeParsing}
	ErrNetwork    = &MemoError{Code: CodeNetwork}
	ErrValidation = &MemoError{Code: CodeValidation}
	ErrTimeout    = &MemoError{Code: CodeTimeout}
)

// New creates a MemoError without a cause.
func New(code Code, message string) *MemoError {
	return &MemoError{Code: code, Message: message}
}

// Newf creates a MemoError with a formatted message.
func Newf(code Code, format string, args ...any) *MemoError {
	return &MemoError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation creates a VALIDATION_ERROR carrying the given context.
func Validation(message string, ctx map[string]any) *MemoError {
	return &MemoError{Code: CodeValidation, Message: message, Context: copyContext(ctx)}
}

// Wrap classifies nothing: it attaches code and message to cause as given.
func Wrap(code Code, cause error, message string) *MemoError {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	return &MemoError{Code: code, Message: message, cause: cause}
}

// WithContext returns a copy of e whose context also holds the given keys.
// Keys already present on e win.
func (e *MemoError) WithContext(ctx map[string]any) *MemoError {
	merged := copyContext(ctx)
	if merged == nil {
		merged = make(map[string]any, len(e.Context))
	}
	for k, v := range e.Context {
		merged[k] = v
	}
	return &MemoError{Code: e.Code, Message: e.Message, Context: merged, cause: e.cause}
}

// As extracts a *MemoError from anywhere in err's chain.
func As(err error) (*MemoError, bool) {
	var me *MemoError
	if errors.As(err, &me) {
		return me, true
	}
	return nil, false
}

// IsCode reports whether err carries a MemoError with the given code.
func IsCode(err error, code Code) bool {
	me, ok := As(err)
	return ok && me.Code == code
}

// IsValidation reports whether err is a VALIDATION_ERROR.
func IsValidation(err error) bool {
	return IsCode(err, CodeValidation)
}

func copyContext(ctx map[string]any) map[string]any {
	if len(ctx) == 0 {
		return nil
	}
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		out[k] = v
	}
	return out
}
