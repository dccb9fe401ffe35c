package memoerr

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// rule maps a failure onto a code. Rules are evaluated in order; the first
// match wins.
type rule struct {
	code    Code
	types   []string // substrings of the %T type name of any error in the chain
	markers []string // case-insensitive substrings of the error message
	match   func(error) bool
}

// providerFailure is implemented by model-client errors that know which
// backend produced them.
type providerFailure interface {
	Provider() string
}

var classificationTable = []rule{
	{
		code: CodeTimeout,
		match: func(err error) bool {
			return errors.Is(err, context.DeadlineExceeded)
		},
	},
	{
		code:    CodeProvider,
		types:   []string{"llm.ProviderError", "openai.", "genai.APIError"},
		markers: []string{"openai", "anthropic", "gemini", "rate limited", "api error", "quota"},
		match: func(err error) bool {
			var pf providerFailure
			return errors.As(err, &pf)
		},
	},
	{
		code:    CodeValidation,
		types:   []string{"json.UnmarshalTypeError", "json.InvalidUnmarshalError"},
		markers: []string{"validation", "invalid", "type error"},
	},
	{
		code:    CodeNetwork,
		types:   []string{"net.OpError", "net.DNSError", "url.Error"},
		markers: []string{"network", "timeout", "timed out", "connection refused", "connection reset", "no such host", "broken pipe", "eof"},
	},
}

// Classify converts err into a *MemoError. An error that already is (or
// wraps) a MemoError is returned unchanged, so classification is idempotent.
// ctx is attached to newly classified errors; nil is fine. Classify(nil)
// returns nil.
func Classify(err error, ctx map[string]any) *MemoError {
	if err == nil {
		return nil
	}
	if me, ok := As(err); ok {
		return me
	}

	code := CodeAPI
	for _, r := range classificationTable {
		if r.matches(err) {
			code = r.code
			break
		}
	}

	return &MemoError{
		Code:    code,
		Message: err.Error(),
		Context: copyContext(ctx),
		cause:   err,
	}
}

// CodeOf returns the code Classify would assign to err.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return Classify(err, nil).Code
}

func (r rule) matches(err error) bool {
	if r.match != nil && r.match(err) {
		return true
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		name := fmt.Sprintf("%T", e)
		for _, t := range r.types {
			if strings.Contains(name, t) {
				return true
			}
		}
	}

	msg := strings.ToLower(err.Error())
	for _, m := range r.markers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
