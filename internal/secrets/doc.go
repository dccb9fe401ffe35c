// Package secrets redacts credentials from free text before it is sent to a
// model provider or persisted with a memo.
//
// Detection is rule based: each rule is a regular expression, optionally
// gated by keywords that must appear somewhere in the text.
package secrets
