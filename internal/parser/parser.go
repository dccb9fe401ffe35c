// Package parser turns raw model output into an AIResponse.
//
// Parse never fails. Text that does not contain a usable JSON object
// degrades to a Fallback result whose content is the trimmed text itself.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxContentLength is the ceiling, in runes, for AIResponse.Contenu.
const MaxContentLength = 220

// AIResponse is the normalised payload of one section call.
type AIResponse struct {
	Contenu string    `json:"contenu"`
	Titre   string    `json:"titre,omitempty"`
	Duree   *Duration `json:"duree,omitempty"`
}

// Kind distinguishes the two parse outcomes.
type Kind int

const (
	// Structured means a JSON object was found and decoded.
	Structured Kind = iota
	// Fallback means the raw text was used as content.
	Fallback
)

func (k Kind) String() string {
	if k == Structured {
		return "structured"
	}
	return "fallback"
}

// Result is the outcome of Parse.
type Result struct {
	Kind     Kind
	Response AIResponse
	// Truncated is set when Contenu exceeded MaxContentLength.
	Truncated bool
	// Warnings lists non-fatal problems (truncation, dropped duration).
	Warnings []string
}

// Parse extracts an AIResponse from raw. sectionType only labels warnings.
func Parse(raw, sectionType string) Result {
	text := StripFences(raw)

	var res Result
	obj, ok := decodeObject(text)
	if ok {
		res = Result{Kind: Structured, Response: fromObject(obj, sectionType, &res.Warnings)}
	} else {
		res = Result{Kind: Fallback, Response: AIResponse{Contenu: text}}
	}

	if utf8.RuneCountInString(res.Response.Contenu) > MaxContentLength {
		n := utf8.RuneCountInString(res.Response.Contenu)
		res.Response.Contenu = Truncate(res.Response.Contenu, MaxContentLength)
		res.Truncated = true
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%s: contenu truncated from %d to %d characters", label(sectionType), n, MaxContentLength))
	}
	return res
}

// StripFences removes a surrounding ``` fence, with or without a language
// tag, and trims whitespace.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(s[:nl]); !strings.ContainsAny(tag, "{}\" ") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractObject returns the first balanced {...} substring of s. Braces
// inside JSON strings are ignored.
func ExtractObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func decodeObject(text string) (map[string]any, bool) {
	candidate, ok := ExtractObject(text)
	if !ok {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(candidate)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

func fromObject(obj map[string]any, sectionType string, warnings *[]string) AIResponse {
	var r AIResponse
	r.Contenu = strings.TrimSpace(stringField(obj, "contenu", "content"))
	r.Titre = strings.TrimSpace(stringField(obj, "titre", "title"))

	raw, present := obj["duree"]
	if !present {
		raw, present = obj["duration"]
	}
	if present && raw != nil {
		if d, ok := durationFrom(raw); ok {
			r.Duree = &d
		} else {
			*warnings = append(*warnings, fmt.Sprintf("%s: unparseable duree %v dropped", label(sectionType), raw))
		}
	}
	return r
}

func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// IsValidAIResponse reports whether v is a response object with a non-empty
// contenu of at most MaxContentLength runes. Accepted shapes are AIResponse,
// *AIResponse and map[string]any.
func IsValidAIResponse(v any) bool {
	var contenu string
	switch r := v.(type) {
	case nil:
		return false
	case AIResponse:
		contenu = r.Contenu
	case *AIResponse:
		if r == nil {
			return false
		}
		contenu = r.Contenu
	case map[string]any:
		s, ok := r["contenu"].(string)
		if !ok {
			return false
		}
		contenu = s
	default:
		return false
	}
	n := utf8.RuneCountInString(contenu)
	return n >= 1 && n <= MaxContentLength
}

func label(sectionType string) string {
	if sectionType == "" {
		return "response"
	}
	return sectionType
}
