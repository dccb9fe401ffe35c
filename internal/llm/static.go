package llm

import (
	"context"
	"strings"
)

// Rule answers calls whose system prompt contains Match.
type Rule struct {
	Match string
	Reply string
}

// Static replies from fixed rules, first match wins. It makes no network
// calls and backs offline runs and tests.
type Static struct {
	rules []Rule
}

// NewStatic returns a client answering from rules.
func NewStatic(rules ...Rule) *Static {
	return &Static{rules: rules}
}

func (s *Static) Call(ctx context.Context, system, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lower := strings.ToLower(system)
	for _, r := range s.rules {
		if strings.Contains(lower, strings.ToLower(r.Match)) {
			return r.Reply, nil
		}
	}
	return "", &ProviderError{Backend: "static", Message: "no fixture matches prompt"}
}
