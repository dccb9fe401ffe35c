// Package sections holds the ordered registry of section generators.
//
// Each entry binds a section type to its display colour and to a generator
// that builds a prompt from its plan fragment, makes exactly one retried
// model call and parses the answer.
package sections

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoforge/internal/llm"
	"github.com/fyrsmithlabs/memoforge/internal/logging"
	"github.com/fyrsmithlabs/memoforge/internal/memo"
	"github.com/fyrsmithlabs/memoforge/internal/memoerr"
	"github.com/fyrsmithlabs/memoforge/internal/parser"
	"github.com/fyrsmithlabs/memoforge/internal/plan"
	"github.com/fyrsmithlabs/memoforge/internal/retry"
)

// Colors maps each section type to its display colour.
var Colors = map[memo.SectionType]string{
	memo.Objective: "#6C5CE7",
	memo.Hook:      "#E17055",
	memo.Story:     "#00B894",
	memo.Concept:   "#0984E3",
	memo.Technique: "#FDCB6E",
	memo.Workshop:  "#D63031",
}

// Fields is what a generator contributes to a section.
type Fields struct {
	Titre   string
	Contenu string
	Duree   *parser.Duration
}

// GenerateFunc produces one section. index selects the concept for
// concept entries and is ignored otherwise.
type GenerateFunc func(ctx context.Context, mc memo.Context, p plan.Plan, index int) (Fields, error)

// Entry is one registry step.
type Entry struct {
	Type     memo.SectionType
	Color    string
	Generate GenerateFunc
}

// Section builds the section for f with the entry's type and colour.
func (e Entry) Section(f Fields) memo.Section {
	return memo.Section{
		Type:    e.Type,
		Titre:   f.Titre,
		Contenu: f.Contenu,
		Couleur: e.Color,
		Duree:   f.Duree,
	}
}

// Registry is the fixed, ordered list of entries.
type Registry struct {
	client  llm.Client
	exec    *retry.Executor
	retry   retry.Options
	logger  *logging.Logger
	entries []Entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithRetryOptions sets the retry budget of every section call.
func WithRetryOptions(opts retry.Options) Option {
	return func(r *Registry) { r.retry = opts }
}

// New builds the registry in memo order.
func New(client llm.Client, exec *retry.Executor, logger *logging.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Registry{
		client: client,
		exec:   exec,
		retry:  retry.DefaultOptions(),
		logger: logger.Named("sections"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.entries = []Entry{
		{Type: memo.Objective, Generate: r.objective},
		{Type: memo.Hook, Generate: r.hook},
		{Type: memo.Story, Generate: r.story},
		{Type: memo.Concept, Generate: r.concept},
		{Type: memo.Technique, Generate: r.technique},
		{Type: memo.Workshop, Generate: r.workshop},
	}
	for i := range r.entries {
		r.entries[i].Color = Colors[r.entries[i].Type]
	}
	return r
}

// Entries returns the entries in execution order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Entry returns the entry for t.
func (r *Registry) Entry(t memo.SectionType) (Entry, bool) {
	for _, e := range r.entries {
		if e.Type == t {
			return e, true
		}
	}
	return Entry{}, false
}

// call makes the single retried model call of a section and parses it.
func (r *Registry) call(ctx context.Context, t memo.SectionType, index int, system, user string) (parser.AIResponse, error) {
	opts := r.retry
	opts.Context = make(map[string]any, len(r.retry.Context)+3)
	for k, v := range r.retry.Context {
		opts.Context[k] = v
	}
	opts.Context["stage"] = "section"
	opts.Context["section"] = string(t)
	if t == memo.Concept {
		opts.Context["index"] = index
	}

	raw, err := retry.Do(ctx, r.exec, func(ctx context.Context) (string, error) {
		return r.client.Call(ctx, system, user)
	}, opts)
	if err != nil {
		return parser.AIResponse{}, err
	}

	res := parser.Parse(raw, string(t))
	if len(res.Warnings) > 0 {
		r.logger.Warn(ctx, "section response adjusted",
			zap.String("section", string(t)),
			zap.Strings("warnings", res.Warnings))
	}
	if res.Kind == parser.Fallback {
		r.logger.Debug(ctx, "section response was not JSON, using raw text",
			zap.String("section", string(t)))
	}

	if !parser.IsValidAIResponse(res.Response) {
		return parser.AIResponse{}, memoerr.Validation(
			fmt.Sprintf("%s: model returned no usable content", t),
			map[string]any{"section": string(t), "kind": res.Kind.String()},
		)
	}
	return res.Response, nil
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
