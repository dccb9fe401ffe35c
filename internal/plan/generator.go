package plan

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoforge/internal/llm"
	"github.com/fyrsmithlabs/memoforge/internal/logging"
	"github.com/fyrsmithlabs/memoforge/internal/retry"
)

// SystemPrompt asks the model for the progression JSON.
const SystemPrompt = `Tu es un concepteur pédagogique. À partir du sujet fourni, construis la progression d'un mémo d'apprentissage.
Réponds uniquement avec un objet JSON de la forme :
{"progression":{
  "hook":{"titre":"...","type":"question|anecdote|chiffre","angle":"...","keywords":["..."]},
  "story":{"titre":"...","type":"récit|cas","focus":"..."},
  "concepts":[{"titre":"...","type":"définition|principe","focus":"...","keywords":["..."],"example":{"type":"...","description":"..."}}],
  "technique":{"titre":"...","type":"méthode","approach":"..."},
  "workshop":{"titre":"...","type":"exercice","duree":"30 min"}
}}
%s Chaque titre tient en moins de 60 caractères.`

// Generator produces a validated Plan with one model call.
type Generator struct {
	client      llm.Client
	exec        *retry.Executor
	retry       retry.Options
	maxConcepts int
	logger      *logging.Logger
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithRetryOptions sets the retry budget for the plan call.
func WithRetryOptions(opts retry.Options) GeneratorOption {
	return func(g *Generator) { g.retry = opts }
}

// WithMaxConcepts caps the number of concepts a plan may carry. Zero, the
// default, means no cap.
func WithMaxConcepts(n int) GeneratorOption {
	return func(g *Generator) { g.maxConcepts = n }
}

// NewGenerator creates a plan generator.
func NewGenerator(client llm.Client, exec *retry.Executor, logger *logging.Logger, opts ...GeneratorOption) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	g := &Generator{
		client:      client,
		exec:        exec,
		retry:       retry.DefaultOptions(),
		logger:      logger.Named("plan"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate asks the model for a plan and validates it. Malformed JSON is
// retried within the budget; a well-formed plan of the wrong shape fails
// immediately with a VALIDATION_ERROR.
func (g *Generator) Generate(ctx context.Context, topic, subject string) (Plan, error) {
	system := fmt.Sprintf(SystemPrompt, conceptRule(g.maxConcepts))
	user := userContent(topic, subject)

	opts := g.retry
	opts.Context = mergeContext(opts.Context, map[string]any{"stage": "plan"})

	p, err := retry.Do(ctx, g.exec, func(ctx context.Context) (Plan, error) {
		raw, err := g.client.Call(ctx, system, user)
		if err != nil {
			return Plan{}, err
		}
		return validateText(raw, g.maxConcepts)
	}, opts)
	if err != nil {
		return Plan{}, err
	}

	g.logger.Info(ctx, "plan generated", zap.Int("concepts", len(p.Concepts)))
	return p, nil
}

func conceptRule(maxConcepts int) string {
	if maxConcepts <= 0 {
		return "Au moins un concept."
	}
	return fmt.Sprintf("Entre 1 et %d concepts.", maxConcepts)
}

func userContent(topic, subject string) string {
	var b strings.Builder
	b.WriteString("Sujet : ")
	b.WriteString(strings.TrimSpace(topic))
	if s := strings.TrimSpace(subject); s != "" {
		b.WriteString("\nMatière : ")
		b.WriteString(s)
	}
	return b.String()
}

func mergeContext(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
