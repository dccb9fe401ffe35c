// Package assembler drives memo generation: one plan call, then every
// registry entry in order, reporting each section as it is produced.
//
// Generation is strictly sequential. Concept fan-out is an explicit list of
// tasks run one after another so the emitted order is the memo order.
package assembler

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/memoforge/internal/logging"
	"github.com/fyrsmithlabs/memoforge/internal/memo"
	"github.com/fyrsmithlabs/memoforge/internal/memoerr"
	"github.com/fyrsmithlabs/memoforge/internal/plan"
	"github.com/fyrsmithlabs/memoforge/internal/secrets"
	"github.com/fyrsmithlabs/memoforge/internal/sections"
)

const instrumentationName = "github.com/fyrsmithlabs/memoforge/internal/assembler"

// MaxTopicLength bounds the topic text, in runes.
const MaxTopicLength = 2000

// Request is one generation request.
type Request struct {
	Topic   string `json:"topic"`
	Subject string `json:"subject,omitempty"`
	BookID  string `json:"book_id,omitempty"`
	UserID  string `json:"-"`
}

// Planner produces a validated plan.
type Planner interface {
	Generate(ctx context.Context, topic, subject string) (plan.Plan, error)
}

// Registry lists the section entries in memo order.
type Registry interface {
	Entries() []sections.Entry
}

// Assembler turns a topic into a Memo.
type Assembler struct {
	planner  Planner
	registry Registry
	scrubber secrets.Scrubber
	logger   *logging.Logger
	now      func() time.Time
	newID    func() string

	tracer      trace.Tracer
	generations metric.Int64Counter
	produced    metric.Int64Counter
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithClock sets the clock used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithIDGenerator replaces ULID memo ids.
func WithIDGenerator(fn func() string) Option {
	return func(a *Assembler) { a.newID = fn }
}

// WithScrubber redacts secrets from the topic before any model call.
func WithScrubber(s secrets.Scrubber) Option {
	return func(a *Assembler) { a.scrubber = s }
}

// New creates an Assembler.
func New(planner Planner, registry Registry, logger *logging.Logger, opts ...Option) *Assembler {
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &Assembler{
		planner:  planner,
		registry: registry,
		logger:   logger.Named("assembler"),
		now:      time.Now,
		newID:    func() string { return ulid.Make().String() },
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(a)
	}

	meter := otel.Meter(instrumentationName)
	a.generations, _ = meter.Int64Counter("memoforge.memo.generations_total",
		metric.WithDescription("Memo generations by outcome"))
	a.produced, _ = meter.Int64Counter("memoforge.memo.sections_total",
		metric.WithDescription("Sections produced by type"))
	return a
}

// Generate runs the pipeline without progress reporting.
func (a *Assembler) Generate(ctx context.Context, req Request) (*memo.Memo, error) {
	return a.GenerateStream(ctx, req, memo.Discard)
}

// task is one scheduled section call.
type task struct {
	entry sections.Entry
	index int
}

// schedule expands the registry into the exact list of calls for p: one
// task per entry, except concept which gets one task per plan concept.
func schedule(entries []sections.Entry, p plan.Plan) []task {
	tasks := make([]task, 0, len(entries)+len(p.Concepts))
	for _, e := range entries {
		if e.Type != memo.Concept {
			tasks = append(tasks, task{entry: e})
			continue
		}
		for i := range p.Concepts {
			tasks = append(tasks, task{entry: e, index: i})
		}
	}
	return tasks
}

// GenerateStream runs the pipeline, passing each section to em before the
// next one starts. On failure no memo is returned; sections already emitted
// stay emitted. The returned error is always a *memoerr.MemoError.
func (a *Assembler) GenerateStream(ctx context.Context, req Request, em memo.Emitter) (*memo.Memo, error) {
	if em == nil {
		em = memo.Discard
	}
	ctx = logging.WithUserID(ctx, req.UserID)

	ctx, span := a.tracer.Start(ctx, "memo.generate")
	defer span.End()

	topic, err := a.prepareTopic(ctx, req.Topic)
	if err != nil {
		return nil, a.fail(ctx, span, err)
	}

	start := a.now()
	a.logger.Info(ctx, "memo generation started", zap.Int("topic_len", utf8.RuneCountInString(topic)))

	p, err := a.planner.Generate(ctx, topic, req.Subject)
	if err != nil {
		return nil, a.fail(ctx, span, err)
	}

	tasks := schedule(a.registry.Entries(), p)
	span.SetAttributes(
		attribute.Int("memo.concepts", len(p.Concepts)),
		attribute.Int("memo.sections", len(tasks)),
	)

	mc := memo.NewContext(topic, req.Subject)
	out := make([]memo.Section, 0, len(tasks))
	for _, t := range tasks {
		s, err := a.run(ctx, t, mc, p)
		if err != nil {
			return nil, a.fail(ctx, span, err)
		}
		out = append(out, s)
		mc = advance(mc, p, s)
		em.Emit(ctx, s)
	}

	m := &memo.Memo{
		ID:        a.newID(),
		UserID:    req.UserID,
		Content:   topic,
		BookID:    req.BookID,
		CreatedAt: a.now().UTC(),
		Sections:  out,
		Metadata:  memo.Metadata{Topic: topic, Subject: req.Subject},
	}

	a.count(ctx, a.generations, attribute.String("outcome", "success"))
	span.SetAttributes(attribute.String("memo.id", m.ID))
	a.logger.Info(logging.WithMemoID(ctx, m.ID), "memo generated",
		zap.Int("sections", len(out)),
		zap.Duration("elapsed", a.now().Sub(start)))
	return m, nil
}

func (a *Assembler) prepareTopic(ctx context.Context, raw string) (string, error) {
	topic := strings.TrimSpace(raw)
	if topic == "" {
		return "", memoerr.Validation("topic is required", map[string]any{"field": "topic"})
	}
	if n := utf8.RuneCountInString(topic); n > MaxTopicLength {
		return "", memoerr.Validation("topic is too long",
			map[string]any{"field": "topic", "length": n, "max": MaxTopicLength})
	}
	if a.scrubber != nil && a.scrubber.IsEnabled() {
		res := a.scrubber.Scrub(topic)
		if res.HasFindings() {
			a.logger.Warn(ctx, "secrets redacted from topic",
				zap.Int("findings", res.TotalFindings),
				zap.Strings("rules", res.RuleIDs()))
			topic = res.Scrubbed
		}
	}
	return topic, nil
}

func (a *Assembler) run(ctx context.Context, t task, mc memo.Context, p plan.Plan) (memo.Section, error) {
	ctx, span := a.tracer.Start(ctx, "memo.section", trace.WithAttributes(
		attribute.String("section.type", string(t.entry.Type)),
		attribute.Int("section.index", t.index),
	))
	defer span.End()

	if t.entry.Type == memo.Concept {
		mc = mc.WithPart(t.index)
	}
	f, err := t.entry.Generate(ctx, mc, p, t.index)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "section failed")
		return memo.Section{}, err
	}

	a.count(ctx, a.produced, attribute.String("type", string(t.entry.Type)))
	a.logger.Debug(ctx, "section generated",
		zap.String("section", string(t.entry.Type)),
		zap.Int("index", t.index),
		zap.Int("contenu_len", utf8.RuneCountInString(f.Contenu)))
	return t.entry.Section(f), nil
}

// advance records s in the context the next sections see.
func advance(mc memo.Context, p plan.Plan, s memo.Section) memo.Context {
	mc = mc.WithSection(s)
	switch s.Type {
	case memo.Objective:
		mc = mc.WithObjective(s.Contenu)
	case memo.Hook:
		angle := p.Hook.Angle
		if angle == "" {
			angle = s.Titre
		}
		mc = mc.WithAngle(angle)
	}
	return mc
}

func (a *Assembler) fail(ctx context.Context, span trace.Span, err error) error {
	classified := memoerr.Classify(err, nil)
	span.RecordError(classified)
	span.SetStatus(codes.Error, string(classified.Code))
	a.count(ctx, a.generations,
		attribute.String("outcome", "error"),
		attribute.String("code", string(classified.Code)))
	a.logger.Error(ctx, "memo generation failed",
		zap.String("code", string(classified.Code)),
		zap.Error(classified))
	return classified
}

func (a *Assembler) count(ctx context.Context, c metric.Int64Counter, attrs ...attribute.KeyValue) {
	if c != nil {
		c.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
