// Package router implements the EntryRouter stage (C7): choosing which of
// the four pipeline paths a turn takes. Path selection is a single LLM call
// whose "PATH: <name>" output line is parsed; a deterministic advisory
// fallback is always computed alongside it so the two can be compared
// offline (the Open Question in spec.md §9 is resolved by treating the LLM
// decision as authoritative and the deterministic one as logged advisory
// signal, not by discarding either).
package router

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/keyveloper/coin-news-go/runtime/model"
	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/telemetry"
)

// Path is one of the four dispatch paths, or an ERROR_ variant recorded
// when a stage inside that path fails (§4.7).
type Path string

const (
	PathDirect        Path = "DIRECT"
	PathReuseResult   Path = "REUSE_RESULT"
	PathReuseAnalysis Path = "REUSE_ANALYSIS"
	PathFullPipeline  Path = "FULL_PIPELINE"
)

// ErrorPath wraps p as its ERROR_ variant, per §4.7's failure semantics.
func ErrorPath(p Path) Path { return Path("ERROR_" + string(p)) }

// Valid reports whether p is one of the four recognized paths (not an
// ERROR_ variant).
func (p Path) Valid() bool {
	switch p {
	case PathDirect, PathReuseResult, PathReuseAnalysis, PathFullPipeline:
		return true
	default:
		return false
	}
}

// Decision is the outcome of routing one turn: the path to run plus the
// deterministic advisory path computed alongside it for offline comparison.
type Decision struct {
	Path          Path
	Deterministic Path
}

type (
	// Clock returns the current time; overridable in tests.
	Clock func() time.Time

	// Option configures a Router.
	Option func(*Router)

	// Router implements the EntryRouter stage.
	Router struct {
		client  model.Client
		clock   Clock
		logger  telemetry.Logger
		tracer  telemetry.Tracer
		metrics telemetry.Metrics
	}
)

// WithClock overrides the wall clock injected into the routing prompt.
func WithClock(c Clock) Option {
	return func(r *Router) { r.clock = c }
}

// WithLogger configures the Router's logger. Defaults to a noop logger.
func WithLogger(l telemetry.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// WithTracer configures the Router's tracer. Defaults to a noop tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(r *Router) { r.tracer = t }
}

// WithMetrics configures the Router's metrics recorder. Defaults to a
// noop recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(r *Router) { r.metrics = m }
}

// New constructs a Router that asks client for a path decision.
func New(client model.Client, opts ...Option) *Router {
	r := &Router{
		client:  client,
		clock:   time.Now,
		logger:  telemetry.NewNoopLogger(),
		tracer:  telemetry.NewNoopTracer(),
		metrics: telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Route chooses the path for utterance given the session's prior context.
// A model error or an unparsable response both default to FULL_PIPELINE,
// per §4.7 ("any parse failure defaults to FULL_PIPELINE"); the
// deterministic advisory is computed and logged regardless of outcome.
func (r *Router) Route(ctx context.Context, utterance string, sessCtx *query.SessionContext) Decision {
	ctx, span := r.tracer.Start(ctx, "router.route")
	defer span.End()

	deterministic := classifyDeterministic(utterance, sessCtx)

	req := &model.Request{
		RunID:     model.RunIDFromContext(ctx),
		Class:     model.ClassSmall,
		System:    systemPrompt(),
		Messages:  []model.Message{{Role: model.RoleUser, Text: routingPrompt(utterance, sessCtx)}},
		MaxTokens: 64,
	}

	resp, err := r.client.Complete(ctx, req)
	if err != nil {
		r.logger.Warn(ctx, "router: model call failed, defaulting to FULL_PIPELINE", "error", err, "deterministic", string(deterministic))
		r.metrics.IncCounter("router.route.model_error", 1)
		return Decision{Path: PathFullPipeline, Deterministic: deterministic}
	}

	path, ok := parsePath(resp.Text)
	if !ok {
		r.logger.Warn(ctx, "router: unparsable PATH line, defaulting to FULL_PIPELINE", "raw", resp.Text, "deterministic", string(deterministic))
		r.metrics.IncCounter("router.route.parse_error", 1)
		return Decision{Path: PathFullPipeline, Deterministic: deterministic}
	}

	r.logger.Info(ctx, "router: path selected", "path", string(path), "deterministic", string(deterministic))
	r.metrics.IncCounter("router.route.decision", 1, "path", string(path))
	if path != deterministic {
		r.metrics.IncCounter("router.route.disagreement", 1, "path", string(path), "deterministic", string(deterministic))
	}
	return Decision{Path: path, Deterministic: deterministic}
}

// parsePath extracts the path named by a "PATH: <name>" line in text.
func parsePath(text string) (Path, bool) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		const prefix = "PATH:"
		if !strings.HasPrefix(strings.ToUpper(line), prefix) {
			continue
		}
		name := strings.ToUpper(strings.TrimSpace(line[len(prefix):]))
		p := Path(name)
		if p.Valid() {
			return p, true
		}
		return "", false
	}
	return "", false
}

func systemPrompt() string {
	return "You are the entry router for a crypto price/news assistant. " +
		"Read the user's utterance and the cached context summary, then answer " +
		"with exactly one line: \"PATH: <name>\" where <name> is one of " +
		"DIRECT, REUSE_RESULT, REUSE_ANALYSIS, FULL_PIPELINE. " +
		"DIRECT: chit-chat/meta/off-topic, skip the pipeline. " +
		"REUSE_RESULT: the cached result already answers this, only rephrase it. " +
		"REUSE_ANALYSIS: the cached intent/coins still apply but fresh data is wanted. " +
		"FULL_PIPELINE: anything else, or when unsure."
}

// routingPrompt embeds a compact, truncated summary of the cached
// PlanResult so the LLM can judge relevance without being handed raw
// evidence, per §4.7.
func routingPrompt(utterance string, sessCtx *query.SessionContext) string {
	var b strings.Builder
	b.WriteString("Utterance: ")
	b.WriteString(utterance)
	b.WriteString("\n")

	if sessCtx == nil || sessCtx.LastPlanResult == nil {
		b.WriteString("Cached context: none\n")
		return b.String()
	}

	pr := sessCtx.LastPlanResult
	b.WriteString("Cached intent: ")
	b.WriteString(string(pr.IntentType))
	b.WriteString("\nCached coins: ")
	b.WriteString(strings.Join(pr.CoinNames, ", "))
	b.WriteString("\nCached price summary: ")
	b.WriteString(truncate(deref(pr.PriceSummary), 200))
	b.WriteString("\nCached news summary: ")
	b.WriteString(truncate(deref(pr.NewsSummary), 200))
	b.WriteString("\n")
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// classifyDeterministic is the reproducible advisory fallback described in
// §9's Open Question. Without a cached NormalizedQuery and PlanResult it
// returns FULL_PIPELINE; otherwise a short utterance (see looksLikeRephrase)
// yields REUSE_RESULT and any longer one REUSE_ANALYSIS. It does not compare
// coin sets or intents, and does not look for coin names in the utterance.
// It never decides DIRECT — that
// judgment call is left to the LLM, since distinguishing chit-chat requires
// language understanding no rule table here attempts.
func classifyDeterministic(utterance string, sessCtx *query.SessionContext) Path {
	if sessCtx == nil || sessCtx.LastNormalizedQuery == nil || sessCtx.LastPlanResult == nil {
		return PathFullPipeline
	}
	if looksLikeRephrase(utterance) {
		return PathReuseResult
	}
	return PathReuseAnalysis
}

// looksLikeRephrase is a coarse, language-agnostic heuristic: a follow-up
// utterance of at most 20 runes (after trimming) is taken as
// presentation-only. Its content, including any coin ticker, is not examined.
func looksLikeRephrase(utterance string) bool {
	const maxRephraseRunes = 20
	return len([]rune(strings.TrimSpace(utterance))) <= maxRephraseRunes
}
