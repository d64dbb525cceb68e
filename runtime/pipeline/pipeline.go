// Package pipeline wires the EntryRouter and the four pipeline stages into
// the single constructed-once entry point callers use: Core.Ask. Per the
// "Singletons with lazy init" redesign note (spec.md §9), every dependency
// is injected once at construction; nothing here relies on module-level
// state.
package pipeline

import (
	"context"
	"time"

	"github.com/keyveloper/coin-news-go/runtime/analyzer"
	"github.com/keyveloper/coin-news-go/runtime/corerr"
	"github.com/keyveloper/coin-news-go/runtime/executor"
	"github.com/keyveloper/coin-news-go/runtime/model"
	"github.com/keyveloper/coin-news-go/runtime/planner"
	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/router"
	"github.com/keyveloper/coin-news-go/runtime/scripter"
	"github.com/keyveloper/coin-news-go/runtime/session"
	"github.com/keyveloper/coin-news-go/runtime/telemetry"
)

// Result is what Ask returns: the rendered answer, the path actually taken
// (an ERROR_<path> variant when a stage failed), and any per-step errors
// gathered along the way.
type Result struct {
	Answer string
	Path   router.Path
	Errors []string
}

type (
	// Option configures a Core.
	Option func(*Core)

	// Core is the single injected entry point: EntryRouter → {Analyzer?,
	// Planner?, Executor?, Scripter} → SessionCache update.
	Core struct {
		router      *router.Router
		analyzer    *analyzer.Analyzer
		planner     *planner.Planner
		executor    *executor.Executor
		scripter    *scripter.Scripter
		store       session.Store
		directModel model.Client
		logger      telemetry.Logger
		tracer      telemetry.Tracer
		metrics     telemetry.Metrics
	}
)

// WithLogger configures the Core's logger. Defaults to a noop logger.
func WithLogger(l telemetry.Logger) Option {
	return func(c *Core) { c.logger = l }
}

// WithTracer configures the Core's tracer. Defaults to a noop tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(c *Core) { c.tracer = t }
}

// WithMetrics configures the Core's metrics recorder. Defaults to a noop
// recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(c *Core) { c.metrics = m }
}

// New constructs a Core from its already-constructed stages. directModel
// answers the DIRECT path's short chit-chat prompt.
func New(
	r *router.Router,
	a *analyzer.Analyzer,
	p *planner.Planner,
	e *executor.Executor,
	s *scripter.Scripter,
	store session.Store,
	directModel model.Client,
	opts ...Option,
) *Core {
	c := &Core{
		router:      r,
		analyzer:    a,
		planner:     p,
		executor:    e,
		scripter:    s,
		store:       store,
		directModel: directModel,
		logger:      telemetry.NewNoopLogger(),
		tracer:      telemetry.NewNoopTracer(),
		metrics:     telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask runs one turn of the pipeline for sessionID, per §6's ask(session_id,
// utterance) operation. Utterances over analyzer.MaxUtteranceLen runes are
// rejected before any stage or the Router runs, per the §8 boundary
// scenario ("QueryTooLong returned without invoking any stage").
func (c *Core) Ask(ctx context.Context, sessionID, utterance string) (Result, error) {
	ctx, span := c.tracer.Start(ctx, "pipeline.ask")
	defer span.End()
	ctx = model.WithRunID(ctx, generateRunID(sessionID))

	start := time.Now()
	defer func() { c.metrics.RecordTimer("pipeline.ask.duration", time.Since(start)) }()

	if n := len([]rune(utterance)); n > analyzer.MaxUtteranceLen {
		c.metrics.IncCounter("pipeline.ask.query_too_long", 1)
		return Result{}, corerr.New(corerr.QueryTooLong, "utterance exceeds 200 characters")
	}

	sessCtx, _, err := c.store.Load(ctx, sessionID)
	if err != nil {
		return Result{}, corerr.Wrap(corerr.InternalError, "loading session context", err)
	}

	decision := c.router.Route(ctx, utterance, sessCtx)
	c.metrics.IncCounter("pipeline.ask.path", 1, "path", string(decision.Path))

	switch decision.Path {
	case router.PathDirect:
		return c.runDirect(ctx, sessionID, utterance)
	case router.PathReuseResult:
		return c.runReuseResult(ctx, sessionID, utterance, sessCtx, decision.Path)
	case router.PathReuseAnalysis:
		return c.runReuseAnalysis(ctx, sessionID, utterance, sessCtx, decision.Path)
	default:
		return c.runFullPipeline(ctx, sessionID, utterance, decision.Path)
	}
}

// runDirect answers chit-chat/meta/off-topic utterances without touching
// the pipeline or SessionContext, per §4.7/§8 scenario 4.
func (c *Core) runDirect(ctx context.Context, sessionID, utterance string) (Result, error) {
	req := &model.Request{
		RunID:     model.RunIDFromContext(ctx),
		Class:     model.ClassDefault,
		System:    "You are a helpful assistant for a cryptocurrency price and news service. Answer briefly and naturally; do not fabricate price or news data.",
		Messages:  []model.Message{{Role: model.RoleUser, Text: utterance}},
		MaxTokens: 256,
	}
	resp, err := c.directModel.Complete(ctx, req)
	if err != nil {
		c.logger.Error(ctx, "pipeline: direct path model call failed", "error", err.Error(), "session_id", sessionID)
		return Result{Path: router.ErrorPath(router.PathDirect), Errors: []string{err.Error()}},
			corerr.Wrap(corerr.UpstreamFailure, "direct path model call failed", err)
	}
	return Result{Answer: resp.Text, Path: router.PathDirect}, nil
}

// runReuseResult re-scripts the cached PlanResult after stamping the new
// utterance as its original_query, per §4.7: only the Scripter runs, and
// SessionContext is not mutated except the message count (via AppendMessage).
func (c *Core) runReuseResult(ctx context.Context, sessionID, utterance string, sessCtx *query.SessionContext, path router.Path) (Result, error) {
	if sessCtx.LastPlanResult == nil {
		return c.runFullPipeline(ctx, sessionID, utterance, router.PathFullPipeline)
	}

	result := sessCtx.LastPlanResult.Clone()
	result.OriginalQuery = utterance
	answer := c.scripter.Write(result)

	if err := c.store.AppendMessage(ctx, sessionID, "user", utterance); err != nil {
		c.logger.Warn(ctx, "pipeline: failed to append message history", "error", err.Error(), "session_id", sessionID)
	}

	return Result{Answer: answer, Path: path}, nil
}

// runReuseAnalysis replays Planner/Executor/Scripter against the cached
// NormalizedQuery, per §4.7.
func (c *Core) runReuseAnalysis(ctx context.Context, sessionID, utterance string, sessCtx *query.SessionContext, path router.Path) (Result, error) {
	if sessCtx.LastNormalizedQuery == nil {
		return c.runFullPipeline(ctx, sessionID, utterance, router.PathFullPipeline)
	}
	nq := sessCtx.LastNormalizedQuery.Clone()
	return c.runFromNormalizedQuery(ctx, sessionID, utterance, nq, path)
}

// runFullPipeline runs all four stages, per §4.7.
func (c *Core) runFullPipeline(ctx context.Context, sessionID, utterance string, path router.Path) (Result, error) {
	nq, err := c.analyzer.Analyze(ctx, utterance)
	if err != nil {
		return c.fail(ctx, sessionID, path, "analyzer", err)
	}
	return c.runFromNormalizedQuery(ctx, sessionID, utterance, nq, path)
}

// runFromNormalizedQuery runs Planner → Executor → Scripter and, on
// success, persists the new NormalizedQuery/PlanResult into SessionContext.
func (c *Core) runFromNormalizedQuery(ctx context.Context, sessionID, utterance string, nq *query.NormalizedQuery, path router.Path) (Result, error) {
	plan, err := c.planner.Plan(ctx, nq)
	if err != nil {
		return c.fail(ctx, sessionID, path, "planner", err)
	}

	result, err := c.executor.Execute(ctx, plan, utterance)
	if err != nil {
		return c.fail(ctx, sessionID, path, "executor", err)
	}

	answer := c.scripter.Write(result)

	if err := c.store.UpdateContext(ctx, sessionID, session.ContextPatch{
		LastNormalizedQuery: nq,
		LastPlanResult:      result,
		Coins:               result.CoinNames,
		SetCoins:            true,
	}); err != nil {
		c.logger.Warn(ctx, "pipeline: failed to persist session context", "error", err.Error(), "session_id", sessionID)
	}
	if err := c.store.AppendMessage(ctx, sessionID, "user", utterance); err != nil {
		c.logger.Warn(ctx, "pipeline: failed to append message history", "error", err.Error(), "session_id", sessionID)
	}

	return Result{Answer: answer, Path: path, Errors: result.Errors}, nil
}

// fail records a stage failure as the turn's ERROR_<path> outcome without
// mutating SessionContext, per §4.7's failure semantics.
func (c *Core) fail(ctx context.Context, sessionID string, path router.Path, stage string, err error) (Result, error) {
	c.logger.Error(ctx, "pipeline: stage failed", "stage", stage, "error", err.Error(), "session_id", sessionID, "path", string(path))
	return Result{Path: router.ErrorPath(path), Errors: []string{stage + ": " + err.Error()}}, err
}
