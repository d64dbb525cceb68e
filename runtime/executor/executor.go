// Package executor implements the Executor stage (C4): dispatching a
// QueryPlan's ToolCalls with bounded fan-out, auto-chaining
// make_semantic_query results into semantic_search calls, summarizing
// collected evidence, and assembling a PlanResult. This is the hardest part
// of the pipeline (§4.4) because it must isolate per-step failures, keep
// deterministic ordering, and respect a fan-out ceiling and per-call
// deadlines while running independent work concurrently.
package executor

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/telemetry"
	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

// NewsPassagesPerPerspective caps how many passages from a single
// semantic_search result (direct or auto-chained) survive into the shared
// news list, per §4.4 step 4.
const NewsPassagesPerPerspective = 3

// DefaultMaxConcurrent is the fan-out ceiling used when no WithMaxConcurrent
// option is supplied, per §5 ("default small, e.g. 8").
const DefaultMaxConcurrent = 8

type (
	// Option configures an Executor.
	Option func(*Executor)

	// Executor implements the Executor stage.
	Executor struct {
		registry      *toolregistry.Registry
		maxConcurrent int
		callTimeout   time.Duration
		limiter       *rate.Limiter
		logger        telemetry.Logger
		tracer        telemetry.Tracer
		metrics       telemetry.Metrics
	}

	// priceBucket accumulates price points per coin, keyed separately for
	// hourly vs. daily-close series per §4.4 step 4 ("(coin, range_type=hour?)").
	priceBucket struct {
		mu     sync.Mutex
		daily  map[string][]toolregistry.PricePoint
		hourly map[string][]toolregistry.PricePoint
	}

	// newsEntry is one retained passage plus the perspective index it came
	// from, used to break similarity ties deterministically (§4.4 "Ordering
	// guarantees").
	newsEntry struct {
		passage        toolregistry.NewsPassage
		perspectiveIdx int
	}

	// newsBucket accumulates news passages across perspectives.
	newsBucket struct {
		mu      sync.Mutex
		entries []newsEntry
	}

	// actionError records one failed declared or auto-chained tool call.
	actionError struct {
		toolName string
		message  string
	}
)

// WithMaxConcurrent sets the fan-out ceiling (maximum simultaneous
// outstanding tool calls per turn). Values <= 0 fall back to
// DefaultMaxConcurrent.
func WithMaxConcurrent(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxConcurrent = n
		}
	}
}

// WithCallTimeout sets the per-ToolCall deadline derived from the per-turn
// budget (§5 "Cancellation and timeouts"). Zero disables the per-call
// deadline (the turn's own context deadline, if any, still applies).
func WithCallTimeout(d time.Duration) Option {
	return func(e *Executor) { e.callTimeout = d }
}

// WithRateLimit throttles tool dispatch to at most rps calls per second,
// protecting downstream services beyond the raw concurrency ceiling (the
// same role golang.org/x/time/rate plays for model-call throttling
// elsewhere in this stack). A zero or negative rps disables the limiter.
func WithRateLimit(rps float64, burst int) Option {
	return func(e *Executor) {
		if rps <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger configures the Executor's logger. Defaults to a noop logger.
func WithLogger(l telemetry.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithTracer configures the Executor's tracer. Defaults to a noop tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(e *Executor) { e.tracer = t }
}

// WithMetrics configures the Executor's metrics recorder. Defaults to a
// noop recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// New constructs an Executor dispatching tools through registry.
func New(registry *toolregistry.Registry, opts ...Option) *Executor {
	e := &Executor{
		registry:      registry,
		maxConcurrent: DefaultMaxConcurrent,
		logger:        telemetry.NewNoopLogger(),
		tracer:        telemetry.NewNoopTracer(),
		metrics:       telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs plan to completion, returning a PlanResult. It never returns
// a non-nil error for partial tool or summarizer failures (those are
// recorded in PlanResult.Errors); only a caller-canceled turn context
// aborts early, surfacing whatever arrived by then (§5).
func (e *Executor) Execute(ctx context.Context, plan *query.QueryPlan, originalUtterance string) (*query.PlanResult, error) {
	ctx, span := e.tracer.Start(ctx, "executor.execute")
	defer span.End()

	start := time.Now()
	defer func() { e.metrics.RecordTimer("executor.execute.duration", time.Since(start)) }()

	prices := &priceBucket{daily: map[string][]toolregistry.PricePoint{}, hourly: map[string][]toolregistry.PricePoint{}}
	news := &newsBucket{}

	successful, failed, errs := e.collect(ctx, plan, prices, news)

	priceSummary, newsSummary, sErrs := e.summarize(ctx, plan, prices, news)
	errs = append(errs, sErrs...)

	result := &query.PlanResult{
		OriginalQuery:     originalUtterance,
		IntentType:        plan.IntentType,
		CoinNames:         coinNamesFromPlan(plan),
		PriceSummary:      priceSummary,
		NewsSummary:       newsSummary,
		TotalActions:      len(plan.ToolCalls),
		SuccessfulActions: successful,
		FailedActions:     failed,
		Errors:            formatErrors(errs),
	}
	e.metrics.IncCounter("executor.execute.actions_successful", float64(successful))
	e.metrics.IncCounter("executor.execute.actions_failed", float64(failed))
	return result, nil
}

// coinNamesFromPlan returns sort(dedup(union of every coin_name argument of
// get_coin_price ToolCalls in plan)), independent of execution outcome
// (§8 testable property).
func coinNamesFromPlan(plan *query.QueryPlan) []string {
	seen := map[string]struct{}{}
	for _, tc := range plan.ToolCalls {
		if tc.ToolName != toolregistry.ToolGetCoinPrice {
			continue
		}
		coin, _ := tc.Arguments["coin_name"].(string)
		if coin == "" {
			continue
		}
		seen[coin] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func formatErrors(errs []actionError) []string {
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		out = append(out, e.toolName+": "+e.message)
	}
	return out
}
