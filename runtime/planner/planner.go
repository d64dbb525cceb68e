// Package planner implements the Planner stage (C3): compiling a
// NormalizedQuery into an ordered QueryPlan of ToolCalls.
package planner

import (
	"context"
	"time"

	"github.com/keyveloper/coin-news-go/runtime/corerr"
	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/telemetry"
	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

type (
	// Clock returns the current time; overridable in tests.
	Clock func() time.Time

	// Option configures a Planner.
	Option func(*Planner)

	// Planner implements the Planner stage.
	Planner struct {
		clock   Clock
		logger  telemetry.Logger
		tracer  telemetry.Tracer
		metrics telemetry.Metrics
	}
)

// WithClock overrides the wall clock used to resolve pivot_time="today".
func WithClock(c Clock) Option {
	return func(p *Planner) { p.clock = c }
}

// WithLogger configures the Planner's logger. Defaults to a noop logger.
func WithLogger(l telemetry.Logger) Option {
	return func(p *Planner) { p.logger = l }
}

// WithTracer configures the Planner's tracer. Defaults to a noop tracer.
func WithTracer(t telemetry.Tracer) Option {
	return func(p *Planner) { p.tracer = t }
}

// WithMetrics configures the Planner's metrics recorder. Defaults to a
// noop recorder.
func WithMetrics(m telemetry.Metrics) Option {
	return func(p *Planner) { p.metrics = m }
}

// New constructs a Planner.
func New(opts ...Option) *Planner {
	p := &Planner{
		clock:   time.Now,
		logger:  telemetry.NewNoopLogger(),
		tracer:  telemetry.NewNoopTracer(),
		metrics: telemetry.NewNoopMetrics(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan compiles nq into a QueryPlan. It fails with corerr.UnknownIntent when
// nq.IntentType is IntentUnknown, per the NormalizedQuery invariant (§3).
func (p *Planner) Plan(ctx context.Context, nq *query.NormalizedQuery) (*query.QueryPlan, error) {
	if nq.IntentType == query.IntentUnknown || !nq.IntentType.Valid() {
		p.metrics.IncCounter("planner.plan.unknown_intent", 1)
		return nil, corerr.New(corerr.UnknownIntent, "planner refuses queries with unknown intent")
	}

	_, span := p.tracer.Start(ctx, "planner.plan")
	defer span.End()

	start := time.Now()
	defer func() { p.metrics.RecordTimer("planner.plan.duration", time.Since(start)) }()

	pivotEpoch := query.ResolvePivot(nq.TimeRange.PivotTime, p.clock())

	plan := &query.QueryPlan{
		IntentType:     nq.IntentType,
		PivotTimeEpoch: pivotEpoch,
	}

	plan.ToolCalls = append(plan.ToolCalls, p.priceCalls(nq, pivotEpoch)...)
	plan.ToolCalls = append(plan.ToolCalls, p.searchCalls(nq, pivotEpoch)...)

	p.metrics.RecordGauge("planner.plan.tool_calls", float64(len(plan.ToolCalls)))
	return plan, nil
}

// priceCalls emits one get_coin_price ToolCall per coin in nq.Target.Coin,
// per §4.3: direction defaults to "before"; price_reason intents emit
// "both" to include post-event context.
func (p *Planner) priceCalls(nq *query.NormalizedQuery, pivotEpoch int64) []query.ToolCall {
	rangeType := query.RangeTypeForRelative(nq.TimeRange.Relative)
	direction := query.DirectionBefore
	if nq.IntentType == query.IntentPriceReason {
		direction = query.DirectionBoth
	}

	coins := nq.Target.Coin
	calls := make([]query.ToolCall, 0, len(coins))
	for _, coin := range coins {
		if coin == "" || coin == query.CoinAll {
			continue
		}
		calls = append(calls, toolregistry.NewGetCoinPriceCall(coin, pivotEpoch, rangeType, direction))
	}
	return calls
}

// searchCalls emits one make_semantic_query ToolCall per search perspective
// selected for nq's intent, per §4.3. Each perspective's keywords are the
// union of the NormalizedQuery's base keywords and the perspective's extras.
func (p *Planner) searchCalls(nq *query.NormalizedQuery, pivotEpoch int64) []query.ToolCall {
	perspectives := PerspectivesFor(nq.IntentType)
	if len(perspectives) == 0 {
		return nil
	}

	depthParams := ParamsForDepth(nq.Goal.Depth)
	dateRange := DateRangeFor(nq.Goal.Depth)

	calls := make([]query.ToolCall, 0, len(perspectives))
	for _, persp := range perspectives {
		keywords := unionKeywords(nq.Event.Keywords, persp.ExtraKeywords)
		searchParams := toolregistry.SearchParams{
			TopK:                depthParams.TopK,
			SimilarityThreshold: depthParams.SimilarityThreshold,
			PivotDateEpoch:      pivotEpoch,
			HasPivotDate:        true,
			DateRange:           dateRange,
		}
		calls = append(calls, toolregistry.NewMakeSemanticQueryCall(
			nq.Target.Coin, nq.IntentType, keywords, nq.Event.Magnitude, persp.CustomContext, searchParams,
		))
	}
	return calls
}

func unionKeywords(base, extra []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, k := range append(append([]string{}, base...), extra...) {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
