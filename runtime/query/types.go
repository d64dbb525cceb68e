// Package query defines the data model shared by every pipeline stage:
// NormalizedQuery (Analyzer output), ToolCall/QueryPlan (Planner output),
// PlanResult (Executor output), and SessionContext (the cache payload).
package query

// IntentType classifies the user's goal.
type IntentType string

const (
	IntentMarketTrend IntentType = "market_trend"
	IntentNewsSummary IntentType = "news_summary"
	IntentPriceReason IntentType = "price_reason"
	IntentUnknown     IntentType = "unknown"
)

// Valid reports whether t is one of the four recognized intent types.
func (t IntentType) Valid() bool {
	switch t {
	case IntentMarketTrend, IntentNewsSummary, IntentPriceReason, IntentUnknown:
		return true
	default:
		return false
	}
}

// Magnitude classifies how significant an event should be to match.
type Magnitude string

const (
	MagnitudeBig   Magnitude = "big"
	MagnitudeSmall Magnitude = "small"
	MagnitudeAny   Magnitude = "any"
	MagnitudeNone  Magnitude = "none"
)

// Task is the analytical goal the user wants performed.
type Task string

const (
	TaskSummarize      Task = "summarize"
	TaskAnalyze        Task = "analyze"
	TaskExplainImpact  Task = "explain_impact"
	TaskFindReasons    Task = "find_reasons"
	TaskCompare        Task = "compare"
	TaskForecast       Task = "forecast"
	TaskExtractKeywords Task = "extract_keywords"
)

// Depth controls how much evidence the Planner/Executor should gather.
type Depth string

const (
	DepthShort  Depth = "short"
	DepthMedium Depth = "medium"
	DepthDeep   Depth = "deep"
)

// Valid reports whether d is one of the three recognized depths.
func (d Depth) Valid() bool {
	switch d {
	case DepthShort, DepthMedium, DepthDeep:
		return true
	default:
		return false
	}
}

// Relative is a relative time-range token.
type Relative string

const (
	Relative24h Relative = "24h"
	Relative7d  Relative = "7d"
	Relative1m  Relative = "1m"
	RelativeYTD Relative = "ytd"
	RelativeAll Relative = "all"
	RelativeNone Relative = "none"
)

// Sentiment filters news passages by tone.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
	SentimentAny      Sentiment = "any"
)

// Category filters news passages by topic.
type Category string

const (
	CategoryMacro      Category = "macro"
	CategoryAltcoin    Category = "altcoin"
	CategoryDefi       Category = "defi"
	CategoryLayer2     Category = "layer2"
	CategoryMeme       Category = "meme"
	CategoryRegulation Category = "regulation"
	CategoryExchange   Category = "exchange"
	CategoryUnknown    Category = "unknown"
)

// CoinAll is the sentinel meaning "every coin" in Target.Coin.
const CoinAll = "all"

// PivotToday is the sentinel meaning "resolve against the wall clock" in
// TimeRange.PivotTime.
const PivotToday = "today"

type (
	// Target names which coins and named actors the query concerns.
	Target struct {
		Coin   []string
		Entity []string
	}

	// Event describes the kind of event the user is asking about.
	Event struct {
		Magnitude Magnitude
		Keywords  []string
	}

	// Goal describes what the user wants done and how deep to go.
	Goal struct {
		Task  Task
		Depth Depth
	}

	// TimeRange anchors the query to a point/window in time.
	TimeRange struct {
		// PivotTime is a YYYYMMDD string or the sentinel PivotToday.
		PivotTime string
		Relative  Relative
	}

	// Filters narrows news results by sentiment/category.
	Filters struct {
		Sentiment Sentiment
		Category  Category
	}

	// NormalizedQuery is the Analyzer's structured reading of an utterance.
	NormalizedQuery struct {
		IntentType IntentType
		Target     Target
		Event      Event
		Goal       Goal
		TimeRange  TimeRange
		Filters    Filters
	}
)

// MetaPrefix marks ToolCall argument keys that the Executor reads but never
// forwards to the tool body.
const MetaPrefix = "_"

type (
	// ToolCall is one step of a QueryPlan: a tool name plus its arguments.
	// Argument keys starting with MetaPrefix are meta and are stripped before
	// dispatch (see runtime/executor).
	ToolCall struct {
		ToolName  string
		Arguments map[string]any
	}

	// QueryPlan is the Planner's compiled, ordered sequence of ToolCalls.
	// Order is significant: it encodes declaration order used for
	// tie-breaking in the Executor's news ranking (§4.4).
	QueryPlan struct {
		IntentType      IntentType
		PivotTimeEpoch  int64
		ToolCalls       []ToolCall
	}

	// PlanResult is what the Executor returns and the Scripter consumes. Raw
	// price rows and news chunks never leave the Executor; only summaries do.
	PlanResult struct {
		OriginalQuery     string
		IntentType        IntentType
		CoinNames         []string
		PriceSummary      *string
		NewsSummary       *string
		TotalActions      int
		SuccessfulActions int
		FailedActions     int
		Errors            []string
	}

	// SessionContext is the per-session payload held by the SessionCache. It
	// is the only mutable state carried between turns.
	SessionContext struct {
		LastNormalizedQuery *NormalizedQuery
		LastPlanResult      *PlanResult
		Coins               []string
		MessageCount        int
	}
)

// Clone returns a deep copy of q so callers holding a cached NormalizedQuery
// can mutate their copy without corrupting the cache (copy-on-read, §5).
func (q *NormalizedQuery) Clone() *NormalizedQuery {
	if q == nil {
		return nil
	}
	out := *q
	out.Target.Coin = append([]string(nil), q.Target.Coin...)
	out.Target.Entity = append([]string(nil), q.Target.Entity...)
	out.Event.Keywords = append([]string(nil), q.Event.Keywords...)
	return &out
}

// Clone returns a deep copy of r so cached PlanResults are not mutated by
// callers (copy-on-read, §5).
func (r *PlanResult) Clone() *PlanResult {
	if r == nil {
		return nil
	}
	out := *r
	out.CoinNames = append([]string(nil), r.CoinNames...)
	out.Errors = append([]string(nil), r.Errors...)
	if r.PriceSummary != nil {
		s := *r.PriceSummary
		out.PriceSummary = &s
	}
	if r.NewsSummary != nil {
		s := *r.NewsSummary
		out.NewsSummary = &s
	}
	return &out
}

// Clone returns a deep copy of c for copy-on-read session access.
func (c *SessionContext) Clone() *SessionContext {
	if c == nil {
		return nil
	}
	out := &SessionContext{
		LastNormalizedQuery: c.LastNormalizedQuery.Clone(),
		LastPlanResult:      c.LastPlanResult.Clone(),
		Coins:               append([]string(nil), c.Coins...),
		MessageCount:        c.MessageCount,
	}
	return out
}
