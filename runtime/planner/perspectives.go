package planner

import "github.com/keyveloper/coin-news-go/runtime/query"

// Perspective is a named search angle: a pair of (custom_context,
// extra_keywords) the Planner turns into one make_semantic_query ToolCall,
// per §4.3.
type Perspective struct {
	Label         string
	CustomContext string
	ExtraKeywords []string
}

// perspectiveTables holds the per-intent perspective sets. It is data, not
// control flow, so a deployment can extend coverage without touching the
// Planner itself.
var perspectiveTables = map[query.IntentType][]Perspective{
	query.IntentPriceReason: {
		{
			Label:         "direct_cause",
			CustomContext: "direct on-chain or market events that immediately preceded the price move",
			ExtraKeywords: []string{"price move", "trigger"},
		},
		{
			Label:         "macro_monetary",
			CustomContext: "macro-economic and monetary policy context, interest rates, inflation, dollar strength",
			ExtraKeywords: []string{"fed", "interest rate", "inflation", "macro"},
		},
		{
			Label:         "positive_catalyst",
			CustomContext: "positive catalysts such as institutional adoption, ETF flows, partnerships",
			ExtraKeywords: []string{"adoption", "etf inflow", "partnership"},
		},
		{
			Label:         "regulation",
			CustomContext: "regulatory developments, enforcement actions, legislation affecting the asset",
			ExtraKeywords: []string{"regulation", "sec", "lawsuit"},
		},
	},
	query.IntentMarketTrend: {
		{
			Label:         "overall_trend",
			CustomContext: "overall market trend and sentiment across the period",
			ExtraKeywords: []string{"trend", "market sentiment"},
		},
		{
			Label:         "whale_activity",
			CustomContext: "large-holder (whale) on-chain activity and exchange flows",
			ExtraKeywords: []string{"whale", "exchange outflow"},
		},
	},
	query.IntentNewsSummary: {
		{
			Label:         "headline_events",
			CustomContext: "the most significant headline events in the period",
			ExtraKeywords: []string{"headline"},
		},
		{
			Label:         "project_updates",
			CustomContext: "project-level updates: releases, partnerships, roadmap changes",
			ExtraKeywords: []string{"update", "roadmap"},
		},
	},
}

// PerspectivesFor returns the search perspectives for intent, or nil when
// the intent has none (callers should not reach this for IntentUnknown,
// which the Planner refuses before perspective expansion).
func PerspectivesFor(intent query.IntentType) []Perspective {
	return perspectiveTables[intent]
}
