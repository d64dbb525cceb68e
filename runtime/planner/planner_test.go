package planner_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyveloper/coin-news-go/runtime/corerr"
	"github.com/keyveloper/coin-news-go/runtime/planner"
	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

func fixedClock() time.Time { return time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC) }

func TestPlan_RefusesUnknownIntent(t *testing.T) {
	p := planner.New(planner.WithClock(fixedClock))
	_, err := p.Plan(context.Background(), &query.NormalizedQuery{IntentType: query.IntentUnknown})
	require.Error(t, err)
	assert.Equal(t, corerr.UnknownIntent, corerr.CodeOf(err))
}

func TestPlan_PriceReason_EmitsBothDirectionAndFourPerspectives(t *testing.T) {
	p := planner.New(planner.WithClock(fixedClock))
	nq := &query.NormalizedQuery{
		IntentType: query.IntentPriceReason,
		Target:     query.Target{Coin: []string{"BTC"}},
		Goal:       query.Goal{Depth: query.DepthMedium},
		TimeRange:  query.TimeRange{PivotTime: "20251015", Relative: query.Relative7d},
	}
	plan, err := p.Plan(context.Background(), nq)
	require.NoError(t, err)

	var priceCalls, searchCalls int
	for _, tc := range plan.ToolCalls {
		switch tc.ToolName {
		case toolregistry.ToolGetCoinPrice:
			priceCalls++
			assert.Equal(t, "both", tc.Arguments["direction"])
			assert.Equal(t, "week", tc.Arguments["range_type"])
		case toolregistry.ToolMakeSemanticQuery:
			searchCalls++
			_, ok := toolregistry.DecodeSearchParams(tc.Arguments[toolregistry.MetaSearchParams])
			assert.True(t, ok)
		}
	}
	assert.Equal(t, 1, priceCalls)
	assert.GreaterOrEqual(t, searchCalls, 4)
}

func TestPlan_MarketTrend_EmitsBeforeDirection(t *testing.T) {
	p := planner.New(planner.WithClock(fixedClock))
	nq := &query.NormalizedQuery{
		IntentType: query.IntentMarketTrend,
		Target:     query.Target{Coin: []string{"BTC", "ETH"}},
		Goal:       query.Goal{Depth: query.DepthShort},
		TimeRange:  query.TimeRange{PivotTime: "today", Relative: query.Relative24h},
	}
	plan, err := p.Plan(context.Background(), nq)
	require.NoError(t, err)

	var priceCalls, searchCalls int
	for _, tc := range plan.ToolCalls {
		switch tc.ToolName {
		case toolregistry.ToolGetCoinPrice:
			priceCalls++
			assert.Equal(t, "before", tc.Arguments["direction"])
			assert.Equal(t, "day", tc.Arguments["range_type"])
		case toolregistry.ToolMakeSemanticQuery:
			searchCalls++
		}
	}
	assert.Equal(t, 2, priceCalls)
	assert.GreaterOrEqual(t, searchCalls, 2)
}

func TestPlan_PivotTimeToday_ResolvesToWallClockMidnight(t *testing.T) {
	p := planner.New(planner.WithClock(fixedClock))
	nq := &query.NormalizedQuery{
		IntentType: query.IntentNewsSummary,
		Target:     query.Target{Coin: []string{"BTC"}},
		TimeRange:  query.TimeRange{PivotTime: "today"},
	}
	plan, err := p.Plan(context.Background(), nq)
	require.NoError(t, err)
	assert.Equal(t, query.MidnightUTC(fixedClock()), plan.PivotTimeEpoch)
}

func TestPlan_KeywordUnion_DedupesAndPreservesBase(t *testing.T) {
	p := planner.New(planner.WithClock(fixedClock))
	nq := &query.NormalizedQuery{
		IntentType: query.IntentNewsSummary,
		Target:     query.Target{Coin: []string{"BTC"}},
		Event:      query.Event{Keywords: []string{"headline", "custom"}},
	}
	plan, err := p.Plan(context.Background(), nq)
	require.NoError(t, err)
	for _, tc := range plan.ToolCalls {
		if tc.ToolName != toolregistry.ToolMakeSemanticQuery {
			continue
		}
		kws, _ := tc.Arguments["event_keywords"].([]string)
		assert.Contains(t, kws, "custom")
		headlines := 0
		for _, k := range kws {
			if k == "headline" {
				headlines++
			}
		}
		assert.Equal(t, 1, headlines)
	}
}
