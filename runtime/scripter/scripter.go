// Package scripter implements the Scripter stage (C5): turning a PlanResult
// into the final user-visible answer along a fixed outline. It never calls
// a model; it is pure text assembly over the summaries the Executor already
// produced.
package scripter

import (
	"fmt"
	"strings"

	"github.com/keyveloper/coin-news-go/runtime/query"
)

// NoDataSentence is substituted for a missing price or news paragraph, per
// §4.5 ("missing summaries become 'no data' sentences").
const NoDataSentence = "No data was available for this part of the answer."

type (
	// Option configures a Scripter.
	Option func(*Scripter)

	// Scripter implements the Scripter stage.
	Scripter struct{}
)

// New constructs a Scripter. It currently takes no options; the type and
// constructor exist so callers wire it the same way as every other stage.
func New(opts ...Option) *Scripter {
	s := &Scripter{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write renders result into a user-facing narrative: a direct answer, a
// price paragraph (or its "no data" fallback), a news paragraph (or its
// fallback), and a conclusion. It never introduces facts beyond what
// result's summaries and counters already state.
func (s *Scripter) Write(result *query.PlanResult) string {
	var b strings.Builder

	b.WriteString(directAnswer(result))
	b.WriteString("\n\n")
	b.WriteString(pricePara(result))
	b.WriteString("\n\n")
	b.WriteString(newsPara(result))
	b.WriteString("\n\n")
	b.WriteString(conclusion(result))

	return b.String()
}

// directAnswer is the 2-3 sentence lead, naming the coins and intent the
// plan addressed so the reader sees what was actually answered.
func directAnswer(r *query.PlanResult) string {
	coins := "the requested assets"
	if len(r.CoinNames) > 0 {
		coins = strings.Join(r.CoinNames, ", ")
	}
	switch r.IntentType {
	case query.IntentPriceReason:
		return fmt.Sprintf("Here is what likely drove the recent price action for %s.", coins)
	case query.IntentMarketTrend:
		return fmt.Sprintf("Here is the current market trend for %s.", coins)
	case query.IntentNewsSummary:
		return fmt.Sprintf("Here is a summary of recent news for %s.", coins)
	default:
		return fmt.Sprintf("Here is what was found for %s.", coins)
	}
}

// pricePara renders the price paragraph, falling back to NoDataSentence
// when PriceSummary is nil (§4.5).
func pricePara(r *query.PlanResult) string {
	if r.PriceSummary == nil || *r.PriceSummary == "" {
		return NoDataSentence
	}
	return *r.PriceSummary
}

// newsPara renders the news paragraph, falling back to NoDataSentence when
// NewsSummary is nil (§4.5).
func newsPara(r *query.PlanResult) string {
	if r.NewsSummary == nil || *r.NewsSummary == "" {
		return NoDataSentence
	}
	return *r.NewsSummary
}

// conclusion closes the answer, naming any partial failures so the reader
// knows the answer may be incomplete rather than silently dropping data.
func conclusion(r *query.PlanResult) string {
	if r.FailedActions == 0 {
		return "This answer reflects the full set of data gathered for the query."
	}
	return fmt.Sprintf(
		"Note: %d of %d data-gathering steps did not complete, so this answer may be based on partial data.",
		r.FailedActions, r.TotalActions,
	)
}
