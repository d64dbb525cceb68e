package executor

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

// summarize runs Phase B: one summarize_price_data call per coin with
// collected price points, and one summarize_news_chunks call over the
// combined, ranked news list, dispatched concurrently. A failure on either
// path yields a nil summary plus an error entry rather than aborting the
// other (§4.4 step 5).
func (e *Executor) summarize(ctx context.Context, plan *query.QueryPlan, prices *priceBucket, news *newsBucket) (priceSummary, newsSummary *string, errs []actionError) {
	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		summary, err := e.summarizePrices(ctx, prices)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, actionError{toolName: toolregistry.ToolSummarizePriceData, message: err.Error()})
			return
		}
		priceSummary = summary
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		summary, err := e.summarizeNews(ctx, news)
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, actionError{toolName: toolregistry.ToolSummarizeNewsChunks, message: err.Error()})
			return
		}
		newsSummary = summary
	}()

	wg.Wait()
	return priceSummary, newsSummary, errs
}

// summarizePrices calls summarize_price_data once per coin (sorted for
// determinism) and joins the per-coin summaries. A coin whose call fails is
// skipped from the joined text but does not fail the whole phase; the
// overall result is nil only when every coin has no data or every call
// failed.
func (e *Executor) summarizePrices(ctx context.Context, prices *priceBucket) (*string, error) {
	coins := prices.coins()
	if len(coins) == 0 {
		return nil, nil
	}

	type outcome struct {
		coin string
		text string
		err  error
	}
	results := make([]outcome, len(coins))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxConcurrent)

	for i, coin := range coins {
		wg.Add(1)
		go func(i int, coin string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			points := prices.pointsFor(coin)
			callCtx, cancel := e.callContext(ctx)
			defer cancel()

			out, err := e.registry.Call(callCtx, toolregistry.ToolSummarizePriceData, map[string]any{
				"coin_name": coin,
				"prices":    points,
				"focus":     "",
			})
			if err != nil {
				results[i] = outcome{coin: coin, err: err}
				return
			}
			text, _ := out.(string)
			results[i] = outcome{coin: coin, text: text}
		}(i, coin)
	}
	wg.Wait()

	var parts []string
	var lastErr error
	for _, r := range results {
		if r.err != nil {
			lastErr = r.err
			continue
		}
		if r.text != "" {
			parts = append(parts, r.text)
		}
	}
	if len(parts) == 0 {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, nil
	}
	joined := strings.Join(parts, "\n\n")
	return &joined, nil
}

// summarizeNews calls summarize_news_chunks once over the ranked union of
// every perspective's retained passages.
func (e *Executor) summarizeNews(ctx context.Context, news *newsBucket) (*string, error) {
	entries := news.sorted()
	if len(entries) == 0 {
		return nil, nil
	}
	chunks := make([]toolregistry.NewsPassage, 0, len(entries))
	for _, e := range entries {
		chunks = append(chunks, e.passage)
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	out, err := e.registry.Call(callCtx, toolregistry.ToolSummarizeNewsChunks, map[string]any{
		"chunks": chunks,
		"focus":  "",
	})
	if err != nil {
		return nil, err
	}
	text, _ := out.(string)
	if text == "" {
		return nil, nil
	}
	return &text, nil
}

func (b *priceBucket) coins() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := map[string]struct{}{}
	for c := range b.daily {
		seen[c] = struct{}{}
	}
	for c := range b.hourly {
		seen[c] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (b *priceBucket) pointsFor(coin string) []toolregistry.PricePoint {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]toolregistry.PricePoint(nil), b.daily[coin]...)
	out = append(out, b.hourly[coin]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	return out
}
