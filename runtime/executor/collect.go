package executor

import (
	"context"
	"sort"
	"sync"

	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

// collect runs Phase A: dispatching every declared ToolCall in plan with
// bounded fan-out, auto-chaining make_semantic_query into semantic_search,
// and bucketing results. It returns the successful/failed declared-action
// counts (auto-chained semantic_search calls do not count toward either,
// per §4.4 "declared vs. auto-chained") plus the errors collected from both
// declared and auto-chained calls.
func (e *Executor) collect(ctx context.Context, plan *query.QueryPlan, prices *priceBucket, news *newsBucket) (successful, failed int, errs []actionError) {
	sem := make(chan struct{}, e.maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for idx, tc := range plan.ToolCalls {
		wg.Add(1)
		go func(idx int, tc query.ToolCall) {
			defer wg.Done()
			if err := e.throttle(ctx); err != nil {
				mu.Lock()
				failed++
				errs = append(errs, actionError{toolName: tc.ToolName, message: err.Error()})
				mu.Unlock()
				return
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			ok, callErrs := e.dispatchDeclared(ctx, idx, tc, prices, news)

			mu.Lock()
			if ok {
				successful++
			} else {
				failed++
			}
			errs = append(errs, callErrs...)
			mu.Unlock()
		}(idx, tc)
	}
	wg.Wait()

	return successful, failed, errs
}

// dispatchDeclared runs one declared ToolCall to completion, including its
// auto-chained semantic_search when tc is make_semantic_query. ok reports
// whether the declared action itself (not the auto-chain) succeeded.
func (e *Executor) dispatchDeclared(ctx context.Context, idx int, tc query.ToolCall, prices *priceBucket, news *newsBucket) (ok bool, errs []actionError) {
	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	out, err := e.registry.Call(callCtx, tc.ToolName, stripMeta(tc.Arguments))
	if err != nil {
		return false, []actionError{{toolName: tc.ToolName, message: err.Error()}}
	}

	switch tc.ToolName {
	case toolregistry.ToolGetCoinPrice:
		points, _ := out.([]toolregistry.PricePoint)
		args, decErr := toolregistry.DecodeGetCoinPriceArgs(tc.Arguments)
		if decErr == nil {
			prices.add(args.CoinName, args.RangeType == query.RangeHour, points)
		}
		return true, nil

	case toolregistry.ToolMakeSemanticQuery:
		searchQuery, _ := out.(string)
		chainErr := e.autoChainSearch(ctx, idx, tc, searchQuery, news)
		if chainErr != nil {
			return true, []actionError{*chainErr}
		}
		return true, nil

	case toolregistry.ToolSemanticSearch:
		passages, _ := out.([]toolregistry.NewsPassage)
		news.add(idx, capPassages(passages, NewsPassagesPerPerspective))
		return true, nil

	default:
		return true, nil
	}
}

// autoChainSearch builds and dispatches the semantic_search call implied by
// a make_semantic_query result, per §4.4 step 3: the search params travel as
// the make_semantic_query ToolCall's _search_params meta argument, and the
// query text is whatever make_semantic_query's handler produced.
func (e *Executor) autoChainSearch(ctx context.Context, perspectiveIdx int, tc query.ToolCall, searchQuery string, news *newsBucket) *actionError {
	params, ok := toolregistry.DecodeSearchParams(tc.Arguments[toolregistry.MetaSearchParams])
	if !ok {
		return &actionError{toolName: toolregistry.ToolSemanticSearch, message: "missing _search_params meta"}
	}

	callCtx, cancel := e.callContext(ctx)
	defer cancel()

	searchArgs := map[string]any{
		"query":                searchQuery,
		"top_k":                params.TopK,
		"similarity_threshold": params.SimilarityThreshold,
		"pivot_date_epoch":     params.PivotDateEpoch,
		"has_pivot_date":       params.HasPivotDate,
		"date_range":           params.DateRange,
	}

	out, err := e.registry.Call(callCtx, toolregistry.ToolSemanticSearch, searchArgs)
	if err != nil {
		return &actionError{toolName: toolregistry.ToolSemanticSearch, message: err.Error()}
	}

	passages, _ := out.([]toolregistry.NewsPassage)
	news.add(perspectiveIdx, capPassages(passages, NewsPassagesPerPerspective))
	return nil
}

// capPassages keeps the n highest-similarity passages, breaking ties by the
// order the store returned them in.
func capPassages(passages []toolregistry.NewsPassage, n int) []toolregistry.NewsPassage {
	sorted := append([]toolregistry.NewsPassage(nil), passages...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Similarity > sorted[j].Similarity })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// stripMeta removes argument keys starting with query.MetaPrefix before a
// handler sees them, per §4.1 ("Argument keys starting with _ are meta").
func stripMeta(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		if len(k) > 0 && k[:1] == query.MetaPrefix {
			continue
		}
		out[k] = v
	}
	return out
}

// callContext derives a per-call deadline from ctx, per §5's per-call
// timeout requirement. A zero callTimeout leaves ctx's own deadline (if any)
// as the only bound.
func (e *Executor) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.callTimeout)
}

// throttle blocks until the rate limiter (if configured) admits one more
// call, or ctx is done.
func (e *Executor) throttle(ctx context.Context) error {
	if e.limiter == nil {
		return nil
	}
	return e.limiter.Wait(ctx)
}

func (b *priceBucket) add(coin string, hourly bool, points []toolregistry.PricePoint) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if hourly {
		b.hourly[coin] = append(b.hourly[coin], points...)
	} else {
		b.daily[coin] = append(b.daily[coin], points...)
	}
}

func (b *newsBucket) add(perspectiveIdx int, passages []toolregistry.NewsPassage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range passages {
		b.entries = append(b.entries, newsEntry{passage: p, perspectiveIdx: perspectiveIdx})
	}
}

// sorted returns the bucket's passages ordered by descending similarity,
// with ties broken by ascending perspective index (the plan's declaration
// order), per §4.4 "Ordering guarantees".
func (b *newsBucket) sorted() []newsEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := append([]newsEntry(nil), b.entries...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].passage.Similarity != out[j].passage.Similarity {
			return out[i].passage.Similarity > out[j].passage.Similarity
		}
		return out[i].perspectiveIdx < out[j].perspectiveIdx
	})
	return out
}
