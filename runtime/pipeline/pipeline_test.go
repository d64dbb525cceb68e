package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyveloper/coin-news-go/runtime/analyzer"
	"github.com/keyveloper/coin-news-go/runtime/corerr"
	"github.com/keyveloper/coin-news-go/runtime/executor"
	"github.com/keyveloper/coin-news-go/runtime/model"
	"github.com/keyveloper/coin-news-go/runtime/pipeline"
	"github.com/keyveloper/coin-news-go/runtime/planner"
	"github.com/keyveloper/coin-news-go/runtime/router"
	"github.com/keyveloper/coin-news-go/runtime/scripter"
	"github.com/keyveloper/coin-news-go/runtime/session/memstore"
	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

// scriptedClient returns canned responses keyed by a substring of the
// request's system prompt, so Analyzer, Router, and the direct path can all
// be driven from a single stub.
type scriptedClient struct {
	analyzerJSON string
	routerLine   string
	directText   string
}

func (s *scriptedClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	switch {
	case strings.Contains(req.System, "entry router"):
		return &model.Response{Text: s.routerLine}, nil
	case strings.Contains(req.System, "query analyzer"):
		return &model.Response{Text: s.analyzerJSON}, nil
	default:
		return &model.Response{Text: s.directText}, nil
	}
}

func fakeToolRegistry() *toolregistry.Registry {
	r := toolregistry.New()
	r.Register(toolregistry.ToolGetCoinPrice, func(ctx context.Context, args map[string]any) (any, error) {
		return []toolregistry.PricePoint{{Epoch: 1, Close: 100}}, nil
	})
	r.Register(toolregistry.ToolMakeSemanticQuery, func(ctx context.Context, args map[string]any) (any, error) {
		return "synthetic search query", nil
	})
	r.Register(toolregistry.ToolSemanticSearch, func(ctx context.Context, args map[string]any) (any, error) {
		return []toolregistry.NewsPassage{{Title: "t", Similarity: 0.9, Text: "news text"}}, nil
	})
	r.Register(toolregistry.ToolSummarizePriceData, func(ctx context.Context, args map[string]any) (any, error) {
		return "BTC price summary", nil
	})
	r.Register(toolregistry.ToolSummarizeNewsChunks, func(ctx context.Context, args map[string]any) (any, error) {
		return "BTC news summary", nil
	})
	return r
}

func newCore(client model.Client) *pipeline.Core {
	reg := fakeToolRegistry()
	return pipeline.New(
		router.New(client),
		analyzer.New(client),
		planner.New(),
		executor.New(reg),
		scripter.New(),
		memstore.New(),
		client,
	)
}

func TestAsk_Scenario1_FullPipelineProducesBothSummaries(t *testing.T) {
	client := scriptedClient{
		analyzerJSON: `{"intent_type":"price_reason","coins":["BTC"],"pivot_time":"20251015","relative":"7d"}`,
		routerLine:   "PATH: FULL_PIPELINE",
	}
	core := newCore(&client)

	result, err := core.Ask(context.Background(), "sess-1", "10월 중순 비트코인 급등 원인")
	require.NoError(t, err)
	assert.Equal(t, router.PathFullPipeline, result.Path)
	assert.Contains(t, result.Answer, "BTC price summary")
	assert.Contains(t, result.Answer, "BTC news summary")
}

func TestAsk_Scenario2_ReuseResultOnlyScriptsCachedResult(t *testing.T) {
	client := scriptedClient{
		analyzerJSON: `{"intent_type":"price_reason","coins":["BTC"]}`,
		routerLine:   "PATH: FULL_PIPELINE",
	}
	core := newCore(&client)
	ctx := context.Background()

	_, err := core.Ask(ctx, "sess-2", "10월 중순 비트코인 급등 원인")
	require.NoError(t, err)

	client.routerLine = "PATH: REUSE_RESULT"
	result, err := core.Ask(ctx, "sess-2", "더 자세히 알려줘")
	require.NoError(t, err)
	assert.Equal(t, router.PathReuseResult, result.Path)
	assert.Contains(t, result.Answer, "BTC price summary")
}

func TestAsk_Scenario4_DirectPathSkipsPipelineAndSessionUpdate(t *testing.T) {
	client := scriptedClient{routerLine: "PATH: DIRECT", directText: "Hello! How can I help?"}
	core := newCore(&client)

	result, err := core.Ask(context.Background(), "sess-4", "안녕")
	require.NoError(t, err)
	assert.Equal(t, router.PathDirect, result.Path)
	assert.Equal(t, "Hello! How can I help?", result.Answer)
}

func TestAsk_Scenario6_TooLongUtteranceRejectedBeforeAnyStage(t *testing.T) {
	client := scriptedClient{}
	core := newCore(&client)

	long := strings.Repeat("a", 250)
	_, err := core.Ask(context.Background(), "sess-6", long)
	require.Error(t, err)
	assert.Equal(t, corerr.QueryTooLong, corerr.CodeOf(err))
}

// TestAsk_Scenario3_FollowUpCoinIsReflectedInNewPlan covers the "같은 기간
// 이더리움도 봐줘" follow-up: §4.7 defines REUSE_ANALYSIS as replaying the
// *prior* NormalizedQuery, so it cannot surface a coin that was never in
// it. The scenario's accepted-path disjunction (REUSE_ANALYSIS or
// FULL_PIPELINE) only yields a NormalizedQuery containing ETH under
// FULL_PIPELINE; this test scripts the router that way and asserts the new
// coin reaches the plan and the result, per DESIGN.md's recorded decision.
func TestAsk_Scenario3_FollowUpCoinIsReflectedInNewPlan(t *testing.T) {
	priceReg := toolregistry.New()
	priceReg.Register(toolregistry.ToolGetCoinPrice, func(ctx context.Context, args map[string]any) (any, error) {
		return []toolregistry.PricePoint{{Epoch: 1, Close: 100}}, nil
	})
	priceReg.Register(toolregistry.ToolSummarizePriceData, func(ctx context.Context, args map[string]any) (any, error) {
		coin, _ := args["coin_name"].(string)
		return coin + " price summary", nil
	})
	priceReg.Register(toolregistry.ToolMakeSemanticQuery, func(ctx context.Context, args map[string]any) (any, error) {
		return "synthetic search query", nil
	})
	priceReg.Register(toolregistry.ToolSemanticSearch, func(ctx context.Context, args map[string]any) (any, error) {
		return []toolregistry.NewsPassage{{Title: "t", Similarity: 0.9, Text: "news text"}}, nil
	})
	priceReg.Register(toolregistry.ToolSummarizeNewsChunks, func(ctx context.Context, args map[string]any) (any, error) {
		return "news summary", nil
	})

	client := &scriptedClient{
		analyzerJSON: `{"intent_type":"price_reason","coins":["BTC"],"pivot_time":"20251015","relative":"7d"}`,
		routerLine:   "PATH: FULL_PIPELINE",
	}
	core := pipeline.New(
		router.New(client), analyzer.New(client), planner.New(), executor.New(priceReg),
		scripter.New(), memstore.New(), client,
	)
	ctx := context.Background()

	_, err := core.Ask(ctx, "sess-3", "10월 중순 비트코인 급등 원인")
	require.NoError(t, err)

	client.analyzerJSON = `{"intent_type":"price_reason","coins":["ETH"],"pivot_time":"20251015","relative":"7d"}`
	result, err := core.Ask(ctx, "sess-3", "같은 기간 이더리움도 봐줘")
	require.NoError(t, err)
	assert.Equal(t, router.PathFullPipeline, result.Path)
	assert.Contains(t, result.Answer, "ETH price summary")
}

// TestAsk_Scenario5_NoNewsHitsStillProducesPriceSummary covers a
// semantic_search miss: the full pipeline runs, price data is still found,
// and the news paragraph falls back to the "no data" sentence rather than
// failing the turn.
func TestAsk_Scenario5_NoNewsHitsStillProducesPriceSummary(t *testing.T) {
	reg := toolregistry.New()
	reg.Register(toolregistry.ToolGetCoinPrice, func(ctx context.Context, args map[string]any) (any, error) {
		return []toolregistry.PricePoint{{Epoch: 1, Close: 100}}, nil
	})
	reg.Register(toolregistry.ToolSummarizePriceData, func(ctx context.Context, args map[string]any) (any, error) {
		return "BTC price summary", nil
	})
	reg.Register(toolregistry.ToolMakeSemanticQuery, func(ctx context.Context, args map[string]any) (any, error) {
		return "synthetic search query", nil
	})
	reg.Register(toolregistry.ToolSemanticSearch, func(ctx context.Context, args map[string]any) (any, error) {
		return []toolregistry.NewsPassage{}, nil
	})
	reg.Register(toolregistry.ToolSummarizeNewsChunks, func(ctx context.Context, args map[string]any) (any, error) {
		t.Fatal("summarize_news_chunks must not be called when no passages were retrieved")
		return nil, nil
	})

	client := &scriptedClient{
		analyzerJSON: `{"intent_type":"price_reason","coins":["BTC"],"pivot_time":"20251015","relative":"7d"}`,
		routerLine:   "PATH: FULL_PIPELINE",
	}
	core := pipeline.New(
		router.New(client), analyzer.New(client), planner.New(), executor.New(reg),
		scripter.New(), memstore.New(), client,
	)

	result, err := core.Ask(context.Background(), "sess-5", "비트코인 관련 뉴스 찾아줘")
	require.NoError(t, err)
	assert.Equal(t, router.PathFullPipeline, result.Path)
	assert.Contains(t, result.Answer, "BTC price summary")
	assert.Contains(t, result.Answer, scripter.NoDataSentence)
}

func TestAsk_UnknownIntentSurfacesAsErrorPathWithoutSessionMutation(t *testing.T) {
	client := scriptedClient{
		analyzerJSON: `{"intent_type":"unknown"}`,
		routerLine:   "PATH: FULL_PIPELINE",
	}
	core := newCore(&client)

	result, err := core.Ask(context.Background(), "sess-err", "asdkjaslkdj")
	require.Error(t, err)
	assert.Equal(t, router.ErrorPath(router.PathFullPipeline), result.Path)
	assert.Equal(t, corerr.UnknownIntent, corerr.CodeOf(err))
}
