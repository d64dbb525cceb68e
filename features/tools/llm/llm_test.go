package llm_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyveloper/coin-news-go/features/tools/llm"
	"github.com/keyveloper/coin-news-go/runtime/model"
	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

type stubClient struct{ text string }

func (s stubClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	return &model.Response{Text: s.text}, nil
}

func TestMakeSemanticQuery_TrimsResponse(t *testing.T) {
	tools := llm.New(stubClient{text: "  btc price surge etf  \n"})
	out, err := tools.MakeSemanticQuery(context.Background(), map[string]any{
		"coin_names": []string{"BTC"}, "intent_type": "price_reason",
	})
	require.NoError(t, err)
	assert.Equal(t, "btc price surge etf", out)
}

func TestSummarizePriceData_EmptyInputReturnsEmptyString(t *testing.T) {
	tools := llm.New(stubClient{text: "should not be called"})
	out, err := tools.SummarizePriceData(context.Background(), map[string]any{"coin_name": "BTC"})
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestSummarizeNewsChunks_PassesThroughModelText(t *testing.T) {
	tools := llm.New(stubClient{text: "headline roundup"})
	out, err := tools.SummarizeNewsChunks(context.Background(), map[string]any{
		"chunks": []toolregistry.NewsPassage{{Title: "a", Text: "body"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "headline roundup", out)
}
