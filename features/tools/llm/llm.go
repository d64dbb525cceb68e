// Package llm implements the three tools that condense or summarize
// through a model.Client rather than a data store: make_semantic_query,
// summarize_price_data, and summarize_news_chunks (§4.1).
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/keyveloper/coin-news-go/runtime/model"
	"github.com/keyveloper/coin-news-go/runtime/toolregistry"
)

type (
	// Option configures a Tools.
	Option func(*Tools)

	// Tools groups the LLM-backed tool handlers sharing one client.
	Tools struct {
		client model.Client
	}
)

// New constructs Tools backed by client.
func New(client model.Client, opts ...Option) *Tools {
	t := &Tools{client: client}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register adds make_semantic_query, summarize_price_data, and
// summarize_news_chunks to reg.
func (t *Tools) Register(reg *toolregistry.Registry) {
	reg.Register(toolregistry.ToolMakeSemanticQuery, t.MakeSemanticQuery)
	reg.Register(toolregistry.ToolSummarizePriceData, t.SummarizePriceData)
	reg.Register(toolregistry.ToolSummarizeNewsChunks, t.SummarizeNewsChunks)
}

// MakeSemanticQuery condenses its arguments into a short keyword query
// string (3-8 tokens, no sentence form), per §4.1.
func (t *Tools) MakeSemanticQuery(ctx context.Context, args map[string]any) (any, error) {
	a, err := toolregistry.DecodeMakeSemanticQueryArgs(args)
	if err != nil {
		return nil, err
	}

	req := &model.Request{
		RunID: model.RunIDFromContext(ctx),
		Class: model.ClassSmall,
		System: "Condense the given parameters into a short search query of 3 to 8 " +
			"keywords, no sentence form, no punctuation beyond spaces. Respond with " +
			"only the keywords.",
		Messages: []model.Message{{
			Role: model.RoleUser,
			Text: fmt.Sprintf(
				"coins: %s\nintent: %s\nevent_keywords: %s\nevent_magnitude: %s\ncontext: %s",
				strings.Join(a.CoinNames, ", "), a.IntentType,
				strings.Join(a.EventKeywords, ", "), a.EventMagnitude, a.CustomContext,
			),
		}},
		MaxTokens: 48,
	}

	resp, err := t.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("make_semantic_query: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// SummarizePriceData summarizes one coin's price series into a short
// paragraph, per §4.1.
func (t *Tools) SummarizePriceData(ctx context.Context, args map[string]any) (any, error) {
	coinName, _ := args["coin_name"].(string)
	prices, _ := args["prices"].([]toolregistry.PricePoint)
	focus, _ := args["focus"].(string)

	if len(prices) == 0 {
		return "", nil
	}

	req := &model.Request{
		RunID:  model.RunIDFromContext(ctx),
		Class:  model.ClassHighReasoning,
		System: "Summarize this cryptocurrency price series in 2-3 sentences, noting the overall direction and magnitude of the move. Do not invent figures beyond what is given.",
		Messages: []model.Message{{
			Role: model.RoleUser,
			Text: fmt.Sprintf("coin: %s\nfocus: %s\nprices: %s", coinName, focus, formatPrices(prices)),
		}},
		MaxTokens: 200,
	}

	resp, err := t.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("summarize_price_data: %w", err)
	}
	return resp.Text, nil
}

// SummarizeNewsChunks summarizes the ranked news passages into a short
// paragraph, per §4.1.
func (t *Tools) SummarizeNewsChunks(ctx context.Context, args map[string]any) (any, error) {
	chunks, _ := args["chunks"].([]toolregistry.NewsPassage)
	focus, _ := args["focus"].(string)

	if len(chunks) == 0 {
		return "", nil
	}

	req := &model.Request{
		RunID:  model.RunIDFromContext(ctx),
		Class:  model.ClassHighReasoning,
		System: "Summarize these news passages in 2-3 sentences. Only state facts present in the passages; do not speculate beyond them.",
		Messages: []model.Message{{
			Role: model.RoleUser,
			Text: fmt.Sprintf("focus: %s\npassages: %s", focus, formatPassages(chunks)),
		}},
		MaxTokens: 250,
	}

	resp, err := t.client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("summarize_news_chunks: %w", err)
	}
	return resp.Text, nil
}

func formatPrices(points []toolregistry.PricePoint) string {
	var b strings.Builder
	for _, p := range points {
		fmt.Fprintf(&b, "[epoch=%d close=%.2f] ", p.Epoch, p.Close)
	}
	return b.String()
}

func formatPassages(passages []toolregistry.NewsPassage) string {
	var b strings.Builder
	for _, p := range passages {
		fmt.Fprintf(&b, "[%s | %s | similarity=%.2f] %s\n", p.Title, p.Source, p.Similarity, p.Text)
	}
	return b.String()
}
