// Package embed provides the embedding half of semantic_search (§4.1):
// it turns query text into the float32 vector features/tools/vector/mongo
// searches with, backed by the OpenAI embeddings endpoint via
// github.com/openai/openai-go. None of the three model.Client adapters
// expose an embeddings call (the contract is chat-completion only), so
// this talks to openai-go directly rather than going through model.Client.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EmbeddingClient captures the subset of the openai-go client used here. It
// is satisfied by the Embeddings service of openai.Client.
type EmbeddingClient interface {
	New(ctx context.Context, params openai.EmbeddingNewParams, opts ...option.RequestOption) (*openai.CreateEmbeddingResponse, error)
}

// Options configures the Client.
type Options struct {
	Client EmbeddingClient
	Model  string
}

// Client embeds text via the OpenAI embeddings endpoint.
type Client struct {
	client EmbeddingClient
	model  string
}

// New builds an embedding client from opts.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("embed: embedding client is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "text-embedding-3-small"
	}
	return &Client{client: opts.Client, model: model}, nil
}

// NewFromAPIKey constructs a Client using the default openai-go HTTP client.
func NewFromAPIKey(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("embed: api key is required")
	}
	c := openai.NewClient(option.WithAPIKey(apiKey))
	return New(Options{Client: &c.Embeddings, Model: model})
}

// Embed returns text's embedding. Its signature matches
// features/tools/vector/mongo.Embedder, so a *Client's method value can be
// passed directly as that Store's Embedder.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("embed: text is required")
	}
	resp, err := c.client.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{text}},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embed: no embedding returned")
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}
