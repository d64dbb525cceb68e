package embed_test

import (
	"context"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyveloper/coin-news-go/features/tools/embed"
)

type mockEmbeddingClient struct {
	response *openai.CreateEmbeddingResponse
	captured openai.EmbeddingNewParams
	err      error
}

func (m *mockEmbeddingClient) New(_ context.Context, params openai.EmbeddingNewParams, _ ...option.RequestOption) (*openai.CreateEmbeddingResponse, error) {
	m.captured = params
	if m.err != nil {
		return nil, m.err
	}
	return m.response, nil
}

func TestEmbed_TranslatesVector(t *testing.T) {
	mock := &mockEmbeddingClient{response: &openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{{Embedding: []float64{0.1, 0.2, 0.3}}},
	}}
	client, err := embed.New(embed.Options{Client: mock, Model: "text-embedding-3-small"})
	require.NoError(t, err)

	vec, err := client.Embed(context.Background(), "bitcoin price")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "text-embedding-3-small", string(mock.captured.Model))
}

func TestEmbed_RejectsEmptyText(t *testing.T) {
	client, err := embed.New(embed.Options{Client: &mockEmbeddingClient{}, Model: "text-embedding-3-small"})
	require.NoError(t, err)
	_, err = client.Embed(context.Background(), "  ")
	assert.Error(t, err)
}

func TestEmbed_DefaultsModel(t *testing.T) {
	mock := &mockEmbeddingClient{response: &openai.CreateEmbeddingResponse{
		Data: []openai.Embedding{{Embedding: []float64{1}}},
	}}
	client, err := embed.New(embed.Options{Client: mock})
	require.NoError(t, err)
	_, err = client.Embed(context.Background(), "eth")
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", string(mock.captured.Model))
}

func TestEmbed_WrapsUpstreamError(t *testing.T) {
	client, err := embed.New(embed.Options{Client: &mockEmbeddingClient{err: assertErr{}}, Model: "m"})
	require.NoError(t, err)
	_, err = client.Embed(context.Background(), "btc")
	assert.Error(t, err)
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
