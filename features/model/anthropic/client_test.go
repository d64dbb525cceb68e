package anthropic

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyveloper/coin-news-go/runtime/model"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func TestComplete_TranslatesTextBlocksAndUsage(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "hello there"},
		},
		StopReason: "end_turn",
		Usage:      sdk.Usage{InputTokens: 10, OutputTokens: 4},
	}}
	cl, err := New(stub, Options{DefaultModel: "claude-3-5-sonnet", MaxTokens: 128})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
	assert.Equal(t, sdk.Model("claude-3-5-sonnet"), stub.lastParams.Model)
}

func TestComplete_ClassSelectsConfiguredModel(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{}}
	cl, err := New(stub, Options{DefaultModel: "default-model", SmallModel: "small-model", MaxTokens: 64})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), &model.Request{
		Class:    model.ClassSmall,
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, sdk.Model("small-model"), stub.lastParams.Model)
}

func TestComplete_NoMessagesIsError(t *testing.T) {
	cl, err := New(&stubMessagesClient{}, Options{DefaultModel: "m", MaxTokens: 64})
	require.NoError(t, err)
	_, err = cl.Complete(context.Background(), &model.Request{})
	assert.Error(t, err)
}

func TestComplete_RateLimitedErrorIsWrapped(t *testing.T) {
	stub := &stubMessagesClient{err: errors.New("429")}
	cl, err := New(stub, Options{DefaultModel: "m", MaxTokens: 64})
	require.NoError(t, err)
	_, err = cl.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	assert.Error(t, err)
}
