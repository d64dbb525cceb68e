package openai_test

import (
	"context"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	openaimodel "github.com/keyveloper/coin-news-go/features/model/openai"
	"github.com/keyveloper/coin-news-go/runtime/model"
)

type mockChatClient struct {
	response *openai.ChatCompletion
	captured openai.ChatCompletionNewParams
}

func (m *mockChatClient) New(_ context.Context, params openai.ChatCompletionNewParams, _ ...option.RequestOption) (*openai.ChatCompletion, error) {
	m.captured = params
	return m.response, nil
}

func TestComplete_TranslatesTextAndUsage(t *testing.T) {
	mock := &mockChatClient{response: &openai.ChatCompletion{
		Choices: []openai.ChatCompletionChoice{{
			FinishReason: "stop",
			Message:      openai.ChatCompletionMessage{Role: "assistant", Content: "hi there"},
		}},
		Usage: openai.CompletionUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}}
	client, err := openaimodel.New(openaimodel.Options{Client: mock, DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	resp, err := client.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "ping"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text)
	assert.Equal(t, "stop", resp.StopReason)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "gpt-4o", mock.captured.Model)
	require.Len(t, mock.captured.Messages, 1)
}

func TestComplete_SystemPromptPrepended(t *testing.T) {
	mock := &mockChatClient{response: &openai.ChatCompletion{}}
	client, err := openaimodel.New(openaimodel.Options{Client: mock, DefaultModel: "gpt-4o"})
	require.NoError(t, err)

	_, err = client.Complete(context.Background(), &model.Request{
		System:   "be terse",
		Messages: []model.Message{{Role: model.RoleUser, Text: "ping"}},
	})
	require.NoError(t, err)
	require.Len(t, mock.captured.Messages, 2)
}

func TestNew_RequiresDefaultModel(t *testing.T) {
	_, err := openaimodel.New(openaimodel.Options{Client: &mockChatClient{}})
	assert.Error(t, err)
}

func TestComplete_RequiresMessages(t *testing.T) {
	client, err := openaimodel.New(openaimodel.Options{Client: &mockChatClient{}, DefaultModel: "gpt-4o"})
	require.NoError(t, err)
	_, err = client.Complete(context.Background(), &model.Request{})
	assert.Error(t, err)
}
