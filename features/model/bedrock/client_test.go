package bedrock

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyveloper/coin-news-go/runtime/model"
)

type stubRuntime struct {
	lastInput *bedrockruntime.ConverseInput
	out       *bedrockruntime.ConverseOutput
	err       error
}

func (s *stubRuntime) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.lastInput = params
	return s.out, s.err
}

func TestComplete_TranslatesTextAndUsage(t *testing.T) {
	stub := &stubRuntime{out: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: "hello"}},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage:      &brtypes.TokenUsage{InputTokens: aws.Int32(10), OutputTokens: aws.Int32(4), TotalTokens: aws.Int32(14)},
	}}
	cl, err := New(Options{Runtime: stub, DefaultModel: "anthropic.claude-3-sonnet"})
	require.NoError(t, err)

	resp, err := cl.Complete(context.Background(), &model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, 14, resp.Usage.TotalTokens)
	assert.Equal(t, "anthropic.claude-3-sonnet", aws.ToString(stub.lastInput.ModelId))
}

func TestComplete_ClassSelectsConfiguredModel(t *testing.T) {
	stub := &stubRuntime{out: &bedrockruntime.ConverseOutput{}}
	cl, err := New(Options{Runtime: stub, DefaultModel: "default-model", HighModel: "high-model"})
	require.NoError(t, err)

	_, err = cl.Complete(context.Background(), &model.Request{
		Class:    model.ClassHighReasoning,
		Messages: []model.Message{{Role: model.RoleUser, Text: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "high-model", aws.ToString(stub.lastInput.ModelId))
}

func TestComplete_RequiresMessages(t *testing.T) {
	cl, err := New(Options{Runtime: &stubRuntime{}, DefaultModel: "m"})
	require.NoError(t, err)
	_, err = cl.Complete(context.Background(), &model.Request{})
	assert.Error(t, err)
}

func TestIsRateLimited_DetectsThrottlingAPIError(t *testing.T) {
	assert.True(t, isRateLimited(&smithy.GenericAPIError{Code: "ThrottlingException"}))
	assert.False(t, isRateLimited(errors.New("boom")))
	assert.False(t, isRateLimited(nil))
}
