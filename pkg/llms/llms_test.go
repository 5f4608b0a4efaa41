package llms

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingModel struct {
	calls int
}

func (m *countingModel) GetName() string                { return "counting" }
func (m *countingModel) GetProviderType() ProviderType { return ProviderMock }
func (m *countingModel) GenerateContent(_ context.Context, _ []Message, _ ...CallOption) (*ContentResponse, error) {
	m.calls++
	return &ContentResponse{Choices: []*ContentChoice{{Content: "ok"}}}, nil
}

func TestContentChoice_Message(t *testing.T) {
	t.Parallel()

	t.Run("text only", func(t *testing.T) {
		msg := (&ContentChoice{Content: "56088"}).Message()
		assert.Equal(t, RoleAI, msg.Role)
		assert.Equal(t, "56088", msg.Text())
		assert.Empty(t, msg.ToolCalls())
	})

	t.Run("empty text and no calls", func(t *testing.T) {
		msg := (&ContentChoice{}).Message()
		require.Len(t, msg.Parts, 1)
		assert.Equal(t, TextPart(""), msg.Parts[0])
	})

	t.Run("calls keep order", func(t *testing.T) {
		c := &ContentChoice{
			ToolCalls: []ToolCall{
				{ID: "a", FunctionCall: &FunctionCall{Name: "add"}},
				{ID: "b", FunctionCall: &FunctionCall{Name: "divide"}},
			},
		}
		msg := c.Message()
		require.Len(t, msg.Parts, 2)
		calls := msg.ToolCalls()
		require.Len(t, calls, 2)
		assert.Equal(t, "a", calls[0].ID)
		assert.Equal(t, "divide", calls[1].Name())
	})
}

func TestContentResponse_Merge(t *testing.T) {
	t.Parallel()

	resp := &ContentResponse{
		Choices: []*ContentChoice{
			{Content: "Let me compute.", StopReason: "tool_use"},
			nil,
			{ToolCalls: []ToolCall{{ID: "1", FunctionCall: &FunctionCall{Name: "multiply"}}}},
			{ToolCalls: []ToolCall{{ID: "2", FunctionCall: &FunctionCall{Name: "add"}}}},
		},
	}
	merged := resp.Merge()
	assert.Equal(t, "Let me compute.", merged.Content)
	assert.Equal(t, "tool_use", merged.StopReason)
	require.Len(t, merged.ToolCalls, 2)
	assert.Equal(t, "1", merged.ToolCalls[0].ID)
	assert.Equal(t, "2", merged.ToolCalls[1].ID)
}

func TestMessage_GetContent(t *testing.T) {
	t.Parallel()

	msg := MessageFromParts(RoleAI,
		TextPart("thinking"),
		ToolCall{ID: "1", Type: "function", FunctionCall: &FunctionCall{Name: "add", Arguments: `{}`}},
	)
	assert.Equal(t,
		"thinking\nTool Call: {\"type\":\"tool_call\",\"tool_call\":{\"function\":{\"name\":\"add\",\"arguments\":\"{}\"},\"id\":\"1\",\"type\":\"function\"}}\n",
		msg.GetContent())
}

func TestStepLimiter(t *testing.T) {
	t.Parallel()

	base := &countingModel{}
	lim := NewStepLimiter(base, 3)
	assert.Equal(t, 3, lim.Limit())
	assert.Equal(t, "counting", lim.GetName())

	ctx := WithTurn(context.Background())
	for range 3 {
		_, err := lim.GenerateContent(ctx, nil)
		require.NoError(t, err)
	}
	_, err := lim.GenerateContent(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTurnLimitExceeded))
	assert.True(t, IsFatal(err))
	assert.Equal(t, 3, base.calls)
	assert.Equal(t, 4, TurnFromContext(ctx).Count())

	// a new turn starts from zero
	_, err = lim.GenerateContent(WithTurn(context.Background()), nil)
	require.NoError(t, err)
	assert.Equal(t, 4, base.calls)

	assert.Equal(t, DefaultRecursionLimit, NewStepLimiter(base, 0).Limit())
}

func TestStepLimiter_TurnLimit(t *testing.T) {
	t.Parallel()

	base := &countingModel{}
	lim := NewStepLimiter(base, 10)

	ctx := WithTurn(context.Background())
	turn := TurnFromContext(ctx)
	turn.SetLimit(1)
	assert.Equal(t, 1, turn.Limit())

	_, err := lim.GenerateContent(ctx, nil)
	require.NoError(t, err)
	_, err = lim.GenerateContent(ctx, nil)
	require.Error(t, err)
	assert.EqualError(t, err, "exceeded max model calls: 1: "+ErrTurnLimitExceeded.Error())
	assert.Equal(t, 1, base.calls)

	// 0 restores the limiter limit
	turn.SetLimit(0)
	_, err = lim.GenerateContent(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, base.calls)

	turn.SetLimit(-5)
	assert.Equal(t, 0, turn.Limit())
}

func TestErrors(t *testing.T) {
	t.Parallel()

	err := MarkRateLimited(errors.New("429 too many requests"))
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.True(t, IsFatal(err))

	err = MarkTimeout(errors.Wrap(context.DeadlineExceeded, "converse"))
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))

	assert.False(t, IsFatal(errors.New("boom")))
}

func TestCapabilities(t *testing.T) {
	t.Parallel()

	assert.True(t, ProviderOpenAI.Supports(CapabilityParallelToolControl))
	assert.False(t, ProviderBedrock.Supports(CapabilityParallelToolControl))
	assert.False(t, ProviderPerplexity.Supports(CapabilityFunctionCalling))
	assert.True(t, ProviderMock.Supports(CapabilityFunctionCalling|CapabilityText))
}

func TestCallOptions(t *testing.T) {
	t.Parallel()

	opts := NewCallOptions(WithModel("gpt-4o"), WithMaxTokens(100), WithTemperature(0.2))
	assert.Equal(t, "gpt-4o", opts.Model)
	assert.Equal(t, 100, opts.MaxTokens)
	assert.False(t, opts.ParallelToolCallsDisabled())

	opts = NewCallOptions(WithParallelToolCalls(false))
	assert.True(t, opts.ParallelToolCallsDisabled())
	opts = NewCallOptions(WithParallelToolCalls(true))
	assert.False(t, opts.ParallelToolCallsDisabled())
}
