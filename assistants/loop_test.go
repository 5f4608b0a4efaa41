package assistants_test

import (
	"context"
	"strings"
	"testing"

	"github.com/CodeSistency/agentTemplate/assistants"
	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/mocks/mockassistants"
	"github.com/CodeSistency/agentTemplate/mocks/mockllms"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/CodeSistency/agentTemplate/tools/mathtools"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const systemPrompt = "You are a helpful math tutor."

func toolCall(id, name, args string) llms.ToolCall {
	return llms.ToolCall{ID: id, Type: "function", FunctionCall: &llms.FunctionCall{Name: name, Arguments: args}}
}

func respond(content string, calls ...llms.ToolCall) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:   content,
				ToolCalls: calls,
				GenerationInfo: map[string]any{
					"InputTokens":  10,
					"OutputTokens": 5,
				},
			},
		},
	}
}

func newModel(ctrl *gomock.Controller) *mockllms.MockModel {
	m := mockllms.NewMockModel(ctrl)
	m.EXPECT().GetName().Return("mock-model").AnyTimes()
	m.EXPECT().GetProviderType().Return(llms.ProviderMock).AnyTimes()
	return m
}

func question(q string) *chatmodel.Conversation {
	return chatmodel.NewConversation("s1", llms.MessageFromTextParts(llms.RoleHuman, q))
}

func TestLoop_Multiply(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)
	cb := mockassistants.NewMockCallback(ctrl)

	first := model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msgs []llms.Message, opts ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 2)
			assert.Equal(t, llms.RoleSystem, msgs[0].Role)
			assert.Equal(t, systemPrompt, msgs[0].Text())
			assert.Equal(t, "What is 123 * 456?", msgs[1].Text())

			co := llms.NewCallOptions(opts...)
			assert.Len(t, co.Tools, 7)
			assert.True(t, co.ParallelToolCallsDisabled())
			return respond("", toolCall("call_1", "multiply", `{"a":123,"b":456}`)), nil
		})
	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 4)
			resp, ok := msgs[3].ToolResponse()
			require.True(t, ok)
			assert.Equal(t, "call_1", resp.ToolCallID)
			assert.Contains(t, resp.Content, "**Final Result:** 56088")
			return respond("123 × 456 = 56088"), nil
		}).After(first)

	gomock.InOrder(
		cb.EXPECT().OnModelCallStart(gomock.Any(), "Math Tutor", gomock.Any(), gomock.Len(2)),
		cb.EXPECT().OnModelInvoked(gomock.Any(), "Math Tutor", gomock.Any()),
		cb.EXPECT().OnToolInvoked(gomock.Any(), "Math Tutor", gomock.Any(), gomock.Any()).
			Do(func(_ context.Context, _ string, call llms.ToolCall, out *tools.Output) {
				assert.Equal(t, "multiply", call.Name())
				require.NotNil(t, out.Result)
				v, ok := out.Result.Number()
				assert.True(t, ok)
				assert.Equal(t, 56088.0, v)
			}),
		cb.EXPECT().OnModelCallStart(gomock.Any(), "Math Tutor", gomock.Any(), gomock.Len(4)),
		cb.EXPECT().OnModelInvoked(gomock.Any(), "Math Tutor", gomock.Any()),
		cb.EXPECT().OnTurnComplete(gomock.Any(), "Math Tutor", gomock.Any()),
	)

	loop := assistants.NewLoop(model, tools.NewExecutor(mathtools.NewRegistry()),
		assistants.WithSystemPrompt(systemPrompt),
	)
	assert.Equal(t, "Math Tutor", loop.Name())

	input := question("What is 123 * 456?")
	state, err := loop.Run(context.Background(), input, assistants.WithCallback(cb))
	require.NoError(t, err)
	assert.Equal(t, 1, input.Len(), "input state must not change")

	require.Equal(t, 5, state.Len())
	roles := make([]llms.Role, 0, state.Len())
	for _, m := range state.Messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []llms.Role{llms.RoleSystem, llms.RoleHuman, llms.RoleAI, llms.RoleTool, llms.RoleAI}, roles)
	assert.Equal(t, "123 × 456 = 56088", state.FinalAnswer())
	assert.Contains(t, state.FinalAnswer(), "56088")
	require.NoError(t, state.Validate())
}

func TestLoop_ToolCallIDs(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)

	// ids are empty or duplicated, every call still gets exactly one answer
	calls := []llms.ToolCall{
		toolCall("", "add", `{"a":1,"b":2}`),
		toolCall("dup", "divide", `{"a":1,"b":0}`),
		toolCall("dup", "modulo", `{"a":1}`),
		toolCall("c4", "solve_equation", `{"equation":"2x + 3 = 7"}`),
	}
	first := model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(respond("Let me calculate.", calls...), nil)
	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(respond("done"), nil).After(first)

	loop := assistants.NewLoop(model, tools.NewExecutor(mathtools.NewRegistry()))
	state, err := loop.Run(context.Background(), question("several"))
	require.NoError(t, err)
	require.NoError(t, state.Validate())

	// human, ai, 4 tools, ai
	require.Equal(t, 7, state.Len())
	ai := state.Messages[1]
	assert.Equal(t, "Let me calculate.", ai.Text())
	issued := ai.ToolCalls()
	require.Len(t, issued, 4)

	seen := map[string]bool{}
	for i, tc := range issued {
		assert.NotEmpty(t, tc.ID)
		assert.False(t, seen[tc.ID], "duplicate id %s", tc.ID)
		seen[tc.ID] = true

		resp, ok := state.Messages[2+i].ToolResponse()
		require.True(t, ok)
		assert.Equal(t, tc.ID, resp.ToolCallID)
		assert.Equal(t, tc.Name(), resp.Name)
	}
	assert.Equal(t, "dup", issued[1].ID)
	assert.True(t, strings.HasPrefix(issued[0].ID, "call_"))
	assert.True(t, strings.HasPrefix(issued[2].ID, "call_"))

	content := func(i int) string {
		resp, _ := state.Messages[2+i].ToolResponse()
		return resp.Content
	}
	assert.Contains(t, content(0), "**Final Result:** 3")
	assert.Equal(t, "Error in divide: Cannot divide by zero", content(1))
	assert.Equal(t, "Error in modulo: unknown tool: modulo", content(2))
	assert.Contains(t, content(3), "Final solution: x = 2")
}

func TestLoop_SystemPromptOnce(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)
	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(respond("hello"), nil).Times(2)

	loop := assistants.NewLoop(model, tools.NewExecutor(mathtools.NewRegistry()),
		assistants.WithSystemPrompt(systemPrompt),
	).WithName("tutor")
	assert.Equal(t, "tutor", loop.Name())

	ctx := context.Background()
	state, err := loop.Ask(ctx, chatmodel.NewConversation("s1"), "hi")
	require.NoError(t, err)
	state, err = loop.Ask(ctx, state, "again")
	require.NoError(t, err)

	require.Equal(t, 5, state.Len())
	systems := 0
	for _, m := range state.Messages {
		if m.Role == llms.RoleSystem {
			systems++
		}
	}
	assert.Equal(t, 1, systems)
	assert.Equal(t, llms.RoleSystem, state.Messages[0].Role)
}

func TestLoop_TurnLimit(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)
	n := 0
	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, []llms.Message, ...llms.CallOption) (*llms.ContentResponse, error) {
			n++
			return respond("", toolCall("", "add", `{"a":1,"b":1}`)), nil
		}).Times(3)

	cb := mockassistants.NewMockCallback(ctrl)
	cb.EXPECT().OnModelCallStart(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(4)
	cb.EXPECT().OnModelInvoked(gomock.Any(), gomock.Any(), gomock.Any()).Times(3)
	cb.EXPECT().OnToolInvoked(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(3)
	cb.EXPECT().OnTurnFailed(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(_ context.Context, _ string, state *chatmodel.Conversation, err error) {
			assert.Equal(t, 7, state.Len())
			assert.ErrorIs(t, err, llms.ErrTurnLimitExceeded)
		})

	loop := assistants.NewLoop(model, tools.NewExecutor(mathtools.NewRegistry()),
		assistants.WithRecursionLimit(3),
		assistants.WithCallback(cb),
	)
	state, err := loop.Run(context.Background(), question("loop forever"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, llms.ErrTurnLimitExceeded))
	assert.True(t, llms.IsFatal(err))
	assert.Equal(t, 3, n)

	// partial state: human + 3 * (ai + tool)
	require.NotNil(t, state)
	assert.Equal(t, 7, state.Len())
	assert.Empty(t, state.PendingToolCalls())
}

func TestLoop_ModelErrors(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		name     string
		resp     *llms.ContentResponse
		err      error
		sentinel error
	}{
		{"rate limited", nil, llms.MarkRateLimited(errors.New("429 Too Many Requests")), llms.ErrRateLimited},
		{"timeout", nil, llms.MarkTimeout(errors.New("deadline")), llms.ErrTimeout},
		{"empty", &llms.ContentResponse{}, nil, llms.ErrEmptyResponse},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			model := newModel(ctrl)
			model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).Return(tc.resp, tc.err)

			loop := assistants.NewLoop(model, tools.NewExecutor(mathtools.NewRegistry()),
				assistants.WithSystemPrompt(systemPrompt),
			)
			state, err := loop.Run(context.Background(), question("What is 2 + 2?"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.sentinel))
			assert.Contains(t, err.Error(), "assistant Math Tutor: failed to generate content")

			// the system prompt was added before the model failed
			require.Equal(t, 2, state.Len())
			assert.Equal(t, llms.RoleSystem, state.Messages[0].Role)
		})
	}
}

func TestLoop_Cancel(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the response arrives after cancellation and is discarded
	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(context.Context, []llms.Message, ...llms.CallOption) (*llms.ContentResponse, error) {
			cancel()
			return respond("", toolCall("c1", "add", `{"a":1,"b":2}`)), nil
		})

	loop := assistants.NewLoop(model, tools.NewExecutor(mathtools.NewRegistry()))
	state, err := loop.Run(ctx, question("What is 1 + 2?"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, state.Len())

	// cancelled before the first model call
	state, err = loop.Run(ctx, question("What is 1 + 2?"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, state.Len())
}

func TestLoop_CancelBetweenTools(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)
	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(respond("", toolCall("c1", "add", `{"a":1,"b":2}`), toolCall("c2", "add", `{"a":3,"b":4}`)), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cb := mockassistants.NewMockCallback(ctrl)
	cb.EXPECT().OnModelCallStart(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any())
	cb.EXPECT().OnModelInvoked(gomock.Any(), gomock.Any(), gomock.Any())
	cb.EXPECT().OnToolInvoked(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(context.Context, string, llms.ToolCall, *tools.Output) { cancel() })
	cb.EXPECT().OnTurnFailed(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any())

	loop := assistants.NewLoop(model, tools.NewExecutor(mathtools.NewRegistry()), assistants.WithCallback(cb))
	state, err := loop.Run(ctx, question("two sums"))
	assert.ErrorIs(t, err, context.Canceled)

	// human, ai, first tool message only
	require.Equal(t, 3, state.Len())
	assert.Len(t, state.PendingToolCalls(), 1)
}

func TestLoop_ResumePendingCalls(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)
	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, msgs []llms.Message, _ ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 3)
			assert.Equal(t, llms.RoleTool, msgs[2].Role)
			return respond("√16 = 4"), nil
		})

	restored := chatmodel.NewConversation("s1",
		llms.MessageFromTextParts(llms.RoleHuman, "What is the square root of 16?"),
		llms.MessageFromToolCalls(llms.RoleAI, toolCall("c1", "square_root", `{"number":16}`)),
	)
	loop := assistants.NewLoop(model, tools.NewExecutor(mathtools.NewRegistry()))
	state, err := loop.Run(context.Background(), restored)
	require.NoError(t, err)
	assert.Equal(t, 4, state.Len())
	assert.Equal(t, "√16 = 4", state.FinalAnswer())
}

func TestLoop_RunRecursionLimit(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)
	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(respond("", toolCall("", "add", `{"a":1,"b":1}`)), nil).
		Times(2)

	// the limit of the turn wins over the limiter the model came with
	loop := assistants.NewLoop(llms.NewStepLimiter(model, 10), tools.NewExecutor(mathtools.NewRegistry()))
	state, err := loop.Run(context.Background(), question("loop forever"), assistants.WithRecursionLimit(2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, llms.ErrTurnLimitExceeded))
	assert.Contains(t, err.Error(), "exceeded max model calls: 2")
	// human + 2 * (ai + tool)
	assert.Equal(t, 5, state.Len())

	model.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(respond("", toolCall("", "add", `{"a":1,"b":1}`)), nil).
		Times(1)
	loop = assistants.NewLoop(llms.NewStepLimiter(model, 10), tools.NewExecutor(mathtools.NewRegistry()),
		assistants.WithRecursionLimit(1))
	state, err = loop.Run(context.Background(), question("loop forever"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded max model calls: 1")
	assert.Equal(t, 3, state.Len())
}

func TestLoop_ChatContext(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)
	loop := assistants.NewLoop(model, tools.NewExecutor(mathtools.NewRegistry()))

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext("other", "r1"))
	state, err := loop.Run(ctx, question("What is 2 + 2?"))
	assert.ErrorIs(t, err, chatmodel.ErrInvalidChatContext)
	assert.Equal(t, 1, state.Len())
}

func TestLoop_InvalidState(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := newModel(ctrl)
	loop := assistants.NewLoop(model, tools.NewExecutor(mathtools.NewRegistry()))

	_, err := loop.Run(context.Background(), chatmodel.NewConversation("s1"))
	assert.ErrorIs(t, err, assistants.ErrNoHumanMessage)

	bad := chatmodel.NewConversation("s1",
		llms.MessageFromTextParts(llms.RoleHuman, "hi"),
		llms.MessageFromToolResponse(llms.ToolCallResponse{ToolCallID: "x", Name: "add"}),
	)
	_, err = loop.Run(context.Background(), bad)
	assert.ErrorIs(t, err, chatmodel.ErrInvalidConversation)
}

func TestLoop_Runner(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	runner := mockassistants.NewMockRunner(ctrl)
	runner.EXPECT().Name().Return("mock")
	runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, state *chatmodel.Conversation, _ ...assistants.Option) (*chatmodel.Conversation, error) {
			next := state.Clone()
			next.Add(llms.MessageFromTextParts(llms.RoleAI, "4"))
			return next, nil
		})

	var r assistants.Runner = runner
	assert.Equal(t, "mock", r.Name())
	state, err := r.Run(context.Background(), question("What is 2 + 2?"))
	require.NoError(t, err)
	assert.Equal(t, "4", state.FinalAnswer())
}
