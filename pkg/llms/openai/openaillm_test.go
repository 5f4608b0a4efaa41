package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/pkg/schema"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const toolCallsResponse = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-4o-mini",
	"choices": [{
		"index": 0,
		"finish_reason": "tool_calls",
		"logprobs": null,
		"message": {
			"role": "assistant",
			"content": null,
			"refusal": null,
			"tool_calls": [{
				"id": "call_1",
				"type": "function",
				"function": {"name": "multiply", "arguments": "{\"a\":123,\"b\":456}"}
			}]
		}
	}],
	"usage": {"prompt_tokens": 50, "completion_tokens": 10, "total_tokens": 60}
}`

func newTestLLM(t *testing.T, handler http.HandlerFunc, opts ...Option) *LLM {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]Option{
		WithToken("fake-key"),
		WithModel("gpt-4o-mini"),
		WithBaseURL(srv.URL),
		WithMaxRetries(0),
	}, opts...)
	llm, err := New(opts...)
	require.NoError(t, err)
	return llm
}

func TestNew(t *testing.T) {
	t.Setenv(tokenEnvVarName, "")
	t.Setenv(modelEnvVarName, "")

	_, err := New()
	require.ErrorIs(t, err, ErrMissingToken)

	llm, err := New(WithToken("k"))
	require.NoError(t, err)
	assert.Equal(t, DefaultChatModel, llm.GetName())
	assert.Equal(t, llms.ProviderOpenAI, llm.GetProviderType())

	llm, err = New(WithToken("k"), WithProvider(ProviderPerplexity), WithModel("sonar"))
	require.NoError(t, err)
	assert.Equal(t, "sonar", llm.GetName())
	assert.Equal(t, llms.ProviderPerplexity, llm.GetProviderType())
}

func TestGenerateContent_ToolCalls(t *testing.T) {
	t.Parallel()

	var body map[string]any
	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallsResponse))
	})

	params := schema.MustFromAny(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	})

	resp, err := llm.GenerateContent(context.Background(),
		[]llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful math tutor."),
			llms.MessageFromTextParts(llms.RoleHuman, "What is 123 * 456?"),
		},
		llms.WithTools([]llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "multiply", Description: "Multiply", Parameters: params}}}),
		llms.WithParallelToolCalls(false),
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 1)

	c := resp.Choices[0]
	assert.Equal(t, "tool_calls", c.StopReason)
	require.Len(t, c.ToolCalls, 1)
	assert.Equal(t, "call_1", c.ToolCalls[0].ID)
	assert.Equal(t, "multiply", c.ToolCalls[0].Name())
	assert.Equal(t, `{"a":123,"b":456}`, c.ToolCalls[0].Arguments())
	assert.EqualValues(t, 60, c.GenerationInfo["TotalTokens"])

	require.NotNil(t, body)
	assert.Equal(t, false, body["parallel_tool_calls"])
	tools, ok := body["tools"].([]any)
	require.True(t, ok)
	assert.Len(t, tools, 1)
}

func TestGenerateContent_RateLimited(t *testing.T) {
	t.Parallel()

	llm := newTestLLM(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`))
	})

	_, err := llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "hi"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llms.ErrRateLimited))
	assert.True(t, llms.IsFatal(err))
}

func TestToMessages(t *testing.T) {
	t.Parallel()

	msgs, err := ToMessages([]llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "What is 2 + 3?"),
		llms.MessageFromParts(llms.RoleAI,
			llms.TextPart(""),
			llms.ToolCall{ID: "1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "add", Arguments: `{"a":2,"b":3}`}},
		),
		llms.MessageFromToolResponse(llms.ToolCallResponse{ToolCallID: "1", Name: "add", Content: `{"result":5}`}),
		llms.MessageFromTextParts(llms.RoleAI, "5"),
	})
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	require.NotNil(t, msgs[1].OfAssistant)
	require.Len(t, msgs[1].OfAssistant.ToolCalls, 1)
	assert.Equal(t, "1", msgs[1].OfAssistant.ToolCalls[0].OfFunction.ID)
	require.NotNil(t, msgs[2].OfTool)
	assert.Equal(t, "1", msgs[2].OfTool.ToolCallID)

	_, err = ToMessages([]llms.Message{llms.MessageFromTextParts(llms.RoleTool, "bad")})
	require.Error(t, err)
}
