package anthropic_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/pkg/llms/anthropic"
	"github.com/CodeSistency/agentTemplate/pkg/schema"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Setenv(anthropic.TokenEnvVarName, "")

	tests := []struct {
		name        string
		opts        []anthropic.Option
		errContains string
	}{
		{
			name:        "missing token",
			opts:        []anthropic.Option{anthropic.WithModel("claude-3-5-sonnet-20241022")},
			errContains: "missing API key",
		},
		{
			name:        "missing model",
			opts:        []anthropic.Option{anthropic.WithToken("fake-token")},
			errContains: "model is required",
		},
		{
			name: "valid configuration",
			opts: []anthropic.Option{
				anthropic.WithToken("fake-token"),
				anthropic.WithModel("claude-3-5-sonnet-20241022"),
				anthropic.WithBaseURL("https://custom.anthropic.com"),
				anthropic.WithHTTPClient(&http.Client{}),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allm, err := anthropic.New(tt.opts...)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				assert.Nil(t, allm)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, allm.Client)
			assert.Equal(t, "claude-3-5-sonnet-20241022", allm.GetName())
			assert.Equal(t, llms.ProviderAnthropic, allm.GetProviderType())
		})
	}
}

func TestProcessMessages(t *testing.T) {
	t.Parallel()

	call := func(id string) llms.ToolCall {
		return llms.ToolCall{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: "add", Arguments: `{"a":1,"b":2}`},
		}
	}

	tests := []struct {
		name         string
		messages     []llms.Message
		wantMessages int
		wantSystem   string
		errContains  string
	}{
		{
			name:         "empty messages",
			messages:     []llms.Message{},
			wantMessages: 0,
		},
		{
			name: "multiple system messages",
			messages: []llms.Message{
				llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful math tutor."),
				llms.MessageFromTextParts(llms.RoleSystem, "Show your work."),
			},
			wantSystem: "You are a helpful math tutor.\nShow your work.",
		},
		{
			name: "tool results are folded",
			messages: []llms.Message{
				llms.MessageFromTextParts(llms.RoleHuman, "add twice"),
				llms.MessageFromParts(llms.RoleAI, llms.TextPart(""), call("1"), call("2")),
				llms.MessageFromToolResponse(llms.ToolCallResponse{ToolCallID: "1", Name: "add", Content: "3"}),
				llms.MessageFromToolResponse(llms.ToolCallResponse{ToolCallID: "2", Name: "add", Content: "3"}),
				llms.MessageFromTextParts(llms.RoleAI, "Both are 3."),
			},
			wantMessages: 4,
		},
		{
			name: "tool message with text",
			messages: []llms.Message{
				llms.MessageFromTextParts(llms.RoleTool, "oops"),
			},
			errContains: "invalid content type",
		},
		{
			name: "ai message without content",
			messages: []llms.Message{
				llms.MessageFromParts(llms.RoleAI, llms.TextPart("")),
			},
			errContains: "no valid content in AI message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			messages, system, err := anthropic.ProcessMessages(tt.messages)
			if tt.errContains != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
				return
			}
			require.NoError(t, err)
			assert.Len(t, messages, tt.wantMessages)
			assert.Equal(t, tt.wantSystem, system)
		})
	}
}

func TestToTools(t *testing.T) {
	t.Parallel()

	type binaryArgs struct {
		A float64 `json:"a" jsonschema:"description=First operand"`
		B float64 `json:"b" jsonschema:"description=Second operand"`
	}
	sc, err := schema.New(reflect.TypeOf(binaryArgs{}))
	require.NoError(t, err)

	assert.Nil(t, anthropic.ToTools(nil))

	tools := anthropic.ToTools([]llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        "add",
				Description: "Add two numbers",
				Parameters:  sc.Parameters,
			},
		},
		{Type: "function"},
	})
	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "add", tools[0].OfTool.Name)
	assert.Equal(t, []string{"a", "b"}, tools[0].OfTool.InputSchema.Required)
	assert.Len(t, tools[0].OfTool.InputSchema.Properties, 2)
}

const toolUseResponse = `{
	"id": "msg_01",
	"type": "message",
	"role": "assistant",
	"model": "claude-3-5-sonnet-20241022",
	"content": [
		{"type": "text", "text": "I'll multiply these."},
		{"type": "tool_use", "id": "toolu_01", "name": "multiply", "input": {"a": 123, "b": 456}}
	],
	"stop_reason": "tool_use",
	"stop_sequence": null,
	"usage": {"input_tokens": 42, "output_tokens": 17}
}`

func TestGenerateContent(t *testing.T) {
	t.Parallel()

	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolUseResponse))
	}))
	defer srv.Close()

	llm, err := anthropic.New(
		anthropic.WithToken("fake-token"),
		anthropic.WithModel("claude-3-5-sonnet-20241022"),
		anthropic.WithBaseURL(srv.URL),
		anthropic.WithMaxRetries(0),
	)
	require.NoError(t, err)

	type binaryArgs struct {
		A float64 `json:"a"`
		B float64 `json:"b"`
	}
	sc, err := schema.New(reflect.TypeOf(binaryArgs{}))
	require.NoError(t, err)

	resp, err := llm.GenerateContent(context.Background(),
		[]llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful math tutor."),
			llms.MessageFromTextParts(llms.RoleHuman, "What is 123 * 456?"),
		},
		llms.WithTools([]llms.Tool{{Type: "function", Function: &llms.FunctionDefinition{Name: "multiply", Parameters: sc.Parameters}}}),
		llms.WithParallelToolCalls(false),
	)
	require.NoError(t, err)
	require.Len(t, resp.Choices, 2)

	choice := resp.Merge()
	assert.Equal(t, "I'll multiply these.", choice.Content)
	require.Len(t, choice.ToolCalls, 1)
	assert.Equal(t, "toolu_01", choice.ToolCalls[0].ID)
	assert.Equal(t, "multiply", choice.ToolCalls[0].Name())
	assert.JSONEq(t, `{"a":123,"b":456}`, choice.ToolCalls[0].Arguments())

	require.NotNil(t, body)
	tc, ok := body["tool_choice"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "auto", tc["type"])
	assert.Equal(t, true, tc["disable_parallel_tool_use"])
}

func TestGenerateContent_RateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	llm, err := anthropic.New(
		anthropic.WithToken("fake-token"),
		anthropic.WithModel("claude-3-5-sonnet-20241022"),
		anthropic.WithBaseURL(srv.URL),
		anthropic.WithMaxRetries(0),
	)
	require.NoError(t, err)

	_, err = llm.GenerateContent(context.Background(), []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "hi"),
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llms.ErrRateLimited))
}
