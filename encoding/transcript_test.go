package encoding_test

import (
	"testing"

	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/encoding"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response() *chatmodel.ChatResponse {
	call := llms.ToolCall{
		ID:           "call_1",
		Type:         "function",
		FunctionCall: &llms.FunctionCall{Name: "multiply", Arguments: `{"a":123,"b":456}`},
	}
	return &chatmodel.ChatResponse{
		SessionID: "s1",
		Answer:    "123 × 456 = 56088",
		Messages: []llms.Message{
			llms.MessageFromTextParts(llms.RoleSystem, "You are a helpful math tutor."),
			llms.MessageFromTextParts(llms.RoleHuman, "What is 123 * 456?"),
			llms.MessageFromParts(llms.RoleAI, llms.TextPart("Let me compute."), call),
			llms.MessageFromToolResponse(llms.ToolCallResponse{ToolCallID: "call_1", Name: "multiply", Content: "## Multiplication: 123 × 456\n\n**Final Result:** 56088"}),
			llms.MessageFromTextParts(llms.RoleAI, "123 × 456 = 56088"),
		},
		Events: []chatmodel.Event{
			{Type: chatmodel.EventModelInvoked, ToolCalls: 1, Content: "Let me compute."},
			{Type: chatmodel.EventToolInvoked, Tool: "multiply", ToolCallID: "call_1"},
			{Type: chatmodel.EventModelInvoked},
			{Type: chatmodel.EventTurnComplete, Content: "123 × 456 = 56088"},
		},
	}
}

func TestNewTranscript(t *testing.T) {
	t.Parallel()

	tr := encoding.NewTranscript(response())
	assert.Equal(t, "s1", tr.SessionID)
	require.Len(t, tr.Messages, 5)

	exp := []encoding.Entry{
		{Role: llms.RoleSystem, Text: "You are a helpful math tutor."},
		{Role: llms.RoleHuman, Text: "What is 123 * 456?"},
		{Role: llms.RoleAI, Text: "Let me compute.", ToolCalls: []encoding.Call{{ID: "call_1", Name: "multiply", Arguments: `{"a":123,"b":456}`}}},
		{Role: llms.RoleTool, ToolCallID: "call_1", Tool: "multiply", Text: "## Multiplication: 123 × 456\n\n**Final Result:** 56088"},
		{Role: llms.RoleAI, Text: "123 × 456 = 56088"},
	}
	if diff := cmp.Diff(exp, tr.Messages); diff != "" {
		t.Errorf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestTranscript_Resume(t *testing.T) {
	t.Parallel()

	resp := response()
	for _, mode := range encoding.Modes {
		t.Run(mode, func(t *testing.T) {
			data, err := encoding.Encode(mode, resp)
			require.NoError(t, err)

			tr, err := encoding.Decode(mode, data)
			require.NoError(t, err)
			assert.Equal(t, resp.Answer, tr.Answer)
			assert.Equal(t, resp.Events, tr.Events)

			conv, err := tr.Conversation()
			require.NoError(t, err)
			assert.Equal(t, "s1", conv.SessionID)
			assert.Equal(t, resp.Messages, conv.Messages)
			assert.Equal(t, resp.Answer, conv.FinalAnswer())
		})
	}
}

func TestDecode_Fenced(t *testing.T) {
	t.Parallel()

	js := "Here is the transcript:\n```json\n{\"session_id\":\"s2\",\"answer\":\"5\",\"messages\":[{\"role\":\"human\",\"text\":\"What is 2 + 3?\"}]}\n```\n"
	tr, err := encoding.Decode(encoding.ModeJSON, []byte(js))
	require.NoError(t, err)
	assert.Equal(t, "s2", tr.SessionID)
	require.Len(t, tr.Messages, 1)

	yml := "```yaml\nsession_id: s3\nanswer: \"5\"\nmessages:\n  - role: human\n    text: What is 2 + 3?\n```"
	tr, err = encoding.Decode(encoding.ModeYAML, []byte(yml))
	require.NoError(t, err)
	assert.Equal(t, "s3", tr.SessionID)
	assert.Equal(t, "5", tr.Answer)
}

func TestDecode_Invalid(t *testing.T) {
	t.Parallel()

	_, err := encoding.Decode(encoding.ModeJSON, []byte(`{"answer":"5"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid transcript")

	_, err = encoding.Decode(encoding.ModeJSON, []byte(`{"session_id":"s","messages":[{"role":"robot"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Role")

	_, err = encoding.Decode(encoding.ModeJSON, []byte(`{"session_id":"s","messages":[{"role":"tool","text":"x"}]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ToolCallID")

	_, err = encoding.Decode(encoding.ModeTOML, []byte(`session_id = `))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode transcript")

	// decodes, but the tool message answers no call
	tr, err := encoding.Decode(encoding.ModeJSON, []byte(`{"session_id":"s","messages":[{"role":"tool","tool_call_id":"c9","text":"x"}]}`))
	require.NoError(t, err)
	_, err = tr.Conversation()
	assert.True(t, errors.Is(err, chatmodel.ErrInvalidConversation))
}

func TestNewEncoder(t *testing.T) {
	t.Parallel()

	for mode, ct := range map[string]string{
		"json": "application/json",
		"":     "application/json",
		"YAML": "application/yaml",
		"yml":  "application/yaml",
		"toml": "application/toml",
	} {
		enc, err := encoding.NewEncoder(mode)
		require.NoError(t, err)
		assert.Equal(t, ct, enc.ContentType())
	}

	_, err := encoding.NewEncoder("xml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, encoding.ErrUnsupportedMode))
	assert.Equal(t, `"xml": unsupported encoding`, err.Error())

	assert.Equal(t, encoding.ModeYAML, encoding.ModeFromFilename("chat.YML"))
	assert.Equal(t, encoding.ModeTOML, encoding.ModeFromFilename("/tmp/chat.toml"))
	assert.Equal(t, encoding.ModeJSON, encoding.ModeFromFilename("chat.json"))
	assert.Equal(t, encoding.ModeDefault, encoding.ModeFromFilename("chat.txt"))
}
