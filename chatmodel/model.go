package chatmodel

import (
	"encoding/json"
	"strings"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/cockroachdb/errors"
	"github.com/invopop/jsonschema"
)

var (
	// ErrInvalidChatContext is returned when the context has no chat
	ErrInvalidChatContext = errors.New("invalid chat context")
	// ErrFailedUnmarshalInput is returned when the request can not be decoded
	ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")
	// ErrInvalidConversation is returned when the message log breaks the tool call pairing
	ErrInvalidConversation = errors.New("invalid conversation")
)

// ChatRequest is one user turn sent to the agent
type ChatRequest struct {
	// SessionID identifies the conversation, a new session is started when empty
	SessionID string `json:"session_id,omitempty" yaml:"session_id,omitempty" jsonschema:"description=The conversation session ID"`
	// Message is the user question
	Message string `json:"message" yaml:"message" validate:"required" jsonschema:"description=The user question"`
}

func (r *ChatRequest) ParseInput(raw string) error {
	if err := json.Unmarshal([]byte(raw), r); err != nil {
		return errors.Mark(errors.WithStack(err), ErrFailedUnmarshalInput)
	}
	r.Message = strings.TrimSpace(r.Message)
	if r.Message == "" {
		return errors.WithMessage(ErrFailedUnmarshalInput, "message is required")
	}
	return nil
}

func (ChatRequest) JSONSchemaExtend(schema *jsonschema.Schema) {
	schema.Title = "Chat Request"
}

// ChatResponse is the outcome of one user turn
type ChatResponse struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	// Answer is the text of the final AI message
	Answer string `json:"answer" yaml:"answer"`
	// Messages is the full conversation after the turn
	Messages []llms.Message `json:"messages,omitempty" yaml:"-"`
	// Events are the loop transitions of the turn
	Events []Event `json:"events,omitempty" yaml:"events,omitempty"`
	// Error is set when the turn failed, Messages then hold the partial state
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// EventType is the kind of a conversation loop transition
type EventType string

const (
	EventModelInvoked EventType = "model-invoked"
	EventToolInvoked  EventType = "tool-invoked"
	EventTurnComplete EventType = "turn-complete"
	EventTurnFailed   EventType = "turn-failed"
)

// Event is a transition of the conversation loop as seen by observers
type Event struct {
	Type EventType `json:"type" yaml:"type" toml:"type"`
	// Tool and ToolCallID are set for tool-invoked
	Tool       string `json:"tool,omitempty" yaml:"tool,omitempty" toml:"tool,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty" toml:"tool_call_id,omitempty"`
	// ToolCalls is the number of calls requested by the model, for model-invoked
	ToolCalls int `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty" toml:"tool_calls,omitempty"`
	// Content is the tool message content or the final answer
	Content string `json:"content,omitempty" yaml:"content,omitempty" toml:"content,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty"`
}
