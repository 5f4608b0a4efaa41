package encoding

import (
	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/cockroachdb/errors"
)

// Transcript is the portable form of a chat turn,
// flat enough for every supported format.
type Transcript struct {
	SessionID string            `json:"session_id" yaml:"session_id" toml:"session_id" validate:"required" comment:"Conversation session ID"`
	Answer    string            `json:"answer" yaml:"answer" toml:"answer" comment:"Final answer"`
	Error     string            `json:"error,omitempty" yaml:"error,omitempty" toml:"error,omitempty" comment:"Set when the turn failed"`
	Messages  []Entry           `json:"messages" yaml:"messages" toml:"messages" validate:"dive" comment:"Conversation log"`
	Events    []chatmodel.Event `json:"events,omitempty" yaml:"events,omitempty" toml:"events,omitempty" comment:"Loop transitions of the turn"`
}

// Entry is one message of the transcript
type Entry struct {
	Role       llms.Role `json:"role" yaml:"role" toml:"role" validate:"required,oneof=system human ai tool"`
	Text       string    `json:"text,omitempty" yaml:"text,omitempty" toml:"text,omitempty"`
	ToolCalls  []Call    `json:"tool_calls,omitempty" yaml:"tool_calls,omitempty" toml:"tool_calls,omitempty" validate:"dive"`
	ToolCallID string    `json:"tool_call_id,omitempty" yaml:"tool_call_id,omitempty" toml:"tool_call_id,omitempty" validate:"required_if=Role tool"`
	Tool       string    `json:"tool,omitempty" yaml:"tool,omitempty" toml:"tool,omitempty"`
}

// Call is a tool call requested by the model
type Call struct {
	ID        string `json:"id" yaml:"id" toml:"id" validate:"required"`
	Name      string `json:"name" yaml:"name" toml:"name" validate:"required"`
	Arguments string `json:"arguments" yaml:"arguments" toml:"arguments"`
}

// NewTranscript returns the transcript of the response
func NewTranscript(resp *chatmodel.ChatResponse) *Transcript {
	t := &Transcript{
		SessionID: resp.SessionID,
		Answer:    resp.Answer,
		Error:     resp.Error,
		Events:    resp.Events,
		Messages:  make([]Entry, 0, len(resp.Messages)),
	}
	for _, m := range resp.Messages {
		t.Messages = append(t.Messages, NewEntry(m))
	}
	return t
}

// NewEntry returns the transcript entry of the message
func NewEntry(m llms.Message) Entry {
	e := Entry{
		Role: m.Role,
		Text: m.Text(),
	}
	for _, tc := range m.ToolCalls() {
		e.ToolCalls = append(e.ToolCalls, Call{
			ID:        tc.ID,
			Name:      tc.Name(),
			Arguments: tc.Arguments(),
		})
	}
	if tr, ok := m.ToolResponse(); ok {
		e.ToolCallID = tr.ToolCallID
		e.Tool = tr.Name
		e.Text = tr.Content
	}
	return e
}

// Message returns the conversation message of the entry
func (e Entry) Message() llms.Message {
	if e.Role == llms.RoleTool {
		return llms.MessageFromToolResponse(llms.ToolCallResponse{
			ToolCallID: e.ToolCallID,
			Name:       e.Tool,
			Content:    e.Text,
		})
	}

	var parts []llms.ContentPart
	if e.Text != "" {
		parts = append(parts, llms.TextPart(e.Text))
	}
	for _, c := range e.ToolCalls {
		parts = append(parts, llms.ToolCall{
			ID:           c.ID,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: c.Name, Arguments: c.Arguments},
		})
	}
	return llms.MessageFromParts(e.Role, parts...)
}

// Conversation rebuilds the conversation, the message log must be valid
// to be resumed.
func (t *Transcript) Conversation() (*chatmodel.Conversation, error) {
	msgs := make([]llms.Message, 0, len(t.Messages))
	for _, e := range t.Messages {
		msgs = append(msgs, e.Message())
	}
	conv := chatmodel.NewConversation(t.SessionID, msgs...)
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	return conv, nil
}

// Encode renders the response in the format
func Encode(mode Mode, resp *chatmodel.ChatResponse) ([]byte, error) {
	enc, err := NewEncoder(mode)
	if err != nil {
		return nil, err
	}
	return enc.Marshal(NewTranscript(resp))
}

// Decode parses and validates a transcript in the format
func Decode(mode Mode, data []byte) (*Transcript, error) {
	enc, err := NewEncoder(mode)
	if err != nil {
		return nil, err
	}
	var t Transcript
	if err = enc.Unmarshal(data, &t); err != nil {
		return nil, errors.WithMessage(err, "failed to decode transcript")
	}
	if v, ok := enc.(Validator); ok {
		if err = v.Validate(&t); err != nil {
			return nil, errors.WithMessage(err, "invalid transcript")
		}
	}
	return &t, nil
}
