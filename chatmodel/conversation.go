package chatmodel

import (
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/cockroachdb/errors"
)

// Append returns a new slice with b after a.
// It is total and associative, the inputs are never modified or aliased.
func Append(a, b []llms.Message) []llms.Message {
	res := make([]llms.Message, 0, len(a)+len(b))
	res = append(res, a...)
	return append(res, b...)
}

// Conversation is the ordered, append-only message log of one session.
// It is owned by a single loop run and is not safe for concurrent use.
type Conversation struct {
	SessionID string         `json:"session_id" yaml:"session_id"`
	Messages  []llms.Message `json:"messages" yaml:"messages"`
}

// NewConversation returns a conversation with the messages,
// a new session ID is generated when sessionID is empty.
func NewConversation(sessionID string, msgs ...llms.Message) *Conversation {
	if sessionID == "" {
		sessionID = NewChatID()
	}
	return &Conversation{
		SessionID: sessionID,
		Messages:  Append(nil, msgs),
	}
}

// Add appends the messages
func (c *Conversation) Add(msgs ...llms.Message) {
	c.Messages = Append(c.Messages, msgs)
}

// Len returns the number of messages
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// Clone returns a copy that does not share the message slice
func (c *Conversation) Clone() *Conversation {
	return &Conversation{
		SessionID: c.SessionID,
		Messages:  Append(nil, c.Messages),
	}
}

// Last returns the last message
func (c *Conversation) Last() (llms.Message, bool) {
	if len(c.Messages) == 0 {
		return llms.Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// HasSystem returns true if a system message is present
func (c *Conversation) HasSystem() bool {
	for _, m := range c.Messages {
		if m.Role == llms.RoleSystem {
			return true
		}
	}
	return false
}

// HasHuman returns true if a human message is present
func (c *Conversation) HasHuman() bool {
	for _, m := range c.Messages {
		if m.Role == llms.RoleHuman {
			return true
		}
	}
	return false
}

// EnsureSystemPrompt prepends the system prompt when no system message is present.
// It returns true if the prompt was added.
func (c *Conversation) EnsureSystemPrompt(prompt string) bool {
	if prompt == "" || c.HasSystem() {
		return false
	}
	c.Messages = Append([]llms.Message{llms.MessageFromTextParts(llms.RoleSystem, prompt)}, c.Messages)
	return true
}

// FinalAnswer returns the text of the last AI message without tool calls
func (c *Conversation) FinalAnswer() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		m := c.Messages[i]
		if m.Role == llms.RoleAI && len(m.ToolCalls()) == 0 {
			return m.Text()
		}
	}
	return ""
}

// PendingToolCalls returns the tool calls that have no tool message yet
func (c *Conversation) PendingToolCalls() []llms.ToolCall {
	var pending []llms.ToolCall
	answered := map[string]bool{}
	for _, m := range c.Messages {
		if tr, ok := m.ToolResponse(); ok && m.Role == llms.RoleTool {
			answered[tr.ToolCallID] = true
		}
	}
	for _, m := range c.Messages {
		if m.Role != llms.RoleAI {
			continue
		}
		for _, tc := range m.ToolCalls() {
			if !answered[tc.ID] {
				pending = append(pending, tc)
			}
		}
	}
	return pending
}

// Validate checks that every tool message answers exactly one preceding
// unanswered tool call and that tool calls are only requested by AI messages.
func (c *Conversation) Validate() error {
	open := map[string]bool{}
	seen := map[string]bool{}
	for i, m := range c.Messages {
		switch m.Role {
		case llms.RoleAI:
			for _, tc := range m.ToolCalls() {
				if tc.ID == "" || seen[tc.ID] {
					return errors.Wrapf(ErrInvalidConversation, "message %d: duplicate or empty tool call id %q", i, tc.ID)
				}
				seen[tc.ID] = true
				open[tc.ID] = true
			}
		case llms.RoleTool:
			tr, ok := m.ToolResponse()
			if !ok {
				return errors.Wrapf(ErrInvalidConversation, "message %d: tool message without response", i)
			}
			if !open[tr.ToolCallID] {
				return errors.Wrapf(ErrInvalidConversation, "message %d: no pending tool call %q", i, tr.ToolCallID)
			}
			delete(open, tr.ToolCallID)
		case llms.RoleSystem, llms.RoleHuman:
			if len(m.ToolCalls()) > 0 {
				return errors.Wrapf(ErrInvalidConversation, "message %d: tool calls in %s message", i, m.Role)
			}
		default:
			return errors.Wrapf(llms.ErrUnexpectedRole, "message %d: %q", i, m.Role)
		}
	}
	return nil
}
