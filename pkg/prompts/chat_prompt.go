package prompts

import (
	"strings"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/pkg/llmutils"
)

// ChatPromptValue is a prompt value that is a list of chat messages.
type ChatPromptValue []llms.Message

// String returns the chat message slice as a buffer string.
func (v ChatPromptValue) String() string {
	var buf strings.Builder
	llmutils.PrintMessages(&buf, v)
	return buf.String()
}

// Messages returns the ChatMessage slice.
func (v ChatPromptValue) Messages() []llms.Message {
	return v
}

// MessageFormatter renders one message of a chat prompt
type MessageFormatter interface {
	FormatMessage(values map[string]any) (llms.Message, error)
	GetInputVariables() []string
}

// MessagePromptTemplate is a PromptTemplate bound to a role
type MessagePromptTemplate struct {
	Role   llms.Role
	Prompt PromptTemplate
}

// NewSystemMessagePromptTemplate returns a system message template
func NewSystemMessagePromptTemplate(tmpl string, inputVars []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleSystem, Prompt: NewPromptTemplate(tmpl, inputVars)}
}

// NewHumanMessagePromptTemplate returns a human message template
func NewHumanMessagePromptTemplate(tmpl string, inputVars []string) MessagePromptTemplate {
	return MessagePromptTemplate{Role: llms.RoleHuman, Prompt: NewPromptTemplate(tmpl, inputVars)}
}

func (m MessagePromptTemplate) FormatMessage(values map[string]any) (llms.Message, error) {
	text, err := m.Prompt.Format(values)
	if err != nil {
		return llms.Message{}, err
	}
	return llms.MessageFromTextParts(m.Role, text), nil
}

func (m MessagePromptTemplate) GetInputVariables() []string {
	return m.Prompt.GetInputVariables()
}

// ChatPromptTemplate renders a list of messages
type ChatPromptTemplate struct {
	Messages []MessageFormatter
}

// NewChatPromptTemplate returns a ChatPromptTemplate
func NewChatPromptTemplate(messages []MessageFormatter) ChatPromptTemplate {
	return ChatPromptTemplate{Messages: messages}
}

// FormatPrompt renders every message in order
func (c ChatPromptTemplate) FormatPrompt(values map[string]any) (ChatPromptValue, error) {
	res := make(ChatPromptValue, 0, len(c.Messages))
	for _, m := range c.Messages {
		msg, err := m.FormatMessage(values)
		if err != nil {
			return nil, err
		}
		res = append(res, msg)
	}
	return res, nil
}

// GetInputVariables returns the union of the message input variables
func (c ChatPromptTemplate) GetInputVariables() []string {
	var vars []string
	seen := map[string]bool{}
	for _, m := range c.Messages {
		for _, v := range m.GetInputVariables() {
			if !seen[v] {
				seen[v] = true
				vars = append(vars, v)
			}
		}
	}
	return vars
}
