package assistants

import (
	"context"

	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/CodeSistency/agentTemplate", "assistants")

//go:generate mockgen -source=assistants.go -destination=../mocks/mockassistants/assistants_mock.gen.go -package mockassistants

// Callback receives the transitions of a conversation turn.
// Callbacks are invoked on the goroutine running the turn.
type Callback interface {
	// OnModelCallStart is called before the model is asked for the next message
	OnModelCallStart(ctx context.Context, agent string, llm llms.Model, messages []llms.Message)
	// OnModelInvoked is called with the AI message appended for the model response
	OnModelInvoked(ctx context.Context, agent string, msg llms.Message)
	// OnToolInvoked is called after the tool message for the call was appended
	OnToolInvoked(ctx context.Context, agent string, call llms.ToolCall, out *tools.Output)
	// OnTurnComplete is called with the final state when the model answered without tool calls
	OnTurnComplete(ctx context.Context, agent string, state *chatmodel.Conversation)
	// OnTurnFailed is called with the partial state when the turn was aborted
	OnTurnFailed(ctx context.Context, agent string, state *chatmodel.Conversation, err error)
}

// Runner runs one conversation turn
type Runner interface {
	// Name returns the agent name
	Name() string
	// Run drives the conversation until the model answers without tool calls
	Run(ctx context.Context, state *chatmodel.Conversation, opts ...Option) (*chatmodel.Conversation, error)
}
