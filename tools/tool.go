package tools

import (
	"context"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/invopop/jsonschema"
)

//go:generate mockgen -source=tool.go -destination=../mocks/mocktools/tools_mock.gen.go -package mocktools

// Tool is a deterministic function the model can invoke by name.
type Tool interface {
	// Name returns the name of the Tool, unique within a registry.
	Name() string
	// Description returns the description of the tool, to be used in the prompt.
	// Should not exceed LLM model limit.
	Description() string
	// Parameters returns the parameters definition of the function, to be used in the prompt.
	// Properties are validated in declaration order before Call.
	Parameters() *jsonschema.Schema

	// Call executes the tool with validated arguments.
	// Domain failures are reported either as an error Result or as *DomainError.
	Call(ctx context.Context, args Arguments) (*Result, error)
}

// Output is the outcome of one tool call as seen by the conversation
type Output struct {
	// Result is nil when the tool response could not be decoded
	Result *Result
	// Content is the text of the tool message
	Content string
}

// Invoker runs tool calls on behalf of the conversation loop.
// Tool failures are absorbed into the Output, the error is returned
// only when the call was not performed because ctx is done.
type Invoker interface {
	// Definitions returns the tool schemas passed to the model
	Definitions() []llms.Tool
	// Invoke runs one tool call
	Invoke(ctx context.Context, call llms.ToolCall) (*Output, error)
}

// Transport calls a tool hosted by a tool server and returns the raw response
type Transport interface {
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// Arguments is the decoded argument object of a tool call
type Arguments map[string]any

// Number returns the numeric argument, or 0 when absent or not a number
func (a Arguments) Number(name string) float64 {
	v, _ := toFloat(a[name])
	return v
}

// String returns the string argument, or empty when absent or not a string
func (a Arguments) String(name string) string {
	s, _ := a[name].(string)
	return s
}
