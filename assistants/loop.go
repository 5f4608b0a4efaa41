package assistants

import (
	"context"
	"time"

	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/pkg/llmutils"
	"github.com/CodeSistency/agentTemplate/pkg/metricskey"
	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

// ErrNoHumanMessage is returned when the conversation has nothing to answer
var ErrNoHumanMessage = errors.New("conversation has no human message")

// State is the state of the conversation loop
type State string

const (
	// StateAwaitingModel waits for the next model message
	StateAwaitingModel State = "awaiting_model"
	// StateAwaitingToolExecution executes the tool calls of the last AI message
	StateAwaitingToolExecution State = "awaiting_tool_execution"
	// StateTerminated is reached when the model answered without tool calls
	StateTerminated State = "terminated"
)

// Loop drives the model and the tools until the model produces a final answer.
// A Loop holds no per-turn state and can serve concurrent turns.
type Loop struct {
	llm     llms.Model
	invoker tools.Invoker
	cfg     *Config
	name    string
}

var _ Runner = (*Loop)(nil)

// NewLoop returns a Loop.
// The model is wrapped with llms.StepLimiter unless it already is one.
func NewLoop(llm llms.Model, invoker tools.Invoker, options ...Option) *Loop {
	cfg := NewConfig(options...)
	if _, ok := llm.(*llms.StepLimiter); !ok {
		llm = llms.NewStepLimiter(llm, cfg.RecursionLimit)
	}
	return &Loop{
		llm:     llm,
		invoker: invoker,
		cfg:     cfg,
		name:    "Math Tutor",
	}
}

// WithName sets the name of the agent, used in logs and metrics.
func (l *Loop) WithName(name string) *Loop {
	l.name = name
	return l
}

// Name returns the name of the agent.
func (l *Loop) Name() string {
	return l.name
}

// Ask appends the question as a human message and runs the turn.
func (l *Loop) Ask(ctx context.Context, state *chatmodel.Conversation, question string, opts ...Option) (*chatmodel.Conversation, error) {
	next := state.Clone()
	next.Add(llms.MessageFromTextParts(llms.RoleHuman, question))
	return l.Run(ctx, next, opts...)
}

// Run drives the conversation until the model answers without tool calls.
// The input state is not modified. On failure the partial state reached so far
// is returned together with the error.
func (l *Loop) Run(ctx context.Context, state *chatmodel.Conversation, opts ...Option) (*chatmodel.Conversation, error) {
	started := time.Now()
	defer metricskey.PerfTurnRun.MeasureSince(started, l.name)

	cfg := l.cfg.Apply(opts...)
	turn := llms.TurnFromContext(ctx)
	if turn == nil {
		ctx = llms.WithTurn(ctx)
		turn = llms.TurnFromContext(ctx)
	}
	if cfg.recursionLimitSet {
		turn.SetLimit(cfg.RecursionLimit)
	}

	next := state.Clone()
	err := l.run(ctx, cfg, next)
	if err != nil {
		metricskey.StatsTurnsFailed.IncrCounter(1, l.name)
		logger.ContextKV(ctx, xlog.WARNING,
			"agent", l.name,
			"session", next.SessionID,
			"request_id", chatmodel.GetRequestID(ctx),
			"status", "turn_failed",
			"messages", next.Len(),
			"err", err.Error(),
		)
		if cfg.CallbackHandler != nil {
			cfg.CallbackHandler.OnTurnFailed(ctx, l.name, next, err)
		}
		return next, err
	}

	metricskey.StatsTurnsCompleted.IncrCounter(1, l.name)
	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnTurnComplete(ctx, l.name, next)
	}
	return next, nil
}

func (l *Loop) run(ctx context.Context, cfg *Config, state *chatmodel.Conversation) error {
	if chatCtx := chatmodel.GetChatContext(ctx); chatCtx != nil {
		if err := chatCtx.Check(state); err != nil {
			return err
		}
	}
	if !state.HasHuman() {
		return errors.WithStack(ErrNoHumanMessage)
	}
	if err := state.Validate(); err != nil {
		return err
	}
	if state.EnsureSystemPrompt(cfg.SystemPrompt) {
		logger.ContextKV(ctx, xlog.DEBUG,
			"agent", l.name,
			"session", state.SessionID,
			"status", "system_prompt_added",
		)
	}

	callOpts := cfg.GetCallOptions(
		llms.WithTools(l.invoker.Definitions()),
		llms.WithParallelToolCalls(false),
	)

	// a restored conversation may end with unanswered tool calls
	pending := state.PendingToolCalls()
	current := StateAwaitingModel
	if len(pending) > 0 {
		current = StateAwaitingToolExecution
	}

	for {
		logger.ContextKV(ctx, xlog.DEBUG,
			"agent", l.name,
			"session", state.SessionID,
			"state", current,
			"messages", state.Len(),
		)

		switch current {
		case StateAwaitingModel:
			msg, err := l.invokeModel(ctx, cfg, state, callOpts)
			if err != nil {
				return err
			}
			state.Add(msg)
			if cfg.CallbackHandler != nil {
				cfg.CallbackHandler.OnModelInvoked(ctx, l.name, msg)
			}
			pending = msg.ToolCalls()
			if len(pending) == 0 {
				current = StateTerminated
			} else {
				current = StateAwaitingToolExecution
			}

		case StateAwaitingToolExecution:
			for _, call := range pending {
				msg, out, err := l.invokeTool(ctx, call)
				if err != nil {
					return err
				}
				state.Add(msg)
				if cfg.CallbackHandler != nil {
					cfg.CallbackHandler.OnToolInvoked(ctx, l.name, call, out)
				}
			}
			pending = nil
			current = StateAwaitingModel

		case StateTerminated:
			logger.ContextKV(ctx, xlog.DEBUG,
				"agent", l.name,
				"session", state.SessionID,
				"request_id", chatmodel.GetRequestID(ctx),
				"status", "turn_complete",
				"answer", slices.StringUpto(state.FinalAnswer(), 64),
			)
			return nil
		}
	}
}

// invokeModel asks the model for the next message and converts the response
// into the AI message to append.
func (l *Loop) invokeModel(ctx context.Context, cfg *Config, state *chatmodel.Conversation, callOpts []llms.CallOption) (llms.Message, error) {
	if err := ctx.Err(); err != nil {
		return llms.Message{}, errors.WithStack(err)
	}

	agent := l.name
	modelName := l.llm.GetName()

	if cfg.CallbackHandler != nil {
		cfg.CallbackHandler.OnModelCallStart(ctx, agent, l.llm, state.Messages)
	}

	bytesSent := llmutils.CountMessagesContentSize(state.Messages)
	metricskey.StatsLLMMessagesSent.IncrCounter(float64(state.Len()), agent, modelName)
	metricskey.StatsLLMBytesSent.IncrCounter(float64(bytesSent), agent, modelName)

	started := time.Now()
	resp, err := l.llm.GenerateContent(ctx, state.Messages, callOpts...)
	metricskey.PerfModelCall.MeasureSince(started, agent, modelName)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// the response of a cancelled call is discarded
		metricskey.StatsModelCallsFailed.IncrCounter(1, agent, modelName)
		return llms.Message{}, errors.WithStack(ctxErr)
	}
	if err == nil && (resp == nil || len(resp.Choices) == 0) {
		err = errors.WithStack(llms.ErrEmptyResponse)
	}
	if err != nil {
		metricskey.StatsModelCallsFailed.IncrCounter(1, agent, modelName)
		logger.ContextKV(ctx, xlog.ERROR,
			"agent", agent,
			"model", modelName,
			"status", "model_call_failed",
			"fatal", llms.IsFatal(err),
			"err", err.Error(),
		)
		return llms.Message{}, errors.WithMessagef(err, "assistant %s: failed to generate content", agent)
	}
	metricskey.StatsModelCallsSucceeded.IncrCounter(1, agent, modelName)

	bytesReceived := llmutils.CountResponseContentSize(resp)
	metricskey.StatsLLMBytesReceived.IncrCounter(float64(bytesReceived), agent, modelName)
	metricskey.StatsLLMBytesTotal.IncrCounter(float64(bytesSent+bytesReceived), agent, modelName)

	tokensIn, tokensOut, tokensTotal := llmutils.CountTokens(resp)
	metricskey.StatsLLMInputTokens.IncrCounter(float64(tokensIn), agent, modelName)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(tokensOut), agent, modelName)
	metricskey.StatsLLMTotalTokens.IncrCounter(float64(tokensTotal), agent, modelName)

	choice := resp.Merge()
	seen := map[string]bool{}
	for _, m := range state.Messages {
		for _, tc := range m.ToolCalls() {
			seen[tc.ID] = true
		}
	}
	for i := range choice.ToolCalls {
		tc := &choice.ToolCalls[i]
		if tc.ID == "" || seen[tc.ID] {
			tc.ID = "call_" + uuid.NewString()
		}
		seen[tc.ID] = true
		tc.Type = values.StringsCoalesce(tc.Type, "function")
		if tc.FunctionCall == nil {
			tc.FunctionCall = &llms.FunctionCall{}
		}

		logger.ContextKV(ctx, xlog.DEBUG,
			"agent", agent,
			"status", "tool_call_found",
			"tool_call_id", tc.ID,
			"tool_call_name", tc.Name(),
		)
	}
	return choice.Message(), nil
}

// invokeTool executes one call and returns the tool message answering it
func (l *Loop) invokeTool(ctx context.Context, call llms.ToolCall) (llms.Message, *tools.Output, error) {
	if err := ctx.Err(); err != nil {
		return llms.Message{}, nil, errors.WithStack(err)
	}

	out, err := l.invoker.Invoke(ctx, call)
	if ctxErr := ctx.Err(); ctxErr != nil {
		// the result of a cancelled call is discarded
		return llms.Message{}, nil, errors.WithStack(ctxErr)
	}
	if err != nil {
		return llms.Message{}, nil, errors.WithMessagef(err, "failed to call tool %s", call.Name())
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"agent", l.name,
		"status", "tool_call_response",
		"tool_call_id", call.ID,
		"tool_name", call.Name(),
		"content_length", len(out.Content),
	)

	msg := llms.MessageFromToolResponse(llms.ToolCallResponse{
		ToolCallID: call.ID,
		Name:       call.Name(),
		Content:    out.Content,
	})
	return msg, out, nil
}
