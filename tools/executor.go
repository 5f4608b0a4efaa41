package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/pkg/metricskey"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/CodeSistency/agentTemplate", "tools")

// Executor runs tool calls against a registry in process
type Executor struct {
	registry *Registry
}

var _ Invoker = (*Executor)(nil)

// NewExecutor returns an Executor for the registry
func NewExecutor(registry *Registry) *Executor {
	return &Executor{registry: registry}
}

// Definitions returns the registry tool schemas
func (e *Executor) Definitions() []llms.Tool {
	return e.registry.Definitions()
}

// Invoke executes the call and renders the tool message content
func (e *Executor) Invoke(ctx context.Context, call llms.ToolCall) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	res := e.Execute(ctx, call.Name(), call.Arguments())
	return &Output{
		Result:  res,
		Content: FormatResult(call.Name(), res),
	}, nil
}

// Execute looks up, validates and runs the tool.
// It never returns nil and never panics, every failure is an error Result.
func (e *Executor) Execute(ctx context.Context, name, rawArgs string) *Result {
	tool, err := e.registry.Lookup(name)
	if err != nil {
		metricskey.StatsToolCallsNotFound.IncrCounter(1, name)
		var unknown *UnknownToolError
		if errors.As(err, &unknown) {
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "tool_not_found",
				"tool", name,
				"suggestions", unknown.Suggestions,
			)
		}
		return ErrorResult(name, err)
	}

	args, err := DecodeArguments(rawArgs)
	if err == nil {
		err = ValidateArguments(tool.Parameters(), args)
	}
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "invalid_arguments",
			"tool", name,
			"err", err.Error(),
		)
		var verr *ValidationError
		if errors.As(err, &verr) {
			return ErrorResult(name, verr)
		}
		return ErrorResult(name, err)
	}

	started := time.Now()
	res, err := safeCall(ctx, tool, args)
	metricskey.PerfToolCall.MeasureSince(started, name)

	if err == nil && res == nil {
		err = errors.New("no result")
	}
	if err == nil {
		if v, ok := res.Number(); ok && !IsFinite(v) {
			err = NewDomainError("Result is not a finite number")
		}
	}
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)

		var derr *DomainError
		var verr *ValidationError
		switch {
		case errors.As(err, &derr):
			return ErrorResult(name, derr)
		case errors.As(err, &verr):
			return ErrorResult(name, verr)
		}

		logger.ContextKV(ctx, xlog.ERROR,
			"status", "tool_failed",
			"tool", name,
			"err", err.Error(),
		)
		return ErrorResult(name, errors.Newf("error calling tool %s: %s", name, err.Error()))
	}

	if res.Failed() {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
	} else {
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	}
	return res
}

func safeCall(ctx context.Context, tool Tool, args Arguments) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = errors.Newf("panic: %s", fmt.Sprint(r))
		}
	}()
	return tool.Call(ctx, args)
}
