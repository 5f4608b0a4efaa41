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

// TransportInvoker runs tool calls through a Transport.
// The server addresses tools as "<server>.<tool>".
type TransportInvoker struct {
	transport Transport
	server    string
	defs      []llms.Tool
}

var _ Invoker = (*TransportInvoker)(nil)

// NewTransportInvoker returns an Invoker that forwards calls to the server,
// defs are the schemas advertised to the model.
func NewTransportInvoker(transport Transport, server string, defs []llms.Tool) *TransportInvoker {
	return &TransportInvoker{
		transport: transport,
		server:    server,
		defs:      defs,
	}
}

// Definitions returns the advertised tool schemas
func (t *TransportInvoker) Definitions() []llms.Tool {
	return t.defs
}

// QualifiedName returns the server side name of the tool
func (t *TransportInvoker) QualifiedName(name string) string {
	if t.server == "" {
		return name
	}
	return t.server + "." + name
}

// Invoke calls the tool on the server.
// Transport failures and undecodable responses are passed to the model as text.
func (t *TransportInvoker) Invoke(ctx context.Context, call llms.ToolCall) (*Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	name := call.Name()
	args, err := DecodeArguments(call.Arguments())
	if err != nil {
		return &Output{Content: fmt.Sprintf("Error calling tool %s: %s", name, err.Error())}, nil
	}

	started := time.Now()
	raw, err := t.transport.CallTool(ctx, t.QualifiedName(name), args)
	metricskey.PerfToolCall.MeasureSince(started, name)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.WithStack(ctxErr)
		}
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		logger.ContextKV(ctx, xlog.WARNING,
			"status", "transport_failed",
			"tool", name,
			"err", err.Error(),
		)
		return &Output{Content: fmt.Sprintf("Error calling tool %s: %s", name, err.Error())}, nil
	}

	res, err := ParseResult(raw)
	if err != nil {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
		return &Output{Content: "Tool response could not be parsed: " + raw}, nil
	}

	if res.Failed() {
		metricskey.StatsToolCallsFailed.IncrCounter(1, name)
	} else {
		metricskey.StatsToolCallsSucceeded.IncrCounter(1, name)
	}
	return &Output{
		Result:  res,
		Content: FormatResult(name, res),
	}, nil
}
