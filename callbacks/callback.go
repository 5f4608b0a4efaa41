package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/CodeSistency/agentTemplate/assistants"
	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ assistants.Callback = (*Noop)(nil)
	_ assistants.Callback = (*Printer)(nil)
	_ assistants.Callback = (*PackageLogger)(nil)
	_ assistants.Callback = (*Fanout)(nil)
)

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	callbacks []assistants.Callback
}

func NewFanout(callbacks ...assistants.Callback) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback assistants.Callback) {
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) OnModelCallStart(ctx context.Context, agent string, llm llms.Model, messages []llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnModelCallStart(ctx, agent, llm, messages)
	}
}

func (l *Fanout) OnModelInvoked(ctx context.Context, agent string, msg llms.Message) {
	for _, callback := range l.callbacks {
		callback.OnModelInvoked(ctx, agent, msg)
	}
}

func (l *Fanout) OnToolInvoked(ctx context.Context, agent string, call llms.ToolCall, out *tools.Output) {
	for _, callback := range l.callbacks {
		callback.OnToolInvoked(ctx, agent, call, out)
	}
}

func (l *Fanout) OnTurnComplete(ctx context.Context, agent string, state *chatmodel.Conversation) {
	for _, callback := range l.callbacks {
		callback.OnTurnComplete(ctx, agent, state)
	}
}

func (l *Fanout) OnTurnFailed(ctx context.Context, agent string, state *chatmodel.Conversation, err error) {
	for _, callback := range l.callbacks {
		callback.OnTurnFailed(ctx, agent, state, err)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnModelCallStart(context.Context, string, llms.Model, []llms.Message) {}
func (l *Noop) OnModelInvoked(context.Context, string, llms.Message)                 {}
func (l *Noop) OnToolInvoked(context.Context, string, llms.ToolCall, *tools.Output)  {}
func (l *Noop) OnTurnComplete(context.Context, string, *chatmodel.Conversation)      {}
func (l *Noop) OnTurnFailed(context.Context, string, *chatmodel.Conversation, error) {}

// Printer is a callback handler that prints to the Writer.
type Printer struct {
	Out  io.Writer
	Mode Mode

	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{Out: out, Mode: mode}
}

func (l *Printer) OnModelCallStart(ctx context.Context, agent string, llm llms.Model, messages []llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Model Call: %s: %s model, %d messages\n", agent, llm.GetName(), len(messages))
}

func (l *Printer) OnModelInvoked(ctx context.Context, agent string, msg llms.Message) {
	l.lock.Lock()
	defer l.lock.Unlock()
	calls := msg.ToolCalls()
	fmt.Fprintf(l.Out, "Model Invoked: %s: %d tool calls\n", agent, len(calls))
	if l.Mode == ModeVerbose {
		if text := msg.Text(); text != "" {
			fmt.Fprintln(l.Out, text)
		}
		for _, tc := range calls {
			fmt.Fprintf(l.Out, "  - %s\n", tc.String())
		}
	}
}

func (l *Printer) OnToolInvoked(ctx context.Context, agent string, call llms.ToolCall, out *tools.Output) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Tool Invoked: %s (%s)\n", call.Name(), agent)
	if l.Mode == ModeVerbose {
		fmt.Fprintf(l.Out, "Input: %s\n", call.Arguments())
		fmt.Fprintf(l.Out, "Output: %s\n", out.Content)
	}
}

func (l *Printer) OnTurnComplete(ctx context.Context, agent string, state *chatmodel.Conversation) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Turn Complete: %s: %d messages\n", agent, state.Len())
	if l.Mode == ModeVerbose {
		fmt.Fprintln(l.Out, state.FinalAnswer())
	}
}

func (l *Printer) OnTurnFailed(ctx context.Context, agent string, state *chatmodel.Conversation, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Turn Failed: %s: %s\n", agent, err.Error())
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnModelCallStart(ctx context.Context, agent string, llm llms.Model, messages []llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "model_call_start",
		"assistant", agent,
		"model", llm.GetName(),
		"messages", len(messages),
	)
}

func (l *PackageLogger) OnModelInvoked(ctx context.Context, agent string, msg llms.Message) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", string(chatmodel.EventModelInvoked),
		"assistant", agent,
		"tool_calls", len(msg.ToolCalls()),
		"text", slices.StringUpto(msg.Text(), 64),
	)
}

func (l *PackageLogger) OnToolInvoked(ctx context.Context, agent string, call llms.ToolCall, out *tools.Output) {
	failed := out.Result == nil || out.Result.Failed()
	level := xlog.DEBUG
	if failed {
		level = xlog.WARNING
	}
	l.logger.ContextKV(ctx, level,
		"event", string(chatmodel.EventToolInvoked),
		"assistant", agent,
		"request_id", chatmodel.GetRequestID(ctx),
		"tool", call.Name(),
		"tool_call_id", call.ID,
		"failed", failed,
		"output", slices.StringUpto(out.Content, 128),
	)
}

func (l *PackageLogger) OnTurnComplete(ctx context.Context, agent string, state *chatmodel.Conversation) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", string(chatmodel.EventTurnComplete),
		"assistant", agent,
		"session", state.SessionID,
		"request_id", chatmodel.GetRequestID(ctx),
		"messages", state.Len(),
	)
}

func (l *PackageLogger) OnTurnFailed(ctx context.Context, agent string, state *chatmodel.Conversation, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", string(chatmodel.EventTurnFailed),
		"assistant", agent,
		"session", state.SessionID,
		"request_id", chatmodel.GetRequestID(ctx),
		"messages", state.Len(),
		"err", err.Error(),
	)
}
