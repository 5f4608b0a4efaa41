package callbacks

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/CodeSistency/agentTemplate/assistants"
	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/pkg/llmutils"
	"github.com/CodeSistency/agentTemplate/tools"
)

// ensure Scratchpad implements assistants.Callback
var _ assistants.Callback = (*Scratchpad)(nil)

var TimeNowFn = time.Now

type RunStats struct {
	ChatID string

	Duration            time.Duration
	TotalMessages       uint32
	LLMBytesOut         uint64
	LLMBytesIn          uint64
	ModelCalls          uint32
	TurnsCompleted      uint32
	TurnsFailed         uint32
	ToolsCalls          uint32
	ToolsCallsSucceeded uint32
	ToolsCallsFailed    uint32
}

// Scratchpad keeps a timestamped transcript and stats of the runs,
// one run per chat ID found in the context.
type Scratchpad struct {
	runs map[string]*run
	mode Mode
	lock sync.Mutex
}

func NewScratchpad(mode Mode) *Scratchpad {
	return &Scratchpad{
		runs: make(map[string]*run),
		mode: mode,
	}
}

func (l *Scratchpad) StartRun(ctx context.Context) {
	chatID := chatmodel.GetSessionID(ctx)
	if chatID == "" {
		return
	}

	r := &run{
		stats: RunStats{
			ChatID: chatID,
		},
		chatID:  chatID,
		started: time.Now(),
	}

	l.lock.Lock()
	l.runs[chatID] = r
	l.lock.Unlock()

	r.print("*** Run Started ***")
}

func (l *Scratchpad) EndRun(ctx context.Context) (*RunStats, []byte) {
	run := l.getRun(ctx)
	if run == nil {
		return nil, nil
	}

	stats := run.stats
	stats.Duration = time.Since(run.started)

	run.print(fmt.Sprintf("Turns completed: %d, Failed: %d",
		stats.TurnsCompleted,
		stats.TurnsFailed,
	))
	run.print(fmt.Sprintf("Tool calls: %d, Failed: %d",
		stats.ToolsCalls,
		stats.ToolsCallsFailed,
	))
	run.print(fmt.Sprintf("Model calls: %d, Messages: %d, Bytes Out: %d, Bytes In: %d, Bytes Total: %d",
		stats.ModelCalls,
		stats.TotalMessages,
		stats.LLMBytesOut,
		stats.LLMBytesIn,
		stats.LLMBytesOut+stats.LLMBytesIn,
	))

	run.print(fmt.Sprintf("*** Run Ended. Duration: %s ***", stats.Duration))

	l.lock.Lock()
	delete(l.runs, run.chatID)
	l.lock.Unlock()

	return &stats, run.w.Bytes()
}

func (l *Scratchpad) getRun(ctx context.Context) *run {
	chatID := chatmodel.GetSessionID(ctx)
	if chatID == "" {
		return nil
	}

	l.lock.Lock()
	defer l.lock.Unlock()
	return l.runs[chatID]
}

func (l *Scratchpad) OnModelCallStart(ctx context.Context, agent string, llm llms.Model, messages []llms.Message) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}

	atomic.AddUint64(&run.stats.LLMBytesOut, llmutils.CountMessagesContentSize(messages))
	atomic.AddUint32(&run.stats.ModelCalls, 1)
	count := uint32(len(messages))
	atomic.AddUint32(&run.stats.TotalMessages, count)

	run.print(agent, "*** Model Call ***", fmt.Sprintf("%s model, %d messages", llm.GetName(), count))
	if l.mode == ModeVerbose {
		run.print(agent, printMessages(messages))
	}
}

func (l *Scratchpad) OnModelInvoked(ctx context.Context, agent string, msg llms.Message) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}

	atomic.AddUint64(&run.stats.LLMBytesIn, llmutils.CountMessagesContentSize([]llms.Message{msg}))
	run.print(agent, "*** Model Invoked ***", fmt.Sprintf("%d tool calls", len(msg.ToolCalls())))
	if l.mode == ModeVerbose {
		if text := msg.Text(); text != "" {
			run.print(agent, "Output:", text)
		}
	}
}

func (l *Scratchpad) OnToolInvoked(ctx context.Context, agent string, call llms.ToolCall, out *tools.Output) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.ToolsCalls, 1)
	if out.Result == nil || out.Result.Failed() {
		atomic.AddUint32(&run.stats.ToolsCallsFailed, 1)
	} else {
		atomic.AddUint32(&run.stats.ToolsCallsSucceeded, 1)
	}

	run.print(agent, call.Name(), "*** Tool Invoked ***")
	run.print(agent, call.Name(), "Input:", call.Arguments())
	if l.mode == ModeVerbose {
		run.print(agent, call.Name(), "Output:", out.Content)
	}
}

func (l *Scratchpad) OnTurnComplete(ctx context.Context, agent string, state *chatmodel.Conversation) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.TurnsCompleted, 1)
	if l.mode == ModeVerbose {
		run.print(agent, printMessages(state.Messages))
	}
	run.print(agent, "*** Turn Complete ***")
}

func (l *Scratchpad) OnTurnFailed(ctx context.Context, agent string, state *chatmodel.Conversation, err error) {
	run := l.getRun(ctx)
	if run == nil {
		return
	}
	atomic.AddUint32(&run.stats.TurnsFailed, 1)
	run.print(agent, "*** Error ***", err.Error())
	run.print(agent, printMessages(state.Messages))
}

func printMessages(messages []llms.Message) string {
	var buf strings.Builder
	buf.WriteString("Messages:\n")
	for idx, msg := range messages {
		fmt.Fprintf(&buf, "[%d] %s:\n", idx, msg.Role)
		textParts := 0
		toolParts := 0
		toolResponseParts := 0
		for _, part := range msg.Parts {
			switch typ := part.(type) {
			case llms.TextContent:
				textParts++
			case llms.ToolCall:
				toolParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			case llms.ToolCallResponse:
				toolResponseParts++
				buf.WriteString("  - ")
				buf.WriteString(typ.String())
				buf.WriteString("\n")
			}
		}

		fmt.Fprintf(&buf, "  - %d texts, %d tool calls, %d tool responses\n", textParts, toolParts, toolResponseParts)
	}
	return buf.String()
}

type run struct {
	chatID  string
	w       bytes.Buffer
	started time.Time
	lock    sync.Mutex
	stats   RunStats
}

// print writes the entries to the run's output.
// The entries are written in the following format:
// [timestamp chatID] entry entry\n
func (r *run) print(entries ...string) {
	r.lock.Lock()
	defer r.lock.Unlock()

	now := TimeNowFn()
	ts := now.Format("2006-01-02 15:04:05")

	_, _ = r.w.WriteString(ts)
	_, _ = r.w.WriteString(" ")
	_, _ = r.w.WriteString(r.chatID)
	_, _ = r.w.WriteString(" ")

	for i, entry := range entries {
		if i > 0 {
			_, _ = r.w.WriteString(" ")
		}
		_, _ = r.w.WriteString(entry)
	}
	_, _ = r.w.WriteString("\n")
}
