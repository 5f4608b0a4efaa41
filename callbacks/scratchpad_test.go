package callbacks

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/mocks/mockllms"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/tools"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestChatContext() (context.Context, *chatmodel.ChatContext) {
	chatCtx := chatmodel.NewChatContext("chatid", "")
	ctx := chatmodel.WithChatContext(context.Background(), chatCtx)
	return ctx, chatCtx
}

func TestScratchpad_StartRun_EndRun(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeVerbose)
	ctx, cctx := newTestChatContext()
	sp.StartRun(ctx)

	r := sp.runs[cctx.SessionID]
	require.NotNil(t, r)
	r.stats.TurnsCompleted = 2
	r.stats.TurnsFailed = 1
	r.stats.ToolsCalls = 3
	r.stats.ToolsCallsFailed = 2
	r.stats.ModelCalls = 1
	r.stats.TotalMessages = 4
	r.stats.LLMBytesOut = 10
	r.stats.LLMBytesIn = 11

	stats, buf := sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, "chatid", stats.ChatID)
	out := string(buf)
	assert.Contains(t, out, "Run Started")
	assert.Contains(t, out, "Run Ended")
	assert.Contains(t, out, "Turns completed: 2, Failed: 1")
	assert.Contains(t, out, "Tool calls: 3, Failed: 2")
	assert.Contains(t, out, "Bytes Total: 21")
	_, ok := sp.runs[cctx.SessionID]
	assert.False(t, ok)

	// run already deleted
	s2, _ := sp.EndRun(ctx)
	assert.Nil(t, s2)

	// no chat context, nothing is started
	sp.StartRun(context.Background())
	assert.Empty(t, sp.runs)
}

func TestScratchpad_getRun_nil(t *testing.T) {
	t.Parallel()
	sp := NewScratchpad(ModeDefault)
	assert.Nil(t, sp.getRun(context.Background()))
	ctx, _ := newTestChatContext()
	assert.Nil(t, sp.getRun(ctx))
}

func TestScratchpad_OnCallbacks(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	model := mockllms.NewMockModel(ctrl)
	model.EXPECT().GetName().Return("gpt-4o").AnyTimes()

	sp := NewScratchpad(ModeVerbose)
	ctx, _ := newTestChatContext()
	sp.StartRun(ctx)

	call := llms.ToolCall{ID: "c1", Type: "function", FunctionCall: &llms.FunctionCall{Name: "multiply", Arguments: `{"a":123,"b":456}`}}
	msgs := []llms.Message{
		llms.MessageFromTextParts(llms.RoleHuman, "What is 123 * 456?"),
	}
	res := tools.NewResult("multiplication", "123 × 456", 56088, "Final result: 56088")
	state := chatmodel.NewConversation("chatid", msgs...)

	sp.OnModelCallStart(ctx, "A1", model, msgs)
	sp.OnModelInvoked(ctx, "A1", llms.MessageFromParts(llms.RoleAI, llms.TextPart("Let me compute."), call))
	sp.OnToolInvoked(ctx, "A1", call, &tools.Output{Result: res, Content: tools.FormatResult("multiply", res)})
	sp.OnToolInvoked(ctx, "A1", call, &tools.Output{Content: "Tool response could not be parsed: boom"})
	sp.OnTurnComplete(ctx, "A1", state)
	sp.OnTurnFailed(ctx, "A1", state, errors.New("fail"))

	stats, output := sp.EndRun(ctx)
	require.NotNil(t, stats)
	assert.Equal(t, uint32(1), stats.ModelCalls)
	assert.Equal(t, uint32(1), stats.TotalMessages)
	assert.Equal(t, uint32(2), stats.ToolsCalls)
	assert.Equal(t, uint32(1), stats.ToolsCallsSucceeded)
	assert.Equal(t, uint32(1), stats.ToolsCallsFailed)
	assert.Equal(t, uint32(1), stats.TurnsCompleted)
	assert.Equal(t, uint32(1), stats.TurnsFailed)
	assert.NotZero(t, stats.LLMBytesOut)
	assert.NotZero(t, stats.LLMBytesIn)

	outStr := string(output)
	assert.Contains(t, outStr, "*** Model Call *** gpt-4o model, 1 messages")
	assert.Contains(t, outStr, "*** Model Invoked *** 1 tool calls")
	assert.Contains(t, outStr, "A1 multiply *** Tool Invoked ***")
	assert.Contains(t, outStr, "Output: ## Multiplication: 123 × 456")
	assert.Contains(t, outStr, "*** Turn Complete ***")
	assert.Contains(t, outStr, "*** Error *** fail")
	assert.Contains(t, outStr, "[0] human:")

	// no run: callbacks are ignored
	sp.OnModelCallStart(ctx, "A1", model, msgs)
	sp.OnModelInvoked(ctx, "A1", msgs[0])
	sp.OnToolInvoked(ctx, "A1", call, &tools.Output{})
	sp.OnTurnComplete(ctx, "A1", state)
	sp.OnTurnFailed(ctx, "A1", state, errors.New("fail2"))
	assert.Empty(t, sp.runs)
}

func Test_run_print_format(t *testing.T) {
	r := &run{chatID: "chatid"}
	oldTimeFn := TimeNowFn
	TimeNowFn = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	defer func() { TimeNowFn = oldTimeFn }()

	r.print("hello", "again")
	lines := strings.Split(r.w.String(), "\n")
	require.NotEmpty(t, lines[0])
	assert.Equal(t, "2024-01-01 12:00:00 chatid hello again", lines[0])
}
