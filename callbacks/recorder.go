package callbacks

import (
	"context"
	"sync"

	"github.com/CodeSistency/agentTemplate/assistants"
	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/CodeSistency/agentTemplate/tools"
)

var _ assistants.Callback = (*Recorder)(nil)

// Recorder collects the loop transitions as chatmodel.Events,
// the gateway returns them with the chat response.
type Recorder struct {
	Noop

	lock   sync.Mutex
	events []chatmodel.Event
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(e chatmodel.Event) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []chatmodel.Event {
	r.lock.Lock()
	defer r.lock.Unlock()
	return append([]chatmodel.Event(nil), r.events...)
}

func (r *Recorder) OnModelInvoked(ctx context.Context, agent string, msg llms.Message) {
	r.add(chatmodel.Event{
		Type:      chatmodel.EventModelInvoked,
		ToolCalls: len(msg.ToolCalls()),
		Content:   msg.Text(),
	})
}

func (r *Recorder) OnToolInvoked(ctx context.Context, agent string, call llms.ToolCall, out *tools.Output) {
	e := chatmodel.Event{
		Type:       chatmodel.EventToolInvoked,
		Tool:       call.Name(),
		ToolCallID: call.ID,
		Content:    out.Content,
	}
	if out.Result != nil && out.Result.Failed() {
		e.Error = out.Result.Error
	}
	r.add(e)
}

func (r *Recorder) OnTurnComplete(ctx context.Context, agent string, state *chatmodel.Conversation) {
	r.add(chatmodel.Event{
		Type:    chatmodel.EventTurnComplete,
		Content: state.FinalAnswer(),
	})
}

func (r *Recorder) OnTurnFailed(ctx context.Context, agent string, state *chatmodel.Conversation, err error) {
	r.add(chatmodel.Event{
		Type:  chatmodel.EventTurnFailed,
		Error: err.Error(),
	})
}
