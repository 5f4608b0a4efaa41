package localtransport

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/CodeSistency/agentTemplate/mcp"
	"github.com/bububa/ljson"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/sjson"
)

// Base correlates the responses sent by the server with the pending requests.
// Each request gets a transport local ID, the caller's ID is restored in the response.
type Base struct {
	messageHandler func(ctx context.Context, req *mcp.Request)
	closeHandler   func()
	mu             sync.RWMutex
	responseMap    map[int64]chan *mcp.Response
	atomicCounter  int64
}

func NewBase() *Base {
	return &Base{
		responseMap: make(map[int64]chan *mcp.Response),
	}
}

// Send delivers the response to the pending request
func (t *Base) Send(ctx context.Context, resp *mcp.Response) error {
	if resp == nil {
		return errors.New("nil response")
	}
	key := int64(resp.ID)

	t.mu.RLock()
	responseChannel := t.responseMap[key]
	t.mu.RUnlock()
	if responseChannel == nil {
		return errors.Errorf("no response channel found for key: %d", key)
	}

	select {
	case responseChannel <- resp:
		return nil
	default:
		return errors.Errorf("response already sent for key: %d", key)
	}
}

// Close calls the close handler
func (t *Base) Close() error {
	t.mu.RLock()
	handler := t.closeHandler
	t.mu.RUnlock()
	if handler != nil {
		handler()
	}
	return nil
}

// SetCloseHandler sets the callback for when the transport is closed
func (t *Base) SetCloseHandler(handler func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeHandler = handler
}

// SetMessageHandler sets the callback for received requests and notifications
func (t *Base) SetMessageHandler(handler func(ctx context.Context, req *mcp.Request)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageHandler = handler
}

// HandleMessage passes the request to the message handler and blocks until
// the response is sent, or ctx is done. Notifications return nil.
func (t *Base) HandleMessage(ctx context.Context, body []byte) ([]byte, error) {
	var req mcp.Request
	if err := ljson.Unmarshal(body, &req); err != nil {
		return json.Marshal(&mcp.Response{
			JSONRPC: mcp.Version,
			Error:   mcp.NewError(mcp.CodeParseError, "parse error: %s", err.Error()),
		})
	}

	t.mu.RLock()
	handler := t.messageHandler
	t.mu.RUnlock()
	if handler == nil {
		return nil, errors.New("transport is not started")
	}

	if req.IsNotification() {
		handler(ctx, &req)
		return nil, nil
	}

	key := atomic.AddInt64(&t.atomicCounter, 1)
	ch := make(chan *mcp.Response, 1)
	t.mu.Lock()
	t.responseMap[key] = ch
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		delete(t.responseMap, key)
		t.mu.Unlock()
	}()

	prevID := *req.ID
	localID := mcp.RequestID(key)
	req.ID = &localID

	go handler(ctx, &req)

	var resp *mcp.Response
	select {
	case resp = <-ch:
	case <-ctx.Done():
		return nil, errors.WithStack(ctx.Err())
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode response")
	}
	data, err = sjson.SetBytes(data, "id", int64(prevID))
	if err != nil {
		return nil, errors.Wrap(err, "failed to restore request id")
	}
	return data, nil
}
