package localtransport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/CodeSistency/agentTemplate/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(tr *Base) func(ctx context.Context, req *mcp.Request) {
	return func(ctx context.Context, req *mcp.Request) {
		_ = tr.Send(ctx, &mcp.Response{
			JSONRPC: mcp.Version,
			ID:      *req.ID,
			Result:  json.RawMessage(`{"method":"` + req.Method + `"}`),
		})
	}
}

func TestBase_Send(t *testing.T) {
	t.Parallel()

	tr := NewBase()
	err := tr.Send(context.Background(), &mcp.Response{ID: 999})
	require.Error(t, err)
	assert.Equal(t, "no response channel found for key: 999", err.Error())

	err = tr.Send(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "nil response", err.Error())
}

func TestBase_HandleMessage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tr := NewBase()

	_, err := tr.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.Error(t, err)
	assert.Equal(t, "transport is not started", err.Error())

	tr.SetMessageHandler(echo(tr))

	// the caller's ID is restored
	raw, err := tr.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":42,"method":"ping"}`))
	require.NoError(t, err)
	var resp mcp.Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, mcp.RequestID(42), resp.ID)
	assert.JSONEq(t, `{"method":"ping"}`, string(resp.Result))

	// the pending map is cleaned up
	tr.mu.RLock()
	assert.Empty(t, tr.responseMap)
	tr.mu.RUnlock()

	raw, err = tr.HandleMessage(ctx, []byte(`{oops`))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.CodeParseError, resp.Error.Code)
}

func TestBase_Notification(t *testing.T) {
	t.Parallel()

	tr := NewBase()
	var got string
	tr.SetMessageHandler(func(_ context.Context, req *mcp.Request) {
		got = req.Method
	})

	raw, err := tr.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`))
	require.NoError(t, err)
	assert.Nil(t, raw)
	// notifications are handled synchronously
	assert.Equal(t, mcp.MethodInitialized, got)
}

func TestBase_Timeout(t *testing.T) {
	t.Parallel()

	tr := NewBase()
	tr.SetMessageHandler(func(context.Context, *mcp.Request) {})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := tr.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":1,"method":"ping"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBase_Close(t *testing.T) {
	t.Parallel()

	tr := NewBase()
	require.NoError(t, tr.Close())

	closed := false
	tr.SetCloseHandler(func() { closed = true })
	require.NoError(t, tr.Close())
	assert.True(t, closed)
}
