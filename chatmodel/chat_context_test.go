package chatmodel

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatContext(t *testing.T) {
	t.Parallel()

	c := NewChatContext("s1", "r1")
	assert.Equal(t, &ChatContext{SessionID: "s1", RequestID: "r1"}, c)

	c = NewChatContext("", "")
	assert.NotEmpty(t, c.SessionID)
	assert.Empty(t, c.RequestID)
}

func TestChatContext_Check(t *testing.T) {
	t.Parallel()

	c := NewChatContext("s1", "")
	assert.NoError(t, c.Check(NewConversation("s1")))

	err := c.Check(NewConversation("s2"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidChatContext))
	assert.EqualError(t, err, "conversation s2 runs in session s1: invalid chat context")
}

func TestContextPlumbing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Nil(t, GetChatContext(ctx))
	assert.Empty(t, GetSessionID(ctx))
	assert.Empty(t, GetRequestID(ctx))
	_, err := SessionIDFromContext(ctx)
	assert.True(t, errors.Is(err, ErrInvalidChatContext))

	c := NewChatContext("y", "req-1")
	ctx = WithChatContext(ctx, c)
	assert.Same(t, c, GetChatContext(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))
	id, err := SessionIDFromContext(ctx)
	require.NoError(t, err)
	assert.Equal(t, "y", id)
}

func TestNewChatID_Unique(t *testing.T) {
	t.Parallel()
	assert.NotEqual(t, NewChatID(), NewChatID())
}
