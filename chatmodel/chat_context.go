package chatmodel

import (
	"context"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// ChatContext identifies the session and the request a turn runs for
type ChatContext struct {
	SessionID string
	// RequestID correlates the turn with the caller, empty outside of the gateway
	RequestID string
}

// NewChatContext returns a ChatContext, a new session ID is generated when sessionID is empty
func NewChatContext(sessionID, requestID string) *ChatContext {
	return &ChatContext{
		SessionID: values.StringsCoalesce(sessionID, NewChatID()),
		RequestID: requestID,
	}
}

// Check returns ErrInvalidChatContext if the conversation belongs to another session
func (c *ChatContext) Check(conv *Conversation) error {
	if conv.SessionID != c.SessionID {
		return errors.Wrapf(ErrInvalidChatContext, "conversation %s runs in session %s", conv.SessionID, c.SessionID)
	}
	return nil
}

type contextKey struct{}

// WithChatContext returns a new context with the ChatContext
func WithChatContext(ctx context.Context, chatCtx *ChatContext) context.Context {
	return context.WithValue(ctx, contextKey{}, chatCtx)
}

// GetChatContext returns the ChatContext, or nil
func GetChatContext(ctx context.Context) *ChatContext {
	v, _ := ctx.Value(contextKey{}).(*ChatContext)
	return v
}

// GetSessionID returns the session ID of the context, or empty
func GetSessionID(ctx context.Context) string {
	if c := GetChatContext(ctx); c != nil {
		return c.SessionID
	}
	return ""
}

// GetRequestID returns the request ID of the context, or empty
func GetRequestID(ctx context.Context) string {
	if c := GetChatContext(ctx); c != nil {
		return c.RequestID
	}
	return ""
}

// SessionIDFromContext returns the session ID, or ErrInvalidChatContext
// if the context has no session.
func SessionIDFromContext(ctx context.Context) (string, error) {
	id := GetSessionID(ctx)
	if id == "" {
		return "", errors.WithStack(ErrInvalidChatContext)
	}
	return id, nil
}

// NewChatID generates a new session ID using the flake ID generator.
func NewChatID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
