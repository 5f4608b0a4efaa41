package store

import (
	"context"
	"time"

	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/CodeSistency/agentTemplate", "store")

// ErrNotFound is returned by Load when the session has no saved conversation
var ErrNotFound = errors.New("conversation not found")

// ConversationStore persists conversations between turns, keyed by session ID.
// Implementations are safe for concurrent use.
type ConversationStore interface {
	// Load returns the saved conversation, or ErrNotFound
	Load(ctx context.Context, sessionID string) (*chatmodel.Conversation, error)
	// Save replaces the saved conversation of conv.SessionID
	Save(ctx context.Context, conv *chatmodel.Conversation) error
	// Delete removes the conversation, deleting a missing session is not an error
	Delete(ctx context.Context, sessionID string) error
	// List returns the saved session IDs
	List(ctx context.Context) ([]string, error)
	// Cleanup removes conversations not updated within olderThan,
	// and returns the number of deleted sessions
	Cleanup(ctx context.Context, olderThan time.Duration) (uint32, error)
}

// ChatInfo is the metadata saved with a conversation
type ChatInfo struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	Messages  int       `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LoadOrNew returns the saved conversation, or a new empty one
// when the session is not found.
func LoadOrNew(ctx context.Context, st ConversationStore, sessionID string) (*chatmodel.Conversation, error) {
	if sessionID == "" {
		return chatmodel.NewConversation(""), nil
	}
	conv, err := st.Load(ctx, sessionID)
	if errors.Is(err, ErrNotFound) {
		logger.ContextKV(ctx, xlog.DEBUG, "status", "new_session", "session", sessionID)
		return chatmodel.NewConversation(sessionID), nil
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// TitleFor returns the first human question, used as the chat title
func TitleFor(conv *chatmodel.Conversation) string {
	for _, m := range conv.Messages {
		if m.Role == llms.RoleHuman {
			if title := m.Text(); title != "" {
				return slices.StringUpto(title, 64)
			}
		}
	}
	return "New Chat"
}

var nowFn = time.Now
