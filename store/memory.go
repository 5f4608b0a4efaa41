package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/cockroachdb/errors"
)

type entry struct {
	info ChatInfo
	conv *chatmodel.Conversation
}

type inMemory struct {
	mu      sync.RWMutex
	storage map[string]*entry
}

// NewMemoryStore returns a process local ConversationStore
func NewMemoryStore() ConversationStore {
	return &inMemory{}
}

func (m *inMemory) Load(_ context.Context, sessionID string) (*chatmodel.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.storage[sessionID]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "session %s", sessionID)
	}
	return e.conv.Clone(), nil
}

func (m *inMemory) Save(_ context.Context, conv *chatmodel.Conversation) error {
	if conv == nil || conv.SessionID == "" {
		return errors.WithStack(chatmodel.ErrInvalidChatContext)
	}

	now := nowFn()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storage == nil {
		// create on first use
		m.storage = make(map[string]*entry)
	}
	e, ok := m.storage[conv.SessionID]
	if !ok {
		e = &entry{info: ChatInfo{SessionID: conv.SessionID, CreatedAt: now}}
		m.storage[conv.SessionID] = e
	}
	e.conv = conv.Clone()
	e.info.Title = TitleFor(conv)
	e.info.Messages = conv.Len()
	e.info.UpdatedAt = now
	return nil
}

func (m *inMemory) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.storage, sessionID)
	return nil
}

func (m *inMemory) List(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.storage))
	for id := range m.storage {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *inMemory) Cleanup(_ context.Context, olderThan time.Duration) (uint32, error) {
	cutoff := nowFn().Add(-olderThan)
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := uint32(0)
	for id, e := range m.storage {
		if e.info.UpdatedAt.Before(cutoff) {
			delete(m.storage, id)
			deleted++
		}
	}
	return deleted, nil
}
