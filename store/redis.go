package store

import (
	"context"
	"encoding/json"
	"path"
	"sort"
	"time"

	"github.com/CodeSistency/agentTemplate/chatmodel"
	"github.com/CodeSistency/agentTemplate/pkg/llms"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The redis store keeps the conversations in Redis.
// The keys namespace is organized as follows:
// - `<prefix>/chatstore/messages/<sessionID>` list of JSON encoded messages
// - `<prefix>/chatstore/info/<sessionID>` JSON encoded ChatInfo
// - `<prefix>/chatstore/chats` set of session IDs

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore returns a ConversationStore backed by Redis,
// a positive ttl expires the session keys after the last Save.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) ConversationStore {
	return &redisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (m *redisStore) messagesKey(sessionID string) string {
	return path.Join(m.prefix, "chatstore", "messages", sessionID)
}

func (m *redisStore) infoKey(sessionID string) string {
	return path.Join(m.prefix, "chatstore", "info", sessionID)
}

func (m *redisStore) chatListKey() string {
	return path.Join(m.prefix, "chatstore", "chats")
}

func (m *redisStore) Load(ctx context.Context, sessionID string) (*chatmodel.Conversation, error) {
	n, err := m.client.Exists(ctx, m.infoKey(sessionID)).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get chat info from Redis")
	}
	if n == 0 {
		return nil, errors.Wrapf(ErrNotFound, "session %s", sessionID)
	}

	data, err := m.client.LRange(ctx, m.messagesKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messages from Redis")
	}

	conv := chatmodel.NewConversation(sessionID)
	for i, item := range data {
		var msg llms.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.ERROR,
				"reason", "unmarshal message",
				"session", sessionID,
				"index", i,
				"err", err.Error(),
			)
			return nil, errors.Wrapf(err, "failed to unmarshal message %d", i)
		}
		conv.Add(msg)
	}
	return conv, nil
}

func (m *redisStore) Save(ctx context.Context, conv *chatmodel.Conversation) error {
	if conv == nil || conv.SessionID == "" {
		return errors.WithStack(chatmodel.ErrInvalidChatContext)
	}

	values := make([]any, 0, conv.Len())
	for _, msg := range conv.Messages {
		data, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		values = append(values, data)
	}

	info, err := m.getChatInfo(ctx, conv.SessionID)
	if err != nil {
		return err
	}
	info.Title = TitleFor(conv)
	info.Messages = conv.Len()
	info.UpdatedAt = nowFn()
	infoData, err := json.Marshal(info)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat info")
	}

	messagesKey := m.messagesKey(conv.SessionID)
	infoKey := m.infoKey(conv.SessionID)
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, messagesKey)
		if len(values) > 0 {
			pipe.RPush(ctx, messagesKey, values...)
		}
		pipe.Set(ctx, infoKey, infoData, m.ttl)
		if m.ttl > 0 {
			pipe.Expire(ctx, messagesKey, m.ttl)
		}
		pipe.SAdd(ctx, m.chatListKey(), conv.SessionID)
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "failed to store conversation in Redis")
	}
	return nil
}

func (m *redisStore) Delete(ctx context.Context, sessionID string) error {
	pipe := m.client.Pipeline()
	pipe.Del(ctx, m.messagesKey(sessionID))
	pipe.Del(ctx, m.infoKey(sessionID))
	pipe.SRem(ctx, m.chatListKey(), sessionID)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to delete conversation in Redis")
	}
	return nil
}

// List returns the sessions whose info has not expired
func (m *redisStore) List(ctx context.Context) ([]string, error) {
	ids, err := m.client.SMembers(ctx, m.chatListKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to list chats from Redis")
	}

	var res []string
	for _, id := range ids {
		n, err := m.client.Exists(ctx, m.infoKey(id)).Result()
		if err != nil {
			return nil, errors.Wrap(err, "failed to get chat info from Redis")
		}
		if n == 0 {
			// expired by TTL
			_ = m.client.SRem(ctx, m.chatListKey(), id).Err()
			continue
		}
		res = append(res, id)
	}
	sort.Strings(res)
	return res, nil
}

func (m *redisStore) Cleanup(ctx context.Context, olderThan time.Duration) (uint32, error) {
	ids, err := m.client.SMembers(ctx, m.chatListKey()).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list chats from Redis")
	}

	deleted := uint32(0)
	cutoff := nowFn().Add(-olderThan)
	for _, id := range ids {
		data, err := m.client.Get(ctx, m.infoKey(id)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return deleted, errors.Wrap(err, "failed to get chat info")
		}

		expired := errors.Is(err, redis.Nil)
		if !expired {
			var info ChatInfo
			if err := json.Unmarshal([]byte(data), &info); err != nil {
				return deleted, errors.Wrap(err, "failed to unmarshal chat info")
			}
			expired = info.UpdatedAt.Before(cutoff)
		}
		if expired {
			if err := m.Delete(ctx, id); err != nil {
				return deleted, err
			}
			deleted++
		}
	}
	return deleted, nil
}

// returns the saved chat info, or a new one
func (m *redisStore) getChatInfo(ctx context.Context, sessionID string) (*ChatInfo, error) {
	data, err := m.client.Get(ctx, m.infoKey(sessionID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return nil, errors.Wrap(err, "failed to get chat info from Redis")
		}
		now := nowFn()
		return &ChatInfo{
			SessionID: sessionID,
			Title:     "New Chat",
			CreatedAt: now,
			UpdatedAt: now,
		}, nil
	}

	info := &ChatInfo{}
	if err = json.Unmarshal([]byte(data), info); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chat info")
	}
	return info, nil
}
