package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"jobook/internal/constants"

	"github.com/cloudwego/eino/schema"
)

// ListStore Redis 列表操作，由 *storage.Redis 实现
type ListStore interface {
	AppendList(ctx context.Context, key string, maxLen int64, ttl time.Duration, values ...string) error
	GetList(ctx context.Context, key string) ([]string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisChatMemory 每个会话一个 LIST，元素为 JSON 序列化的 schema.Message
type RedisChatMemory struct {
	store       ListStore
	maxMessages int64
	ttl         time.Duration
}

// NewRedisChatMemory ttl 为 0 时不过期
func NewRedisChatMemory(store ListStore, maxMessages int, ttl time.Duration) (*RedisChatMemory, error) {
	if store == nil {
		return nil, fmt.Errorf("redis list store cannot be nil")
	}
	return &RedisChatMemory{store: store, maxMessages: int64(maxMessages), ttl: ttl}, nil
}

func (rcm *RedisChatMemory) buildKey(sessionID string) string {
	return fmt.Sprintf(constants.KeyChatMemory, sessionID)
}

// GetHistory 实现 Memory
func (rcm *RedisChatMemory) GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	serialized, err := rcm.store.GetList(ctx, rcm.buildKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get messages from redis for session %s: %w", sessionID, err)
	}

	messages := make([]*schema.Message, 0, len(serialized))
	for _, sm := range serialized {
		var msg schema.Message
		if err := json.Unmarshal([]byte(sm), &msg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message for session %s: %w", sessionID, err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// AddMessages 实现 Memory，RPUSH + LTRIM + EXPIRE 在同一事务管道中
func (rcm *RedisChatMemory) AddMessages(ctx context.Context, sessionID string, messages ...*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	values := make([]string, 0, len(messages))
	for _, message := range messages {
		if message == nil {
			return fmt.Errorf("cannot add nil message in a batch to chat history for session %s", sessionID)
		}
		b, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message for session %s: %w", sessionID, err)
		}
		values = append(values, string(b))
	}
	if err := rcm.store.AppendList(ctx, rcm.buildKey(sessionID), rcm.maxMessages, rcm.ttl, values...); err != nil {
		return fmt.Errorf("failed to add messages to redis for session %s: %w", sessionID, err)
	}
	return nil
}

// ClearHistory 实现 Memory
func (rcm *RedisChatMemory) ClearHistory(ctx context.Context, sessionID string) error {
	if err := rcm.store.Del(ctx, rcm.buildKey(sessionID)); err != nil {
		return fmt.Errorf("failed to clear chat history from redis for session %s: %w", sessionID, err)
	}
	return nil
}
