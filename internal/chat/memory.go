package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Memory 定义了聊天记忆存储的接口
type Memory interface {
	// GetHistory 获取会话历史，会话不存在时返回空切片
	GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error)

	// AddMessages 追加消息，超出上限时丢弃最早的消息
	AddMessages(ctx context.Context, sessionID string, messages ...*schema.Message) error

	// ClearHistory 清除会话，会话不存在时静默成功
	ClearHistory(ctx context.Context, sessionID string) error
}

// InMemoryChatMemory 进程内实现，用于测试和未配置 Redis 的场景
type InMemoryChatMemory struct {
	mu          sync.RWMutex
	histories   map[string][]*schema.Message
	maxMessages int
}

// NewInMemoryChatMemory maxMessages<=0 表示不限制
func NewInMemoryChatMemory(maxMessages int) *InMemoryChatMemory {
	return &InMemoryChatMemory{
		histories:   make(map[string][]*schema.Message),
		maxMessages: maxMessages,
	}
}

// GetHistory 返回副本
func (m *InMemoryChatMemory) GetHistory(_ context.Context, sessionID string) ([]*schema.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := m.histories[sessionID]
	cpy := make([]*schema.Message, len(history))
	copy(cpy, history)
	return cpy, nil
}

// AddMessages 实现 Memory
func (m *InMemoryChatMemory) AddMessages(_ context.Context, sessionID string, messages ...*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, msg := range messages {
		if msg == nil {
			return fmt.Errorf("cannot add nil message to chat history for session %s", sessionID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	history := append(m.histories[sessionID], messages...)
	if m.maxMessages > 0 && len(history) > m.maxMessages {
		history = history[len(history)-m.maxMessages:]
	}
	m.histories[sessionID] = history
	return nil
}

// ClearHistory 实现 Memory
func (m *InMemoryChatMemory) ClearHistory(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.histories, sessionID)
	return nil
}
