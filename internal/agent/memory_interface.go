package agent

import (
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// ChatMemory 聊天会话历史的存取接口。会话之间相互隔离，
// 不存在的会话按空历史处理。
type ChatMemory interface {
	// GetHistory 获取指定会话的历史消息。会话不存在时返回空切片和 nil 错误。
	GetHistory(sessionID string) ([]*schema.Message, error)

	// AddMessage 向指定会话追加一条消息。
	AddMessage(sessionID string, message *schema.Message) error

	// AddMessages 向指定会话批量追加消息，任一消息为 nil 时整体失败。
	AddMessages(sessionID string, messages []*schema.Message) error

	// ClearHistory 清除指定会话的全部历史。会话不存在时静默成功。
	ClearHistory(sessionID string) error
}

// InMemoryChatMemory 进程内的 ChatMemory 实现，不持久化，
// 用于测试和单机离线运行。
type InMemoryChatMemory struct {
	mu       sync.RWMutex
	sessions map[string][]*schema.Message
}

// NewInMemoryChatMemory 创建一个空的进程内会话存储。
func NewInMemoryChatMemory() *InMemoryChatMemory {
	return &InMemoryChatMemory{
		sessions: make(map[string][]*schema.Message),
	}
}

// GetHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) GetHistory(sessionID string) ([]*schema.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history, ok := m.sessions[sessionID]
	if !ok {
		return []*schema.Message{}, nil
	}
	// 返回副本，内部切片不暴露给调用方
	cpy := make([]*schema.Message, len(history))
	copy(cpy, history)
	return cpy, nil
}

// AddMessage 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessage(sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("会话 %s 不能追加空消息", sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionID] = append(m.sessions[sessionID], message)
	return nil
}

// AddMessages 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessages(sessionID string, messages []*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, msg := range messages {
		if msg == nil {
			return fmt.Errorf("会话 %s 的批量消息中包含空消息", sessionID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[sessionID] = append(m.sessions[sessionID], messages...)
	return nil
}

// ClearHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) ClearHistory(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, sessionID)
	return nil
}

var _ ChatMemory = (*InMemoryChatMemory)(nil)
