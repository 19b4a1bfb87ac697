package ai

import (
	"context"
	"sync"

	"github.com/tmc/langchaingo/llms"
)

// SessionStore 保存精简模式（只发送 sessionId）下由服务端持有的对话历史。
type SessionStore interface {
	// GetHistory retrieves the chat history for a given session.
	GetHistory(ctx context.Context, sessionID string) ([]llms.ChatMessage, error)

	// AddUserMessage adds a user message to the session history.
	AddUserMessage(ctx context.Context, sessionID, text string) error

	// AddAIMessage adds an AI response to the session history.
	AddAIMessage(ctx context.Context, sessionID, text string) error

	// ClearHistory clears the session history.
	ClearHistory(ctx context.Context, sessionID string) error
}

// MemoryStore 是进程内的 SessionStore，重启即丢失。
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]llms.ChatMessage
}

// NewMemoryStore 创建内存会话存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]llms.ChatMessage)}
}

// GetHistory 返回会话历史的副本。
func (s *MemoryStore) GetHistory(_ context.Context, sessionID string) ([]llms.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]llms.ChatMessage(nil), s.data[sessionID]...), nil
}

// AddUserMessage 追加用户消息。
func (s *MemoryStore) AddUserMessage(_ context.Context, sessionID, text string) error {
	s.add(sessionID, llms.HumanChatMessage{Content: text})
	return nil
}

// AddAIMessage 追加助手消息。
func (s *MemoryStore) AddAIMessage(_ context.Context, sessionID, text string) error {
	s.add(sessionID, llms.AIChatMessage{Content: text})
	return nil
}

// ClearHistory 删除会话。
func (s *MemoryStore) ClearHistory(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

func (s *MemoryStore) add(sessionID string, msg llms.ChatMessage) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = append(s.data[sessionID], msg)
}
