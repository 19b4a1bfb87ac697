package ai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"github.com/IMBotPlatform/AskWidget/pkg/history"
)

// storedMessage 是 JSONL 中的一行，角色名与客户端历史保持一致。
type storedMessage struct {
	Role    history.Role `json:"role"`
	Content string       `json:"content"`
}

// FileStore 实现了基于文件系统的 SessionStore (JSONL 格式)。
// 每个会话一个文件，每行一条消息。
type FileStore struct {
	baseDir string
	logger  *zap.Logger
	mu      sync.RWMutex
}

// NewFileStore 创建 FileStore，baseDir 不存在时自动创建。
func NewFileStore(baseDir string, logger *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{baseDir: baseDir, logger: logger}, nil
}

// path 返回会话文件路径；filepath.Base 防止路径遍历。
func (s *FileStore) path(sessionID string) (string, error) {
	safeID := filepath.Base(sessionID)
	if sessionID == "" || safeID == "." || safeID == ".." || safeID == string(filepath.Separator) {
		return "", fmt.Errorf("invalid session id %q", sessionID)
	}
	return filepath.Join(s.baseDir, safeID+".jsonl"), nil
}

func (s *FileStore) appendLine(sessionID string, msg storedMessage) error {
	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(msg)
}

// GetHistory 逐行读取会话文件，坏行跳过并记录警告。
func (s *FileStore) GetHistory(_ context.Context, sessionID string) ([]llms.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path, err := s.path(sessionID)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []llms.ChatMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var messages []llms.ChatMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 5*1024*1024)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var sm storedMessage
		if err := json.Unmarshal(line, &sm); err != nil {
			s.logger.Warn("skipping malformed session line",
				zap.String("path", path), zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		switch sm.Role {
		case history.RoleUser:
			messages = append(messages, llms.HumanChatMessage{Content: sm.Content})
		case history.RoleAssistant:
			messages = append(messages, llms.AIChatMessage{Content: sm.Content})
		default:
			s.logger.Warn("skipping session line with unknown role",
				zap.String("path", path), zap.Int("line", lineNum), zap.String("role", string(sm.Role)))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error scanning session file: %w", err)
	}
	return messages, nil
}

// AddUserMessage 追加用户消息。
func (s *FileStore) AddUserMessage(_ context.Context, sessionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLine(sessionID, storedMessage{Role: history.RoleUser, Content: text})
}

// AddAIMessage 追加助手消息。
func (s *FileStore) AddAIMessage(_ context.Context, sessionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLine(sessionID, storedMessage{Role: history.RoleAssistant, Content: text})
}

// ClearHistory 删除会话文件；文件不存在不视为错误。
func (s *FileStore) ClearHistory(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.path(sessionID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
