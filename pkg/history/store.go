// Package history 实现有上限的滚动对话缓冲区及其持久化。
package history

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/IMBotPlatform/AskWidget/pkg/storage"
)

const (
	// DefaultMaxTurns 是缓冲区默认容量。
	DefaultMaxTurns = 10
	// DefaultKey 是历史记录在标签页存储中的 key。
	DefaultKey = "askwidget.history"
)

// Store 是有序、有上限的对话缓冲区。
// 超过容量时从头部丢弃最旧的 Turn（滑动窗口，保留最新）。
type Store struct {
	mu       sync.RWMutex
	turns    []Turn
	maxTurns int
	key      string
	storage  storage.Storage
	logger   *zap.Logger
}

// Option 自定义 Store。
type Option func(*Store)

// WithMaxTurns 设置容量上限，<=0 时保持默认值。
func WithMaxTurns(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxTurns = n
		}
	}
}

// WithKey 覆盖持久化 key。
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore 创建 Store 并立即尝试从存储中恢复。
// st 为 nil 时只在内存中保存。
func NewStore(st storage.Storage, opts ...Option) *Store {
	s := &Store{
		maxTurns: DefaultMaxTurns,
		key:      DefaultKey,
		storage:  st,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Restore()
	return s
}

// Append 在末尾追加一轮对话并持久化。
// 内存中的追加是同步且原子的；持久化失败只记录日志，不回滚。
func (s *Store) Append(role Role, content string) Turn {
	turn := Turn{Role: role, Content: content}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.turns = append(s.turns, turn)
	if over := len(s.turns) - s.maxTurns; over > 0 {
		// 复制到新切片，避免旧底层数组被快照持有者看到变化
		kept := make([]Turn, s.maxTurns)
		copy(kept, s.turns[over:])
		s.turns = kept
	}

	// 持久化放在锁内，保证落盘顺序与追加顺序一致
	payload, err := encode(s.turns)
	if err != nil {
		s.logger.Warn("history encode failed", zap.Error(err))
		return turn
	}
	s.persist(payload)
	return turn
}

// Snapshot 返回当前缓冲区的副本，调用方修改副本不会影响 Store。
func (s *Store) Snapshot() []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// Len 返回当前轮数。
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Clear 清空缓冲区并删除持久化副本。
func (s *Store) Clear() {
	s.mu.Lock()
	s.turns = nil
	s.mu.Unlock()

	if s.storage == nil {
		return
	}
	if err := s.storage.Remove(s.key); err != nil {
		s.logger.Warn("history remove failed", zap.String("key", s.key), zap.Error(err))
	}
}

// Restore 从存储中加载缓冲区。
// 任何读取或解析失败都回退为空缓冲区，错误只写日志不向上传播。
func (s *Store) Restore() {
	turns, err := s.load()
	if err != nil {
		s.logger.Warn("history restore failed, starting empty", zap.String("key", s.key), zap.Error(err))
		turns = nil
	}
	if over := len(turns) - s.maxTurns; over > 0 {
		turns = turns[over:]
	}

	s.mu.Lock()
	s.turns = turns
	s.mu.Unlock()
}

func (s *Store) load() ([]Turn, error) {
	if s.storage == nil {
		return nil, nil
	}
	raw, ok, err := s.storage.Get(s.key)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var turns []Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	for i, t := range turns {
		if !t.Role.Valid() {
			return nil, fmt.Errorf("parse: turn %d has unknown role %q", i, t.Role)
		}
	}
	return turns, nil
}

func (s *Store) persist(payload []byte) {
	if s.storage == nil {
		return
	}
	if err := s.storage.Set(s.key, string(payload)); err != nil {
		s.logger.Warn("history persist failed", zap.String("key", s.key), zap.Error(err))
	}
}

func encode(turns []Turn) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false) // 保持原始字符，不转义 <, >, &
	if err := encoder.Encode(turns); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
