// Package session 管理每个标签页的不透明会话令牌。
//
// 令牌只是用于关联同一标签页内多轮对话的标识，不是安全凭证。
package session

import (
	"encoding/binary"
	"math/rand/v2"
	"regexp"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/IMBotPlatform/AskWidget/pkg/storage"
)

// DefaultKey 是会话令牌在标签页存储中的 key。
const DefaultKey = "askwidget.session_id"

var tokenPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// Generator 生成一个新的 UUID。返回错误时 Identity 会回退到手动生成器。
type Generator func() (uuid.UUID, error)

// Identity 负责获取或创建当前标签页的会话令牌。
type Identity struct {
	store    storage.Storage
	key      string
	generate Generator
	logger   *zap.Logger
	mu       sync.Mutex
	cached   string
}

// Option 自定义 Identity。
type Option func(*Identity)

// WithKey 覆盖默认存储 key。
func WithKey(key string) Option {
	return func(i *Identity) {
		i.key = key
	}
}

// WithGenerator 替换强随机 UUID 生成器，主要用于测试回退路径。
func WithGenerator(g Generator) Option {
	return func(i *Identity) {
		i.generate = g
	}
}

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) Option {
	return func(i *Identity) {
		i.logger = l
	}
}

// NewIdentity 基于标签页存储创建 Identity。
func NewIdentity(store storage.Storage, opts ...Option) *Identity {
	id := &Identity{
		store:    store,
		key:      DefaultKey,
		generate: uuid.NewRandom,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(id)
	}
	return id
}

// Token 返回当前标签页的会话令牌，不存在时生成并持久化。
// 同一标签页会话内多次调用返回相同的值。
func (i *Identity) Token() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.cached != "" {
		return i.cached
	}
	if i.store != nil {
		val, ok, err := i.store.Get(i.key)
		if err != nil {
			i.logger.Warn("session token read failed", zap.Error(err))
		}
		if ok && val != "" {
			i.cached = val
			return val
		}
	}
	return i.regenerate()
}

// Regenerate 丢弃旧令牌并生成新的令牌，用于"清空历史"操作。
func (i *Identity) Regenerate() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.regenerate()
}

func (i *Identity) regenerate() string {
	token := i.newToken()
	i.cached = token
	if i.store != nil {
		if err := i.store.Set(i.key, token); err != nil {
			// 持久化失败不影响本次会话继续使用内存中的令牌
			i.logger.Warn("session token persist failed", zap.Error(err))
		}
	}
	return token
}

func (i *Identity) newToken() string {
	if i.generate != nil {
		if id, err := i.generate(); err == nil && id.Version() == 4 {
			return id.String()
		} else if err != nil {
			i.logger.Debug("uuid generator unavailable, using fallback", zap.Error(err))
		}
	}
	return FallbackToken()
}

// FallbackToken 使用通用伪随机源手动拼装 v4 形状的 UUID。
func FallbackToken() string {
	var b [16]byte
	binary.BigEndian.PutUint64(b[:8], rand.Uint64())
	binary.BigEndian.PutUint64(b[8:], rand.Uint64())
	b[6] = (b[6] & 0x0f) | 0x40 // version 4
	b[8] = (b[8] & 0x3f) | 0x80 // RFC 4122 variant
	return uuid.UUID(b).String()
}

// IsToken 判断字符串是否符合 v4 UUID 形状。
func IsToken(s string) bool {
	return tokenPattern.MatchString(s)
}
