// Package notify 提供短暂显示的状态提示通道。
// 对话控制器与建议表单共用同一套提示机制。
package notify

import (
	"sync"
	"time"
)

// Level 表示提示的级别。
type Level int

const (
	Info Level = iota
	Success
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Success:
		return "success"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return "info"
	}
}

// DefaultTTL 是提示默认的显示时长。
const DefaultTTL = 5 * time.Second

// Notice 是一条状态提示。
type Notice struct {
	Level     Level
	Text      string
	PostedAt  time.Time
	ExpiresAt time.Time
}

// Sink 接收新发布的提示，通常由界面适配层实现。
type Sink func(Notice)

// Channel 维护当前提示，过期后自动失效。
// 同一时刻只保留一条提示，新提示覆盖旧提示。
type Channel struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	current *Notice
	sinks   []Sink
}

// Option 自定义 Channel。
type Option func(*Channel)

// WithTTL 设置显示时长。
func WithTTL(ttl time.Duration) Option {
	return func(c *Channel) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock 替换时钟，便于测试过期逻辑。
func WithClock(now func() time.Time) Option {
	return func(c *Channel) {
		c.now = now
	}
}

// New 创建提示通道。
func New(opts ...Option) *Channel {
	c := &Channel{ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe 注册一个接收者。
func (c *Channel) Subscribe(sink Sink) {
	if sink == nil {
		return
	}
	c.mu.Lock()
	c.sinks = append(c.sinks, sink)
	c.mu.Unlock()
}

// Post 发布一条提示并同步通知所有接收者。
func (c *Channel) Post(level Level, text string) Notice {
	now := c.now()
	n := Notice{Level: level, Text: text, PostedAt: now, ExpiresAt: now.Add(c.ttl)}

	c.mu.Lock()
	c.current = &n
	sinks := append([]Sink(nil), c.sinks...)
	c.mu.Unlock()

	for _, sink := range sinks {
		sink(n)
	}
	return n
}

// Current 返回仍在有效期内的提示。
func (c *Channel) Current() (Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Notice{}, false
	}
	if !c.now().Before(c.current.ExpiresAt) {
		c.current = nil
		return Notice{}, false
	}
	return *c.current, true
}

// Dismiss 立即隐藏当前提示。
func (c *Channel) Dismiss() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}
