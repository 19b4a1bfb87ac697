package command

import (
	"sync"

	"github.com/IMBotPlatform/AskWidget/pkg/botcore"
)

// StreamWriter 把 Cobra 的输出转成 StreamChunk，每次 Write 发送一个增量片段。
// Close 之后的写入被丢弃。
type StreamWriter struct {
	mu     sync.Mutex
	ch     chan<- botcore.StreamChunk
	closed bool
}

// NewStreamWriter 创建 StreamWriter。
func NewStreamWriter(ch chan<- botcore.StreamChunk) *StreamWriter {
	return &StreamWriter{ch: ch}
}

// Write 实现 io.Writer。
func (w *StreamWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return len(p), nil
	}
	w.ch <- botcore.StreamChunk{Content: string(p)}
	return len(p), nil
}

// Close 停止转发后续写入。
func (w *StreamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}
