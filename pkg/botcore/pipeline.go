package botcore

// StreamChunk 描述处理结果的一个片段。
type StreamChunk struct {
	Content string
	Payload any // 结构化结果，如 exchange.Result；展示层已处理时 Content 为空
	IsFinal bool
}

// PipelineInvoker 抽象对一次 Update 的处理。
type PipelineInvoker interface {
	Trigger(update Update, streamID string) <-chan StreamChunk
}

// PipelineFunc 便于直接以函数充当 PipelineInvoker。
type PipelineFunc func(update Update, streamID string) <-chan StreamChunk

// Trigger 实现 PipelineInvoker 接口。
func (f PipelineFunc) Trigger(update Update, streamID string) <-chan StreamChunk {
	if f == nil {
		return nil
	}
	return f(update, streamID)
}

// Drain 读取通道直到关闭，返回拼接后的文本与最后一个非空 Payload。
func Drain(ch <-chan StreamChunk) (string, any) {
	if ch == nil {
		return "", nil
	}
	var (
		text    []byte
		payload any
	)
	for chunk := range ch {
		text = append(text, chunk.Content...)
		if chunk.Payload != nil {
			payload = chunk.Payload
		}
	}
	return string(text), payload
}
