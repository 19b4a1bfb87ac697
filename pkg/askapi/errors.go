package askapi

import (
	"errors"
	"fmt"
)

// ErrNoAnswer 表示 2xx 响应中缺少 answer 字段。
var ErrNoAnswer = errors.New("response has no answer")

// StatusError 表示服务返回了非 2xx 状态码。
type StatusError struct {
	Status    int
	Message   string // 错误体中的 error 字段
	RequestID string
	Body      string // 错误体无法解析时保留的原文（截断）
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("ask service error: status=%d message=%s", e.Status, e.Message)
	}
	return fmt.Sprintf("ask service error: status=%d body=%s", e.Status, e.Body)
}

// TransportError 表示请求未能拿到响应（网络中断、DNS、跨域拒绝等）。
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ask service unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError 表示 2xx 响应体无法解析为预期结构。
type DecodeError struct {
	Status int
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("ask service response invalid (status=%d): %v", e.Status, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
