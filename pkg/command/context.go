package command

import (
	"context"

	"github.com/IMBotPlatform/AskWidget/pkg/botcore"
)

type keyExecutionContext struct{}

// Actions 是命令可以触发的挂件动作。
type Actions interface {
	// ClearConversation 清空历史并重新生成会话令牌。
	ClearConversation() error
	// SubmitSuggestion 通过建议通道发送一段文本。
	SubmitSuggestion(ctx context.Context, text string) error
	// HealthStatus 立即检查一次服务状态并返回展示文本。
	HealthStatus(ctx context.Context) string
}

// ExecutionContext 为命令 handler 提供当前输入与可用动作。
type ExecutionContext struct {
	Update      botcore.Update
	StreamID    string
	ArgumentRaw string // 命令之后的原始参数串，保留空白
	Actions     Actions
}

// WithExecutionContext 将 ExecutionContext 注入到 context.Context 中。
func WithExecutionContext(ctx context.Context, execCtx *ExecutionContext) context.Context {
	return context.WithValue(ctx, keyExecutionContext{}, execCtx)
}

// FromContext 取出 ExecutionContext，不存在时返回 nil。
func FromContext(ctx context.Context) *ExecutionContext {
	if ctx == nil {
		return nil
	}
	execCtx, _ := ctx.Value(keyExecutionContext{}).(*ExecutionContext)
	return execCtx
}
