package exchange

import "github.com/IMBotPlatform/AskWidget/pkg/render"

// Surface 是控制器驱动的展示层。
// 控制器只通过该接口输出，不关心最终是终端、HTML 还是测试记录器。
type Surface interface {
	// ShowMessage 追加一条已渲染的消息。
	ShowMessage(msg render.Message)
	// ShowSources 在上一条回复下方追加来源块。
	ShowSources(block render.SourceBlock)
	// ShowPending 显示临时的等待提示，id 用于之后移除。
	ShowPending(id, text string)
	// ClearPending 移除对应的等待提示。
	ClearPending(id string)
	// SetInputEnabled 启用/禁用输入。
	SetInputEnabled(enabled bool)
	// Reset 清空整个对话区域。
	Reset()
}

// NopSurface 丢弃所有输出，用于无界面运行（例如 HTTP 转发）。
type NopSurface struct{}

func (NopSurface) ShowMessage(render.Message)     {}
func (NopSurface) ShowSources(render.SourceBlock) {}
func (NopSurface) ShowPending(string, string)     {}
func (NopSurface) ClearPending(string)            {}
func (NopSurface) SetInputEnabled(bool)           {}
func (NopSurface) Reset()                         {}

// MultiSurface 把输出按顺序转发给多个展示层。
type MultiSurface []Surface

func (m MultiSurface) ShowMessage(msg render.Message) {
	for _, s := range m {
		s.ShowMessage(msg)
	}
}

func (m MultiSurface) ShowSources(block render.SourceBlock) {
	for _, s := range m {
		s.ShowSources(block)
	}
}

func (m MultiSurface) ShowPending(id, text string) {
	for _, s := range m {
		s.ShowPending(id, text)
	}
}

func (m MultiSurface) ClearPending(id string) {
	for _, s := range m {
		s.ClearPending(id)
	}
}

func (m MultiSurface) SetInputEnabled(enabled bool) {
	for _, s := range m {
		s.SetInputEnabled(enabled)
	}
}

func (m MultiSurface) Reset() {
	for _, s := range m {
		s.Reset()
	}
}
