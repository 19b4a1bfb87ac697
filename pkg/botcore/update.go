package botcore

// Update 描述来自某个展示层的一次用户输入。
type Update struct {
	ID        string // 输入事件 ID
	SessionID string // 当前标签页的会话令牌
	Surface   string // 来源展示层，如 terminal / http
	Text      string // 用户输入的原文
}
