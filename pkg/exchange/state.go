package exchange

// State 是单次交换的状态机状态。
//
//	Idle -> Sending -> (Success | Failed) -> Idle
type State int

const (
	Idle State = iota
	Sending
	Success
	Failed
)

var stateNames = [...]string{"idle", "sending", "success", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Mode 决定发往问答服务的请求体形状。
type Mode string

const (
	// ModeHistory 发送 {query, history}，历史由客户端持有。
	ModeHistory Mode = "history"
	// ModeSession 只发送 {query, sessionId}，由服务端保存上下文。
	ModeSession Mode = "session"
)

// ParseMode 解析配置中的模式，空值视为 ModeHistory。
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case "", ModeHistory:
		return ModeHistory, true
	case ModeSession:
		return ModeSession, true
	default:
		return ModeHistory, false
	}
}
