package history

import "fmt"

// Role 标识一轮对话的发言方。
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid 判断 role 是否为已知取值。
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn 表示对话中的一条消息，追加后不可变。
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func (t Turn) String() string {
	return fmt.Sprintf("%s: %s", t.Role, t.Content)
}
