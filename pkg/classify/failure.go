package classify

import "fmt"

// Failure 是一次失败交换的结构化描述，实现 error 接口。
// RequestID 只用于日志，不展示给终端用户。
type Failure struct {
	Kind      Kind
	Message   string // 面向用户的提示
	Detail    string // 技术细节，仅用于日志
	Status    int
	RequestID string
	Err       error
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("exchange failed [%s] status=%d: %s", f.Kind, f.Status, f.Detail)
	}
	return fmt.Sprintf("exchange failed [%s]: %s", f.Kind, f.Detail)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// NewFailure 基于分类结果构造 Failure。
func NewFailure(c Classification, status int, requestID string, err error) *Failure {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &Failure{
		Kind:      c.Kind,
		Message:   c.Message,
		Detail:    detail,
		Status:    status,
		RequestID: requestID,
		Err:       err,
	}
}
