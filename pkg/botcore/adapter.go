package botcore

// Adapter 将展示层的原始输入映射为 Update。
type Adapter interface {
	Normalize(raw any) (Update, error)
}

// AdapterFunc 允许直接以函数形式实现 Adapter。
type AdapterFunc func(raw any) (Update, error)

// Normalize 实现 Adapter 接口。
func (f AdapterFunc) Normalize(raw any) (Update, error) {
	if f == nil {
		return Update{}, nil
	}
	return f(raw)
}
