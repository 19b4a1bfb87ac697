package botcore

// Matcher 返回 true 表示该路由应该处理此 Update。
type Matcher func(update Update) bool

// Route 定义单条路由规则。
type Route struct {
	Name    string
	Matcher Matcher
	Handler PipelineInvoker
}

// Chain 按顺序匹配路由，第一条命中的路由处理 Update；
// 全部未命中时交给默认处理器（通常是问答控制器）。
type Chain struct {
	routes         []Route
	defaultHandler PipelineInvoker
}

// NewChain 创建路由链。
func NewChain(defaultHandler PipelineInvoker) *Chain {
	return &Chain{defaultHandler: defaultHandler}
}

// AddRoute 追加一条路由。
func (c *Chain) AddRoute(name string, matcher Matcher, handler PipelineInvoker) {
	c.routes = append(c.routes, Route{Name: name, Matcher: matcher, Handler: handler})
}

// Trigger 实现 PipelineInvoker 接口。
func (c *Chain) Trigger(update Update, streamID string) <-chan StreamChunk {
	for _, route := range c.routes {
		if route.Matcher(update) {
			return route.Handler.Trigger(update, streamID)
		}
	}
	if c.defaultHandler != nil {
		return c.defaultHandler.Trigger(update, streamID)
	}
	// 无匹配也无默认处理器：静默
	return nil
}
