// Package exchange 实现单次问答交换的状态机：
// 记录用户轮次 -> 快照历史 -> 调用问答服务 -> 分类失败 -> 渲染并记录回复。
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/IMBotPlatform/AskWidget/pkg/askapi"
	"github.com/IMBotPlatform/AskWidget/pkg/botcore"
	"github.com/IMBotPlatform/AskWidget/pkg/classify"
	"github.com/IMBotPlatform/AskWidget/pkg/history"
	"github.com/IMBotPlatform/AskWidget/pkg/notify"
	"github.com/IMBotPlatform/AskWidget/pkg/render"
	"github.com/IMBotPlatform/AskWidget/pkg/session"
)

const (
	// DefaultPendingText 是等待回复时显示的提示。
	DefaultPendingText = "Pensando..."
	// DefaultWelcome 是历史为空时显示的欢迎语。
	DefaultWelcome = "¡Hola! Soy tu asistente virtual. ¿En qué puedo ayudarte hoy?"
	// BusyText 是上一轮尚未结束时再次提交得到的提示。
	BusyText = "Espera a que termine la respuesta anterior."
	// ClearedText 是清空历史后的通知文案。
	ClearedText = "Historial borrado. Empezamos una nueva conversación."
)

var (
	// ErrEmptyQuery 表示提交的问题为空或只有空白，不会产生任何副作用。
	ErrEmptyQuery = errors.New("empty query")
	// ErrBusy 表示已有交换处于 Sending 状态且未允许并发提交。
	ErrBusy = errors.New("exchange in flight")
)

// Asker 抽象问答服务；askapi.Client 与 ai.Service 都实现了它。
type Asker interface {
	Ask(ctx context.Context, req askapi.Request) (*askapi.Response, error)
}

// Result 是一次交换的结果：成功时 Failure 为 nil。
type Result struct {
	Answer     string
	Sources    []askapi.Source
	Confidence string
	Failure    *classify.Failure
}

// OK 报告交换是否成功。
func (r Result) OK() bool {
	return r.Failure == nil
}

// Controller 持有一个挂件实例的会话身份、历史与展示层。
// 每个实例相互独立，可并发调用。
type Controller struct {
	asker    Asker
	history  *history.Store
	identity *session.Identity
	renderer *render.Renderer
	surface  Surface
	notices  *notify.Channel
	logger   *zap.Logger

	mode            Mode
	welcome         string
	pendingText     string
	timeout         time.Duration
	allowOverlap    bool
	persistFailures bool
	onTransition    func(State)

	mu       sync.Mutex
	state    State
	inFlight int
	seq      uint64
}

// Option 自定义 Controller。
type Option func(*Controller)

// WithSurface 设置展示层，默认 NopSurface。
func WithSurface(s Surface) Option {
	return func(c *Controller) {
		if s != nil {
			c.surface = s
		}
	}
}

// WithRenderer 替换内容渲染器。
func WithRenderer(r *render.Renderer) Option {
	return func(c *Controller) {
		if r != nil {
			c.renderer = r
		}
	}
}

// WithNotifications 设置通知通道，与建议表单共用。
func WithNotifications(ch *notify.Channel) Option {
	return func(c *Controller) {
		c.notices = ch
	}
}

// WithMode 设置请求体形状。
func WithMode(m Mode) Option {
	return func(c *Controller) {
		c.mode = m
	}
}

// WithWelcome 覆盖欢迎语。
func WithWelcome(text string) Option {
	return func(c *Controller) {
		if strings.TrimSpace(text) != "" {
			c.welcome = text
		}
	}
}

// WithPendingText 覆盖等待提示。
func WithPendingText(text string) Option {
	return func(c *Controller) {
		if text != "" {
			c.pendingText = text
		}
	}
}

// WithTimeout 为每次调用附加超时；0 表示不限制。
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithAllowOverlap 允许在 Sending 状态下继续提交。
// 开启后每个回复仍只对应发起它的那次 Submit，用户轮次按提交顺序记录。
func WithAllowOverlap(allow bool) Option {
	return func(c *Controller) {
		c.allowOverlap = allow
	}
}

// WithPersistFailures 将失败提示作为 assistant 轮次写入历史。
func WithPersistFailures(persist bool) Option {
	return func(c *Controller) {
		c.persistFailures = persist
	}
}

// WithTransitionHook 在每次状态变化后回调，回调在持锁状态下执行，不能反向调用 Controller。
func WithTransitionHook(fn func(State)) Option {
	return func(c *Controller) {
		c.onTransition = fn
	}
}

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// New 创建 Controller。
// Parameters:
//   - asker: 问答服务
//   - hist: 有界历史缓冲
//   - identity: 会话身份，精简模式下作为 sessionId 发送
func New(asker Asker, hist *history.Store, identity *session.Identity, opts ...Option) *Controller {
	c := &Controller{
		asker:       asker,
		history:     hist,
		identity:    identity,
		renderer:    render.New(),
		surface:     NopSurface{},
		logger:      zap.NewNop(),
		mode:        ModeHistory,
		welcome:     DefaultWelcome,
		pendingText: DefaultPendingText,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State 返回当前状态。交换结束后立即回到 Idle。
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open 在挂件打开时调用：历史为空显示欢迎语，否则按顺序重放历史。
func (c *Controller) Open() {
	turns := c.history.Snapshot()
	if len(turns) == 0 {
		c.surface.ShowMessage(c.renderer.Welcome(c.welcome))
		return
	}
	for _, t := range turns {
		if t.Role == history.RoleUser {
			c.surface.ShowMessage(c.renderer.User(t.Content))
		} else {
			c.surface.ShowMessage(c.renderer.Assistant(t.Content))
		}
	}
}

// Clear 清空历史并重新生成会话令牌，随后显示欢迎语。
// 有交换在途时返回 ErrBusy。
func (c *Controller) Clear() error {
	c.mu.Lock()
	if c.inFlight > 0 {
		c.mu.Unlock()
		return ErrBusy
	}
	c.history.Clear()
	if c.identity != nil {
		c.identity.Regenerate()
	}
	c.mu.Unlock()

	c.surface.Reset()
	c.surface.ShowMessage(c.renderer.Welcome(c.welcome))
	if c.notices != nil {
		c.notices.Post(notify.Success, ClearedText)
	}
	c.logger.Info("conversation cleared")
	return nil
}

// Submit 执行一次交换。
//
// 流程：
//
//	trim(query) == "" -> ErrEmptyQuery（无副作用）
//	Sending 且未允许并发 -> ErrBusy（无副作用）
//	append(user) -> snapshot -> pending -> 禁用输入 -> Ask
//	  成功: 移除 pending -> 渲染回复 -> append(assistant) -> 来源块
//	  失败: 移除 pending -> 分类 -> 渲染一条错误消息
//	无论结果如何都重新启用输入并回到 Idle
//
// 所有服务端失败都体现在 Result.Failure 中，返回的 error 只可能是 ErrEmptyQuery 或 ErrBusy。
func (c *Controller) Submit(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}

	req, pendingID, err := c.begin(query)
	if err != nil {
		return Result{}, err
	}

	// Sending 之后无论发生什么都要回到 Idle；展示层中途 panic 记为 Failed
	var (
		result Result
		done   bool
	)
	defer func() {
		c.finish(done && result.OK())
	}()

	c.surface.ShowMessage(c.renderer.User(query))
	c.surface.ShowPending(pendingID, c.pendingText)
	if !c.allowOverlap {
		c.surface.SetInputEnabled(false)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, askErr := c.ask(ctx, req)
	c.surface.ClearPending(pendingID)

	if askErr != nil {
		result.Failure = toFailure(askErr)
		c.reportFailure(result.Failure)
		done = true
		return result, nil
	}

	result.Answer = resp.Answer
	result.Sources = resp.Sources
	result.Confidence = resp.Confidence

	c.surface.ShowMessage(c.renderer.Assistant(resp.Answer))
	c.history.Append(history.RoleAssistant, resp.Answer)
	if len(resp.Sources) > 0 {
		c.surface.ShowSources(c.renderer.Sources(toRenderSources(resp.Sources)))
	}
	done = true
	return result, nil
}

// begin 在锁内完成 Idle -> Sending：记录用户轮次并捕获快照。
func (c *Controller) begin(query string) (askapi.Request, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight > 0 && !c.allowOverlap {
		return askapi.Request{}, "", ErrBusy
	}
	c.inFlight++
	c.seq++
	c.transition(Sending)

	c.history.Append(history.RoleUser, query)
	req := askapi.Request{Query: query}
	if c.mode == ModeSession && c.identity != nil {
		req.SessionID = c.identity.Token()
	} else {
		req.History = c.history.Snapshot()
	}
	return req, fmt.Sprintf("pending-%d", c.seq), nil
}

// finish 完成 Sending -> (Success | Failed) -> Idle，并保证输入被重新启用。
func (c *Controller) finish(ok bool) {
	c.mu.Lock()
	c.inFlight--
	if ok {
		c.transition(Success)
	} else {
		c.transition(Failed)
	}
	if c.inFlight == 0 {
		c.transition(Idle)
	} else {
		c.transition(Sending)
	}
	c.mu.Unlock()

	if !c.allowOverlap {
		c.surface.SetInputEnabled(true)
	}
}

func (c *Controller) transition(s State) {
	c.state = s
	if c.onTransition != nil {
		c.onTransition(s)
	}
}

func (c *Controller) ask(ctx context.Context, req askapi.Request) (resp *askapi.Response, err error) {
	if c.asker == nil {
		return nil, &askapi.TransportError{Err: errors.New("no ask service configured")}
	}
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("ask service panic: %v", r)
		}
	}()
	resp, err = c.asker.Ask(ctx, req)
	if err == nil && resp == nil {
		err = &askapi.DecodeError{Err: askapi.ErrNoAnswer}
	}
	return resp, err
}

func (c *Controller) reportFailure(f *classify.Failure) {
	c.logger.Warn("exchange failed",
		zap.String("kind", f.Kind.String()),
		zap.Int("status", f.Status),
		zap.String("request_id", f.RequestID),
		zap.String("detail", f.Detail),
	)
	c.surface.ShowMessage(c.renderer.Error(f.Message))
	if c.persistFailures {
		c.history.Append(history.RoleAssistant, f.Message)
	}
}

// toFailure 将问答服务返回的错误映射到固定分类。
func toFailure(err error) *classify.Failure {
	var (
		statusErr    *askapi.StatusError
		transportErr *askapi.TransportError
		decodeErr    *askapi.DecodeError
	)
	switch {
	case errors.As(err, &transportErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return classify.NewFailure(classify.Classify(0, classify.TransportNetwork, ""), 0, "", err)
	case errors.As(err, &statusErr):
		c := classify.Classify(statusErr.Status, classify.TransportNone, statusErr.Message)
		return classify.NewFailure(c, statusErr.Status, statusErr.RequestID, err)
	case errors.As(err, &decodeErr):
		c := classify.Classify(decodeErr.Status, classify.TransportDecode, "")
		return classify.NewFailure(c, decodeErr.Status, "", err)
	default:
		return classify.NewFailure(classify.Classify(0, classify.TransportNone, ""), 0, "", err)
	}
}

func toRenderSources(in []askapi.Source) []render.Source {
	out := make([]render.Source, len(in))
	for i, s := range in {
		out[i] = render.Source{URL: s.URL, Excerpt: s.Excerpt}
	}
	return out
}

// Trigger 实现 botcore.PipelineInvoker，供命令路由把普通文本交给控制器。
// 结果已经通过 Surface 展示，最终片段只在 Payload 中携带 Result。
func (c *Controller) Trigger(update botcore.Update, streamID string) <-chan botcore.StreamChunk {
	out := make(chan botcore.StreamChunk, 1)
	go func() {
		defer close(out)
		result, err := c.Submit(context.Background(), update.Text)
		switch {
		case errors.Is(err, ErrEmptyQuery):
			return
		case errors.Is(err, ErrBusy):
			out <- botcore.StreamChunk{Content: BusyText, Payload: err, IsFinal: true}
		default:
			out <- botcore.StreamChunk{Payload: result, IsFinal: true}
		}
	}()
	return out
}
