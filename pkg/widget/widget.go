// Package widget 组装一个挂件实例：存储、会话、历史、控制器、健康检查、建议通道与命令路由。
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/IMBotPlatform/AskWidget/pkg/askapi"
	"github.com/IMBotPlatform/AskWidget/pkg/botcore"
	"github.com/IMBotPlatform/AskWidget/pkg/command"
	"github.com/IMBotPlatform/AskWidget/pkg/config"
	"github.com/IMBotPlatform/AskWidget/pkg/exchange"
	"github.com/IMBotPlatform/AskWidget/pkg/history"
	"github.com/IMBotPlatform/AskWidget/pkg/notify"
	"github.com/IMBotPlatform/AskWidget/pkg/render"
	"github.com/IMBotPlatform/AskWidget/pkg/session"
	"github.com/IMBotPlatform/AskWidget/pkg/storage"
	"github.com/IMBotPlatform/AskWidget/pkg/suggest"
)

var (
	// ErrSuggestionsDisabled 表示没有配置建议通道。
	ErrSuggestionsDisabled = errors.New("suggestion channel not configured")
	// ErrUnsupportedInput 表示 Normalize 收到了无法识别的输入类型。
	ErrUnsupportedInput = errors.New("unsupported input")
)

var _ botcore.Adapter = (*Widget)(nil)

// Suggester 发送一条建议。
type Suggester interface {
	Send(ctx context.Context, message string) error
}

// Widget 是一个独立的挂件实例，多个实例之间不共享状态。
type Widget struct {
	Controller *exchange.Controller
	History    *history.Store
	Identity   *session.Identity
	Notices    *notify.Channel
	Router     *botcore.Chain

	surfaceName string
	poller      *askapi.Poller
	suggester   Suggester
	logger      *zap.Logger
}

type options struct {
	storage     storage.Storage
	health      askapi.HealthChecker
	onHealth    func(askapi.Connection)
	suggester   Suggester
	renderer    *render.Renderer
	notices     *notify.Channel
	surfaceName string
	logger      *zap.Logger
}

// Option 自定义 Widget。
type Option func(*options)

// WithStorage 覆盖标签页存储（默认按 state_dir 选择文件或内存）。
func WithStorage(st storage.Storage) Option {
	return func(o *options) { o.storage = st }
}

// WithHealthChecker 启用健康轮询，onChange 在状态变化时回调。
func WithHealthChecker(hc askapi.HealthChecker, onChange func(askapi.Connection)) Option {
	return func(o *options) {
		o.health = hc
		o.onHealth = onChange
	}
}

// WithSuggester 覆盖建议通道。
func WithSuggester(s Suggester) Option {
	return func(o *options) { o.suggester = s }
}

// WithRenderer 覆盖内容渲染器。
func WithRenderer(r *render.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithNotifications 使用外部创建的通知通道。
func WithNotifications(ch *notify.Channel) Option {
	return func(o *options) { o.notices = ch }
}

// WithSurfaceName 设置 Update.Surface。
func WithSurfaceName(name string) Option {
	return func(o *options) { o.surfaceName = name }
}

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New 按配置组装挂件。
func New(cfg config.Widget, asker exchange.Asker, surface exchange.Surface, opts ...Option) (*Widget, error) {
	o := options{logger: zap.NewNop(), surfaceName: "widget"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	st := o.storage
	if st == nil {
		if cfg.StateDir != "" {
			fs, err := storage.NewFileStorage(cfg.StateDir)
			if err != nil {
				return nil, fmt.Errorf("open state dir: %w", err)
			}
			st = fs
		} else {
			st = storage.NewMemoryStorage()
		}
	}

	notices := o.notices
	if notices == nil {
		notices = notify.New()
	}
	renderer := o.renderer
	if renderer == nil {
		renderer = render.New(render.WithLogger(o.logger))
	}

	hist := history.NewStore(st, history.WithMaxTurns(cfg.MaxTurns), history.WithLogger(o.logger))
	identity := session.NewIdentity(st, session.WithLogger(o.logger))

	ctrl := exchange.New(asker, hist, identity,
		exchange.WithSurface(surface),
		exchange.WithRenderer(renderer),
		exchange.WithNotifications(notices),
		exchange.WithMode(cfg.ExchangeMode()),
		exchange.WithWelcome(cfg.Welcome),
		exchange.WithTimeout(cfg.RequestTimeout),
		exchange.WithAllowOverlap(cfg.AllowOverlap),
		exchange.WithPersistFailures(cfg.PersistFailures),
		exchange.WithLogger(o.logger),
	)

	w := &Widget{
		Controller:  ctrl,
		History:     hist,
		Identity:    identity,
		Notices:     notices,
		surfaceName: o.surfaceName,
		suggester:   o.suggester,
		logger:      o.logger,
	}
	if w.suggester == nil && cfg.Suggestion.Enabled() {
		w.suggester = suggest.NewSender(suggest.Credentials{
			ServiceID:  cfg.Suggestion.ServiceID,
			TemplateID: cfg.Suggestion.TemplateID,
			PublicKey:  cfg.Suggestion.PublicKey,
		}, notices, suggest.WithEndpoint(cfg.Suggestion.Endpoint), suggest.WithLogger(o.logger))
	}
	if o.health != nil {
		w.poller = askapi.NewPoller(o.health, cfg.HealthInterval, o.onHealth, o.logger)
	}

	w.Router = botcore.NewChain(ctrl)
	commands := command.NewManager(command.NewWidgetFactory(), w, command.WithLogger(o.logger))
	w.Router.AddRoute("command", commands.Match, commands)
	return w, nil
}

// Open 展示欢迎语或重放历史。
func (w *Widget) Open() {
	w.Controller.Open()
}

// Update 把一行用户输入包装成 Update。
func (w *Widget) Update(text string) botcore.Update {
	return botcore.Update{
		ID:        uuid.NewString(),
		SessionID: w.Identity.Token(),
		Surface:   w.surfaceName,
		Text:      text,
	}
}

// Normalize 实现 botcore.Adapter，接受 string 或 []byte。
func (w *Widget) Normalize(raw any) (botcore.Update, error) {
	switch v := raw.(type) {
	case string:
		return w.Update(strings.TrimRight(v, "\r\n")), nil
	case []byte:
		return w.Update(strings.TrimRight(string(v), "\r\n")), nil
	default:
		return botcore.Update{}, fmt.Errorf("%w: %T", ErrUnsupportedInput, raw)
	}
}

// Handle 路由一行输入并等待处理结束，返回命令输出与最终 Payload。
func (w *Widget) Handle(u botcore.Update) (string, any) {
	return botcore.Drain(w.Router.Trigger(u, u.ID))
}

// RunHealth 在 ctx 结束前周期性检查服务状态；未配置健康检查时立即返回。
func (w *Widget) RunHealth(ctx context.Context) {
	if w.poller == nil {
		return
	}
	w.poller.Run(ctx)
}

// ClearConversation 实现 command.Actions。
func (w *Widget) ClearConversation() error {
	return w.Controller.Clear()
}

// SubmitSuggestion 实现 command.Actions。
func (w *Widget) SubmitSuggestion(ctx context.Context, text string) error {
	if w.suggester == nil {
		w.Notices.Post(notify.Warning, "El envío de sugerencias no está configurado.")
		return ErrSuggestionsDisabled
	}
	return w.suggester.Send(ctx, text)
}

// HealthStatus 实现 command.Actions。
func (w *Widget) HealthStatus(ctx context.Context) string {
	if w.poller == nil {
		return askapi.Unknown.String()
	}
	return w.poller.Check(ctx).String()
}
