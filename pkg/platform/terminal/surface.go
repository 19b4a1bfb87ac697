// Package terminal 在终端中展示挂件对话：lipgloss 样式 + glamour 渲染 Markdown。
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/IMBotPlatform/AskWidget/pkg/askapi"
	"github.com/IMBotPlatform/AskWidget/pkg/notify"
	"github.com/IMBotPlatform/AskWidget/pkg/render"
)

// clearLine 把光标移回行首并清除整行。
const clearLine = "\r\033[K"

// MarkdownRenderer 把 Markdown 渲染为终端文本，*glamour.TermRenderer 实现了它。
type MarkdownRenderer interface {
	Render(in string) (string, error)
}

// Surface 实现 exchange.Surface，输出到任意 io.Writer。
type Surface struct {
	mu       sync.Mutex
	out      io.Writer
	md       MarkdownRenderer
	styles   Styles
	logger   *zap.Logger
	pending  string // 当前显示中的等待提示 ID
	inputOn  bool
	userName string
}

// Option 自定义 Surface。
type Option func(*Surface)

// WithMarkdown 替换 Markdown 渲染器。
func WithMarkdown(md MarkdownRenderer) Option {
	return func(s *Surface) {
		s.md = md
	}
}

// WithStyles 替换样式。
func WithStyles(st Styles) Option {
	return func(s *Surface) {
		s.styles = st
	}
}

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) Option {
	return func(s *Surface) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewGlamour 创建自动适配终端背景的 glamour 渲染器。
func NewGlamour(width int) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
}

// New 创建终端展示层；未指定 Markdown 渲染器时使用 80 列的 glamour。
func New(out io.Writer, opts ...Option) *Surface {
	s := &Surface{
		out:      out,
		styles:   DefaultStyles(),
		logger:   zap.NewNop(),
		inputOn:  true,
		userName: "Tú",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.md == nil {
		if md, err := NewGlamour(80); err == nil {
			s.md = md
		} else {
			s.logger.Warn("glamour unavailable, printing plain text", zap.Error(err))
		}
	}
	return s
}

// write 在持锁状态下输出，先擦除尚未移除的等待提示。
func (s *Surface) write(text string) {
	if s.pending != "" {
		fmt.Fprint(s.out, clearLine)
		s.pending = ""
	}
	fmt.Fprint(s.out, text)
}

// ShowMessage 实现 exchange.Surface。
func (s *Surface) ShowMessage(msg render.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Kind {
	case render.KindUser:
		s.write(s.styles.User.Render(s.userName+":") + " " + msg.Text + "\n")
	case render.KindError:
		s.write(s.styles.Error.Render("✗ "+msg.Text) + "\n")
	default:
		s.write(s.markdown(msg.Text))
	}
}

func (s *Surface) markdown(text string) string {
	if s.md != nil {
		out, err := s.md.Render(text)
		if err == nil {
			return strings.TrimRight(out, "\n") + "\n"
		}
		s.logger.Debug("markdown render failed", zap.Error(err))
	}
	return s.styles.Assistant.Render(text) + "\n"
}

// ShowSources 实现 exchange.Surface。
func (s *Surface) ShowSources(block render.SourceBlock) {
	if len(block.Items) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString("Fuentes:\n")
	for _, item := range block.Items {
		fmt.Fprintf(&b, "%d. %s", item.Index, item.Label)
		if item.Linked && item.URL != item.Label {
			b.WriteString(" " + s.styles.Link.Render(item.URL))
		}
		b.WriteString("\n")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(s.styles.Sources.Render(strings.TrimRight(b.String(), "\n")) + "\n")
}

// ShowPending 实现 exchange.Surface；提示不换行，之后会被擦除。
func (s *Surface) ShowPending(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(s.styles.Pending.Render(text))
	s.pending = id
}

// ClearPending 实现 exchange.Surface。
func (s *Surface) ClearPending(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == id {
		fmt.Fprint(s.out, clearLine)
		s.pending = ""
	}
}

// SetInputEnabled 实现 exchange.Surface。
func (s *Surface) SetInputEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputOn = enabled
}

// InputEnabled 报告当前是否接受输入。
func (s *Surface) InputEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inputOn
}

// Reset 实现 exchange.Surface。
func (s *Surface) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(s.styles.Muted.Render("──── nueva conversación ────") + "\n")
}

// Prompt 输出输入提示符。
func (s *Surface) Prompt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(s.styles.Prompt.Render("> "))
}

// Println 输出一段普通文本（命令输出等）。
func (s *Surface) Println(text string) {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(text + "\n")
}

// Notice 是 notify.Sink，按级别着色输出。
func (s *Surface) Notice(n notify.Notice) {
	style := s.styles.Muted
	switch n.Level {
	case notify.Success:
		style = s.styles.Success
	case notify.Warning:
		style = s.styles.Warning
	case notify.Error:
		style = s.styles.Error
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(style.Render("• "+n.Text) + "\n")
}

// Status 输出连接状态，可直接作为 askapi.Poller 的回调。
func (s *Surface) Status(c askapi.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.write(s.styles.Muted.Render(c.String()) + "\n")
}
