// Package render 把不可信的回复文本转换为可安全展示的内容。
//
// 助手消息的处理顺序固定为：解析 Markdown -> HTML 清洗 -> 强制链接新窗口打开。
// 先清洗后解析无法防御解析器重新引入的不安全标记，因此顺序不能调换。
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Kind 标识一条展示消息的样式。
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindError     Kind = "error"
	KindWelcome   Kind = "welcome"
)

const (
	linkTarget = "_blank"
	linkRel    = "noopener noreferrer"
)

// Message 是渲染后的消息。
type Message struct {
	Kind Kind
	// HTML 是可直接插入页面的安全片段。
	HTML template.HTML
	// Text 是去除控制字符后的原文，供终端等非 HTML 表面使用。
	Text string
}

// Renderer 持有 Markdown 解析器与清洗策略，可并发使用。
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	logger *zap.Logger
}

// Option 自定义 Renderer。
type Option func(*Renderer)

// WithLogger 注入日志记录器。
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) {
		r.logger = l
	}
}

// New 创建 Renderer。
func New(opts ...Option) *Renderer {
	r := &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough, extension.Table),
			// 原始 HTML 原样交给 bluemonday 清洗，避免 goldmark 整行丢弃
			goldmark.WithRendererOptions(gmhtml.WithHardWraps(), gmhtml.WithUnsafe()),
		),
		policy: newPolicy(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// newPolicy 在 UGC 白名单基础上放行 a 标签的 target / rel。
func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowAttrs("rel").Matching(regexp.MustCompile(`^[a-z ]+$`)).OnElements("a")
	p.RequireNoFollowOnLinks(false)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Assistant 渲染助手回复（Markdown 子集）。
func (r *Renderer) Assistant(raw string) Message {
	return Message{Kind: KindAssistant, HTML: r.Markdown(raw), Text: StripControl(raw)}
}

// Markdown 执行 解析 -> 清洗 -> 链接加固 三个阶段。
// 任一阶段失败都退化为纯文本转义，保证输出始终安全。
func (r *Renderer) Markdown(raw string) template.HTML {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(raw), &buf); err != nil {
		r.logger.Warn("markdown convert failed, falling back to text", zap.Error(err))
		return plainHTML(raw)
	}

	clean := r.policy.Sanitize(buf.String())

	hardened, err := hardenLinks(clean)
	if err != nil {
		r.logger.Warn("link hardening failed, falling back to text", zap.Error(err))
		return plainHTML(raw)
	}
	return template.HTML(strings.TrimSpace(hardened))
}

// User 渲染用户输入：纯文本，不做任何标记解释。
func (r *Renderer) User(raw string) Message {
	return Message{Kind: KindUser, HTML: plainHTML(raw), Text: StripControl(raw)}
}

// Error 渲染错误提示，使用助手样式但内容按纯文本处理。
func (r *Renderer) Error(text string) Message {
	return Message{Kind: KindError, HTML: plainHTML(text), Text: StripControl(text)}
}

// Welcome 渲染欢迎语；欢迎语来自配置，同样走 Markdown 管线。
func (r *Renderer) Welcome(text string) Message {
	return Message{Kind: KindWelcome, HTML: r.Markdown(text), Text: StripControl(text)}
}

// plainHTML 转义文本并把换行转换为 <br>。
func plainHTML(raw string) template.HTML {
	escaped := template.HTMLEscapeString(StripControl(raw))
	return template.HTML(strings.ReplaceAll(escaped, "\n", "<br>"))
}

// StripControl 去掉除换行与制表符外的控制字符，防止终端转义序列注入。
func StripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r < 0x20 || r == 0x7f:
			return -1
		case r >= 0x80 && r <= 0x9f:
			return -1
		}
		return r
	}, s)
}

// hardenLinks 强制所有 a 标签在新窗口打开且不泄露 referrer / opener。
func hardenLinks(fragment string) (string, error) {
	if !strings.Contains(fragment, "<a") {
		return fragment, nil
	}
	container := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), container)
	if err != nil {
		return "", fmt.Errorf("parse fragment: %w", err)
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			setAttr(n, "target", linkTarget)
			setAttr(n, "rel", linkRel)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	var out strings.Builder
	for _, n := range nodes {
		walk(n)
		if err := html.Render(&out, n); err != nil {
			return "", fmt.Errorf("render fragment: %w", err)
		}
	}
	return out.String(), nil
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
