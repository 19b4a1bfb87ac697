// Package transcript 记录挂件输出的 HTML 片段，并可导出为独立页面。
package transcript

import (
	"html/template"
	"io"
	"sync"

	"github.com/IMBotPlatform/AskWidget/pkg/render"
)

// Entry 是转录中的一条记录。
type Entry struct {
	Class string
	HTML  template.HTML
}

// Transcript 实现 exchange.Surface，按出现顺序保存净化后的片段。
type Transcript struct {
	mu      sync.Mutex
	title   string
	entries []Entry
	pending map[string]string
	order   []string
	inputOn bool
}

// New 创建转录，title 用作导出页面标题。
func New(title string) *Transcript {
	if title == "" {
		title = "Asistente Virtual"
	}
	return &Transcript{
		title:   title,
		pending: make(map[string]string),
		inputOn: true,
	}
}

func className(k render.Kind) string {
	switch k {
	case render.KindUser:
		return "message user"
	case render.KindAssistant:
		return "message assistant"
	case render.KindError:
		return "message error"
	default:
		return "message welcome"
	}
}

// ShowMessage 实现 exchange.Surface。
func (t *Transcript) ShowMessage(msg render.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Class: className(msg.Kind), HTML: msg.HTML})
}

// ShowSources 实现 exchange.Surface。
func (t *Transcript) ShowSources(block render.SourceBlock) {
	if block.HTML == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{Class: "sources-block", HTML: block.HTML})
}

// ShowPending 实现 exchange.Surface。
func (t *Transcript) ShowPending(id, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; !ok {
		t.order = append(t.order, id)
	}
	t.pending[id] = text
}

// ClearPending 实现 exchange.Surface。
func (t *Transcript) ClearPending(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pending[id]; !ok {
		return
	}
	delete(t.pending, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// SetInputEnabled 实现 exchange.Surface。
func (t *Transcript) SetInputEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputOn = enabled
}

// Reset 实现 exchange.Surface。
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
	t.pending = make(map[string]string)
	t.order = nil
}

// Entries 返回当前记录的副本。
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

// Pending 返回仍在显示的等待提示，按出现顺序。
func (t *Transcript) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.pending[id])
	}
	return out
}

// InputEnabled 报告输入框是否可用。
func (t *Transcript) InputEnabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputOn
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:sans-serif;max-width:720px;margin:2em auto;color:#222}
.message{padding:.6em 1em;margin:.5em 0;border-radius:8px}
.user{background:#FFB800;margin-left:20%}
.assistant,.welcome{background:#f1f3f6}
.error{background:#fde8ea;color:#a3121f}
.sources-block{font-size:.9em;border-left:3px solid #003B71;padding-left:.8em}
.pending{color:#888;font-style:italic}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Entries}}<div class="{{.Class}}">{{.HTML}}</div>
{{end}}{{range .Pending}}<div class="message pending">{{.}}</div>
{{end}}</body>
</html>
`))

// WriteHTML 把转录渲染为完整的 HTML 页面。
func (t *Transcript) WriteHTML(w io.Writer) error {
	t.mu.Lock()
	data := struct {
		Title   string
		Entries []Entry
		Pending []string
	}{Title: t.title, Entries: append([]Entry(nil), t.entries...)}
	for _, id := range t.order {
		data.Pending = append(data.Pending, t.pending[id])
	}
	t.mu.Unlock()

	return pageTemplate.Execute(w, data)
}
