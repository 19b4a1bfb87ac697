package render

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"unicode/utf8"
)

// maxExcerptRunes 限制来源摘要在标签中的长度。
const maxExcerptRunes = 120

// Source 是回复附带的引用来源，URL 与摘要都可能为空。
type Source struct {
	URL     string
	Excerpt string
}

// SourceItem 是来源块中的一项。
type SourceItem struct {
	Index  int    // 从 1 开始的序号，按服务端返回顺序
	Label  string // 展示文本
	URL    string
	Linked bool // URL 是 http(s) 时为 true，渲染为可点击链接
}

// SourceBlock 是回复下方独立的来源块。
type SourceBlock struct {
	Items []SourceItem
	HTML  template.HTML
}

var sourcesTmpl = template.Must(template.New("sources").Parse(
	`<div class="sources"><p class="sources-title">Fuentes:</p><ol>` +
		`{{range .}}<li>{{if .Linked}}<a href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{.Label}}</a>` +
		`{{else}}<span class="source-label">{{.Label}}</span>{{end}}</li>{{end}}</ol></div>`))

// Sources 构造来源块；列表为空时返回零值。
//
// 标签规则：
//   - 有摘要时使用截断后的摘要
//   - 无摘要但 URL 合法时使用 URL
//   - 其余情况使用带序号的占位符 "Fuente N"（若有非法 URL 原文则附在后面）
func (r *Renderer) Sources(sources []Source) SourceBlock {
	if len(sources) == 0 {
		return SourceBlock{}
	}

	items := make([]SourceItem, 0, len(sources))
	for i, src := range sources {
		rawURL := StripControl(strings.TrimSpace(src.URL))
		excerpt := StripControl(strings.TrimSpace(src.Excerpt))
		item := SourceItem{Index: i + 1, URL: rawURL, Linked: IsLinkable(rawURL)}

		switch {
		case excerpt != "":
			item.Label = truncate(excerpt, maxExcerptRunes)
		case item.Linked:
			item.Label = rawURL
		case rawURL != "":
			item.Label = fmt.Sprintf("Fuente %d: %s", item.Index, rawURL)
		default:
			item.Label = fmt.Sprintf("Fuente %d", item.Index)
		}
		if !item.Linked {
			item.URL = ""
		}
		items = append(items, item)
	}

	var buf bytes.Buffer
	if err := sourcesTmpl.Execute(&buf, items); err != nil {
		r.logger.Warn("sources template failed")
		return SourceBlock{Items: items}
	}
	return SourceBlock{Items: items, HTML: template.HTML(buf.String())}
}

// IsLinkable 判断 URL 是否以 http:// 或 https:// 开头。
func IsLinkable(u string) bool {
	lower := strings.ToLower(u)
	return (strings.HasPrefix(lower, "http://") && len(lower) > len("http://")) ||
		(strings.HasPrefix(lower, "https://") && len(lower) > len("https://"))
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit])) + "…"
}
