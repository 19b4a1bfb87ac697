package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssistantMarkdown(t *testing.T) {
	r := New()
	msg := r.Assistant("Sigue estos **pasos**:\n\n1. Entra al portal\n2. Pulsa *Olvidé mi clave*")

	assert.Equal(t, KindAssistant, msg.Kind)
	out := string(msg.HTML)
	assert.Contains(t, out, "<strong>pasos</strong>")
	assert.Contains(t, out, "<ol>")
	assert.Contains(t, out, "<em>Olvidé mi clave</em>")
}

func TestAssistantStripsExecutableMarkup(t *testing.T) {
	r := New()
	inputs := []string{
		"Hola <script>alert(1)</script> mundo",
		"<img src=x onerror=alert(1)>",
		"[haz clic](javascript:alert(1))",
		"<a href=\"javascript:alert(1)\">x</a>",
		"<iframe src=\"https://evil.example\"></iframe>",
		"<div onclick=\"steal()\">texto</div>",
	}
	for _, in := range inputs {
		out := strings.ToLower(string(r.Assistant(in).HTML))
		assert.NotContains(t, out, "<script", in)
		assert.NotContains(t, out, "onerror", in)
		assert.NotContains(t, out, "onclick", in)
		assert.NotContains(t, out, "javascript:", in)
		assert.NotContains(t, out, "<iframe", in)
	}
}

func TestRawHTMLIsSanitizedNotDropped(t *testing.T) {
	r := New()

	out := string(r.Assistant("<script>alert(1)</script>hola").HTML)
	assert.Contains(t, out, "hola")
	assert.NotContains(t, out, "alert")

	out = string(r.Assistant(`Consulta <a href="https://www.duoc.cl">Duoc</a> y <b>listo</b>`).HTML)
	assert.Contains(t, out, `href="https://www.duoc.cl"`)
	assert.Contains(t, out, `target="_blank"`)
	assert.Contains(t, out, `rel="noopener noreferrer"`)
	assert.Contains(t, out, "<b>listo</b>")
}

func TestLinksOpenInNewContext(t *testing.T) {
	r := New()
	out := string(r.Assistant("Mira [la ayuda](https://help.example.com/pwd) o [esto](/relativo) o https://duoc.cl").HTML)

	assert.Contains(t, out, `href="https://help.example.com/pwd"`)
	assert.Equal(t, 3, strings.Count(out, `target="_blank"`), out)
	assert.Equal(t, 3, strings.Count(out, `rel="noopener noreferrer"`), out)
}

func TestUserTextIsNeverInterpreted(t *testing.T) {
	r := New()
	msg := r.User("<script>alert('x')</script> **negrita**\nsegunda línea")

	assert.Equal(t, KindUser, msg.Kind)
	out := string(msg.HTML)
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "**negrita**")
	assert.NotContains(t, out, "<strong>")
	assert.Contains(t, out, "<br>segunda línea")
}

func TestErrorMessageIsPlain(t *testing.T) {
	msg := New().Error("Error <b>500</b>")
	assert.Equal(t, KindError, msg.Kind)
	assert.Equal(t, "Error &lt;b&gt;500&lt;/b&gt;", string(msg.HTML))
}

func TestStripControl(t *testing.T) {
	assert.Equal(t, "[31mrojo\tok\n", StripControl("\x1b[31mrojo\tok\n"))
	assert.Equal(t, "ab", StripControl("a\u009bb"))
}

func TestSourcesBlock(t *testing.T) {
	r := New()
	block := r.Sources([]Source{
		{URL: "https://help.example.com/pwd", Excerpt: "Pasos para resetear..."},
		{URL: "s3://bucket/reglamento.pdf"},
		{},
		{URL: "javascript:alert(1)", Excerpt: "<b>malo</b>"},
		{URL: "HTTP://EXAMPLE.COM"},
	})

	require.Len(t, block.Items, 5)

	first := block.Items[0]
	assert.True(t, first.Linked)
	assert.Equal(t, "Pasos para resetear...", first.Label)

	assert.False(t, block.Items[1].Linked)
	assert.Equal(t, "Fuente 2: s3://bucket/reglamento.pdf", block.Items[1].Label)
	assert.Equal(t, "", block.Items[1].URL)

	assert.Equal(t, "Fuente 3", block.Items[2].Label)

	assert.False(t, block.Items[3].Linked)
	assert.True(t, block.Items[4].Linked)
	assert.Equal(t, "HTTP://EXAMPLE.COM", block.Items[4].Label)

	out := string(block.HTML)
	assert.Contains(t, out, `<a href="https://help.example.com/pwd" target="_blank" rel="noopener noreferrer">Pasos para resetear...</a>`)
	assert.NotContains(t, out, "javascript:")
	assert.NotContains(t, out, "<b>malo</b>")
	assert.Contains(t, out, "&lt;b&gt;malo&lt;/b&gt;")
	assert.Equal(t, 2, strings.Count(out, "<a "))
}

func TestSourcesEmpty(t *testing.T) {
	block := New().Sources(nil)
	assert.Empty(t, block.Items)
	assert.Empty(t, block.HTML)
}

func TestExcerptTruncation(t *testing.T) {
	long := strings.Repeat("á", maxExcerptRunes+10)
	block := New().Sources([]Source{{Excerpt: long}})
	label := block.Items[0].Label
	assert.True(t, strings.HasSuffix(label, "…"))
	assert.Equal(t, maxExcerptRunes+1, len([]rune(label)))
}

func TestIsLinkable(t *testing.T) {
	assert.True(t, IsLinkable("https://a.b"))
	assert.True(t, IsLinkable("http://a.b"))
	assert.False(t, IsLinkable("https://"))
	assert.False(t, IsLinkable("ftp://a.b"))
	assert.False(t, IsLinkable("www.example.com"))
}
