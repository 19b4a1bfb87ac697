package widget

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IMBotPlatform/AskWidget/pkg/askapi"
	"github.com/IMBotPlatform/AskWidget/pkg/config"
	"github.com/IMBotPlatform/AskWidget/pkg/exchange"
	"github.com/IMBotPlatform/AskWidget/pkg/history"
	"github.com/IMBotPlatform/AskWidget/pkg/notify"
	"github.com/IMBotPlatform/AskWidget/pkg/suggest"
)

type echoAsker struct{}

func (echoAsker) Ask(_ context.Context, req askapi.Request) (*askapi.Response, error) {
	return &askapi.Response{Answer: "re: " + req.Query}, nil
}

type recordingSuggester struct {
	sent []string
	err  error
}

func (r *recordingSuggester) Send(_ context.Context, msg string) error {
	r.sent = append(r.sent, msg)
	return r.err
}

type staticHealth struct {
	report askapi.HealthReport
	err    error
}

func (s staticHealth) Health(context.Context) (askapi.HealthReport, error) {
	return s.report, s.err
}

func newWidget(t *testing.T, cfg config.Widget, opts ...Option) *Widget {
	t.Helper()
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = history.DefaultMaxTurns
	}
	w, err := New(cfg, echoAsker{}, exchange.NopSurface{}, opts...)
	require.NoError(t, err)
	return w
}

func TestQuestionGoesToController(t *testing.T) {
	w := newWidget(t, config.Widget{})

	out, payload := w.Handle(w.Update("¿Horario de biblioteca?"))
	assert.Empty(t, out)
	result, ok := payload.(exchange.Result)
	require.True(t, ok)
	assert.Equal(t, "re: ¿Horario de biblioteca?", result.Answer)
	assert.Equal(t, 2, w.History.Len())
}

func TestSlashTextThatIsNotACommandIsAsked(t *testing.T) {
	for _, q := range []string{"/123 es mi sala?", "/ hola", "/etc/hosts qué es"} {
		w := newWidget(t, config.Widget{})
		out, payload := w.Handle(w.Update(q))
		assert.Empty(t, out, q)
		result, ok := payload.(exchange.Result)
		require.True(t, ok, q)
		assert.Equal(t, "re: "+q, result.Answer)
		assert.Equal(t, 2, w.History.Len(), q)
	}
}

func TestMistypedCommandGetsHint(t *testing.T) {
	w := newWidget(t, config.Widget{})
	out, _ := w.Handle(w.Update("/limpar"))
	assert.Contains(t, out, "Comando desconocido")
	assert.Zero(t, w.History.Len())
}

func TestClearCommandResetsState(t *testing.T) {
	w := newWidget(t, config.Widget{})
	w.Handle(w.Update("hola"))
	before := w.Identity.Token()

	out, _ := w.Handle(w.Update("/limpiar"))
	assert.Contains(t, out, "Historial borrado")
	assert.Zero(t, w.History.Len())
	assert.NotEqual(t, before, w.Identity.Token())

	n, ok := w.Notices.Current()
	require.True(t, ok)
	assert.Equal(t, exchange.ClearedText, n.Text)
}

func TestSuggestionCommand(t *testing.T) {
	w := newWidget(t, config.Widget{})
	out, _ := w.Handle(w.Update("/sugerencia más buses"))
	assert.Contains(t, out, "✗")
	n, ok := w.Notices.Current()
	require.True(t, ok)
	assert.Equal(t, notify.Warning, n.Level)

	s := &recordingSuggester{}
	w = newWidget(t, config.Widget{}, WithSuggester(s))
	out, _ = w.Handle(w.Update("/sugerencia más buses"))
	assert.Contains(t, out, "Sugerencia enviada")
	assert.Equal(t, []string{"más buses"}, s.sent)

	s.err = errors.New("emailjs down")
	out, _ = w.Handle(w.Update("/sugerencia otra"))
	assert.Contains(t, out, "emailjs down")
	// 命令不会进入对话历史
	assert.Zero(t, w.History.Len())
}

func TestSuggestionFromConfig(t *testing.T) {
	w := newWidget(t, config.Widget{Suggestion: config.Suggestion{ServiceID: "s", TemplateID: "t", PublicKey: "k"}})
	assert.IsType(t, &suggest.Sender{}, w.suggester)
}

func TestStatusCommand(t *testing.T) {
	w := newWidget(t, config.Widget{})
	out, _ := w.Handle(w.Update("/estado"))
	assert.Equal(t, askapi.Unknown.String(), strings.TrimSpace(out))

	var changes []askapi.Connection
	w = newWidget(t, config.Widget{}, WithHealthChecker(staticHealth{
		report: askapi.HealthReport{Services: map[string]string{"ollama": "up"}},
	}, func(c askapi.Connection) { changes = append(changes, c) }))
	out, _ = w.Handle(w.Update("/estado"))
	assert.Equal(t, "Estado: Conectado ✓", strings.TrimSpace(out))
	assert.Equal(t, []askapi.Connection{askapi.Connected}, changes)
}

func TestRunHealthWithoutCheckerReturns(t *testing.T) {
	w := newWidget(t, config.Widget{})
	w.RunHealth(context.Background())
}

func TestStateDirSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	first := newWidget(t, config.Widget{StateDir: dir})
	first.Handle(first.Update("pregunta"))
	token := first.Identity.Token()

	second := newWidget(t, config.Widget{StateDir: dir})
	assert.Equal(t, first.History.Snapshot(), second.History.Snapshot())
	assert.Equal(t, token, second.Identity.Token())
}

func TestInstancesAreIndependent(t *testing.T) {
	a := newWidget(t, config.Widget{})
	b := newWidget(t, config.Widget{})
	a.Handle(a.Update("hola"))
	assert.Equal(t, 2, a.History.Len())
	assert.Zero(t, b.History.Len())
	assert.NotEqual(t, a.Identity.Token(), b.Identity.Token())
}

func TestNormalizeAcceptsLines(t *testing.T) {
	w := newWidget(t, config.Widget{})

	u, err := w.Normalize("hola\r\n")
	require.NoError(t, err)
	assert.Equal(t, "hola", u.Text)
	assert.Equal(t, w.Identity.Token(), u.SessionID)
	assert.NotEmpty(t, u.ID)

	u, err = w.Normalize([]byte("/ayuda\n"))
	require.NoError(t, err)
	assert.Equal(t, "/ayuda", u.Text)

	_, err = w.Normalize(42)
	assert.ErrorIs(t, err, ErrUnsupportedInput)
}
