package ai

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func exerciseStore(t *testing.T, store SessionStore) {
	t.Helper()
	ctx := context.Background()

	msgs, err := store.GetHistory(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, store.AddUserMessage(ctx, "sid", "¿Horario <biblioteca> & casino?"))
	require.NoError(t, store.AddAIMessage(ctx, "sid", "De 8 a 22."))

	msgs, err = store.GetHistory(ctx, "sid")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[0].GetType())
	assert.Equal(t, "¿Horario <biblioteca> & casino?", msgs[0].GetContent())
	assert.Equal(t, llms.ChatMessageTypeAI, msgs[1].GetType())

	require.NoError(t, store.ClearHistory(ctx, "sid"))
	require.NoError(t, store.ClearHistory(ctx, "sid"))
	msgs, err = store.GetHistory(ctx, "sid")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)
	exerciseStore(t, store)
}

func TestFileStoreSkipsMalformedLines(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sid.jsonl"), []byte(
		`{"role":"user","content":"hola"}`+"\n"+
			`not json`+"\n"+
			`{"role":"tool","content":"x"}`+"\n"+
			`{"role":"assistant","content":"¡Hola!"}`+"\n"), 0o644))

	core, logs := observer.New(zapcore.WarnLevel)
	store, err := NewFileStore(dir, zap.New(core))
	require.NoError(t, err)

	msgs, err := store.GetHistory(context.Background(), "sid")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "¡Hola!", msgs[1].GetContent())
	assert.Equal(t, 2, logs.Len())
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, nil)
	require.NoError(t, err)

	require.NoError(t, store.AddUserMessage(context.Background(), "../escape", "x"))
	_, err = os.Stat(filepath.Join(dir, "escape.jsonl"))
	assert.NoError(t, err)

	assert.Error(t, store.AddUserMessage(context.Background(), "", "x"))
	assert.Error(t, store.AddUserMessage(context.Background(), "..", "x"))
}
