package askapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IMBotPlatform/AskWidget/pkg/history"
)

func newServer(t *testing.T, status int, body string, inspect func(*http.Request, []byte)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if inspect != nil {
			inspect(r, raw)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestAskSuccessWithHistory(t *testing.T) {
	var got Request
	var rawBody map[string]json.RawMessage
	srv := newServer(t, http.StatusOK,
		`{"answer":"Sigue estos pasos...","sources":[{"url":"https://help.example.com/pwd","excerpt":"Pasos para resetear..."}]}`,
		func(r *http.Request, body []byte) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Empty(t, r.Header.Get("Authorization"))
			require.NoError(t, json.Unmarshal(body, &got))
			require.NoError(t, json.Unmarshal(body, &rawBody))
		})

	client := NewClient(srv.URL)
	resp, err := client.Ask(context.Background(), Request{
		Query:   "¿Cómo reseteo mi contraseña?",
		History: []history.Turn{{Role: history.RoleUser, Content: "¿Cómo reseteo mi contraseña?"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sigue estos pasos...", resp.Answer)
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "https://help.example.com/pwd", resp.Sources[0].URL)

	assert.Equal(t, "¿Cómo reseteo mi contraseña?", got.Query)
	assert.Len(t, got.History, 1)
	_, hasSession := rawBody["sessionId"]
	assert.False(t, hasSession)
}

func TestAskSessionVariant(t *testing.T) {
	var rawBody map[string]json.RawMessage
	srv := newServer(t, http.StatusOK, `{"answer":"ok"}`, func(_ *http.Request, body []byte) {
		require.NoError(t, json.Unmarshal(body, &rawBody))
	})

	_, err := NewClient(srv.URL).Ask(context.Background(), Request{Query: "hola", SessionID: "sid-1"})
	require.NoError(t, err)
	assert.JSONEq(t, `"sid-1"`, string(rawBody["sessionId"]))
	_, hasHistory := rawBody["history"]
	assert.False(t, hasHistory)
}

func TestAskStatusError(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, `{"error":"Too many requests","request_id":"req-42"}`, nil)

	_, err := NewClient(srv.URL).Ask(context.Background(), Request{Query: "hola"})
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %T", err)
	assert.Equal(t, 429, se.Status)
	assert.Equal(t, "Too many requests", se.Message)
	assert.Equal(t, "req-42", se.RequestID)
}

func TestAskStatusErrorWithHTMLBody(t *testing.T) {
	srv := newServer(t, http.StatusBadGateway, `<html>bad gateway</html>`, nil)

	_, err := NewClient(srv.URL).Ask(context.Background(), Request{Query: "hola"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 502, se.Status)
	assert.Empty(t, se.Message)
	assert.Equal(t, "<html>bad gateway</html>", se.Body)
}

func TestAskMalformedBody(t *testing.T) {
	for _, body := range []string{`not json`, `{"sources":[]}`, `{"answer":42}`, `{"answer":null}`, `null`} {
		srv := newServer(t, http.StatusOK, body, nil)
		_, err := NewClient(srv.URL).Ask(context.Background(), Request{Query: "hola"})
		var de *DecodeError
		assert.True(t, errors.As(err, &de), "body %q gave %v", body, err)
	}
}

func TestAskTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Ask(context.Background(), Request{Query: "hola"})
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %T", err)
}

func TestAskEmptyEndpoint(t *testing.T) {
	_, err := NewClient("").Ask(context.Background(), Request{Query: "hola"})
	var te *TransportError
	assert.True(t, errors.As(err, &te))
}

func TestLegacySourceFields(t *testing.T) {
	var resp Response
	require.NoError(t, json.Unmarshal([]byte(`{"answer":"a","sources":[
		{"document":"s3://kb/reglamento.pdf","excerpt":"Art. 1","score":0.82},
		{"source":"calendario.pdf","score":0.4},
		{"url":"https://duoc.cl","source":"ignored"}
	],"confidence":"high"}`), &resp))

	require.Len(t, resp.Sources, 3)
	assert.Equal(t, "s3://kb/reglamento.pdf", resp.Sources[0].URL)
	assert.Equal(t, "Art. 1", resp.Sources[0].Excerpt)
	require.NotNil(t, resp.Sources[0].Score)
	assert.InDelta(t, 0.82, *resp.Sources[0].Score, 1e-9)
	assert.Equal(t, "calendario.pdf", resp.Sources[1].URL)
	assert.Equal(t, "https://duoc.cl", resp.Sources[2].URL)
	assert.Equal(t, "high", resp.Confidence)
}

func TestHealth(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"status":"healthy","services":{"embeddings":"up","ollama":"down"}}`, nil)

	report, err := NewClient("", WithHealthEndpoint(srv.URL)).Health(context.Background())
	require.NoError(t, err)
	assert.False(t, report.AllUp())
	assert.Equal(t, "down", report.Services["ollama"])

	assert.True(t, HealthReport{Services: map[string]string{"a": "up"}}.AllUp())
	assert.False(t, HealthReport{}.AllUp())
}
