package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/alpkeskin/gotoon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-labs/go-recall/src/app"
	"github.com/recall-labs/go-recall/src/config"
	"github.com/recall-labs/go-recall/src/store"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		StoreBackend:  "memory",
		EmbedProvider: "dummy",
		LLMProvider:   "dummy",
		EmbedDims:     64,
		TopK:          4,
	}
	require.NoError(t, cfg.ResolveDefaults())

	a, err := app.New(context.Background(), cfg, "memoryd-test", true)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return &server{app: a, log: a.Log}
}

func postChat(t *testing.T, srv *server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.handleChatCompletions(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.handleHealthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestChatCompletionsValidation(t *testing.T) {
	srv := newTestServer(t)

	rec := postChat(t, srv, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postChat(t, srv, `{"messages": [], "userId": "u1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postChat(t, srv, `{"messages": [{"role": "user", "content": "hi"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatCompletionsAnswer(t *testing.T) {
	srv := newTestServer(t)

	rec := postChat(t, srv, `{"messages": [{"role": "user", "content": "hello"}], "userId": "u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatCompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
	assert.NotEmpty(t, resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}

func TestChatCompletionsRemembersMemory(t *testing.T) {
	srv := newTestServer(t)

	rec := postChat(t, srv, `{"messages": [{"role": "user", "content": "please remember my name is Xiao Ming"}], "userId": "u1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	hits, err := srv.app.Store.Search(context.Background(),
		store.NS("memories", "u1"), "my name", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Contains(t, hits[0].Value["data"], "Xiao Ming")

	// Another user's namespace stays empty.
	hits, err = srv.app.Store.Search(context.Background(),
		store.NS("memories", "u2"), "my name", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestChatCompletionsStreaming(t *testing.T) {
	srv := newTestServer(t)

	rec := postChat(t, srv, `{"messages": [{"role": "user", "content": "hello"}], "userId": "u1", "stream": true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: "))
	assert.Contains(t, body, `"finish_reason":"stop"`)
}

func TestIsRememberIntent(t *testing.T) {
	assert.True(t, isRememberIntent("Remember that I like tea"))
	assert.True(t, isRememberIntent("请记住我的名字"))
	assert.False(t, isRememberIntent("what is my name?"))
}
