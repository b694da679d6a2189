// memoryd serves an OpenAI-style chat endpoint backed by the per-user
// memory store: each request is answered with the user's stored memories as
// context, and remember-intent messages write new ones.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	json "github.com/alpkeskin/gotoon"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/recall-labs/go-recall/src/app"
	"github.com/recall-labs/go-recall/src/config"
	"github.com/recall-labs/go-recall/src/models"
	"github.com/recall-labs/go-recall/src/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "memoryd: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, "memoryd", true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "memoryd: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := &server{app: a, log: a.Log}

	r := mux.NewRouter()
	r.HandleFunc("/v1/chat/completions", srv.handleChatCompletions).Methods(http.MethodPost)
	r.HandleFunc("/healthz", srv.handleHealthz).Methods(http.MethodGet)

	httpSrv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	a.Log.Info().Int("port", cfg.HTTPPort).Str("backend", cfg.StoreBackend).Msg("memoryd listening")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.Log.Fatal().Err(err).Msg("server failed")
	}
}

type server struct {
	app *app.App
	log zerolog.Logger
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Stream         bool          `json:"stream"`
	UserID         string        `json:"userId"`
	ConversationID string        `json:"conversationId"`
}

type chatCompletionChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatCompletionResponse struct {
	ID      string                 `json:"id"`
	Object  string                 `json:"object"`
	Created int64                  `json:"created"`
	Choices []chatCompletionChoice `json:"choices"`
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages must not be empty", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "userId is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	query := req.Messages[len(req.Messages)-1].Content
	ns := store.Namespace{"memories", req.UserID}

	// Stored memories are advisory context; empty retrieval renders as a
	// normal answer.
	hits, err := s.app.Store.Search(ctx, ns, query, s.app.Cfg.TopK)
	if err != nil {
		s.log.Warn().Err(err).Str("user", req.UserID).Msg("memory search degraded to empty")
		hits = nil
	}
	var memories []string
	for _, h := range hits {
		if data, ok := h.Value["data"].(string); ok && data != "" {
			memories = append(memories, data)
		}
	}

	if isRememberIntent(query) {
		if _, err := s.app.Store.Put(ctx, ns, "", store.Document{"data": query}); err != nil {
			http.Error(w, fmt.Sprintf("store memory: %v", err), http.StatusInternalServerError)
			return
		}
	}

	prompt := buildPrompt(query, memories)

	if req.Stream {
		s.streamCompletion(ctx, w, prompt)
		return
	}

	raw, err := s.app.Model.Generate(ctx, prompt)
	if err != nil {
		http.Error(w, fmt.Sprintf("model error: %v", err), http.StatusInternalServerError)
		return
	}

	resp := chatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Choices: []chatCompletionChoice{{
			Message:      chatMessage{Role: "assistant", Content: models.Text(raw)},
			FinishReason: "stop",
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Warn().Err(err).Msg("write response failed")
	}
}

// streamCompletion relays model output as OpenAI-style SSE chunks.
func (s *server) streamCompletion(ctx context.Context, w http.ResponseWriter, prompt string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	stream, err := models.Stream(ctx, s.app.Model, prompt)
	if err != nil {
		http.Error(w, fmt.Sprintf("model error: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	chunkID := "chatcmpl-" + uuid.NewString()
	writeChunk := func(delta map[string]any, finish any) {
		payload, _ := json.Marshal(map[string]any{
			"id":      chunkID,
			"object":  "chat.completion.chunk",
			"created": time.Now().Unix(),
			"choices": []map[string]any{{
				"index":         0,
				"delta":         delta,
				"finish_reason": finish,
			}},
		})
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}

	for chunk := range stream {
		if chunk.Err != nil {
			s.log.Warn().Err(chunk.Err).Msg("stream aborted")
			break
		}
		if chunk.Delta != "" {
			writeChunk(map[string]any{"content": chunk.Delta}, nil)
		}
		if chunk.Done {
			break
		}
	}
	writeChunk(map[string]any{}, "stop")
}

func isRememberIntent(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "remember") || strings.Contains(msg, "记住")
}

func buildPrompt(query string, memories []string) string {
	if len(memories) == 0 {
		return query
	}
	return fmt.Sprintf(
		"You are a helpful assistant. What you know about this user:\n%s\n\nUser: %s",
		strings.Join(memories, "\n"), query)
}
