package models

import (
	"context"
	"fmt"
	"strings"
)

// NewLLMProvider returns a concrete Agent.
func NewLLMProvider(ctx context.Context, provider, model, promptPrefix string) (Agent, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		return NewOpenAILLM(model, promptPrefix), nil
	case "gemini", "google":
		return NewGeminiLLM(ctx, model, promptPrefix)
	case "ollama":
		return NewOllamaLLM(model, promptPrefix)
	case "anthropic", "claude":
		return NewAnthropicLLM(model, promptPrefix), nil
	case "dummy", "":
		return NewDummyLLM(""), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}
}

// Text coerces a Generate result to a plain string.
func Text(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Stream returns incremental output from the model, wrapping providers
// that only support whole-reply generation in a single-chunk stream.
func Stream(ctx context.Context, m Agent, prompt string) (<-chan StreamChunk, error) {
	if s, ok := m.(Streamer); ok {
		return s.GenerateStream(ctx, prompt)
	}
	out, err := m.Generate(ctx, prompt)
	ch := make(chan StreamChunk, 1)
	if err != nil {
		ch <- StreamChunk{Err: err, Done: true}
	} else {
		text := Text(out)
		ch <- StreamChunk{Delta: text, FullText: text, Done: true}
	}
	close(ch)
	return ch, nil
}
