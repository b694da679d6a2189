package models

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	ollama "github.com/ollama/ollama/api"
)

// ---------------------------- Ollama -----------------------------------------

type OllamaLLM struct {
	Client       *ollama.Client
	Model        string
	PromptPrefix string
}

func NewOllamaLLM(model string, promptPrefix string) (*OllamaLLM, error) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid OLLAMA_HOST %q: %w", host, err)
	}

	httpClient := &http.Client{
		Timeout: 60 * time.Second,
	}

	c := ollama.NewClient(u, httpClient)
	return &OllamaLLM{
		Client:       c,
		Model:        model,
		PromptPrefix: promptPrefix,
	}, nil
}

func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (any, error) {
	fullPrompt := prompt
	if o.PromptPrefix != "" {
		fullPrompt = fmt.Sprintf("%s\n\n%s", o.PromptPrefix, prompt)
	}

	var text strings.Builder

	req := &ollama.GenerateRequest{
		Model:  o.Model,
		Prompt: fullPrompt,
	}

	if err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
		if gr.Response != "" {
			text.WriteString(gr.Response)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return text.String(), nil
}

// GenerateStream forwards Ollama's incremental responses on a channel.
func (o *OllamaLLM) GenerateStream(ctx context.Context, prompt string) (<-chan StreamChunk, error) {
	fullPrompt := prompt
	if o.PromptPrefix != "" {
		fullPrompt = fmt.Sprintf("%s\n\n%s", o.PromptPrefix, prompt)
	}

	ch := make(chan StreamChunk, 16)
	go func() {
		defer close(ch)
		var sb strings.Builder
		req := &ollama.GenerateRequest{
			Model:  o.Model,
			Prompt: fullPrompt,
		}
		err := o.Client.Generate(ctx, req, func(gr ollama.GenerateResponse) error {
			if gr.Response != "" {
				sb.WriteString(gr.Response)
				ch <- StreamChunk{Delta: gr.Response}
			}
			return nil
		})
		if err != nil {
			ch <- StreamChunk{Done: true, FullText: sb.String(), Err: err}
			return
		}
		ch <- StreamChunk{Done: true, FullText: sb.String()}
	}()
	return ch, nil
}
