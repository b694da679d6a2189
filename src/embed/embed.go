package embed

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
)

// Embedder is a pluggable text-embedding provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ErrNotSupported is returned by providers that do not offer embeddings.
var ErrNotSupported = errors.New("embeddings not supported by this provider")

// DefaultDims is the vector width used when a caller does not configure one.
const DefaultDims = 1024

// ---------- Dummy (fallback) ----------

// DummyEmbedder produces deterministic vectors from byte frequencies.
// It needs no network and is the default for tests and offline runs.
type DummyEmbedder struct {
	Dims int
}

func NewDummyEmbedder(dims int) DummyEmbedder {
	if dims <= 0 {
		dims = DefaultDims
	}
	return DummyEmbedder{Dims: dims}
}

func (d DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return DummyEmbedding(text, d.Dims), nil
}

// DummyEmbedding hashes text bytes into a fixed-width vector.
func DummyEmbedding(text string, dims int) []float32 {
	if dims <= 0 {
		dims = DefaultDims
	}
	vec := make([]float32, dims)
	for i, ch := range []byte(text) {
		vec[i%dims] += float32(ch) / 255.0
	}
	return vec
}

// AutoEmbedder chooses a provider from env:
// RECALL_EMBED_PROVIDER=openai|ollama|voyage|fastembed
// RECALL_EMBED_MODEL=<model string>
// Unset or unusable providers fall back to the dummy embedder.
func AutoEmbedder() Embedder {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("RECALL_EMBED_PROVIDER")))
	model := strings.TrimSpace(os.Getenv("RECALL_EMBED_MODEL"))

	switch provider {
	case "openai":
		if e, err := NewOpenAIEmbedder(model); err == nil {
			return e
		}
	case "ollama":
		if e, err := NewOllamaEmbedder(model); err == nil {
			return e
		}
	case "voyage", "claude", "anthropic":
		if e, err := NewVoyageEmbedder(model); err == nil {
			return e
		}
	case "fastembed":
		if opts := defaultFastEmbedOptions(); opts != nil {
			if e, err := NewFastEmbedder(context.Background(), opts); err == nil {
				return e
			}
		}
	}

	log.Printf("AutoEmbedder: falling back to DummyEmbedder")
	return NewDummyEmbedder(DefaultDims)
}
