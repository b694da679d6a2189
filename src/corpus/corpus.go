// Package corpus maintains the global document-chunk index used by the
// retrieval workflow. Unlike the memory store there is no namespace
// isolation: ingestion fills one shared table queried by every caller.
package corpus

import "context"

// Chunk is one ingested slice of a source document.
type Chunk struct {
	ID        string
	Content   string
	Metadata  map[string]any
	Embedding []float32
}

// Scored is a ranked retrieval hit; Similarity is 1 - cosine distance.
type Scored struct {
	Chunk
	Similarity float64
}

// Index stores chunks and answers similarity queries.
// Search degrades to an empty result on lookup failures; Add and Drop fail hard.
type Index interface {
	EnsureSchema(ctx context.Context) error
	Add(ctx context.Context, chunks []Chunk) error
	Search(ctx context.Context, query string, topK int) ([]Scored, error)
	Drop(ctx context.Context) error
	Count(ctx context.Context) (int, error)
}
