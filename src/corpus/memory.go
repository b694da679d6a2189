package corpus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/recall-labs/go-recall/src/embed"
)

// MemoryIndex is a process-local Index for tests and no-DB demos.
type MemoryIndex struct {
	mu       sync.RWMutex
	chunks   map[string]Chunk
	dims     int
	embedder embed.Embedder
}

func NewMemoryIndex(dims int, embedder embed.Embedder) *MemoryIndex {
	if dims <= 0 {
		dims = embed.DefaultDims
	}
	return &MemoryIndex{
		chunks:   make(map[string]Chunk),
		dims:     dims,
		embedder: embedder,
	}
}

func (m *MemoryIndex) EnsureSchema(_ context.Context) error { return nil }

// Add indexes chunks, embedding any that arrive without a vector.
func (m *MemoryIndex) Add(ctx context.Context, chunks []Chunk) error {
	prepared := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 && m.embedder != nil {
			vec, err := m.embedder.Embed(ctx, c.Content)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", c.ID, err)
			}
			c.Embedding = vec
		}
		c.Embedding = conformDims(c.Embedding, m.dims)
		prepared = append(prepared, c)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range prepared {
		m.chunks[c.ID] = c
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, query string, topK int) ([]Scored, error) {
	if m.embedder == nil {
		return nil, nil
	}
	if topK <= 0 {
		topK = 3
	}
	queryEmbedding, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil
	}
	queryEmbedding = conformDims(queryEmbedding, m.dims)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []Scored
	for _, c := range m.chunks {
		if len(c.Embedding) == 0 {
			continue
		}
		results = append(results, Scored{Chunk: c, Similarity: cosineSimilarity(queryEmbedding, c.Embedding)})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (m *MemoryIndex) Drop(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chunks = make(map[string]Chunk)
	return nil
}

func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.chunks), nil
}
