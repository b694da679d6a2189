package corpus

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-labs/go-recall/src/embed"
)

func newMemoryIndex() *MemoryIndex {
	return NewMemoryIndex(64, embed.NewDummyEmbedder(64))
}

func TestMemoryIndexAddAndSearch(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	require.NoError(t, idx.Add(ctx, []Chunk{
		{ID: "c1", Content: "the patient reported mild headaches"},
		{ID: "c2", Content: "annual rainfall statistics for the region"},
	}))

	hits, err := idx.Search(ctx, "the patient reported mild headaches", 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "c1", hits[0].ID)
	assert.InDelta(t, 1, hits[0].Similarity, 1e-6)
	assert.GreaterOrEqual(t, hits[0].Similarity, hits[1].Similarity)
}

func TestMemoryIndexSearchEmpty(t *testing.T) {
	hits, err := newMemoryIndex().Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndexTopK(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	var chunks []Chunk
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		chunks = append(chunks, Chunk{ID: id, Content: "chunk " + id})
	}
	require.NoError(t, idx.Add(ctx, chunks))

	hits, err := idx.Search(ctx, "chunk", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestMemoryIndexUpsert(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	require.NoError(t, idx.Add(ctx, []Chunk{{ID: "c1", Content: "first version"}}))
	require.NoError(t, idx.Add(ctx, []Chunk{{ID: "c1", Content: "second version"}}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	hits, err := idx.Search(ctx, "second version", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "second version", hits[0].Content)
}

func TestMemoryIndexDrop(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()

	require.NoError(t, idx.Add(ctx, []Chunk{{ID: "c1", Content: "soon gone"}}))
	require.NoError(t, idx.Drop(ctx))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestorEndToEnd(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()
	ing := NewIngestor(idx, embed.NewDummyEmbedder(64), IngestorOptions{MaxTokens: 8})

	text := strings.Repeat("ingestion pipeline test sentence ", 20)
	n, err := ing.IngestText(ctx, text, "pipeline.txt")
	require.NoError(t, err)
	require.Greater(t, n, 1)

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, n, count)

	hits, err := idx.Search(ctx, "ingestion pipeline test sentence", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestIngestorReader(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()
	ing := NewIngestor(idx, embed.NewDummyEmbedder(64), IngestorOptions{})

	n, err := ing.IngestReader(ctx, strings.NewReader("a single small document"), "small.txt")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestorRebuild(t *testing.T) {
	ctx := context.Background()
	idx := newMemoryIndex()
	ing := NewIngestor(idx, embed.NewDummyEmbedder(64), IngestorOptions{})

	_, err := ing.IngestText(ctx, "stale content", "old.txt")
	require.NoError(t, err)
	require.NoError(t, ing.Rebuild(ctx))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestorEmptyInput(t *testing.T) {
	ing := NewIngestor(newMemoryIndex(), embed.NewDummyEmbedder(64), IngestorOptions{})
	n, err := ing.IngestText(context.Background(), "", "empty.txt")
	require.NoError(t, err)
	assert.Zero(t, n)
}
