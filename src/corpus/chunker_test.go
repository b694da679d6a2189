package corpus

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkTextEmpty(t *testing.T) {
	chunks, err := Chunker{}.ChunkText("   \n\t  ", "doc.txt")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkTextSingleChunk(t *testing.T) {
	chunks, err := Chunker{MaxTokens: 100}.ChunkText("a short note about tea", "notes.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "notes.txt#0", chunks[0].ID)
	assert.Equal(t, "a short note about tea", chunks[0].Content)
	assert.Equal(t, "notes.txt", chunks[0].Metadata["source"])
	assert.Equal(t, 0, chunks[0].Metadata["chunk"])
}

func TestChunkTextSplitsOnWordBoundaries(t *testing.T) {
	text := strings.Repeat("word ", 50)
	chunks, err := Chunker{MaxTokens: 10}.ChunkText(text, "doc")
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.Equal(t, i, c.Metadata["chunk"])
		assert.NotContains(t, c.Content, "  ")
		assert.Equal(t, strings.TrimSpace(c.Content), c.Content)
	}

	// No words lost across the split.
	var rejoined []string
	for _, c := range chunks {
		rejoined = append(rejoined, c.Content)
	}
	assert.Equal(t, strings.TrimSpace(text), strings.Join(rejoined, " "))
}

func TestChunkReaderMatchesChunkText(t *testing.T) {
	text := "the quick brown fox jumps over the lazy dog"
	fromReader, err := Chunker{MaxTokens: 4}.ChunkReader(strings.NewReader(text), "fox")
	require.NoError(t, err)
	fromText, err := Chunker{MaxTokens: 4}.ChunkText(text, "fox")
	require.NoError(t, err)
	assert.Equal(t, fromText, fromReader)
}

func TestChunkIDSanitizesSource(t *testing.T) {
	chunks, err := Chunker{}.ChunkText("content", "docs/my report.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "docs_my_report.txt#0", chunks[0].ID)
}

func TestChunkIDEmptySource(t *testing.T) {
	chunks, err := Chunker{}.ChunkText("content", "")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "chunk-0", chunks[0].ID)
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("tea"))
	assert.Equal(t, 2, estimateTokens("mountain"))
	assert.Equal(t, 3, estimateTokens("extraordinarily"[:12]))
	assert.Equal(t, 4, estimateTokens("pneumonoultramicroscopic"))
}
