package corpus

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Chunker splits plain text into roughly-even chunks based on word boundaries.
type Chunker struct {
	MaxTokens int
}

// ChunkReader consumes the reader and splits it into chunks. The source name
// ends up in each chunk's metadata and seeds the chunk IDs.
func (c Chunker) ChunkReader(reader io.Reader, source string) ([]Chunk, error) {
	buf := new(strings.Builder)
	if _, err := io.Copy(buf, reader); err != nil {
		return nil, err
	}
	return c.ChunkText(buf.String(), source)
}

// ChunkText splits text into chunks of at most MaxTokens estimated tokens.
func (c Chunker) ChunkText(text, source string) ([]Chunk, error) {
	max := c.MaxTokens
	if max <= 0 {
		max = 512
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	return chunkByWords(text, max, source)
}

func chunkByWords(text string, maxTokens int, source string) ([]Chunk, error) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Split(bufio.ScanWords)

	var (
		chunks  []Chunk
		builder strings.Builder
		count   int
		idx     int
	)

	emit := func() {
		if builder.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			ID:      chunkID(source, idx),
			Content: strings.TrimSpace(builder.String()),
			Metadata: map[string]any{
				"source": source,
				"chunk":  idx,
			},
		})
		idx++
		builder.Reset()
		count = 0
	}

	for scanner.Scan() {
		word := scanner.Text()
		wordTokens := estimateTokens(word)
		if count+wordTokens > maxTokens && builder.Len() > 0 {
			emit()
		}
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(word)
		count += wordTokens
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	emit()
	return chunks, nil
}

// estimateTokens approximates tokenizer output from rune length.
func estimateTokens(word string) int {
	if word == "" {
		return 0
	}
	runes := utf8.RuneCountInString(word)
	switch {
	case runes <= 4:
		return 1
	case runes <= 8:
		return 2
	case runes <= 16:
		return 3
	default:
		return 4
	}
}

func chunkID(source string, idx int) string {
	if source == "" {
		return fmt.Sprintf("chunk-%d", idx)
	}
	sanitized := strings.ReplaceAll(strings.TrimSpace(source), " ", "_")
	sanitized = strings.ReplaceAll(sanitized, "/", "_")
	if sanitized == "" {
		sanitized = "chunk"
	}
	return fmt.Sprintf("%s#%d", sanitized, idx)
}
