package workflow

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/recall-labs/go-recall/src/corpus"
)

var numberPattern = regexp.MustCompile(`-?\d+`)

// multiplyTool scans the query for integers and returns their product when
// at least two are present. Fewer than two numbers means the tool produced
// nothing.
func multiplyTool(query string) *int64 {
	matches := numberPattern.FindAllString(query, -1)
	if len(matches) < 2 {
		return nil
	}
	product := int64(1)
	for _, m := range matches {
		n, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			return nil
		}
		product *= n
	}
	return &product
}

// retrieverTool runs top-K similarity search against the corpus index and
// formats the hits for the grading and answer prompts. An empty corpus or a
// degraded search yields no output rather than an error.
func retrieverTool(ctx context.Context, index corpus.Index, query string, topK int) (string, []ToolDocument, error) {
	if index == nil {
		return "", nil, nil
	}
	scored, err := index.Search(ctx, query, topK)
	if err != nil {
		return "", nil, err
	}
	if len(scored) == 0 {
		return "", nil, nil
	}

	docs := make([]ToolDocument, 0, len(scored))
	var sb strings.Builder
	for i, s := range scored {
		docs = append(docs, ToolDocument{
			ID:         s.Chunk.ID,
			Content:    s.Chunk.Content,
			Similarity: s.Similarity,
		})
		fmt.Fprintf(&sb, "Document %d (similarity: %.4f):\n%s\n\n", i+1, s.Similarity, s.Chunk.Content)
	}
	return strings.TrimSpace(sb.String()), docs, nil
}

// routeTag names the tools that produced output, joined with "@".
func routeTag(hasMultiply, hasRetriever bool) string {
	var parts []string
	if hasMultiply {
		parts = append(parts, "multiply")
	}
	if hasRetriever {
		parts = append(parts, "retriever")
	}
	return strings.Join(parts, "@")
}
