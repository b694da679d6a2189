package corpus

import (
	"fmt"
	"math"
	"strings"

	json "github.com/alpkeskin/gotoon"
)

func conformDims(vec []float32, dims int) []float32 {
	if dims <= 0 || len(vec) == dims {
		return vec
	}
	if len(vec) < dims {
		out := make([]float32, dims)
		copy(out, vec)
		return out
	}
	return vec[:dims]
}

// vectorLiteral renders a vector in pgvector's text format, e.g. "[1,2,3]".
func vectorLiteral(vec []float32) string {
	raw, _ := json.Marshal(vec)
	return fmt.Sprintf("[%s]", strings.Trim(string(raw), "[]"))
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
