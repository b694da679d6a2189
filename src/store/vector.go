package store

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	json "github.com/alpkeskin/gotoon"
)

// conformDims pads a vector with zeros or truncates it so its length matches
// dims. Lossy when truncating; callers log the mismatch.
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

// cosineDistance returns 1 - cosine similarity. Vectors with zero magnitude
// are treated as maximally distant.
func cosineDistance(a, b []float32) float64 {
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
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

func trimJSON(s string) string { return strings.Trim(s, "[]") }

// vectorLiteral renders a vector in pgvector's text format, e.g. "[1,2,3]".
func vectorLiteral(vec []float32) string {
	jsonEmbed, _ := json.Marshal(vec)
	return fmt.Sprintf("[%s]", trimJSON(string(jsonEmbed)))
}

// parseVector decodes pgvector's text format back into a slice.
func parseVector(text string) []float32 {
	text = strings.Trim(text, "[]")
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	vec := make([]float32, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			continue
		}
		vec = append(vec, float32(f))
	}
	return vec
}
