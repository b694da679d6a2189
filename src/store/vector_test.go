package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConformDims(t *testing.T) {
	assert.Equal(t, []float32{1, 2, 0, 0}, conformDims([]float32{1, 2}, 4))
	assert.Equal(t, []float32{1, 2}, conformDims([]float32{1, 2, 3, 4}, 2))
	assert.Equal(t, []float32{1, 2}, conformDims([]float32{1, 2}, 2))
	assert.Equal(t, []float32{1, 2}, conformDims([]float32{1, 2}, 0))
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, cosineDistance([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 1, cosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, cosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)

	// Zero-magnitude vectors are maximally distant, never NaN.
	assert.Equal(t, float64(1), cosineDistance([]float32{0, 0}, []float32{1, 2}))
}

func TestVectorLiteralRoundTrip(t *testing.T) {
	vec := []float32{0.5, -1.25, 3}
	assert.Equal(t, vec, parseVector(vectorLiteral(vec)))
}

func TestParseVector(t *testing.T) {
	assert.Equal(t, []float32{1, 2.5}, parseVector("[1, 2.5]"))
	assert.Nil(t, parseVector("[]"))
	assert.Nil(t, parseVector(""))
}
