package vision

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func l2norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalizeUnitLength(t *testing.T) {
	v := []float32{3, 4}
	normalize(v)

	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, l2norm(v), 1e-6)
}

func TestNormalizeZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	normalize(v)

	// No division by a zero norm.
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{0.6, 0.8}, []float32{0.6, 0.8}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, CosineSimilarity(tt.a, tt.b), 1e-6)
		})
	}
}

func TestCosineSimilarityClamped(t *testing.T) {
	// Accumulated float error can push the dot product past 1; callers
	// compare against thresholds and expect [-1, 1].
	a := []float32{1.0000001, 0}
	sim := CosineSimilarity(a, a)
	assert.LessOrEqual(t, sim, float32(1))
	assert.Greater(t, sim, float32(0.99))
}
