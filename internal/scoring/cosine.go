package scoring

import (
	"errors"
	"math"
)

// ErrDimensionMismatch is returned when two vectors of different lengths are
// compared. A length mismatch is a programming error and is surfaced
// immediately rather than silently scored as 0.
var ErrDimensionMismatch = errors.New("scoring: vector dimension mismatch")

// Cosine computes the cosine similarity of two equal-length vectors.
// Returns a value in [-1,1]. Zero-norm vectors yield 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		ai := float64(a[i])
		bi := float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// CosineScore remaps cosine similarity onto the [0,100] scale shared with
// the lexical scorer: (cos+1)*50. Zero-norm vectors score 0, not the
// midpoint a raw cosine of 0 would remap to.
func CosineScore(a, b []float32) (float64, error) {
	cos, err := Cosine(a, b)
	if err != nil {
		return 0, err
	}
	if zeroNorm(a) || zeroNorm(b) {
		return 0, nil
	}
	return (cos + 1) * 50, nil
}

func zeroNorm(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
