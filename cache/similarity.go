package cache

import (
	"math"

	"solver_gateway/errs"
)

// CheckDimensions reports a configuration error when an embedding does not
// have the dimensionality the store was created with.
func CheckDimensions(embedding []float32, dimensions int) error {
	if len(embedding) != dimensions {
		return errs.New(errs.CodeConfigInvalid, "embedding dimension mismatch",
			errs.Field("got", len(embedding)), errs.Field("want", dimensions))
	}
	return nil
}

// CosineSimilarity returns the cosine of the angle between a and b in [-1, 1].
// Zero vectors have similarity 0. Callers guarantee equal lengths.
func CosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return float32(math.Max(-1, math.Min(1, sim)))
}
