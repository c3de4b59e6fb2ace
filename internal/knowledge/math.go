package knowledge

import "math"

// cosineEpsilon keeps the similarity denominator non-zero for
// degenerate (all-zero) vectors.
const cosineEpsilon = 1e-10

// SimilarityFromDistance converts a backend-reported cosine distance to
// a similarity score via 1/(1+d). The transform is monotonically
// decreasing in d and bounded in (0, 1]; distance 0 maps to exactly 1.
func SimilarityFromDistance(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

// CosineSimilarity computes the cosine of the angle between two vectors:
// the dot product over the product of L2 norms. Mismatched lengths or
// degenerate vectors yield a value near zero rather than an error; the
// caller ranks, it does not validate.
func CosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}

	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	return dot / (math.Sqrt(normA)*math.Sqrt(normB) + cosineEpsilon)
}
