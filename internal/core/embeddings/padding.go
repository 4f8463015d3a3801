package embeddings

import "math"

// PadToTargetDimensions pads or truncates a vector to the target dimensions.
// Zero-padding is safe for cosine similarity because zero entries do not
// affect the angle between vectors.
func PadToTargetDimensions(vec []float32, target int) []float32 {
	if len(vec) == target {
		return vec
	}

	if len(vec) > target {
		return vec[:target]
	}

	padded := make([]float32, target)
	copy(padded, vec)

	return padded
}

// Normalize scales vec to unit L2 norm. Zero vectors are returned unchanged
// since they have no direction to preserve.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	if sum == 0 {
		return vec
	}

	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))

	for i, v := range vec {
		out[i] = v / norm
	}

	return out
}
