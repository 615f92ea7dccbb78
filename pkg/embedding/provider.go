package embedding

import (
	"context"
	"errors"
	"math"
)

// Dimension is the fixed embedding width for the whole system, matching the
// OpenCLIP ViT-H/14 model served by the embedding sidecar. It is a structural
// constant: the similarity index, the cache format and every stored vector
// assume it, so it is never inferred per call.
const Dimension = 1024

// ErrDimensionMismatch marks a vector whose length differs from Dimension.
// This is a defect in the upstream model provider and is never silently
// coerced by truncating or padding.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// ImageEmbeddingProvider generates an embedding vector for raw image bytes.
type ImageEmbeddingProvider interface {
	Embed(ctx context.Context, imageData []byte) ([]float32, error)
}

// normalizeVector normalizes a vector to unit length (magnitude = 1).
// Cosine similarity over unit vectors reduces to a dot product and keeps
// scores comparable across providers.
func normalizeVector(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)

	// Avoid division by zero
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
