package embedding

import (
	"context"
	"encoding/binary"
	"math/rand"

	"chart-analysis-be/pkg/fingerprint"
)

// SignatureProvider is the offline stand-in for the CLIP sidecar: it seeds a
// PRNG from the image fingerprint and draws a unit-normalized vector. The
// result carries no visual semantics, but it is deterministic per content,
// which makes the cache and the index testable without a model server.
type SignatureProvider struct{}

func NewSignatureProvider() *SignatureProvider {
	return &SignatureProvider{}
}

func (p *SignatureProvider) Embed(_ context.Context, imageData []byte) ([]float32, error) {
	hash := fingerprint.Fingerprint(imageData)
	seed := int64(binary.BigEndian.Uint64([]byte(hash[:8])))

	rng := rand.New(rand.NewSource(seed))
	vec := make([]float32, Dimension)
	for i := range vec {
		vec[i] = float32(rng.NormFloat64())
	}
	return normalizeVector(vec), nil
}
