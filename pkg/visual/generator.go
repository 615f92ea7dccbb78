package visual

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/pkg/fingerprint"
)

// MapSet holds the derived visual maps for one source chart. Every map is
// independently optional: a nil entry means that transform failed and the
// reason is recorded under Errors. Downstream consumers omit missing maps,
// they never substitute placeholders.
type MapSet struct {
	Depth    []byte
	Edge     []byte
	Gradient []byte
	Errors   map[fingerprint.ArtifactKind]error
}

// Map returns the PNG bytes for a kind, or nil when that map is absent.
func (m *MapSet) Map(kind fingerprint.ArtifactKind) []byte {
	switch kind {
	case fingerprint.KindDepthMap:
		return m.Depth
	case fingerprint.KindEdgeMap:
		return m.Edge
	case fingerprint.KindGradientMap:
		return m.Gradient
	}
	return nil
}

func (m *MapSet) set(kind fingerprint.ArtifactKind, data []byte) {
	switch kind {
	case fingerprint.KindDepthMap:
		m.Depth = data
	case fingerprint.KindEdgeMap:
		m.Edge = data
	case fingerprint.KindGradientMap:
		m.Gradient = data
	}
}

// Generator derives the depth/edge/gradient maps for chart images, caching
// each map in the fingerprint store under the source content hash.
type Generator struct {
	store  fingerprint.Store
	logger logger.ILogger
}

func NewGenerator(store fingerprint.Store, log logger.ILogger) *Generator {
	return &Generator{
		store:  store,
		logger: log,
	}
}

// Generate produces all three maps for the given source bytes. Undecodable
// input fails the whole call with ErrInvalidImage before anything is cached;
// a single failing transform only marks that map as absent.
func (g *Generator) Generate(ctx context.Context, data []byte) (*MapSet, error) {
	hash := fingerprint.Fingerprint(data)
	result := &MapSet{Errors: make(map[fingerprint.ArtifactKind]error)}

	// Cache pass first: a full hit skips decoding entirely.
	missing := make([]fingerprint.ArtifactKind, 0, len(fingerprint.MapKinds))
	for _, kind := range fingerprint.MapKinds {
		cached, found, err := g.store.Get(ctx, hash, kind)
		if err != nil {
			g.logger.Warn("visual", "Artifact cache read failed, regenerating", map[string]interface{}{
				"hash": hash, "kind": string(kind), "error": err.Error(),
			})
		}
		if found {
			result.set(kind, cached)
			continue
		}
		missing = append(missing, kind)
	}
	if len(missing) == 0 {
		return result, nil
	}

	gray, err := DecodeGray(data)
	if err != nil {
		return nil, err
	}

	for _, kind := range missing {
		encoded, err := g.renderMap(gray, kind)
		if err != nil {
			result.Errors[kind] = err
			g.logger.Warn("visual", "Visual map generation failed", map[string]interface{}{
				"hash": hash, "kind": string(kind), "error": err.Error(),
			})
			continue
		}
		result.set(kind, encoded)

		// Commit only the fully encoded artifact. A failing cache write is a
		// degraded condition, not a pipeline failure.
		if err := g.store.Put(ctx, hash, kind, encoded); err != nil {
			g.logger.Warn("visual", "Artifact cache write failed", map[string]interface{}{
				"hash": hash, "kind": string(kind), "error": err.Error(),
			})
		}
	}

	return result, nil
}

// Location reports where the backing store keeps a cached map, for display
// metadata. Empty for backends without addressable locations.
func (g *Generator) Location(hash string, kind fingerprint.ArtifactKind) string {
	return g.store.Location(hash, kind)
}

func (g *Generator) renderMap(gray *image.Gray, kind fingerprint.ArtifactKind) ([]byte, error) {
	var out *image.Gray
	switch kind {
	case fingerprint.KindDepthMap:
		out = depthApproximation(gray)
	case fingerprint.KindEdgeMap:
		out = edgeMap(gray)
	case fingerprint.KindGradientMap:
		out = gradientMap(gray)
	default:
		return nil, fmt.Errorf("unknown map kind %q", kind)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode %s map: %w", kind, err)
	}
	return buf.Bytes(), nil
}
