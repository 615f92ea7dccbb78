package embedding

import (
	"context"
	"encoding/json"
	"fmt"

	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/pkg/fingerprint"
	"chart-analysis-be/pkg/retry"
)

// Generator wraps an ImageEmbeddingProvider with the fingerprint cache and
// the dimension invariant. A cache hit returns the stored vector without
// touching the provider; a generated vector is validated, unit-normalized
// and cached before it is returned.
type Generator struct {
	provider ImageEmbeddingProvider
	store    fingerprint.Store
	logger   logger.ILogger
	retryCfg retry.Config
}

func NewGenerator(provider ImageEmbeddingProvider, store fingerprint.Store, log logger.ILogger, retryCfg retry.Config) *Generator {
	return &Generator{
		provider: provider,
		store:    store,
		logger:   log,
		retryCfg: retryCfg,
	}
}

func (g *Generator) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	hash := fingerprint.Fingerprint(imageData)

	if cached, ok := g.lookup(ctx, hash); ok {
		return cached, nil
	}

	vec, err := retry.Do(ctx, g.retryCfg, func(ctx context.Context) ([]float32, error) {
		return g.provider.Embed(ctx, imageData)
	})
	if err != nil {
		return nil, fmt.Errorf("embedding provider: %w", err)
	}

	if len(vec) != Dimension {
		// The index invariant depends on this; refusing loudly beats letting a
		// wrong-width vector poison similarity scores.
		g.logger.Error("embedding", "Provider returned wrong vector width", map[string]interface{}{
			"hash": hash, "got": len(vec), "want": Dimension,
		})
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), Dimension)
	}

	vec = normalizeVector(vec)
	g.cache(ctx, hash, vec)
	return vec, nil
}

func (g *Generator) lookup(ctx context.Context, hash string) ([]float32, bool) {
	data, found, err := g.store.Get(ctx, hash, fingerprint.KindEmbedding)
	if err != nil {
		g.logger.Warn("embedding", "Embedding cache read failed, regenerating", map[string]interface{}{
			"hash": hash, "error": err.Error(),
		})
		return nil, false
	}
	if !found {
		return nil, false
	}

	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil || len(vec) != Dimension {
		g.logger.Warn("embedding", "Cached embedding unreadable, regenerating", map[string]interface{}{
			"hash": hash,
		})
		return nil, false
	}
	return vec, true
}

func (g *Generator) cache(ctx context.Context, hash string, vec []float32) {
	data, err := json.Marshal(vec)
	if err != nil {
		return
	}
	if err := g.store.Put(ctx, hash, fingerprint.KindEmbedding, data); err != nil {
		g.logger.Warn("embedding", "Embedding cache write failed", map[string]interface{}{
			"hash": hash, "error": err.Error(),
		})
	}
}
