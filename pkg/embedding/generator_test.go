package embedding

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/pkg/fingerprint"
	"chart-analysis-be/pkg/retry"
)

type countingProvider struct {
	mu    sync.Mutex
	calls int
	width int
}

func (p *countingProvider) Embed(_ context.Context, imageData []byte) ([]float32, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()

	vec := make([]float32, p.width)
	for i := range vec {
		vec[i] = float32(i%7) + float32(imageData[0])
	}
	return vec, nil
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestGenerator(width int) (*Generator, *countingProvider, *fingerprint.MemoryStore) {
	provider := &countingProvider{width: width}
	store := fingerprint.NewMemoryStore()
	gen := NewGenerator(provider, store, logger.NewNopLogger(), retry.Config{MaxAttempts: 1})
	return gen, provider, store
}

func TestEmbedValidatesDimension(t *testing.T) {
	gen, _, store := newTestGenerator(Dimension / 2)

	_, err := gen.Embed(context.Background(), []byte{1, 2, 3})
	require.ErrorIs(t, err, ErrDimensionMismatch)
	assert.Equal(t, 0, store.ItemCount(), "wrong-width vector must not be cached")
}

func TestEmbedNormalizesToUnitLength(t *testing.T) {
	gen, _, _ := newTestGenerator(Dimension)

	vec, err := gen.Embed(context.Background(), []byte{9})
	require.NoError(t, err)
	require.Len(t, vec, Dimension)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestEmbedServesSecondCallFromCache(t *testing.T) {
	gen, provider, _ := newTestGenerator(Dimension)
	img := []byte{42, 43, 44}

	first, err := gen.Embed(context.Background(), img)
	require.NoError(t, err)
	second, err := gen.Embed(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.callCount())
}

func TestEmbedConcurrentIdenticalImages(t *testing.T) {
	gen, provider, store := newTestGenerator(Dimension)
	img := []byte{7, 7, 7}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gen.Embed(context.Background(), img)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// Redundant generation is allowed, duplicate cache entries are not.
	assert.Equal(t, 1, store.ItemCount())
	assert.GreaterOrEqual(t, provider.callCount(), 1)
}

// brokenStore fails every operation, standing in for an unreachable cache
// backend.
type brokenStore struct{}

func (brokenStore) Get(ctx context.Context, hash string, kind fingerprint.ArtifactKind) ([]byte, bool, error) {
	return nil, false, errors.New("cache backend unreachable")
}

func (brokenStore) Put(ctx context.Context, hash string, kind fingerprint.ArtifactKind, artifact []byte) error {
	return errors.New("cache backend unreachable")
}

func (brokenStore) Location(hash string, kind fingerprint.ArtifactKind) string { return "" }

func TestEmbedSurvivesFailingStore(t *testing.T) {
	provider := &countingProvider{width: Dimension}
	gen := NewGenerator(provider, brokenStore{}, logger.NewNopLogger(), retry.Config{MaxAttempts: 1})
	img := []byte{5, 6, 7}

	first, err := gen.Embed(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, first, Dimension)

	// Nothing can be cached, so every call regenerates.
	second, err := gen.Embed(context.Background(), img)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, provider.callCount())
}

func TestSignatureProviderIsDeterministic(t *testing.T) {
	provider := NewSignatureProvider()
	img := []byte("same chart bytes")

	a, err := provider.Embed(context.Background(), img)
	require.NoError(t, err)
	b, err := provider.Embed(context.Background(), img)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, Dimension)

	other, err := provider.Embed(context.Background(), []byte("different chart"))
	require.NoError(t, err)
	assert.NotEqual(t, a, other)
}
