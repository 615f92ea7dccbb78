package visual

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/pkg/fingerprint"
)

// testChartPNG renders a small synthetic candlestick-like pattern: vertical
// bars over a horizontal intensity gradient.
func testChartPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			v := uint8(x * 3)
			if x%8 < 2 && y > 10 && y < 40 {
				v = 230
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestGenerator() (*Generator, *fingerprint.MemoryStore) {
	store := fingerprint.NewMemoryStore()
	return NewGenerator(store, logger.NewNopLogger()), store
}

func TestGenerateProducesAllMaps(t *testing.T) {
	gen, _ := newTestGenerator()

	maps, err := gen.Generate(context.Background(), testChartPNG(t))
	require.NoError(t, err)

	assert.NotEmpty(t, maps.Depth)
	assert.NotEmpty(t, maps.Edge)
	assert.NotEmpty(t, maps.Gradient)
	assert.Empty(t, maps.Errors)
}

func TestGenerateIsDeterministic(t *testing.T) {
	src := testChartPNG(t)

	genA, _ := newTestGenerator()
	genB, _ := newTestGenerator()

	first, err := genA.Generate(context.Background(), src)
	require.NoError(t, err)
	second, err := genB.Generate(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, first.Depth, second.Depth)
	assert.Equal(t, first.Edge, second.Edge)
	assert.Equal(t, first.Gradient, second.Gradient)
}

func TestGenerateCachesMaps(t *testing.T) {
	ctx := context.Background()
	src := testChartPNG(t)
	gen, store := newTestGenerator()

	first, err := gen.Generate(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 3, store.ItemCount())

	// Second run must serve from cache and return identical bytes.
	second, err := gen.Generate(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, first.Depth, second.Depth)
	assert.Equal(t, first.Edge, second.Edge)
	assert.Equal(t, first.Gradient, second.Gradient)
	assert.Equal(t, 3, store.ItemCount())
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

func TestGenerateSurvivesFailingStore(t *testing.T) {
	gen := NewGenerator(brokenStore{}, logger.NewNopLogger())

	maps, err := gen.Generate(context.Background(), testChartPNG(t))
	require.NoError(t, err)

	assert.NotEmpty(t, maps.Depth)
	assert.NotEmpty(t, maps.Edge)
	assert.NotEmpty(t, maps.Gradient)
	assert.Empty(t, maps.Errors)
}

func TestGenerateRejectsMalformedImage(t *testing.T) {
	gen, store := newTestGenerator()

	_, err := gen.Generate(context.Background(), []byte("definitely not an image"))
	require.ErrorIs(t, err, ErrInvalidImage)
	assert.Equal(t, 0, store.ItemCount())
}

func TestDecodeGrayDownscalesLargeImages(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 2048, 512))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	gray, err := DecodeGray(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, 1024, gray.Rect.Dx())
	assert.Equal(t, 256, gray.Rect.Dy())
}

func TestMapSetAccessors(t *testing.T) {
	m := &MapSet{Depth: []byte{1}, Gradient: []byte{3}}

	assert.Equal(t, []byte{1}, m.Map(fingerprint.KindDepthMap))
	assert.Nil(t, m.Map(fingerprint.KindEdgeMap))
	assert.Equal(t, []byte{3}, m.Map(fingerprint.KindGradientMap))
}
