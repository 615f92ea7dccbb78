package fingerprint

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministic(t *testing.T) {
	data := []byte("chart image bytes")

	first := Fingerprint(data)
	second := Fingerprint(data)

	assert.Equal(t, first, second)
	assert.Len(t, first, HexLength)
}

func TestFingerprintDistinguishesContent(t *testing.T) {
	a := Fingerprint([]byte("chart A"))
	b := Fingerprint([]byte("chart B"))

	assert.NotEqual(t, a, b)
}

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hash := Fingerprint([]byte("some chart"))

	_, found, err := store.Get(ctx, hash, KindDepthMap)
	require.NoError(t, err)
	assert.False(t, found)

	artifact := []byte("png payload")
	require.NoError(t, store.Put(ctx, hash, KindDepthMap, artifact))

	got, found, err := store.Get(ctx, hash, KindDepthMap)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, artifact, got)
}

func TestMemoryStorePutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hash := Fingerprint([]byte("some chart"))
	artifact := []byte("first write")

	require.NoError(t, store.Put(ctx, hash, KindEmbedding, artifact))
	require.NoError(t, store.Put(ctx, hash, KindEmbedding, artifact))

	got, found, err := store.Get(ctx, hash, KindEmbedding)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, artifact, got)
	assert.Equal(t, 1, store.ItemCount())
}

func TestMemoryStoreKindsAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	hash := Fingerprint([]byte("some chart"))

	require.NoError(t, store.Put(ctx, hash, KindDepthMap, []byte("depth")))

	_, found, err := store.Get(ctx, hash, KindEdgeMap)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDiskStorePutGet(t *testing.T) {
	ctx := context.Background()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)

	hash := Fingerprint([]byte("another chart"))
	artifact := []byte("gradient png")

	require.NoError(t, store.Put(ctx, hash, KindGradientMap, artifact))
	require.NoError(t, store.Put(ctx, hash, KindGradientMap, artifact))

	got, found, err := store.Get(ctx, hash, KindGradientMap)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, artifact, got)
}

func TestDiskStoreLocation(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	require.NoError(t, err)

	hash := Fingerprint([]byte("chart"))

	loc := store.Location(hash, KindDepthMap)
	assert.Equal(t, filepath.Join(dir, hash, "depth.png"), loc)
	assert.Equal(t, filepath.Join(dir, hash, "embedding.json"), store.Location(hash, KindEmbedding))
}
