package fingerprint

import (
	"context"
	"fmt"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps artifacts in an in-process cache. Entries never expire
// within a run; an eviction policy, if wanted, belongs to a wrapping layer.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (s *MemoryStore) Get(_ context.Context, hash string, kind ArtifactKind) ([]byte, bool, error) {
	if x, found := s.cache.Get(entryKey(hash, kind)); found {
		return x.([]byte), true, nil
	}
	return nil, false, nil
}

func (s *MemoryStore) Put(_ context.Context, hash string, kind ArtifactKind, artifact []byte) error {
	key := entryKey(hash, kind)
	// Entries are immutable: a second write for the same key is a no-op.
	if _, found := s.cache.Get(key); found {
		return nil
	}
	s.cache.Set(key, artifact, cache.NoExpiration)
	return nil
}

func (s *MemoryStore) Location(string, ArtifactKind) string {
	return ""
}

// ItemCount reports the number of cached artifacts, for diagnostics.
func (s *MemoryStore) ItemCount() int {
	return s.cache.ItemCount()
}

func entryKey(hash string, kind ArtifactKind) string {
	return fmt.Sprintf("%s:%s", hash, kind)
}
