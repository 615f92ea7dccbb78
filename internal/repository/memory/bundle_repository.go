package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"chart-analysis-be/internal/entity"
)

// BundleRepository owns its records the same way ChartRepository does:
// copies in, copies out, in-place changes through Update.
type BundleRepository struct {
	cache *cache.Cache
	mu    sync.RWMutex
}

func NewBundleRepository() *BundleRepository {
	return &BundleRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *BundleRepository) Save(bundle *entity.Bundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(bundle.Id.String(), cloneBundle(bundle), cache.NoExpiration)
}

func (r *BundleRepository) Get(id uuid.UUID) (*entity.Bundle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

// Update applies mutate to the stored bundle under the repository lock and
// persists the result. Reports whether the bundle existed.
func (r *BundleRepository) Update(id uuid.UUID, mutate func(*entity.Bundle)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	bundle, found := r.get(id)
	if !found {
		return false
	}
	mutate(bundle)
	r.cache.Set(id.String(), bundle, cache.NoExpiration)
	return true
}

// get must be called with at least the read lock held.
func (r *BundleRepository) get(id uuid.UUID) (*entity.Bundle, bool) {
	if x, found := r.cache.Get(id.String()); found {
		return cloneBundle(x.(*entity.Bundle)), true
	}
	return nil, false
}

func cloneBundle(b *entity.Bundle) *entity.Bundle {
	cp := *b
	cp.ChartIds = append([]uuid.UUID(nil), b.ChartIds...)
	cp.Timeframes = append([]string(nil), b.Timeframes...)
	return &cp
}
