package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"chart-analysis-be/internal/entity"
)

// ChartRepository keeps registered charts in process memory. Charts never
// expire; the registry lives as long as the service.
//
// Stored records are owned by the repository: every Get/List returns a copy
// and Save stores a copy, so callers can read and fill in entities without
// racing the consumer goroutine. In-place changes go through Update, which
// holds the repository lock across the read-modify-write.
type ChartRepository struct {
	cache *cache.Cache

	mu            sync.RWMutex
	byFingerprint map[string]uuid.UUID
}

func NewChartRepository() *ChartRepository {
	return &ChartRepository{
		cache:         cache.New(cache.NoExpiration, 0),
		byFingerprint: make(map[string]uuid.UUID),
	}
}

func (r *ChartRepository) Save(chart *entity.Chart) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(chart.Id.String(), cloneChart(chart), cache.NoExpiration)
	r.byFingerprint[chart.Fingerprint] = chart.Id
}

func (r *ChartRepository) Get(id uuid.UUID) (*entity.Chart, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(id)
}

func (r *ChartRepository) GetByFingerprint(hash string) (*entity.Chart, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byFingerprint[hash]
	if !ok {
		return nil, false
	}
	return r.get(id)
}

// Update applies mutate to the stored chart under the repository lock and
// persists the result. Reports whether the chart existed.
func (r *ChartRepository) Update(id uuid.UUID, mutate func(*entity.Chart)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	chart, found := r.get(id)
	if !found {
		return false
	}
	mutate(chart)
	r.cache.Set(id.String(), chart, cache.NoExpiration)
	return true
}

func (r *ChartRepository) List() []*entity.Chart {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := r.cache.Items()
	charts := make([]*entity.Chart, 0, len(items))
	for _, item := range items {
		charts = append(charts, cloneChart(item.Object.(*entity.Chart)))
	}
	sort.Slice(charts, func(i, j int) bool {
		return charts[i].CreatedAt.Before(charts[j].CreatedAt)
	})
	return charts
}

func (r *ChartRepository) Count() int {
	return r.cache.ItemCount()
}

// get must be called with at least the read lock held.
func (r *ChartRepository) get(id uuid.UUID) (*entity.Chart, bool) {
	if x, found := r.cache.Get(id.String()); found {
		return cloneChart(x.(*entity.Chart)), true
	}
	return nil, false
}

func cloneChart(c *entity.Chart) *entity.Chart {
	cp := *c
	if c.MapPaths != nil {
		cp.MapPaths = make(map[string]string, len(c.MapPaths))
		for k, v := range c.MapPaths {
			cp.MapPaths[k] = v
		}
	}
	return &cp
}
