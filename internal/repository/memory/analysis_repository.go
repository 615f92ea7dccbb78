package memory

import (
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"chart-analysis-be/internal/entity"
)

type AnalysisRepository struct {
	cache *cache.Cache
}

func NewAnalysisRepository() *AnalysisRepository {
	return &AnalysisRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *AnalysisRepository) Save(result *entity.AnalysisResult) {
	stored := *result
	r.cache.Set(result.Id.String(), &stored, cache.NoExpiration)
}

func (r *AnalysisRepository) Get(id uuid.UUID) (*entity.AnalysisResult, bool) {
	if x, found := r.cache.Get(id.String()); found {
		result := *x.(*entity.AnalysisResult)
		return &result, true
	}
	return nil, false
}
