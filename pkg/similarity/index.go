package similarity

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"chart-analysis-be/internal/pkg/logger"
	"chart-analysis-be/pkg/embedding"
)

// RecordMetadata is the denormalized display data kept next to each vector
// so lookups never need a second fetch.
type RecordMetadata struct {
	Filename   string
	Instrument string
	Timeframe  string
	MapPaths   map[string]string
}

// Record is one indexed chart: its id, embedding vector and display metadata.
type Record struct {
	ChartId  uuid.UUID
	Vector   []float32
	Metadata RecordMetadata
}

// Match pairs a record with its cosine similarity to a query, in [-1, 1].
type Match struct {
	Record     Record
	Similarity float64
}

// Index answers top-K nearest-neighbor queries over all analyzed charts by
// linear scan. That is deliberate at the dataset sizes seen here; callers
// depend only on the TopK contract, so an ANN structure can replace the scan
// without touching them.
type Index struct {
	mu            sync.RWMutex
	records       []Record
	byId          map[uuid.UUID]int
	minSimilarity float64
	logger        logger.ILogger
}

// Option configures an Index.
type Option func(*Index)

// WithMinSimilarity excludes matches below the floor even when they would
// otherwise make the top K. The floor is policy, not a structural constant.
func WithMinSimilarity(floor float64) Option {
	return func(idx *Index) {
		idx.minSimilarity = floor
	}
}

func NewIndex(log logger.ILogger, opts ...Option) *Index {
	idx := &Index{
		byId:          make(map[uuid.UUID]int),
		minSimilarity: -1,
		logger:        log,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Upsert adds or replaces the record for a chart id. Replacement is
// last-write-wins and keeps the original insertion position, so tie ordering
// in TopK stays stable across updates.
func (idx *Index) Upsert(record Record) error {
	if len(record.Vector) != embedding.Dimension {
		return fmt.Errorf("%w: got %d, want %d", embedding.ErrDimensionMismatch, len(record.Vector), embedding.Dimension)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if pos, exists := idx.byId[record.ChartId]; exists {
		idx.records[pos] = record
		return nil
	}
	idx.byId[record.ChartId] = len(idx.records)
	idx.records = append(idx.records, record)
	return nil
}

// TopK returns at most k records ordered by non-increasing cosine similarity
// to the query, ties broken by insertion order. A query of the wrong width
// yields an empty result rather than nonsense scores.
func (idx *Index) TopK(query []float32, k int) []Match {
	if len(query) != embedding.Dimension {
		idx.logger.Warn("similarity", "Rejected query vector with wrong width", map[string]interface{}{
			"got": len(query), "want": embedding.Dimension,
		})
		return nil
	}
	if k <= 0 {
		return nil
	}

	idx.mu.RLock()
	matches := make([]Match, 0, len(idx.records))
	for _, record := range idx.records {
		score := cosineSimilarity(query, record.Vector)
		if score < idx.minSimilarity {
			continue
		}
		matches = append(matches, Match{Record: record, Similarity: score})
	}
	idx.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Size reports the number of indexed charts.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// cosineSimilarity calculates similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
