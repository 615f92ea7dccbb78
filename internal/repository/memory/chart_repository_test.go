package memory

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chart-analysis-be/internal/entity"
)

func testChartEntity() *entity.Chart {
	return &entity.Chart{
		Id:          uuid.New(),
		Fingerprint: "abc123",
		Filename:    "chart.png",
		Instrument:  "EURUSD",
		Timeframe:   "1H",
		MapPaths:    map[string]string{"depth": "cache/abc123.depth.png"},
		CreatedAt:   time.Now(),
	}
}

func TestChartRepositoryReturnsCopies(t *testing.T) {
	repo := NewChartRepository()
	chart := testChartEntity()
	repo.Save(chart)

	// Mutating the caller's struct after Save must not reach the store.
	chart.Instrument = "GBPUSD"
	chart.MapPaths["depth"] = "tampered"

	got, found := repo.Get(chart.Id)
	require.True(t, found)
	assert.Equal(t, "EURUSD", got.Instrument)
	assert.Equal(t, "cache/abc123.depth.png", got.MapPaths["depth"])

	// Mutating a read result must not reach the store either.
	got.Embedded = true
	got.MapPaths["depth"] = "tampered again"

	again, found := repo.Get(chart.Id)
	require.True(t, found)
	assert.False(t, again.Embedded)
	assert.Equal(t, "cache/abc123.depth.png", again.MapPaths["depth"])
}

func TestChartRepositoryUpdate(t *testing.T) {
	repo := NewChartRepository()
	chart := testChartEntity()
	repo.Save(chart)

	now := time.Now()
	ok := repo.Update(chart.Id, func(c *entity.Chart) {
		c.Embedded = true
		c.UpdatedAt = &now
	})
	require.True(t, ok)

	got, found := repo.Get(chart.Id)
	require.True(t, found)
	assert.True(t, got.Embedded)
	require.NotNil(t, got.UpdatedAt)

	assert.False(t, repo.Update(uuid.New(), func(c *entity.Chart) { c.Embedded = true }))
}

func TestBundleRepositoryReturnsCopies(t *testing.T) {
	repo := NewBundleRepository()
	bundle := &entity.Bundle{
		Id:         uuid.New(),
		Instrument: "EURUSD",
		ChartIds:   []uuid.UUID{uuid.New()},
		Timeframes: []string{"1H"},
		CreatedAt:  time.Now(),
	}
	repo.Save(bundle)

	got, found := repo.Get(bundle.Id)
	require.True(t, found)
	got.Timeframes[0] = "tampered"
	got.ChartIds = append(got.ChartIds, uuid.New())

	repo.Update(bundle.Id, func(b *entity.Bundle) {
		b.Timeframes = append(b.Timeframes, "4H")
	})

	again, found := repo.Get(bundle.Id)
	require.True(t, found)
	assert.Equal(t, []string{"1H", "4H"}, again.Timeframes)
	assert.Len(t, again.ChartIds, 1)
}
