package dto

import (
	"github.com/google/uuid"
)

type AnalyzeChartRequest struct {
	ChartId    uuid.UUID `json:"chart_id" validate:"required"`
	TopK       int       `json:"top_k" validate:"omitempty,min=1,max=20"`
	InjectText string    `json:"inject_text"`
}

// NeighborResponse describes one retrieved historical chart. Score is the
// cosine similarity clamped to [0, 1] for presentation.
type NeighborResponse struct {
	ChartId    uuid.UUID `json:"chart_id"`
	Filename   string    `json:"filename"`
	Instrument string    `json:"instrument"`
	Timeframe  string    `json:"timeframe"`
	Score      float64   `json:"score"`
}

type AnalyzeChartResponse struct {
	Id         uuid.UUID          `json:"id"`
	ChartId    uuid.UUID          `json:"chart_id"`
	Prediction string             `json:"prediction"`
	Session    string             `json:"session"`
	Confidence string             `json:"confidence"`
	Reasoning  string             `json:"reasoning"`
	Score      float64            `json:"score"`
	State      string             `json:"state"`
	Degraded   bool               `json:"degraded"`
	Neighbors  []NeighborResponse `json:"neighbors"`
}

type AnalysisHealthResponse struct {
	IndexSize       int    `json:"index_size"`
	CachedArtifacts int    `json:"cached_artifacts"`
	VisionProvider  string `json:"vision_provider"`
	PromptVersion   string `json:"prompt_version"`
}
