package entity

import (
	"time"

	"github.com/google/uuid"
)

type AnalysisResult struct {
	Id         uuid.UUID
	ChartId    uuid.UUID
	Prediction string
	Session    string
	Confidence string
	Reasoning  string
	Score      float64
	State      string
	Degraded   bool
	Raw        string // unedited model reply, kept for audit
	CreatedAt  time.Time
}
