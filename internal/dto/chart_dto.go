package dto

import (
	"time"

	"github.com/google/uuid"
)

type RegisterChartRequest struct {
	Instrument string     `json:"instrument" validate:"required"`
	Timeframe  string     `json:"timeframe" validate:"required"`
	Session    string     `json:"session"`
	BundleId   *uuid.UUID `json:"bundle_id"`
}

type RegisterChartResponse struct {
	Id          uuid.UUID `json:"id"`
	Fingerprint string    `json:"fingerprint"`
	Cached      bool      `json:"cached"` // artifacts already existed for this fingerprint
}

type ShowChartResponse struct {
	Id          uuid.UUID         `json:"id"`
	Fingerprint string            `json:"fingerprint"`
	Filename    string            `json:"filename"`
	Instrument  string            `json:"instrument"`
	Timeframe   string            `json:"timeframe"`
	Session     string            `json:"session,omitempty"`
	MapPaths    map[string]string `json:"map_paths"`
	Embedded    bool              `json:"embedded"`
	BundleId    *uuid.UUID        `json:"bundle_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type CreateBundleRequest struct {
	Instrument string      `json:"instrument" validate:"required"`
	ChartIds   []uuid.UUID `json:"chart_ids" validate:"required,min=1"`
}

type CreateBundleResponse struct {
	Id         uuid.UUID `json:"id"`
	Timeframes []string  `json:"timeframes"`
}
