package entity

import (
	"time"

	"github.com/google/uuid"
)

// Chart is a registered chart image together with the handles to its
// derived artifacts. Fingerprint is the content hash used as the cache key
// for every artifact derived from the image bytes.
type Chart struct {
	Id          uuid.UUID
	Fingerprint string
	Filename    string
	Instrument  string
	Timeframe   string
	Session     string
	ImagePath   string
	MapPaths    map[string]string // artifact kind -> stored location
	Embedded    bool
	BundleId    *uuid.UUID
	CreatedAt   time.Time
	UpdatedAt   *time.Time
}

// Bundle groups charts of one instrument across several timeframes so they
// can be analyzed together. All member charts must share Instrument.
type Bundle struct {
	Id         uuid.UUID
	Instrument string
	ChartIds   []uuid.UUID
	Timeframes []string
	CreatedAt  time.Time
}
