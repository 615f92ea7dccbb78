package dto

import "github.com/google/uuid"

// PublishEmbedChartMessage is the work-queue payload asking the consumer to
// embed a registered chart and index it for retrieval.
type PublishEmbedChartMessage struct {
	ChartId uuid.UUID `json:"chart_id"`
}
