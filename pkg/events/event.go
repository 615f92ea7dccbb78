package events

import "time"

// Event codes published for external collaborators (persistence, alerting).
const (
	TypeChartRegistered = "CHART_REGISTERED"
	TypeChartAnalyzed   = "CHART_ANALYZED"
)

// Event defines the contract for all integration events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHART_ANALYZED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the plain implementation used for all outbound events.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// NewChartRegistered reports that a chart joined the corpus.
func NewChartRegistered(chartId, instrument, timeframe string) Event {
	return BaseEvent{
		Type: TypeChartRegistered,
		Data: map[string]interface{}{
			"chart_id":   chartId,
			"instrument": instrument,
			"timeframe":  timeframe,
		},
		OccurredAt: time.Now(),
	}
}

// NewChartAnalyzed reports a finished analysis with its headline fields.
func NewChartAnalyzed(chartId, prediction, confidence string, score float64, degraded bool) Event {
	return BaseEvent{
		Type: TypeChartAnalyzed,
		Data: map[string]interface{}{
			"chart_id":   chartId,
			"prediction": prediction,
			"confidence": confidence,
			"score":      score,
			"degraded":   degraded,
		},
		OccurredAt: time.Now(),
	}
}
