package types

import "time"

// EventRecommendationCompleted is the event type of RunCompleted.
const EventRecommendationCompleted = "recommendation.completed"

// RunCompleted describes a finished recommendation run. It is published to the
// run-events queue and feeds the per-run metrics.
type RunCompleted struct {
	EventType    string    `json:"event_type"`
	RunID        string    `json:"run_id"`
	RequestID    string    `json:"request_id,omitempty"`
	Municipality string    `json:"municipality"`
	Decile       int       `json:"decile"`
	Budget       float64   `json:"budget"`
	MaximizeArea bool      `json:"maximize_area"`
	Evaluated    int       `json:"evaluated"`
	Viable       int       `json:"viable"`
	Champion     string    `json:"champion,omitempty"`
	ChampionROI  float64   `json:"champion_roi_percent,omitempty"`
	Narrative    bool      `json:"narrative_available"`
	Duration     int64     `json:"duration_ms"`
	CompletedAt  time.Time `json:"completed_at"`
}
