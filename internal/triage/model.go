package triage

import "time"

// Status tracks where a triage run is in its lifecycle.
type Status string

const (
	// StatusPending means created, not yet started
	StatusPending Status = "pending"

	// StatusInProgress means currently being processed
	StatusInProgress Status = "in_progress"

	// StatusComplete means finished successfully
	StatusComplete Status = "complete"

	// StatusFailed means finished with errors
	StatusFailed Status = "failed"
)

// Severity levels, ordinal, P0 highest.
const (
	LevelP0 = "P0"
	LevelP1 = "P1"
	LevelP2 = "P2"
	LevelP3 = "P3"
)

// Finding is one structured triage verdict for a vulnerability/component
// pair, as authored by the classifier.
type Finding struct {
	Component  string `json:"component"`
	CVE        string `json:"cve"`
	Level      string `json:"level"`
	Tag        string `json:"tag"`
	Reason     string `json:"reason"`
	Suggestion string `json:"suggestion"`
	ActionCode string `json:"action_code"`
}

// Result is the stored outcome of a triage run.
type Result struct {
	ID          string    `json:"id"`
	Status      Status    `json:"status"`
	Input       string    `json:"input,omitempty"`
	Model       string    `json:"model,omitempty"`
	Identifiers []string  `json:"identifiers,omitempty"`
	KEVHits     []string  `json:"kev_hits,omitempty"`
	Findings    []Finding `json:"findings"`
	P0Count     int       `json:"p0_count"`
	P1Count     int       `json:"p1_count"`
	Error       string    `json:"error,omitempty"`
	RawResponse string    `json:"raw_response,omitempty"`
	Progress    int       `json:"progress"`
	ProgressMsg string    `json:"progress_msg,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at,omitzero"`
	Duration    float64   `json:"duration_seconds,omitempty"`
}

// CountLevels recomputes the dashboard counters from the findings.
func (r *Result) CountLevels() {
	r.P0Count, r.P1Count = 0, 0
	for _, f := range r.Findings {
		switch f.Level {
		case LevelP0:
			r.P0Count++
		case LevelP1:
			r.P1Count++
		}
	}
}
