package model

import "time"

// Run status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Verdicts reported by the engine in its final verdict log event, plus the
// two the bridge assigns itself.
const (
	VerdictPass   = "PASS"
	VerdictFail   = "FAIL"
	VerdictInconc = "INCONC"
	VerdictError  = "ERROR"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether status is final.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// LogLine is one engine log event captured during a run.
type LogLine struct {
	RunID   string `json:"run_id"`
	Seq     int    `json:"seq"`
	Type    int    `json:"type"`
	Label   string `json:"label"`
	Time    string `json:"time"`
	Message string `json:"message"`
}

// Run is one test case execution submitted through the API.
type Run struct {
	ID         string     `json:"id"`
	Project    string     `json:"project"`
	TestCase   string     `json:"test_case"`
	Status     string     `json:"status"`
	Verdict    string     `json:"verdict,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
