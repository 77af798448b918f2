package models

import "time"

// RunStatus is the outcome of a scenario run
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusPassed  RunStatus = "passed"
	RunStatusFailed  RunStatus = "failed"
)

// StepResult records the execution of one scenario step
type StepResult struct {
	Index      int           `json:"index"`
	Name       string        `json:"name"`
	Passed     bool          `json:"passed"`
	Skipped    bool          `json:"skipped"`
	Duration   time.Duration `json:"duration"`
	ErrorKind  string        `json:"error_kind,omitempty"`
	Error      string        `json:"error,omitempty"`
	Checkpoint string        `json:"checkpoint,omitempty"` // screenshot path when the step captured one
}

// Checkpoint is a named screenshot captured during a run
type Checkpoint struct {
	Seq  int       `json:"seq"`
	Name string    `json:"name"`
	Path string    `json:"path"`
	Size int64     `json:"size"`
	At   time.Time `json:"at"`
}

// RunRecord is the stored outcome of one scenario run
type RunRecord struct {
	ID          string           `json:"id"`
	Scenario    string           `json:"scenario"`
	Engine      string           `json:"engine"`
	BaseURL     string           `json:"base_url"`
	Status      RunStatus        `json:"status"`
	FailedStep  string           `json:"failed_step,omitempty"`
	ErrorKind   string           `json:"error_kind,omitempty"`
	Error       string           `json:"error,omitempty"`
	Steps       []StepResult     `json:"steps"`
	Checkpoints []Checkpoint     `json:"checkpoints"`
	Console     []ConsoleMessage `json:"console"`
	ResultsDir  string           `json:"results_dir"`
	CreatedAt   time.Time        `json:"created_at"`
	FinishedAt  time.Time        `json:"finished_at"`
}

// Duration returns the wall time of the run (zero while running)
func (r *RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.CreatedAt)
}

// Passed reports whether every step completed
func (r *RunRecord) Passed() bool {
	return r.Status == RunStatusPassed
}
