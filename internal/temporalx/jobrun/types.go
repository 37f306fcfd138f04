package jobrun

import "time"

const (
	WorkflowName = "job_run"
	ActivityTick = "job_run_tick"
	SignalResume = "job_resume"
)

// TickResult is what one activity tick observed about the run.
// Terminal distinguishes a failed run that is out of attempts from one
// the next tick will retry.
type TickResult struct {
	JobID     string     `json:"job_id"`
	Status    string     `json:"status"`
	Stage     string     `json:"stage,omitempty"`
	Progress  int        `json:"progress,omitempty"`
	Terminal  bool       `json:"terminal"`
	WaitUntil *time.Time `json:"wait_until,omitempty"`
}
