// ABOUTME: Run and step state types for the automation pipeline, plus ULID run-ID generation.
// ABOUTME: Failures are carried as data in these types, never as panics or raised faults.
package pipeline

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// RunStatus is the lifecycle state of one pipeline run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusPaused    RunStatus = "paused"
	StatusCompleted RunStatus = "completed"
	StatusError     RunStatus = "error"
	StatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is one of the three terminal states.
func (s RunStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// StepStatus is the lifecycle state of one step within a run.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepError     StepStatus = "error"
)

// StepResult records the outcome of one step execution. Once a result
// reaches StepCompleted or StepError it is never mutated again.
type StepResult struct {
	StepID    string        `json:"step_id"`
	Status    StepStatus    `json:"status"`
	Error     string        `json:"error,omitempty"`
	Artifact  any           `json:"artifact,omitempty"`
	Attempts  int           `json:"attempts"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitzero"`
	Duration  time.Duration `json:"duration"`
}

// RunState is a point-in-time snapshot of one pipeline run, as returned to
// callers. Elapsed excludes time spent paused.
type RunState struct {
	ID          string        `json:"id"`
	Owner       string        `json:"owner"`
	Status      RunStatus     `json:"status"`
	CurrentStep int           `json:"current_step"`
	StartedAt   time.Time     `json:"started_at"`
	Elapsed     time.Duration `json:"elapsed"`
	Results     []StepResult  `json:"results"`
	Error       string        `json:"error,omitempty"`
}

// NewRunID produces a sortable unique run identifier.
func NewRunID() string {
	return ulid.Make().String()
}
