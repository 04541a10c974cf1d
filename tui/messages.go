// ABOUTME: Bubble Tea message types used in the run monitor's message loop.
// ABOUTME: Each type wraps domain events for the tea.Msg interface (which is interface{}).
package tui

import (
	"time"

	"github.com/postpilot-io/postpilot/pipeline"
)

// StepResultMsg wraps a step result emitted by the run for the Bubble Tea
// message loop.
type StepResultMsg struct {
	Result pipeline.StepResult
}

// RunDoneMsg signals that the run has reached a terminal state.
type RunDoneMsg struct {
	State pipeline.RunState
}

// TickMsg is sent periodically to update the spinner and elapsed timer.
type TickMsg struct {
	Time time.Time
}
