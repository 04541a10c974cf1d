// ABOUTME: Bridge connecting a pipeline run to the Bubble Tea message loop.
// ABOUTME: Provides tea.Cmd factories for step results, run completion, and ticks.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/postpilot-io/postpilot/pipeline"
)

// WaitForStepCmd returns a tea.Cmd that blocks on the sink channel and sends
// a StepResultMsg when the next step result arrives.
func WaitForStepCmd(ch <-chan pipeline.StepResult) tea.Cmd {
	return func() tea.Msg {
		result, ok := <-ch
		if !ok {
			return nil
		}
		return StepResultMsg{Result: result}
	}
}

// WaitForDoneCmd returns a tea.Cmd that blocks until the run reaches a
// terminal state and then sends its final snapshot.
func WaitForDoneCmd(run *pipeline.Run) tea.Cmd {
	return func() tea.Msg {
		<-run.Done()
		return RunDoneMsg{State: run.State()}
	}
}

// TickCmd returns a tea.Cmd that sends a TickMsg after the given interval.
// Used for spinner animation and the elapsed timer.
func TickCmd(interval time.Duration) tea.Cmd {
	return func() tea.Msg {
		time.Sleep(interval)
		return TickMsg{Time: time.Now()}
	}
}
