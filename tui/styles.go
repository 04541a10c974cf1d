// ABOUTME: Defines lipgloss style constants for the run monitor's step lines and status bar.
// ABOUTME: Provides StyleForStep to map step statuses to their corresponding display styles.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/postpilot-io/postpilot/pipeline"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	// Step status colors
	PendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	RunningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	CompletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	FailedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	PausedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)

	// Event log
	LogTimestampStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	LogErrorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	StatusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1)
)

// SpinnerFrames contains the Braille-dot animation frames for the step
// currently executing.
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StyleForStep returns the appropriate lipgloss style for a step status.
func StyleForStep(status pipeline.StepStatus) lipgloss.Style {
	switch status {
	case pipeline.StepRunning:
		return RunningStyle
	case pipeline.StepCompleted:
		return CompletedStyle
	case pipeline.StepError:
		return FailedStyle
	default:
		return PendingStyle
	}
}
