// ABOUTME: Inline Bubble Tea model for monitoring a single pipeline run in the terminal.
// ABOUTME: Displays per-step status with spinners and an event log, with pause/resume/cancel keys.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/postpilot-io/postpilot/pipeline"
)

// maxLogEntries limits the number of event lines retained in the log viewport.
const maxLogEntries = 200

// MonitorModel is an inline (non-alt-screen) Bubble Tea model that displays
// one run's step progress as a streaming list with status indicators, an
// elapsed timer, and lifecycle keybindings.
type MonitorModel struct {
	run   *pipeline.Run
	sink  *pipeline.ChannelSink
	steps []string // configured step order for display

	statuses  map[string]pipeline.StepStatus
	durations map[string]time.Duration
	attempts  map[string]int

	logLines []string
	log      viewport.Model

	spinnerIdx int
	completed  int
	done       bool
	final      pipeline.RunState

	width int
}

// NewMonitorModel creates a MonitorModel for the given run. The steps slice
// is the configured execution order and drives the display; the model
// subscribes its own channel sink to the run.
func NewMonitorModel(run *pipeline.Run, steps []string) MonitorModel {
	statuses := make(map[string]pipeline.StepStatus, len(steps))
	for _, id := range steps {
		statuses[id] = pipeline.StepPending
	}
	// Results emitted before the subscription still show up via the
	// initial snapshot.
	for _, result := range run.State().Results {
		statuses[result.StepID] = result.Status
	}

	sink := pipeline.NewChannelSink(64)
	run.Subscribe(sink)

	return MonitorModel{
		run:       run,
		sink:      sink,
		steps:     steps,
		statuses:  statuses,
		durations: make(map[string]time.Duration),
		attempts:  make(map[string]int),
		log:       viewport.New(80, 6),
	}
}

// Init implements tea.Model.
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(
		WaitForStepCmd(m.sink.C),
		WaitForDoneCmd(m.run),
		TickCmd(100*time.Millisecond),
	)
}

// Update implements tea.Model. Routes incoming messages to appropriate handlers.
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.log.Width = msg.Width
		return m, nil

	case StepResultMsg:
		return m.handleStepResult(msg.Result)

	case RunDoneMsg:
		m.done = true
		m.final = msg.State
		return m, tea.Quit

	case TickMsg:
		m.spinnerIdx++
		if m.done {
			return m, nil
		}
		return m, TickCmd(100 * time.Millisecond)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	}

	return m, nil
}

func (m MonitorModel) handleStepResult(result pipeline.StepResult) (tea.Model, tea.Cmd) {
	m.statuses[result.StepID] = result.Status
	m.durations[result.StepID] = result.Duration
	m.attempts[result.StepID] = result.Attempts
	if result.Status == pipeline.StepCompleted {
		m.completed++
	}
	m.appendLog(result)
	return m, WaitForStepCmd(m.sink.C)
}

func (m *MonitorModel) appendLog(result pipeline.StepResult) {
	ts := LogTimestampStyle.Render(time.Now().Format("15:04:05"))
	line := fmt.Sprintf("%s %s %s", ts, result.StepID, result.Status)
	if result.Attempts > 1 {
		line += fmt.Sprintf(" (attempt %d)", result.Attempts)
	}
	if result.Error != "" {
		line += " " + LogErrorStyle.Render(result.Error)
	}
	if len(m.logLines) >= maxLogEntries {
		m.logLines = m.logLines[1:]
	}
	m.logLines = append(m.logLines, line)
	m.log.SetContent(strings.Join(m.logLines, "\n"))
	m.log.GotoBottom()
}

// handleKeyMsg processes keyboard input for lifecycle control.
func (m MonitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "p":
		_ = m.run.Pause()
	case "r":
		_ = m.run.Resume()
	case "c":
		_ = m.run.Cancel()
	case "q", "ctrl+c":
		// Quitting the monitor abandons the view, not the run.
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model. Renders the inline run progress display.
func (m MonitorModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(fmt.Sprintf("postpilot — run %s", m.run.ID())))
	b.WriteString("\n\n")

	current := ""
	state := m.run.State()
	if !state.Status.Terminal() && state.CurrentStep >= 0 && state.CurrentStep < len(m.steps) {
		current = m.steps[state.CurrentStep]
	}
	for _, id := range m.steps {
		b.WriteString(m.renderStepLine(id, current))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if len(m.logLines) > 0 {
		b.WriteString(m.log.View())
		b.WriteString("\n")
	}
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")

	return b.String()
}

// renderStepLine renders a single step's status line.
func (m MonitorModel) renderStepLine(id, current string) string {
	status := m.statuses[id]

	if status == pipeline.StepPending && id == current && !m.done {
		frame := SpinnerFrames[m.spinnerIdx%len(SpinnerFrames)]
		return RunningStyle.Render(fmt.Sprintf("  %s %s  running...", frame, id))
	}

	switch status {
	case pipeline.StepCompleted:
		line := fmt.Sprintf("  ✓ %s  %s", id, formatDuration(m.durations[id]))
		if m.attempts[id] > 1 {
			line += fmt.Sprintf(" (%d attempts)", m.attempts[id])
		}
		return CompletedStyle.Render(line)
	case pipeline.StepError:
		return FailedStyle.Render(fmt.Sprintf("  ✗ %s  failed (%s)", id, formatDuration(m.durations[id])))
	default:
		return PendingStyle.Render(fmt.Sprintf("    %s", id))
	}
}

func (m MonitorModel) renderStatusBar() string {
	status := m.run.Status()
	elapsed := formatDuration(m.run.Elapsed())

	var state string
	switch status {
	case pipeline.StatusPaused:
		state = PausedStyle.Render("PAUSED")
	case pipeline.StatusCancelled:
		state = FailedStyle.Render("CANCELLED")
	case pipeline.StatusError:
		state = FailedStyle.Render("ERROR")
	case pipeline.StatusCompleted:
		state = CompletedStyle.Render("COMPLETED")
	default:
		state = RunningStyle.Render("RUNNING")
	}

	bar := fmt.Sprintf("%s  %d/%d steps  %s  [p]ause [r]esume [c]ancel [q]uit",
		state, m.completed, len(m.steps), elapsed)
	return StatusBarStyle.Render(bar)
}

// formatDuration formats a duration as a human-readable string like "0.1s" or "2.3s".
func formatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 10 {
		return fmt.Sprintf("%.1fs", secs)
	}
	if secs < 60 {
		return fmt.Sprintf("%.0fs", secs)
	}
	mins := int(secs) / 60
	remainSecs := int(secs) % 60
	return fmt.Sprintf("%dm%02ds", mins, remainSecs)
}
