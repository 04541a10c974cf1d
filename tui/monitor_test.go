// ABOUTME: Tests for the run monitor model covering message routing and view rendering.
// ABOUTME: Drives Update with step results, ticks, and key messages against a real run.
package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/postpilot-io/postpilot/ledger"
	"github.com/postpilot-io/postpilot/pipeline"
	"github.com/postpilot-io/postpilot/provider"
)

func testRun(t *testing.T, release chan struct{}) (*pipeline.Run, []string) {
	t.Helper()
	steps := []pipeline.StepDefinition{
		{
			ID:   "draft",
			Cost: 1,
			Work: func(ctx context.Context, _ *pipeline.Context, _ provider.Credential) (any, error) {
				if release != nil {
					select {
					case <-release:
					case <-ctx.Done():
						return nil, ctx.Err()
					}
				}
				return "ok", nil
			},
		},
		{
			ID:   "publish",
			Cost: 1,
			Work: func(context.Context, *pipeline.Context, provider.Credential) (any, error) {
				return "posted", nil
			},
		},
	}
	lgr := ledger.New(ledger.NewMemoryStore(), ledger.WithStarterCredits(10))
	orch, err := pipeline.NewOrchestrator(steps, lgr, []provider.Credential{{Value: "k", Provider: "test"}})
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	run, err := orch.Start(context.Background(), pipeline.RunConfig{
		Owner: "acct",
		Steps: []string{"draft", "publish"},
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return run, []string{"draft", "publish"}
}

func TestMonitorInitialView(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	run, steps := testRun(t, release)
	defer run.Cancel()

	m := NewMonitorModel(run, steps)
	view := m.View()
	if !strings.Contains(view, run.ID()) {
		t.Errorf("view missing run ID: %q", view)
	}
	if !strings.Contains(view, "draft") || !strings.Contains(view, "publish") {
		t.Errorf("view missing step names: %q", view)
	}
}

func TestMonitorStepResultUpdates(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	run, steps := testRun(t, release)
	defer run.Cancel()

	m := NewMonitorModel(run, steps)
	updated, cmd := m.Update(StepResultMsg{Result: pipeline.StepResult{
		StepID:   "draft",
		Status:   pipeline.StepCompleted,
		Attempts: 2,
		Duration: 150 * time.Millisecond,
	}})
	m = updated.(MonitorModel)

	if m.statuses["draft"] != pipeline.StepCompleted {
		t.Errorf("draft status = %s", m.statuses["draft"])
	}
	if m.completed != 1 {
		t.Errorf("completed = %d", m.completed)
	}
	if cmd == nil {
		t.Error("expected a follow-up wait command")
	}
	if view := m.View(); !strings.Contains(view, "✓ draft") {
		t.Errorf("completed marker missing: %q", view)
	}
}

func TestMonitorFailedStepInView(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	run, steps := testRun(t, release)
	defer run.Cancel()

	m := NewMonitorModel(run, steps)
	updated, _ := m.Update(StepResultMsg{Result: pipeline.StepResult{
		StepID: "publish",
		Status: pipeline.StepError,
		Error:  "page token revoked",
	}})
	m = updated.(MonitorModel)

	if view := m.View(); !strings.Contains(view, "✗ publish") {
		t.Errorf("failed marker missing: %q", view)
	}
	if len(m.logLines) != 1 || !strings.Contains(m.logLines[0], "page token revoked") {
		t.Errorf("log lines = %v", m.logLines)
	}
}

func TestMonitorTickAdvancesSpinner(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	run, steps := testRun(t, release)
	defer run.Cancel()

	m := NewMonitorModel(run, steps)
	before := m.spinnerIdx
	updated, cmd := m.Update(TickMsg{Time: time.Now()})
	m = updated.(MonitorModel)
	if m.spinnerIdx != before+1 {
		t.Errorf("spinnerIdx = %d, want %d", m.spinnerIdx, before+1)
	}
	if cmd == nil {
		t.Error("expected another tick while running")
	}
}

func TestMonitorPauseAndCancelKeys(t *testing.T) {
	release := make(chan struct{})
	run, steps := testRun(t, release)

	m := NewMonitorModel(run, steps)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'p'}})
	m = updated.(MonitorModel)
	if run.Status() != pipeline.StatusPaused {
		t.Errorf("after p key: %s", run.Status())
	}

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'c'}})
	m = updated.(MonitorModel)
	if run.Status() != pipeline.StatusCancelled {
		t.Errorf("after c key: %s", run.Status())
	}
	close(release)
	<-run.Done()

	if bar := m.renderStatusBar(); !strings.Contains(bar, "CANCELLED") {
		t.Errorf("status bar = %q", bar)
	}
}

func TestMonitorDoneQuits(t *testing.T) {
	run, steps := testRun(t, nil)
	<-run.Done()

	m := NewMonitorModel(run, steps)
	updated, cmd := m.Update(RunDoneMsg{State: run.State()})
	m = updated.(MonitorModel)
	if !m.done {
		t.Error("model not marked done")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if msg := cmd(); msg == nil {
		t.Error("quit command returned nil msg")
	}
}
