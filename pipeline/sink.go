// ABOUTME: ResultSink observer interface plus fan-out, function-adapter, channel, and NDJSON sinks.
// ABOUTME: Sinks are invoked synchronously after each step finalizes, before the next suspension check.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ResultSink receives each step's finalized result. The orchestrator calls
// OnStepResult synchronously, strictly before it evaluates pause or cancel
// state for the next step, so subscribers observe partial progress
// deterministically.
type ResultSink interface {
	OnStepResult(runID string, result StepResult)
}

// SinkFunc adapts a plain function to the ResultSink interface.
type SinkFunc func(runID string, result StepResult)

func (f SinkFunc) OnStepResult(runID string, result StepResult) {
	f(runID, result)
}

// MultiSink fans one result out to several sinks in order.
type MultiSink []ResultSink

func (m MultiSink) OnStepResult(runID string, result StepResult) {
	for _, sink := range m {
		sink.OnStepResult(runID, result)
	}
}

// ChannelSink forwards results onto a channel, dropping when the receiver
// falls behind so a slow subscriber cannot stall the run.
type ChannelSink struct {
	C chan StepResult
}

// NewChannelSink creates a channel sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{C: make(chan StepResult, buffer)}
}

func (s *ChannelSink) OnStepResult(_ string, result StepResult) {
	select {
	case s.C <- result:
	default:
	}
}

// progressLine is the JSON shape of one NDJSON progress entry.
type progressLine struct {
	Timestamp  string `json:"timestamp"`
	RunID      string `json:"run_id"`
	StepID     string `json:"step_id"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// NDJSONSink appends one line per step result to progress.ndjson in the
// given directory, so external tools can tail run progress.
type NDJSONSink struct {
	mu     sync.Mutex
	file   *os.File
	closed bool
}

// NewNDJSONSink opens (or creates) progress.ndjson under dir for appending.
func NewNDJSONSink(dir string) (*NDJSONSink, error) {
	f, err := os.OpenFile(filepath.Join(dir, "progress.ndjson"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open progress log: %w", err)
	}
	return &NDJSONSink{file: f}, nil
}

func (s *NDJSONSink) OnStepResult(runID string, result StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	line := progressLine{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		RunID:      runID,
		StepID:     result.StepID,
		Status:     string(result.Status),
		Attempts:   result.Attempts,
		DurationMS: result.Duration.Milliseconds(),
		Error:      result.Error,
	}
	data, err := json.Marshal(line)
	if err != nil {
		return
	}
	s.file.Write(append(data, '\n'))
}

// Close closes the underlying file. Further results are dropped.
func (s *NDJSONSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
