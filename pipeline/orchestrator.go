// ABOUTME: Pipeline orchestrator owning the run state machine, credit gating, and the pause/resume/cancel surface.
// ABOUTME: Steps execute strictly sequentially; suspension happens only at the boundary between steps.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/postpilot-io/postpilot/ledger"
	"github.com/postpilot-io/postpilot/provider"
)

// ErrInsufficientCredit is recorded on a run that failed its credit
// reservation. No steps execute and the balance is unchanged.
var ErrInsufficientCredit = errors.New("insufficient credit")

// ErrInvalidTransition is returned by pause/resume/cancel on a run whose
// status does not permit the transition.
var ErrInvalidTransition = errors.New("invalid run state transition")

// ErrUnknownRun is returned when a run ID does not exist.
var ErrUnknownRun = errors.New("unknown run")

// Orchestrator owns a fixed catalog of step definitions and executes runs
// against it. The ledger and the credential list are shared, long-lived
// collaborators; each run gets its own private pool cursor.
type Orchestrator struct {
	catalog    map[string]StepDefinition
	ledger     *ledger.Ledger
	pool       *provider.Pool
	retryBound int
	backoff    BackoffConfig
	sinks      []ResultSink

	mu   sync.RWMutex
	runs map[string]*Run
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithRetryBound overrides the per-step rotation retry bound.
func WithRetryBound(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.retryBound = n }
}

// WithBackoff overrides the delay schedule between rotation retries.
func WithBackoff(b BackoffConfig) OrchestratorOption {
	return func(o *Orchestrator) { o.backoff = b }
}

// WithSink registers a sink that observes every run's step results.
// Per-run subscribers are added through Run.Subscribe instead.
func WithSink(sink ResultSink) OrchestratorOption {
	return func(o *Orchestrator) { o.sinks = append(o.sinks, sink) }
}

// NewOrchestrator creates an orchestrator over the given step catalog,
// credit ledger, and credential list.
func NewOrchestrator(steps []StepDefinition, lgr *ledger.Ledger, creds []provider.Credential, opts ...OrchestratorOption) (*Orchestrator, error) {
	catalog := make(map[string]StepDefinition, len(steps))
	for _, step := range steps {
		if step.ID == "" {
			return nil, fmt.Errorf("step with empty ID")
		}
		if step.Work == nil {
			return nil, fmt.Errorf("step %q has no work function", step.ID)
		}
		if _, ok := catalog[step.ID]; ok {
			return nil, fmt.Errorf("duplicate step ID %q", step.ID)
		}
		catalog[step.ID] = step
	}

	o := &Orchestrator{
		catalog:    catalog,
		ledger:     lgr,
		pool:       provider.NewPool(creds),
		retryBound: DefaultRetryBound,
		backoff:    DefaultBackoff(),
		runs:       make(map[string]*Run),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run is the handle for one pipeline invocation. All state mutation happens
// through the orchestrator's goroutine and the control methods below.
type Run struct {
	id  string
	cfg RunConfig

	mu           sync.Mutex
	status       RunStatus
	currentStep  int
	startedAt    time.Time
	runningSince time.Time
	accumulated  time.Duration
	results      []StepResult
	runErr       string
	signal       chan struct{} // closed and replaced on resume/cancel
	done         chan struct{}
	sinks        []ResultSink
}

// ID returns the run identifier.
func (r *Run) ID() string {
	return r.id
}

// Done returns a channel closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Validate checks a run config against the step catalog without starting a
// run or touching the ledger.
func (o *Orchestrator) Validate(cfg RunConfig) error {
	return cfg.validate(o.catalog)
}

// Cost returns the credit cost a run of this config would reserve.
func (o *Orchestrator) Cost(cfg RunConfig) int {
	return cfg.cost(o.catalog)
}

// Start validates the config, reserves the run's credit cost, and launches
// the step loop. A reservation failure is not an error return: the run
// transitions directly to StatusError with ErrInsufficientCredit recorded,
// and no steps execute. Only malformed configs are rejected synchronously.
func (o *Orchestrator) Start(ctx context.Context, cfg RunConfig) (*Run, error) {
	if err := cfg.validate(o.catalog); err != nil {
		return nil, fmt.Errorf("invalid run config: %w", err)
	}

	r := &Run{
		id:        NewRunID(),
		cfg:       cfg,
		status:    StatusPending,
		startedAt: time.Now(),
		signal:    make(chan struct{}),
		done:      make(chan struct{}),
		sinks:     append([]ResultSink(nil), o.sinks...),
	}

	o.mu.Lock()
	o.runs[r.id] = r
	o.mu.Unlock()

	cost := cfg.cost(o.catalog)
	if !o.ledger.Reserve(ctx, cfg.Owner, cost) {
		r.mu.Lock()
		r.status = StatusError
		r.runErr = ErrInsufficientCredit.Error()
		r.mu.Unlock()
		close(r.done)
		return r, nil
	}

	r.mu.Lock()
	r.status = StatusRunning
	r.runningSince = time.Now()
	r.mu.Unlock()

	exec := &StepExecutor{
		Pool:       o.pool.Clone(),
		RetryBound: o.retryBound,
		Backoff:    o.backoff,
	}
	go o.loop(ctx, r, exec)
	return r, nil
}

// Get returns the run with the given ID.
func (o *Orchestrator) Get(id string) (*Run, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	r, ok := o.runs[id]
	if !ok {
		return nil, ErrUnknownRun
	}
	return r, nil
}

// List returns snapshots of all known runs.
func (o *Orchestrator) List() []RunState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	states := make([]RunState, 0, len(o.runs))
	for _, r := range o.runs {
		states = append(states, r.State())
	}
	return states
}

// loop executes the configured steps in order. The only suspension point is
// the boundary between steps: awaitRunnable blocks there while paused and
// reports false once cancellation is observed.
func (o *Orchestrator) loop(ctx context.Context, r *Run, exec *StepExecutor) {
	pctx := NewContext()
	for k, v := range r.cfg.Params {
		pctx.Set(k, v)
	}

	for i, id := range r.cfg.Steps {
		if !r.awaitRunnable() {
			r.finish(StatusCancelled, "")
			return
		}

		r.mu.Lock()
		r.currentStep = i
		r.mu.Unlock()

		result := exec.Execute(ctx, o.catalog[id], pctx)

		// A cancel that landed while the step was in flight wins: the
		// outcome is discarded, not emitted, and no further steps run.
		if r.Status() == StatusCancelled {
			r.finish(StatusCancelled, "")
			return
		}

		r.mu.Lock()
		r.results = append(r.results, result)
		sinks := r.sinks
		r.mu.Unlock()

		for _, sink := range sinks {
			sink.OnStepResult(r.id, result)
		}

		if result.Status == StepError {
			r.finish(StatusError, fmt.Sprintf("step %q failed: %s", id, result.Error))
			return
		}

		pctx.Set(id, result.Artifact)

		if r.cfg.StopAfter != "" && id == r.cfg.StopAfter {
			r.finish(StatusCompleted, "")
			return
		}
	}

	r.finish(StatusCompleted, "")
}

// awaitRunnable blocks while the run is paused and returns true only if the
// run is in StatusRunning afterwards.
func (r *Run) awaitRunnable() bool {
	r.mu.Lock()
	for r.status == StatusPaused {
		ch := r.signal
		r.mu.Unlock()
		<-ch
		r.mu.Lock()
	}
	runnable := r.status == StatusRunning
	r.mu.Unlock()
	return runnable
}

// finish moves the run to a terminal state, folding the final running span
// into the accumulated elapsed time.
func (r *Run) finish(status RunStatus, errMsg string) {
	r.mu.Lock()
	if !r.status.Terminal() {
		if r.status == StatusRunning {
			r.accumulated += time.Since(r.runningSince)
		}
		r.status = status
		r.runErr = errMsg
	}
	r.mu.Unlock()
	close(r.done)
}

// Pause suspends the run at the next step boundary. Pausing an already
// paused run is a no-op; pausing a terminal run is an error.
func (r *Run) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case StatusRunning:
		r.accumulated += time.Since(r.runningSince)
		r.status = StatusPaused
		return nil
	case StatusPaused:
		return nil
	default:
		return fmt.Errorf("%w: cannot pause a %s run", ErrInvalidTransition, r.status)
	}
}

// Resume continues a paused run. Resuming a running run is a no-op.
func (r *Run) Resume() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case StatusPaused:
		r.status = StatusRunning
		r.runningSince = time.Now()
		close(r.signal)
		r.signal = make(chan struct{})
		return nil
	case StatusRunning:
		return nil
	default:
		return fmt.Errorf("%w: cannot resume a %s run", ErrInvalidTransition, r.status)
	}
}

// Cancel stops the run. Cancellation is cooperative: an in-flight step
// completes on its own and its result is discarded. Reserved credit is not
// refunded. Cancelling an already terminal run is an error.
func (r *Run) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.status {
	case StatusRunning, StatusPaused:
		if r.status == StatusRunning {
			r.accumulated += time.Since(r.runningSince)
		}
		r.status = StatusCancelled
		close(r.signal)
		r.signal = make(chan struct{})
		return nil
	case StatusCancelled:
		return nil
	default:
		return fmt.Errorf("%w: cannot cancel a %s run", ErrInvalidTransition, r.status)
	}
}

// Subscribe adds a sink observing this run's remaining step results.
func (r *Run) Subscribe(sink ResultSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(append([]ResultSink(nil), r.sinks...), sink)
}

// Status returns the run's current status.
func (r *Run) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Elapsed returns how long the run has spent executing, excluding paused
// time.
func (r *Run) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusRunning {
		return r.accumulated + time.Since(r.runningSince)
	}
	return r.accumulated
}

// State returns a point-in-time snapshot of the run.
func (r *Run) State() RunState {
	r.mu.Lock()
	defer r.mu.Unlock()

	elapsed := r.accumulated
	if r.status == StatusRunning {
		elapsed += time.Since(r.runningSince)
	}

	results := make([]StepResult, len(r.results))
	copy(results, r.results)

	return RunState{
		ID:          r.id,
		Owner:       r.cfg.Owner,
		Status:      r.status,
		CurrentStep: r.currentStep,
		StartedAt:   r.startedAt,
		Elapsed:     elapsed,
		Results:     results,
		Error:       r.runErr,
	}
}
