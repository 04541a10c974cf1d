// ABOUTME: StepExecutor runs a single step, classifying failures and rotating credentials on quota or auth rejection.
// ABOUTME: Retries are bounded by min(retry bound, pool size); a failed rotation ends the attempt immediately.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/postpilot-io/postpilot/provider"
)

// DefaultRetryBound caps rotation retries per step regardless of pool size.
const DefaultRetryBound = 5

// StepExecutor wraps the execution of one pipeline step. Transient
// credential failures (quota, auth rejection) are recovered here via pool
// rotation; everything the orchestrator sees is a finalized StepResult.
type StepExecutor struct {
	Pool       *provider.Pool
	RetryBound int
	Backoff    BackoffConfig
}

// NewStepExecutor creates an executor over the given credential pool.
func NewStepExecutor(pool *provider.Pool) *StepExecutor {
	return &StepExecutor{
		Pool:       pool,
		RetryBound: DefaultRetryBound,
		Backoff:    DefaultBackoff(),
	}
}

// Execute runs the step's work function and returns its finalized result.
// Provider-bound steps get up to min(RetryBound, pool size) attempts, each
// with the pool's current credential; a credential failure rotates the pool
// and retries, while any other error fails the step immediately. Steps
// without a provider dependency get a single attempt.
func (e *StepExecutor) Execute(ctx context.Context, step StepDefinition, pctx *Context) StepResult {
	result := StepResult{
		StepID:    step.ID,
		Status:    StepRunning,
		StartedAt: time.Now(),
	}

	maxAttempts := 1
	if step.UsesCredential {
		maxAttempts = e.RetryBound
		if size := e.Pool.Size(); size < maxAttempts {
			maxAttempts = size
		}
		if maxAttempts < 1 {
			return finalize(result, nil, provider.ErrEmptyPool)
		}
	}

	var artifact any
	var err error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		result.Attempts = attempt + 1

		var cred provider.Credential
		if step.UsesCredential {
			cred, err = e.Pool.Acquire()
			if err != nil {
				break
			}
		}

		artifact, err = runWork(ctx, step, pctx, cred)
		if err == nil {
			break
		}
		if !step.UsesCredential || !provider.IsCredentialFailure(err) {
			break
		}
		if !e.Pool.Rotate() {
			err = fmt.Errorf("%w: %v", provider.ErrPoolExhausted, err)
			break
		}
		if attempt < maxAttempts-1 {
			sleepWithContext(ctx, e.Backoff.DelayForAttempt(attempt))
		}
	}

	return finalize(result, artifact, err)
}

// finalize stamps the terminal status and timing onto the result. This is
// the single mutation from running to a terminal per-step status.
func finalize(result StepResult, artifact any, err error) StepResult {
	result.EndedAt = time.Now()
	result.Duration = result.EndedAt.Sub(result.StartedAt)
	if err != nil {
		result.Status = StepError
		result.Error = err.Error()
		return result
	}
	result.Status = StepCompleted
	result.Artifact = artifact
	return result
}

// runWork invokes the work function with panic recovery so a misbehaving
// step cannot crash the orchestrator.
func runWork(ctx context.Context, step StepDefinition, pctx *Context, cred provider.Credential) (artifact any, err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			err = fmt.Errorf("step %q panicked: %v\n%s", step.ID, r, stack)
			artifact = nil
		}
	}()
	return step.Work(ctx, pctx, cred)
}
