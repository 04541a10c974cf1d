// ABOUTME: Tests for step execution: credential rotation on quota/auth failures, retry bounds,
// ABOUTME: pool exhaustion, immediate failure on non-retryable errors, and panic recovery.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/postpilot-io/postpilot/provider"
)

func quotaErr() error {
	return &provider.QuotaExceededError{APIError: provider.APIError{Message: "quota exceeded", StatusCode: 429}}
}

func noBackoff() BackoffConfig {
	return BackoffConfig{InitialDelay: 0, Factor: 1, MaxDelay: 0}
}

func executorWith(creds int) *StepExecutor {
	pool := provider.NewPool(poolCreds(creds))
	e := NewStepExecutor(pool)
	e.Backoff = noBackoff()
	return e
}

func poolCreds(n int) []provider.Credential {
	creds := make([]provider.Credential, n)
	for i := range creds {
		creds[i] = provider.Credential{Value: string(rune('a' + i)), Provider: "test"}
	}
	return creds
}

func TestExecuteSuccessFirstAttempt(t *testing.T) {
	e := executorWith(3)
	step := StepDefinition{
		ID:             "gen",
		UsesCredential: true,
		Work: func(_ context.Context, _ *Context, cred provider.Credential) (any, error) {
			return "artifact-" + cred.Value, nil
		},
	}

	result := e.Execute(context.Background(), step, NewContext())
	if result.Status != StepCompleted {
		t.Fatalf("expected completed, got %s (%s)", result.Status, result.Error)
	}
	if result.Artifact != "artifact-a" {
		t.Errorf("unexpected artifact: %v", result.Artifact)
	}
	if result.Attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", result.Attempts)
	}
	if e.Pool.Cursor() != 0 {
		t.Errorf("pool cursor moved on success: %d", e.Pool.Cursor())
	}
}

func TestExecuteRotatesOnQuotaFailure(t *testing.T) {
	e := executorWith(3)
	step := StepDefinition{
		ID:             "gen",
		UsesCredential: true,
		Work: func(_ context.Context, _ *Context, cred provider.Credential) (any, error) {
			if cred.Value == "a" {
				return nil, quotaErr()
			}
			return "ok", nil
		},
	}

	result := e.Execute(context.Background(), step, NewContext())
	if result.Status != StepCompleted {
		t.Fatalf("expected completed, got %s (%s)", result.Status, result.Error)
	}
	if result.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", result.Attempts)
	}
	if e.Pool.Cursor() != 1 {
		t.Errorf("expected cursor advanced by exactly 1, got %d", e.Pool.Cursor())
	}
}

func TestExecutePoolExhausted(t *testing.T) {
	e := executorWith(2)
	attempts := 0
	step := StepDefinition{
		ID:             "gen",
		UsesCredential: true,
		Work: func(_ context.Context, _ *Context, _ provider.Credential) (any, error) {
			attempts++
			return nil, quotaErr()
		},
	}

	result := e.Execute(context.Background(), step, NewContext())
	if result.Status != StepError {
		t.Fatalf("expected error, got %s", result.Status)
	}
	if attempts != 2 {
		t.Errorf("expected one attempt per credential, got %d", attempts)
	}
	if !strings.Contains(result.Error, provider.ErrPoolExhausted.Error()) {
		t.Errorf("error should mention pool exhaustion: %s", result.Error)
	}
}

func TestExecuteRetryBoundBelowPoolSize(t *testing.T) {
	e := executorWith(5)
	e.RetryBound = 2
	attempts := 0
	step := StepDefinition{
		ID:             "gen",
		UsesCredential: true,
		Work: func(_ context.Context, _ *Context, _ provider.Credential) (any, error) {
			attempts++
			return nil, quotaErr()
		},
	}

	result := e.Execute(context.Background(), step, NewContext())
	if result.Status != StepError {
		t.Fatalf("expected error, got %s", result.Status)
	}
	if attempts != 2 {
		t.Errorf("retry bound ignored: %d attempts", attempts)
	}
}

func TestExecuteNonRetryableFailsImmediately(t *testing.T) {
	e := executorWith(3)
	attempts := 0
	step := StepDefinition{
		ID:             "gen",
		UsesCredential: true,
		Work: func(_ context.Context, _ *Context, _ provider.Credential) (any, error) {
			attempts++
			return nil, errors.New("malformed prompt")
		},
	}

	result := e.Execute(context.Background(), step, NewContext())
	if result.Status != StepError {
		t.Fatalf("expected error, got %s", result.Status)
	}
	if attempts != 1 {
		t.Errorf("non-retryable error must not retry: %d attempts", attempts)
	}
	if e.Pool.Cursor() != 0 {
		t.Errorf("non-retryable error must not rotate: cursor=%d", e.Pool.Cursor())
	}
}

func TestExecuteLocalStepSingleAttempt(t *testing.T) {
	e := executorWith(3)
	step := StepDefinition{
		ID: "local",
		Work: func(_ context.Context, _ *Context, cred provider.Credential) (any, error) {
			if !cred.IsZero() {
				t.Error("local step received a credential")
			}
			return 42, nil
		},
	}

	result := e.Execute(context.Background(), step, NewContext())
	if result.Status != StepCompleted {
		t.Fatalf("expected completed, got %s", result.Status)
	}
	if result.Artifact != 42 {
		t.Errorf("unexpected artifact: %v", result.Artifact)
	}
}

func TestExecuteRecoversPanic(t *testing.T) {
	e := executorWith(1)
	step := StepDefinition{
		ID: "boom",
		Work: func(_ context.Context, _ *Context, _ provider.Credential) (any, error) {
			panic("kaboom")
		},
	}

	result := e.Execute(context.Background(), step, NewContext())
	if result.Status != StepError {
		t.Fatalf("expected error, got %s", result.Status)
	}
	if !strings.Contains(result.Error, "kaboom") {
		t.Errorf("panic message missing from error: %s", result.Error)
	}
}

func TestExecuteRecordsTiming(t *testing.T) {
	e := executorWith(1)
	step := StepDefinition{
		ID: "slow",
		Work: func(_ context.Context, _ *Context, _ provider.Credential) (any, error) {
			time.Sleep(10 * time.Millisecond)
			return nil, nil
		},
	}

	result := e.Execute(context.Background(), step, NewContext())
	if result.StartedAt.IsZero() || result.EndedAt.IsZero() {
		t.Fatal("timing not recorded")
	}
	if result.Duration < 10*time.Millisecond {
		t.Errorf("duration too short: %v", result.Duration)
	}
}

func TestExecuteEmptyPoolProviderStep(t *testing.T) {
	e := NewStepExecutor(provider.NewPool(nil))
	step := StepDefinition{
		ID:             "gen",
		UsesCredential: true,
		Work: func(_ context.Context, _ *Context, _ provider.Credential) (any, error) {
			t.Error("work must not run with an empty pool")
			return nil, nil
		},
	}

	result := e.Execute(context.Background(), step, NewContext())
	if result.Status != StepError {
		t.Fatalf("expected error, got %s", result.Status)
	}
}
