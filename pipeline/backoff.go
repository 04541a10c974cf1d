// ABOUTME: Exponential backoff delay calculation for credential-rotation retries.
package pipeline

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffConfig controls delay timing between rotation retry attempts.
type BackoffConfig struct {
	InitialDelay time.Duration // default 200ms
	Factor       float64       // default 2.0
	MaxDelay     time.Duration // default 30s
	Jitter       bool          // default true
}

// DefaultBackoff returns the backoff used between credential rotations.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		InitialDelay: 200 * time.Millisecond,
		Factor:       2.0,
		MaxDelay:     30 * time.Second,
		Jitter:       true,
	}
}

// DelayForAttempt calculates the delay for a given attempt number (0-indexed).
// The formula is: InitialDelay * Factor^attempt, capped at MaxDelay.
// If Jitter is enabled, the delay is randomized in [0, calculated_delay].
func (b BackoffConfig) DelayForAttempt(attempt int) time.Duration {
	baseNanos := float64(b.InitialDelay.Nanoseconds()) * math.Pow(b.Factor, float64(attempt))
	maxNanos := float64(b.MaxDelay.Nanoseconds())
	delayNanos := math.Min(baseNanos, maxNanos)

	if b.Jitter {
		delayNanos = rand.Float64() * delayNanos
	}

	return time.Duration(int64(delayNanos))
}

// sleepWithContext sleeps for the given duration, but returns early if the
// context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
		return
	}
}
