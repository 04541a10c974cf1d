// ABOUTME: Ordered credential pool with a mutex-guarded rotation cursor.
// ABOUTME: Rotation never wraps; running past the last credential signals pool exhaustion.
package provider

import (
	"errors"
	"sync"
)

// ErrEmptyPool is returned by Acquire when the pool holds no credentials.
var ErrEmptyPool = errors.New("credential pool is empty")

// ErrPoolExhausted indicates every credential in a pool was tried and rejected.
var ErrPoolExhausted = errors.New("credential pool exhausted")

// Pool holds an ordered list of interchangeable credentials for one provider
// and tracks which one is currently active. The cursor is the only mutable
// state; credential values are never modified.
type Pool struct {
	mu     sync.Mutex
	creds  []Credential
	cursor int
}

// NewPool creates a pool over the given credentials. The slice is copied so
// callers cannot mutate the rotation order afterwards.
func NewPool(creds []Credential) *Pool {
	cp := make([]Credential, len(creds))
	copy(cp, creds)
	return &Pool{creds: cp}
}

// Acquire returns the credential at the current cursor.
func (p *Pool) Acquire() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.creds) == 0 {
		return Credential{}, ErrEmptyPool
	}
	return p.creds[p.cursor], nil
}

// Rotate advances the cursor to the next credential. It returns false when
// the cursor is already on the last credential: rotation does not wrap, and
// a false return means the pool is exhausted for the current operation.
func (p *Pool) Rotate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cursor >= len(p.creds)-1 {
		return false
	}
	p.cursor++
	return true
}

// Reset returns the cursor to the first credential. Call this only at the
// start of an unrelated top-level operation, never mid-retry.
func (p *Pool) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cursor = 0
}

// Size returns the number of credentials in the pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.creds)
}

// Cursor returns the current cursor position.
func (p *Pool) Cursor() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// Clone returns a new pool over the same credentials with the cursor at 0.
// Each pipeline run clones the configured pool so concurrent runs never
// share a rotation cursor.
func (p *Pool) Clone() *Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return NewPool(p.creds)
}
