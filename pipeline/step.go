// ABOUTME: Step definitions and the thread-safe context carrying artifacts between steps.
// ABOUTME: Work functions receive the accumulated context and, for provider-bound steps, the active credential.
package pipeline

import (
	"context"
	"sync"

	"github.com/postpilot-io/postpilot/provider"
)

// WorkFunc is one unit of pipeline work. It reads prior artifacts from the
// context and returns this step's artifact or an error. Provider-bound
// steps receive the currently active credential; others get the zero value.
// Timeout handling for external calls belongs inside the work function.
type WorkFunc func(ctx context.Context, pctx *Context, cred provider.Credential) (any, error)

// StepDefinition is the static description of one pipeline step, fixed at
// orchestrator construction time and immutable during runs.
type StepDefinition struct {
	ID    string
	Title string
	// Cost is the credit weight of this step. The orchestrator reserves the
	// sum of costs for the selected steps before executing anything.
	Cost int
	// UsesCredential marks the step as provider-bound: the executor
	// acquires a credential for each attempt and rotates on quota or auth
	// rejection.
	UsesCredential bool
	Work           WorkFunc
}

// Context is the thread-safe key-value store accumulated across one run.
// The orchestrator stores each completed step's artifact under the step ID;
// run parameters are seeded under their own keys before the first step.
type Context struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{values: make(map[string]any)}
}

// Set stores a value under the given key.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get retrieves the value for the given key, or nil if not found.
func (c *Context) Get(key string) any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.values[key]
}

// GetString retrieves the string value for the given key.
// If the key is missing or the value is not a string, defaultVal is returned.
func (c *Context) GetString(key string, defaultVal string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	if !ok {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok {
		return defaultVal
	}
	return s
}

// Snapshot returns a shallow copy of all key-value pairs.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := make(map[string]any, len(c.values))
	for k, v := range c.values {
		snap[k] = v
	}
	return snap
}
