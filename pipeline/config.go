// ABOUTME: Run configuration and synchronous validation against the orchestrator's step catalog.
// ABOUTME: Also supports loading a run definition from a YAML pipeline file.
package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig is the immutable input to one pipeline run: which steps to
// execute in what order, per-step parameters, and gating flags. The
// orchestrator only reads it.
type RunConfig struct {
	// Owner identifies the credit account charged for this run.
	Owner string `yaml:"owner" json:"owner"`
	// Steps is the ordered list of step IDs to execute, each of which must
	// exist in the orchestrator's catalog.
	Steps []string `yaml:"steps" json:"steps"`
	// Params seeds the run context before the first step. Keys are free-form
	// (e.g. "topic", "tone") and are read by work functions.
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	// StopAfter, when set, completes the run after the named step succeeds
	// without executing the remaining steps. A normal termination path,
	// distinct from error.
	StopAfter string `yaml:"stop_after,omitempty" json:"stop_after,omitempty"`
}

// LoadRunConfig reads a run definition from a YAML file.
func LoadRunConfig(path string) (RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read pipeline file: %w", err)
	}
	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, fmt.Errorf("parse pipeline file %s: %w", path, err)
	}
	return cfg, nil
}

// validate checks the config against the orchestrator's step catalog.
// Malformed configs are rejected synchronously at Start, before any credit
// is reserved.
func (c RunConfig) validate(catalog map[string]StepDefinition) error {
	if c.Owner == "" {
		return fmt.Errorf("run config has no owner")
	}
	if len(c.Steps) == 0 {
		return fmt.Errorf("run config selects no steps")
	}

	seen := make(map[string]bool, len(c.Steps))
	for _, id := range c.Steps {
		if _, ok := catalog[id]; !ok {
			return fmt.Errorf("unknown step %q", id)
		}
		if seen[id] {
			return fmt.Errorf("step %q listed twice", id)
		}
		seen[id] = true
	}

	if c.StopAfter != "" && !seen[c.StopAfter] {
		return fmt.Errorf("stop_after step %q is not in the selected steps", c.StopAfter)
	}
	return nil
}

// cost returns the total credit weight of the run: the sum of step costs up
// to and including StopAfter, or of all selected steps when StopAfter is
// unset.
func (c RunConfig) cost(catalog map[string]StepDefinition) int {
	total := 0
	for _, id := range c.Steps {
		total += catalog[id].Cost
		if c.StopAfter != "" && id == c.StopAfter {
			break
		}
	}
	return total
}
