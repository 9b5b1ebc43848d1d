// Package pipeline runs the declarative sync pipeline: an ordered table of
// step descriptors loaded from YAML, validated against an embedded CUE
// schema, and executed by a fixed sequential interpreter with per-step
// timeout, bounded retries, and failure-escalation policies.
package pipeline

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// FailurePolicy decides what happens to the rest of the pipeline when a
// step exhausts its retries.
type FailurePolicy string

const (
	// PolicyHalt stops the pipeline immediately. Every remaining step,
	// always_run included, is skipped.
	PolicyHalt FailurePolicy = "halt"

	// PolicyHaltWithCleanup stops the pipeline but runs every remaining
	// always_run step before reporting.
	PolicyHaltWithCleanup FailurePolicy = "halt_with_cleanup"

	// PolicyContinue records the failure and proceeds to the next step.
	// The overall run still reports FAILED.
	PolicyContinue FailurePolicy = "continue"
)

// Duration is a time.Duration that unmarshals from YAML duration strings
// ("30s", "2m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("duration %q: must not be negative", s)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Step is one row of the pipeline's step table.
type Step struct {
	// Name uniquely identifies the step within the pipeline.
	Name string `yaml:"name"`

	// Action names a registered action. Looked up in the typed registry
	// at run time; no reflection.
	Action string `yaml:"action"`

	// Timeout bounds one attempt. Zero means no per-step timeout. A
	// timed-out attempt counts as a failed attempt.
	Timeout Duration `yaml:"timeout"`

	// RetryCount bounds retries after the first attempt: retry_count=2
	// allows at most 3 attempts.
	RetryCount int `yaml:"retry_count"`

	// RetryDelay is the fixed delay between attempts.
	RetryDelay Duration `yaml:"retry_delay"`

	// OnFailure is the escalation policy once retries are exhausted.
	// Defaults to halt.
	OnFailure FailurePolicy `yaml:"on_failure"`

	// AlwaysRun marks a teardown step that halt_with_cleanup still runs
	// after a failure elsewhere.
	AlwaysRun bool `yaml:"always_run"`
}

// Spec is a loaded, validated pipeline.
type Spec struct {
	Name  string `yaml:"name"`
	Steps []Step `yaml:"steps"`
}

// Check verifies that every step's action is registered. Load has already
// enforced structure and name uniqueness; this is the one check that needs
// the registry.
func (s *Spec) Check(reg *Registry) error {
	for _, step := range s.Steps {
		if _, ok := reg.Lookup(step.Action); !ok {
			return fmt.Errorf("step %q: action %q not registered", step.Name, step.Action)
		}
	}
	return nil
}
