package pipeline

import (
	"fmt"
	"time"
)

// StepStatus is the per-step state machine:
// PENDING → RUNNING → {SUCCEEDED | RETRYING → RUNNING | FAILED}.
// Steps never started because the pipeline halted are SKIPPED.
type StepStatus string

const (
	StatusPending   StepStatus = "PENDING"
	StatusRunning   StepStatus = "RUNNING"
	StatusRetrying  StepStatus = "RETRYING"
	StatusSucceeded StepStatus = "SUCCEEDED"
	StatusFailed    StepStatus = "FAILED"
	StatusSkipped   StepStatus = "SKIPPED"
)

// StepResult is one row of the run trace.
type StepResult struct {
	Name     string        `json:"name"`
	Status   StepStatus    `json:"status"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
}

// Error returns the step's failure message, empty when it did not fail.
func (r StepResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// RunStatus is the overall outcome of a pipeline run.
type RunStatus string

const (
	RunSucceeded RunStatus = "SUCCEEDED"
	RunFailed    RunStatus = "FAILED"
)

// RunResult is the full ordered trace of one pipeline run.
type RunResult struct {
	Pipeline string        `json:"pipeline"`
	Status   RunStatus     `json:"status"`
	Halted   bool          `json:"halted"`
	Duration time.Duration `json:"duration"`
	Steps    []StepResult  `json:"steps"`
}

// FailedSteps returns the trace rows that ended FAILED, in order.
func (r *RunResult) FailedSteps() []StepResult {
	var out []StepResult
	for _, s := range r.Steps {
		if s.Status == StatusFailed {
			out = append(out, s)
		}
	}
	return out
}

// HaltError reports a pipeline stopped by a halt or halt_with_cleanup
// policy. The full run trace rides along for the caller's report.
type HaltError struct {
	Step   string
	Policy FailurePolicy
	Result *RunResult
	Err    error
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("pipeline halted at step %q (%s): %v", e.Step, e.Policy, e.Err)
}

func (e *HaltError) Unwrap() error {
	return e.Err
}
