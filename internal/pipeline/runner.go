package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Runner executes a pipeline spec: a fixed interpreter loop, strictly
// sequential, one step at a time.
type Runner struct {
	reg *Registry
	log *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger overrides the runner logger.
func WithRunnerLogger(log *slog.Logger) RunnerOption {
	return func(r *Runner) { r.log = log }
}

// NewRunner creates a runner over the action registry.
func NewRunner(reg *Registry, opts ...RunnerOption) *Runner {
	r := &Runner{reg: reg, log: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every step in order and returns the full trace.
//
// A step that exhausts its retries escalates per its policy: halt skips
// every remaining step; halt_with_cleanup skips all but the remaining
// always_run steps; continue proceeds. The run reports SUCCEEDED only when
// no step failed. The returned error is a *HaltError when a halting policy
// fired, nil otherwise - a continue-through failure shows only in the
// result.
func (r *Runner) Run(ctx context.Context, spec *Spec, rc *RunContext) (*RunResult, error) {
	result := &RunResult{
		Pipeline: spec.Name,
		Status:   RunSucceeded,
		Steps:    make([]StepResult, len(spec.Steps)),
	}
	for i, step := range spec.Steps {
		result.Steps[i] = StepResult{Name: step.Name, Status: StatusPending}
	}

	start := time.Now()
	r.log.Info("pipeline start", "pipeline", spec.Name, "steps", len(spec.Steps))

	var halt *HaltError
	cleanup := false

	for i, step := range spec.Steps {
		if halt != nil && !(cleanup && step.AlwaysRun) {
			result.Steps[i].Status = StatusSkipped
			continue
		}

		res := r.runStep(ctx, step, rc)
		result.Steps[i] = res

		if res.Status != StatusFailed {
			continue
		}
		result.Status = RunFailed

		if halt != nil {
			// Failure during cleanup: record it, keep running the
			// remaining always_run steps.
			continue
		}
		switch step.OnFailure {
		case PolicyContinue:
			r.log.Warn("step failed, continuing", "step", step.Name, "error", res.Err)
		case PolicyHaltWithCleanup:
			cleanup = true
			fallthrough
		default:
			halt = &HaltError{Step: step.Name, Policy: step.OnFailure, Err: res.Err}
			result.Halted = true
			r.log.Error("pipeline halting", "step", step.Name, "policy", string(step.OnFailure), "error", res.Err)
		}
	}

	result.Duration = time.Since(start)
	r.log.Info("pipeline done",
		"pipeline", spec.Name,
		"status", string(result.Status),
		"halted", result.Halted,
		"elapsed_ms", result.Duration.Milliseconds())

	if halt != nil {
		halt.Result = result
		return result, halt
	}
	return result, nil
}

// runStep drives one step through its attempt loop.
func (r *Runner) runStep(ctx context.Context, step Step, rc *RunContext) StepResult {
	res := StepResult{Name: step.Name, Status: StatusRunning}
	start := time.Now()

	action, ok := r.reg.Lookup(step.Action)
	if !ok {
		res.Status = StatusFailed
		res.Err = &UnknownActionError{Step: step.Name, Action: step.Action}
		res.Duration = time.Since(start)
		return res
	}

	maxAttempts := step.RetryCount + 1
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		res.Attempts = attempt
		res.Status = StatusRunning
		r.log.Info("step attempt", "step", step.Name, "attempt", attempt, "of", maxAttempts)

		err := r.attempt(ctx, step, action, rc)
		if err == nil {
			res.Status = StatusSucceeded
			break
		}
		res.Err = err
		r.log.Warn("step attempt failed", "step", step.Name, "attempt", attempt, "error", err)

		if attempt == maxAttempts || ctx.Err() != nil {
			res.Status = StatusFailed
			break
		}

		res.Status = StatusRetrying
		if !r.waitRetry(ctx, step.RetryDelay.Std()) {
			res.Status = StatusFailed
			res.Err = ctx.Err()
			break
		}
	}

	res.Duration = time.Since(start)
	r.log.Info("step done",
		"step", step.Name,
		"status", string(res.Status),
		"attempts", res.Attempts,
		"elapsed_ms", res.Duration.Milliseconds())
	return res
}

// attempt runs the action once under the step's timeout. The action runs in
// its own goroutine so a deadline fires even against an action that ignores
// its context; such an action leaks its goroutine until it returns on its
// own.
func (r *Runner) attempt(ctx context.Context, step Step, action Action, rc *RunContext) error {
	actx := ctx
	cancel := context.CancelFunc(func() {})
	if step.Timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, step.Timeout.Std())
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- action(actx, rc)
	}()

	select {
	case err := <-done:
		return err
	case <-actx.Done():
		return actx.Err()
	}
}

// waitRetry sleeps the fixed retry delay, reporting false if the context
// was cancelled while waiting.
func (r *Runner) waitRetry(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
