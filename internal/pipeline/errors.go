package pipeline

import "fmt"

// UnknownActionError reports a step whose action name has no registration.
// Spec.Check catches this before a run; the runner also fails the step
// with it when an unchecked spec reaches execution.
type UnknownActionError struct {
	Step   string
	Action string
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("step %q: action %q not registered", e.Step, e.Action)
}
