package pipeline

import "fmt"

// RunError reports which run failed and in which stage.
type RunError struct {
	RunID string
	Stage string
	Cause error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("run %s failed at %s: %v", e.RunID, e.Stage, e.Cause)
}

func (e *RunError) Unwrap() error {
	return e.Cause
}
