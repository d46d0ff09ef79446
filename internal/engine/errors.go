package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/omniwire/internal/task"
)

// LaneError is the failure that stopped a lane.
type LaneError struct {
	Authority task.Authority
	// Task is the label of the task that failed.
	Task string
	// Remaining is how many tasks of the lane never ran.
	Remaining int
	Err       error
}

func (e *LaneError) Error() string {
	return fmt.Sprintf("%s: %s: %v (%d skipped)", e.Authority, e.Task, e.Err, e.Remaining)
}

func (e *LaneError) Unwrap() error { return e.Err }

// LaneErrors extracts every LaneError from err, which is usually a
// Summary's aggregated error.
func LaneErrors(err error) []*LaneError {
	var out []*LaneError
	var me interface{ WrappedErrors() []error }
	if errors.As(err, &me) {
		for _, e := range me.WrappedErrors() {
			out = append(out, LaneErrors(e)...)
		}
		return out
	}
	var le *LaneError
	if errors.As(err, &le) {
		out = append(out, le)
	}
	return out
}
