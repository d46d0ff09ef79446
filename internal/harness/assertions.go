package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/omniwire/internal/protocol"
	"github.com/roach88/omniwire/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the plan so the failure can be read without rerunning.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	// Tasks are "<authority> <label> <status>" lines in plan order.
	Tasks []string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Tasks) > 0 {
		fmt.Fprintf(&buf, "\nTasks:\n")
		for i, line := range e.Tasks {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
		}
	}
	return buf.String()
}

// TaskStatus is a recorded task's status: unchanged for tasks that needed
// nothing, pending for changes that never ran, else the engine outcome.
func TaskStatus(r store.TaskRecord) string {
	switch {
	case !r.NeedChange:
		return StatusUnchanged
	case r.Outcome == "":
		return StatusPending
	default:
		return string(r.Outcome)
	}
}

func taskLines(tasks []store.TaskRecord) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = fmt.Sprintf("%s %s %s", t.Authority, t.Label(), TaskStatus(t))
	}
	return out
}

// findTask returns the task with label, narrowed to authority if set.
func findTask(tasks []store.TaskRecord, label, authority string) (store.TaskRecord, bool) {
	for _, t := range tasks {
		if t.Label() == label && (authority == "" || string(t.Authority) == authority) {
			return t, true
		}
	}
	return store.TaskRecord{}, false
}

func assertTaskOutcome(res *Result, a Assertion) error {
	t, ok := findTask(res.State.Tasks, a.Task, a.Authority)
	if !ok {
		return &AssertionError{
			Type:     AssertTaskOutcome,
			Expected: fmt.Sprintf("task %s in plan", a.Task),
			Actual:   "not found",
			Tasks:    taskLines(res.State.Tasks),
		}
	}
	if got := TaskStatus(t); got != a.Outcome {
		return &AssertionError{
			Type:     AssertTaskOutcome,
			Expected: fmt.Sprintf("%s %s", a.Task, a.Outcome),
			Actual:   fmt.Sprintf("%s %s", a.Task, got),
			Tasks:    taskLines(res.State.Tasks),
		}
	}
	return nil
}

// assertTaskOrder checks that tasks appear in the plan in order.
// They don't need to be consecutive.
func assertTaskOrder(res *Result, a Assertion) error {
	prev := int64(0)
	for i, label := range a.Tasks {
		t, ok := findTask(res.State.Tasks, label, "")
		if !ok {
			return &AssertionError{
				Type:     AssertTaskOrder,
				Expected: fmt.Sprintf("all tasks present: %v", a.Tasks),
				Actual:   fmt.Sprintf("missing task: %s", label),
				Tasks:    taskLines(res.State.Tasks),
			}
		}
		if i > 0 && t.Seq <= prev {
			return &AssertionError{
				Type:     AssertTaskOrder,
				Expected: fmt.Sprintf("tasks in order: %v", a.Tasks),
				Actual:   fmt.Sprintf("%s (seq %d) should be before %s (seq %d)", a.Tasks[i-1], prev, label, t.Seq),
				Tasks:    taskLines(res.State.Tasks),
			}
		}
		prev = t.Seq
	}
	return nil
}

// assertCallCount checks that the ledger accepted module::function exactly
// the given number of times.
func assertCallCount(res *Result, a Assertion) error {
	count := 0
	for _, c := range res.Calls {
		_, mod, _ := protocol.SplitModule(c.Module)
		if mod == a.Module && c.Function == a.Function {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d calls to %s::%s", a.Count, a.Module, a.Function),
			Actual:   fmt.Sprintf("%d calls", count),
		}
	}
	return nil
}

func assertLaneFailed(res *Result, a Assertion) error {
	failed := failedLanes(res.Summary)
	if !slices.Contains(failed, a.Authority) {
		return &AssertionError{
			Type:     AssertLaneFailed,
			Expected: fmt.Sprintf("lane %s failed", a.Authority),
			Actual:   fmt.Sprintf("failed lanes: %v", failed),
		}
	}
	return nil
}

// EvaluateAssertions runs every assertion against res and returns the
// failure messages. An empty slice means all passed.
func EvaluateAssertions(res *Result, assertions []Assertion) []string {
	errs := []string{}
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertTaskOutcome:
			err = assertTaskOutcome(res, a)
		case AssertTaskOrder:
			err = assertTaskOrder(res, a)
		case AssertCallCount:
			err = assertCallCount(res, a)
		case AssertLaneFailed:
			err = assertLaneFailed(res, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
