package harness

import (
	"fmt"

	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/plan"
	"github.com/roach88/omniwire/internal/report"
	"github.com/roach88/omniwire/internal/store"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation, assertion and principle held.
	Pass bool

	// Errors holds one message per failed check. Empty if Pass is true.
	Errors []string

	RunID   string
	Plan    *plan.Result
	Summary *engine.Summary
	Outcome report.Outcome

	// State is the run as the store recorded it. Its tasks are in plan
	// order.
	State store.RunState

	// Calls are the writes the ledger accepted, in the order it applied
	// them.
	Calls []ledger.Call

	// Audit is the audit CSV of the first plan.
	Audit []byte

	// ReplanChanges counts the changes a second plan against the final
	// ledger still finds.
	ReplanChanges int
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{Pass: true, Errors: []string{}}
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}
