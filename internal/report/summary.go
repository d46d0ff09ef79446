package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/plan"
	"github.com/roach88/omniwire/internal/task"
)

// Outcome classifies a finished run.
type Outcome string

const (
	OutcomeNoChanges Outcome = "no changes needed"
	OutcomePartial   Outcome = "applied with failures"
	OutcomeFull      Outcome = "fully applied"
	OutcomeDryRun    Outcome = "dry run, nothing submitted"
)

// Classify returns the outcome of a run. A nil summary means the run
// stopped before executing because nothing needed a change.
func Classify(sum *engine.Summary) Outcome {
	switch {
	case sum == nil || len(sum.Lanes) == 0:
		return OutcomeNoChanges
	case sum.Err != nil:
		return OutcomePartial
	case dryRunOnly(sum.Results):
		return OutcomeDryRun
	default:
		return OutcomeFull
	}
}

// dryRunOnly reports whether results is non-empty and nothing in it was
// submitted.
func dryRunOnly(results []engine.TaskResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Outcome != engine.OutcomeDryRun {
			return false
		}
	}
	return true
}

// WritePlanSummary prints one row per authority with its task and change
// counts, then the exclusions.
func WritePlanSummary(w io.Writer, res *plan.Result) {
	authorities, lanes := task.GroupByAuthority(res.Tasks)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Authority", "Tasks", "Changes"})
	table.SetAutoFormatHeaders(false)
	for _, a := range authorities {
		table.Append([]string{
			string(a),
			strconv.Itoa(len(lanes[a])),
			strconv.Itoa(len(task.NeedingChange(lanes[a]))),
		})
	}
	table.SetFooter([]string{"total", strconv.Itoa(len(res.Tasks)), strconv.Itoa(res.Changes())})
	table.Render()

	for _, e := range res.Excluded {
		fmt.Fprintf(w, "excluded: %s\n", e.Error())
	}
}

// WriteRunSummary prints the outcome of a run and every lane failure.
func WriteRunSummary(w io.Writer, sum *engine.Summary) {
	outcome := Classify(sum)
	if outcome == OutcomeNoChanges {
		fmt.Fprintf(w, "%s\n", outcome)
		return
	}
	fmt.Fprintf(w, "run %s: %s (%d applied, %d failed lanes)\n", sum.RunID, outcome, sum.Applied(), sum.Failed())
	for _, le := range engine.LaneErrors(sum.Err) {
		fmt.Fprintf(w, "  %s\n", le.Error())
	}
}
