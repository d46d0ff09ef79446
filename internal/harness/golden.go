package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Transcript renders the deterministic parts of a result: the plan with
// each task's status, the outcome and the replan. Receipt refs and timings
// are left out since lanes run concurrently.
func Transcript(s *Scenario, res *Result) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", s.Name)
	fmt.Fprintf(&b, "run: %s\n", res.RunID)
	fmt.Fprintf(&b, "plan: %d tasks, %d changes, %d excluded\n", len(res.Plan.Tasks), res.Plan.Changes(), len(res.Plan.Excluded))
	for _, line := range taskLines(res.State.Tasks) {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	fmt.Fprintf(&b, "outcome: %s\n", res.Outcome)
	fmt.Fprintf(&b, "applied: %d\n", res.Summary.Applied())
	lanes := "none"
	if failed := failedLanes(res.Summary); len(failed) > 0 {
		lanes = strings.Join(failed, ", ")
	}
	fmt.Fprintf(&b, "failed lanes: %s\n", lanes)
	fmt.Fprintf(&b, "replan changes: %d\n", res.ReplanChanges)
	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its transcript against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, s *Scenario) *Result {
	t.Helper()

	res, err := Run(context.Background(), s)
	if err != nil {
		t.Fatalf("run scenario %s: %v", s.Name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, Transcript(s, res))
	return res
}
