package harness

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/report"
)

// checkPrinciples checks the properties every run must have, whatever the
// scenario expects.
func checkPrinciples(res *Result, s *Scenario) {
	// A fully applied run leaves nothing to do.
	if !s.DryRun && res.Outcome == report.OutcomeFull && res.ReplanChanges != 0 {
		res.AddError("principle idempotence: fully applied run still plans %d changes", res.ReplanChanges)
	}

	// A failure stops only its own lane.
	failed := failedLanes(res.Summary)
	for _, r := range res.Summary.Results {
		inFailed := slices.Contains(failed, string(r.Task.Authority))
		switch r.Outcome {
		case engine.OutcomeFailed, engine.OutcomeSkipped:
			if !inFailed {
				res.AddError("principle lane isolation: %s %s is %s outside a failed lane", r.Task.Authority, r.Task.Label(), r.Outcome)
			}
		}
	}

	// The audit has a row for every comparison, changed or not.
	rows, err := csv.NewReader(bytes.NewReader(res.Audit)).ReadAll()
	switch {
	case err != nil:
		res.AddError("principle audit: unreadable export: %v", err)
	case len(rows) != len(res.Plan.Tasks)+1:
		res.AddError("principle audit: %d rows for %d tasks", len(rows)-1, len(res.Plan.Tasks))
	}

	// The store holds exactly what the reconciler did.
	if res.State.Applied != res.Summary.Applied() {
		res.AddError("principle recorded run: store has %d applied, run applied %d", res.State.Applied, res.Summary.Applied())
	}
	if !res.State.IsComplete {
		res.AddError("principle recorded run: run %s incomplete with %d pending", res.RunID, res.State.Pending)
	}
}

// SuiteResult summarizes running every scenario in a directory.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Scenario string `json:"scenario"`
	Path     string `json:"path"`
	Error    string `json:"error"`
}

// RunDir loads and runs every *.yaml and *.yml scenario in dir, in file
// name order.
func (h *Harness) RunDir(ctx context.Context, dir string) (*SuiteResult, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return nil, fmt.Errorf("list scenarios: %w", err)
		}
		paths = append(paths, matches...)
	}
	slices.Sort(paths)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios in %s", dir)
	}

	result := &SuiteResult{}
	for _, path := range paths {
		result.Total++
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		s, err := LoadScenario(path)
		if err != nil {
			result.fail(name, path, fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}
		res, err := h.Run(ctx, s)
		if err != nil {
			result.fail(s.Name, path, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		if !res.Pass {
			result.fail(s.Name, path, strings.Join(res.Errors, "; "))
			continue
		}
		result.Passed++
	}
	return result, nil
}

func (r *SuiteResult) fail(name, path, msg string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{Scenario: name, Path: path, Error: msg})
}
