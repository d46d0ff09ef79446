package store

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/ir"
)

// RunState is a run with its tasks and an analysis of how far it got.
type RunState struct {
	Run     Run
	Tasks   []TaskRecord
	Applied int
	Failed  int
	Skipped int
	// Pending counts tasks needing a change that have no result. For a wire
	// run that never finished, these are the writes that may still be owed.
	Pending int
	// IsComplete is true when the run finished and nothing is pending.
	IsComplete bool
}

// GetRunState loads a run and tallies its task outcomes.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return RunState{}, err
	}
	tasks, err := s.ListTasks(ctx, runID)
	if err != nil {
		return RunState{}, err
	}

	state := RunState{Run: run, Tasks: tasks}
	for _, t := range tasks {
		switch t.Outcome {
		case engine.OutcomeApplied:
			state.Applied++
		case engine.OutcomeFailed:
			state.Failed++
		case engine.OutcomeSkipped:
			state.Skipped++
		case "":
			if t.NeedChange && run.Mode == ModeWire {
				state.Pending++
			}
		}
	}
	state.IsComplete = run.FinishedAt != nil && state.Pending == 0
	return state, nil
}

// VerifyRun re-hashes every stored task's canonical JSON and checks it
// against the stored id. All mismatches are reported together.
func (s *Store) VerifyRun(ctx context.Context, runID string) error {
	tasks, err := s.ListTasks(ctx, runID)
	if err != nil {
		return err
	}
	var result *multierror.Error
	for _, t := range tasks {
		obj, err := unmarshalCanonical(t.Canonical)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("task %d %s: %w", t.Seq, t.Label(), err))
			continue
		}
		id, err := ir.Identity(ir.DomainTask, obj)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("task %d %s: %w", t.Seq, t.Label(), err))
			continue
		}
		if id != t.ID {
			result = multierror.Append(result, fmt.Errorf("task %d %s: content hash %s does not match id %s", t.Seq, t.Label(), id, t.ID))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("verify run %s: %w", runID, err)
	}
	return nil
}
