package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/task"
)

// Mode says whether a run could write.
type Mode string

const (
	ModePlan Mode = "plan"
	ModeWire Mode = "wire"
)

// Run is one recorded invocation of plan or wire.
type Run struct {
	ID              string
	Seq             int64
	Mode            Mode
	Network         string
	DeclarationHash string
	StartedAt       time.Time
	// FinishedAt is nil while the run is in progress or if it crashed.
	FinishedAt  *time.Time
	Outcome     string
	TaskCount   int
	ChangeCount int
}

// BeginRun records a run and its plan in one transaction. Seq, TaskCount
// and ChangeCount are assigned here; the stored run is returned.
func (s *Store) BeginRun(ctx context.Context, run Run, tasks []task.Task) (Run, error) {
	run.TaskCount = len(tasks)
	run.ChangeCount = len(task.NeedingChange(tasks))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, mode, network, declaration_hash, started_at, task_count, change_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Seq,
		string(run.Mode),
		run.Network,
		run.DeclarationHash,
		formatTime(run.StartedAt),
		run.TaskCount,
		run.ChangeCount,
	)
	if err != nil {
		return Run{}, fmt.Errorf("begin run %s: %w", run.ID, err)
	}

	if err := insertTasks(ctx, tx, run.ID, tasks); err != nil {
		return Run{}, fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return run, nil
}

func insertTasks(ctx context.Context, tx *sql.Tx, runID string, tasks []task.Task) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO tasks
		(run_id, id, seq, authority, step, chain_id, remote_chain_id, subject, need_change, canonical)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare tasks: %w", err)
	}
	defer stmt.Close()

	for i, t := range tasks {
		id, canonical, err := marshalTask(t)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			runID,
			id,
			i+1,
			string(t.Authority),
			string(t.Step),
			int64(t.ChainID),
			nullableChainID(t.RemoteChainID),
			t.Subject,
			t.NeedChange,
			canonical,
		)
		if err != nil {
			return fmt.Errorf("insert task %s: %w", t.Label(), err)
		}
	}
	return nil
}

// RecordResults stores what the reconciler did with each task. A result for
// a task that already has one is ignored, so recording twice is harmless.
func (s *Store) RecordResults(ctx context.Context, runID string, results []engine.TaskResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record results: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO results
		(run_id, task_id, outcome, ref, error, elapsed_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, task_id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("record results: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		id, _, err := marshalTask(r.Task)
		if err != nil {
			return fmt.Errorf("record results: %w", err)
		}
		_, err = stmt.ExecContext(ctx,
			runID,
			id,
			string(r.Outcome),
			r.Ref,
			errorText(r.Err),
			r.Elapsed.Milliseconds(),
		)
		if err != nil {
			return fmt.Errorf("record result %s: %w", r.Task.Label(), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record results: %w", err)
	}
	return nil
}

// FinishRun stamps a run with its outcome.
func (s *Store) FinishRun(ctx context.Context, runID, outcome string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET outcome = ?, finished_at = ? WHERE id = ?
	`, outcome, nullableTime(&at), runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}
