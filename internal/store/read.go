package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/task"
)

// TaskRecord is a stored task with its result, if it was executed.
type TaskRecord struct {
	ID            string
	Seq           int64
	Authority     task.Authority
	Step          task.Step
	ChainID       chain.EndpointID
	RemoteChainID *chain.EndpointID
	Subject       string
	NeedChange    bool
	Canonical     string
	// Outcome is empty when the task was never executed.
	Outcome engine.Outcome
	Ref     string
	Error   string
	Elapsed time.Duration
}

// Label mirrors task.Task.Label.
func (r TaskRecord) Label() string {
	return task.Task{Step: r.Step, RemoteChainID: r.RemoteChainID, Subject: r.Subject}.Label()
}

const runColumns = `id, seq, mode, network, declaration_hash, started_at, finished_at, outcome, task_count, change_count`

// ListRuns returns the most recent runs, newest first. limit <= 0 returns
// every run. Returns an empty slice (not nil) when there are none.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}
	return run, nil
}

// ListTasks returns a run's plan in plan order, joined with results.
func (s *Store) ListTasks(ctx context.Context, runID string) ([]TaskRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.seq, t.authority, t.step, t.chain_id, t.remote_chain_id,
		       t.subject, t.need_change, t.canonical,
		       COALESCE(r.outcome, ''), COALESCE(r.ref, ''), COALESCE(r.error, ''), COALESCE(r.elapsed_ms, 0)
		FROM tasks t
		LEFT JOIN results r ON r.run_id = t.run_id AND r.task_id = t.id
		WHERE t.run_id = ?
		ORDER BY t.seq ASC, t.id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list tasks %s: %w", runID, err)
	}
	defer rows.Close()

	records := []TaskRecord{}
	for rows.Next() {
		var (
			rec       TaskRecord
			authority string
			step      string
			chainID   int64
			remote    sql.NullInt64
			outcome   string
			elapsedMS int64
		)
		err := rows.Scan(&rec.ID, &rec.Seq, &authority, &step, &chainID, &remote,
			&rec.Subject, &rec.NeedChange, &rec.Canonical,
			&outcome, &rec.Ref, &rec.Error, &elapsedMS)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		rec.Authority = task.Authority(authority)
		rec.Step = task.Step(step)
		rec.ChainID = chain.EndpointID(chainID)
		rec.RemoteChainID = chainIDPtr(remote)
		rec.Outcome = engine.Outcome(outcome)
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks %s: %w", runID, err)
	}
	return records, nil
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run      Run
		mode     string
		started  string
		finished sql.NullString
	)
	err := sc.Scan(&run.ID, &run.Seq, &mode, &run.Network, &run.DeclarationHash,
		&started, &finished, &run.Outcome, &run.TaskCount, &run.ChangeCount)
	if err != nil {
		return Run{}, err
	}
	run.Mode = Mode(mode)
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		at, err := parseTime(finished.String)
		if err != nil {
			return Run{}, err
		}
		run.FinishedAt = &at
	}
	return run, nil
}
