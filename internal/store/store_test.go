package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/task"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testTasks() []task.Task {
	return []task.Task{
		{
			Authority:     task.AuthorityLayerZero,
			Step:          task.StepChainAddressSize,
			NeedChange:    true,
			ChainID:       10108,
			RemoteChainID: task.Remote(10121),
			Call: ledger.Call{
				Module:   "0xa::uln_config",
				Function: "set_chain_address_size",
				Args:     ir.List(ir.U64(10221), ir.U64(20)),
				Payload:  []byte(`{}`),
			},
			Diff: map[string]task.Change{"address_size": {Old: ir.U64(0), New: ir.U64(20)}},
		},
		{
			Authority: task.AuthorityOracle,
			Step:      task.StepOracleThreshold,
			ChainID:   10108,
			Call: ledger.Call{
				Module:   "0xf::oracle",
				Function: "set_threshold",
				Args:     ir.List(ir.U64(1)),
			},
		},
		{
			Authority:  task.AuthorityBridge,
			Step:       task.StepRegisterCoin,
			NeedChange: true,
			ChainID:    10108,
			Subject:    "WETH",
			Call: ledger.Call{
				Module:   "0xb::coin_bridge",
				Function: "register_coin",
				TypeArgs: []string{"0xb::asset::WETH"},
				Args:     ir.List(ir.String("Wrapped Ether"), ir.String("WETH"), ir.U64(8), ir.U64(1000)),
			},
			Diff: map[string]task.Change{"registered": {Old: ir.Bool(false), New: ir.Bool(true)}},
		},
	}
}

func beginRun(t *testing.T, s *Store, id string, mode Mode) Run {
	t.Helper()
	run, err := s.BeginRun(context.Background(), Run{
		ID:              id,
		Mode:            mode,
		Network:         "sandbox",
		DeclarationHash: "abc",
		StartedAt:       epoch,
	}, testTasks())
	require.NoError(t, err)
	return run
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.BeginRun(context.Background(), Run{ID: "r1", Mode: ModePlan, StartedAt: epoch}, testTasks())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestBeginRun_AssignsSeqAndCounts(t *testing.T) {
	s := createTestStore(t)

	first := beginRun(t, s, "r1", ModePlan)
	second := beginRun(t, s, "r2", ModeWire)

	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, int64(2), second.Seq)
	assert.Equal(t, 3, second.TaskCount)
	assert.Equal(t, 2, second.ChangeCount)
}

func TestBeginRun_DuplicateIDFails(t *testing.T) {
	s := createTestStore(t)
	beginRun(t, s, "r1", ModePlan)

	_, err := s.BeginRun(context.Background(), Run{ID: "r1", Mode: ModePlan, StartedAt: epoch}, nil)
	assert.Error(t, err)

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)

	beginRun(t, s, "r1", ModePlan)
	beginRun(t, s, "r2", ModePlan)
	beginRun(t, s, "r3", ModeWire)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r3", runs[0].ID)
	assert.Equal(t, "r2", runs[1].ID)
	assert.Equal(t, epoch, runs[0].StartedAt)
	assert.Nil(t, runs[0].FinishedAt)
}

func TestGetRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.FinishRun(context.Background(), "missing", "x", epoch), ErrRunNotFound)
}

func TestListTasks_PlanOrderWithResults(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "r1", ModeWire)
	tasks := testTasks()

	results := []engine.TaskResult{
		{Task: tasks[0], Outcome: engine.OutcomeApplied, Ref: "7", Elapsed: 1500 * time.Millisecond},
		{Task: tasks[2], Outcome: engine.OutcomeFailed, Err: errors.New("abort 0x1")},
	}
	require.NoError(t, s.RecordResults(ctx, "r1", results))
	// Recording again is ignored.
	require.NoError(t, s.RecordResults(ctx, "r1", results))

	recs, err := s.ListTasks(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, tasks[0].ID(), recs[0].ID)
	assert.Equal(t, "chain-address-size@10121", recs[0].Label())
	assert.Equal(t, engine.OutcomeApplied, recs[0].Outcome)
	assert.Equal(t, "7", recs[0].Ref)
	assert.Equal(t, 1500*time.Millisecond, recs[0].Elapsed)
	assert.True(t, recs[0].NeedChange)

	assert.Nil(t, recs[1].RemoteChainID)
	assert.Equal(t, engine.Outcome(""), recs[1].Outcome)
	assert.False(t, recs[1].NeedChange)

	assert.Equal(t, "WETH", recs[2].Subject)
	assert.Equal(t, engine.OutcomeFailed, recs[2].Outcome)
	assert.Equal(t, "abort 0x1", recs[2].Error)
}

func TestRecordResults_UnknownTaskFails(t *testing.T) {
	s := createTestStore(t)
	beginRun(t, s, "r1", ModeWire)

	stray := task.Task{Authority: task.AuthorityRelayer, Step: task.StepRelayerFee, ChainID: 1}
	err := s.RecordResults(context.Background(), "r1", []engine.TaskResult{{Task: stray, Outcome: engine.OutcomeApplied}})
	assert.Error(t, err)
}

func TestGetRunState(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "r1", ModeWire)
	tasks := testTasks()

	require.NoError(t, s.RecordResults(ctx, "r1", []engine.TaskResult{
		{Task: tasks[0], Outcome: engine.OutcomeApplied, Ref: "7"},
	}))

	state, err := s.GetRunState(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 1, state.Applied)
	assert.Equal(t, 1, state.Pending)
	assert.False(t, state.IsComplete)

	require.NoError(t, s.RecordResults(ctx, "r1", []engine.TaskResult{
		{Task: tasks[2], Outcome: engine.OutcomeApplied, Ref: "8"},
	}))
	require.NoError(t, s.FinishRun(ctx, "r1", "fully applied", epoch.Add(time.Minute)))

	state, err = s.GetRunState(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, 2, state.Applied)
	assert.Zero(t, state.Pending)
	assert.True(t, state.IsComplete)
	assert.Equal(t, "fully applied", state.Run.Outcome)
	require.NotNil(t, state.Run.FinishedAt)
	assert.Equal(t, epoch.Add(time.Minute), *state.Run.FinishedAt)
}

func TestGetRunState_PlanHasNothingPending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "p1", ModePlan)
	require.NoError(t, s.FinishRun(ctx, "p1", "", epoch))

	state, err := s.GetRunState(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, state.Pending)
	assert.True(t, state.IsComplete)
}

func TestVerifyRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	beginRun(t, s, "r1", ModePlan)

	require.NoError(t, s.VerifyRun(ctx, "r1"))

	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET canonical = replace(canonical, '20]', '32]') WHERE run_id = 'r1' AND seq = 1`)
	require.NoError(t, err)

	err = s.VerifyRun(ctx, "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain-address-size@10121")
	assert.Contains(t, err.Error(), "does not match")
}
