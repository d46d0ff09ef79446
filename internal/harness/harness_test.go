package harness

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/store"
	"github.com/roach88/omniwire/internal/task"
)

const scenarioDir = "testdata/scenarios"

func loadScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join(scenarioDir, name+".yaml"))
	require.NoError(t, err)
	return s
}

func intPtr(n int) *int { return &n }

func TestScenarios_Golden(t *testing.T) {
	for _, name := range []string{"fresh-sandbox", "relayer-fee-rejected", "dry-run-preview"} {
		t.Run(name, func(t *testing.T) {
			res := RunWithGolden(t, loadScenario(t, name))
			assert.True(t, res.Pass, "errors: %v", res.Errors)
		})
	}
}

func TestRun_RecordsRun(t *testing.T) {
	s := loadScenario(t, "fresh-sandbox")

	res, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, "run-fresh", res.RunID)
	assert.Equal(t, store.ModeWire, res.State.Run.Mode)
	assert.Equal(t, "sandbox", res.State.Run.Network)
	assert.Len(t, res.State.Run.DeclarationHash, 64)
	assert.Equal(t, 20, res.State.Run.TaskCount)
	assert.Equal(t, 17, res.State.Run.ChangeCount)
	assert.Equal(t, "fully applied", res.State.Run.Outcome)
	require.NotNil(t, res.State.Run.FinishedAt)
	assert.True(t, res.State.Run.FinishedAt.After(res.State.Run.StartedAt))
	assert.Len(t, res.Calls, 17)
}

func TestRun_AuditHasEveryTask(t *testing.T) {
	res, err := Run(context.Background(), loadScenario(t, "fresh-sandbox"))
	require.NoError(t, err)

	// Header plus one row per task.
	assert.Equal(t, 21, bytes.Count(res.Audit, []byte("\n")))
}

func TestRun_ExpectationMismatch(t *testing.T) {
	s := loadScenario(t, "fresh-sandbox")
	s.Expect.Applied = intPtr(3)
	s.Expect.FailedLanes = []string{"oracle"}

	res, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, res.Pass)
	assert.Contains(t, res.Errors, "applied: expected 3, got 17")
	assert.Contains(t, res.Errors, "failed lanes: expected [oracle], got []")
}

func TestRun_AssertionMismatch(t *testing.T) {
	s := loadScenario(t, "fresh-sandbox")
	s.Assertions = []Assertion{{Type: AssertTaskOutcome, Task: "register-relayer", Outcome: "failed"}}

	res, err := Run(context.Background(), s)
	require.NoError(t, err)

	require.False(t, res.Pass)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Assertion failed: task_outcome")
	assert.Contains(t, res.Errors[0], "register-relayer applied")
}

func TestRun_InvalidDeclaration(t *testing.T) {
	s := loadScenario(t, "fresh-sandbox")
	s.Declaration.Stage = "moon"

	_, err := Run(context.Background(), s)
	assert.Error(t, err)
}

func TestLoadScenario_NameDefaultsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unnamed.yaml")
	require.NoError(t, os.WriteFile(path, []byte("description: d\ndeclaration:\n  stage: sandbox\n"), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "unnamed", s.Name)
	assert.Equal(t, uint64(1), s.Seed.threshold())
}

func TestParseScenario_Invalid(t *testing.T) {
	const base = "description: d\ndeclaration:\n  stage: sandbox\n"
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", base + "assertion: []\n"},
		{"missing description", "declaration:\n  stage: sandbox\n"},
		{"missing stage", "description: d\n"},
		{"failure without function", base + "failures:\n  - module: oracle\n"},
		{"unknown assertion", base + "assertions:\n  - type: final_state\n"},
		{"short task order", base + "assertions:\n  - type: task_order\n    tasks: [a]\n"},
		{"negative count", base + "assertions:\n  - type: call_count\n    module: m\n    function: f\n    count: -1\n"},
		{"lane without authority", base + "assertions:\n  - type: lane_failed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestHarness_RunDir(t *testing.T) {
	res, err := New().RunDir(context.Background(), scenarioDir)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 3, res.Passed, "failures: %v", res.Failures)
}

func TestHarness_RunDir_ReportsBrokenScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o644))

	res, err := New().RunDir(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "broken", res.Failures[0].Scenario)
	assert.Contains(t, res.Failures[0].Error, "failed to load scenario")
}

func TestHarness_RunDir_Empty(t *testing.T) {
	_, err := New().RunDir(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func assertionResult() *Result {
	remote := chain.EndpointID(10121)
	res := NewResult()
	res.Summary = &engine.Summary{Err: &engine.LaneError{Authority: task.AuthorityRelayer, Task: "relayer-fee@10121"}}
	res.State.Tasks = []store.TaskRecord{
		{Seq: 1, Authority: task.AuthorityExecutor, Step: task.StepRegisterExecutor, NeedChange: true, Outcome: engine.OutcomeApplied},
		{Seq: 2, Authority: task.AuthorityRelayer, Step: task.StepRelayerFee, RemoteChainID: &remote, NeedChange: true, Outcome: engine.OutcomeFailed},
		{Seq: 3, Authority: task.AuthorityOracle, Step: task.StepOracleThreshold},
		{Seq: 4, Authority: task.AuthorityBridge, Step: task.StepRegisterCoin, Subject: "WETH", NeedChange: true},
	}
	res.Calls = []ledger.Call{
		{Module: "0xa::executor_v1", Function: "register"},
		{Module: "0xc::oracle", Function: "set_validator"},
		{Module: "0xc::oracle", Function: "set_validator"},
	}
	return res
}

func TestEvaluateAssertions(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		wantErr   string
	}{
		{"applied", Assertion{Type: AssertTaskOutcome, Task: "register-executor", Outcome: "applied"}, ""},
		{"failed", Assertion{Type: AssertTaskOutcome, Task: "relayer-fee@10121", Outcome: "failed"}, ""},
		{"unchanged", Assertion{Type: AssertTaskOutcome, Task: "oracle-threshold", Outcome: "unchanged"}, ""},
		{"pending", Assertion{Type: AssertTaskOutcome, Task: "register-coin[WETH]", Outcome: "pending"}, ""},
		{"wrong authority", Assertion{Type: AssertTaskOutcome, Task: "register-executor", Authority: "bridge", Outcome: "applied"}, "not found"},
		{"wrong outcome", Assertion{Type: AssertTaskOutcome, Task: "oracle-threshold", Outcome: "applied"}, "oracle-threshold unchanged"},
		{"order", Assertion{Type: AssertTaskOrder, Tasks: []string{"register-executor", "register-coin[WETH]"}}, ""},
		{"reversed order", Assertion{Type: AssertTaskOrder, Tasks: []string{"oracle-threshold", "register-executor"}}, "should be before"},
		{"missing from order", Assertion{Type: AssertTaskOrder, Tasks: []string{"register-executor", "register-relayer"}}, "missing task: register-relayer"},
		{"call count", Assertion{Type: AssertCallCount, Module: "oracle", Function: "set_validator", Count: 2}, ""},
		{"call count mismatch", Assertion{Type: AssertCallCount, Module: "executor_v1", Function: "set_fee", Count: 1}, "0 calls"},
		{"lane failed", Assertion{Type: AssertLaneFailed, Authority: "relayer"}, ""},
		{"lane not failed", Assertion{Type: AssertLaneFailed, Authority: "oracle"}, "failed lanes: [relayer]"},
		{"unknown", Assertion{Type: "final_state"}, "unknown assertion type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(assertionResult(), []Assertion{tt.assertion})
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.wantErr)
		})
	}
}
