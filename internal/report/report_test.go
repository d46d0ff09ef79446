package report

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/fault"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/plan"
	"github.com/roach88/omniwire/internal/task"
)

func auditTasks() []task.Task {
	return []task.Task{
		{
			Authority:     task.AuthorityLayerZero,
			Step:          task.StepChainAddressSize,
			NeedChange:    true,
			ChainID:       10108,
			RemoteChainID: task.Remote(10121),
			Call: ledger.Call{
				Sender:   "0xa",
				Module:   "0xa::uln_config",
				Function: "set_chain_address_size",
				Args:     ir.List(ir.U64(10221), ir.U64(20)),
				Payload:  []byte(`{"a":1}`),
			},
			Diff: map[string]task.Change{"address_size": {Old: ir.U64(0), New: ir.U64(20)}},
		},
		{
			Authority: task.AuthorityBridge,
			Step:      task.StepRegisterCoin,
			ChainID:   10108,
			Subject:   "WETH",
			Call: ledger.Call{
				Sender:   "0xb",
				Module:   "0xb::coin_bridge",
				Function: "register_coin",
				TypeArgs: []string{"0xb::asset::WETH"},
				Args:     ir.List(ir.String("Wrapped Ether"), ir.String("WETH"), ir.U64(8), ir.U64(1000)),
			},
		},
		{
			Authority:     task.EVMBridge(10121),
			Step:          task.StepEVMBridgeFee,
			NeedChange:    true,
			ChainID:       10121,
			RemoteChainID: task.Remote(10108),
			Call: ledger.Call{
				Module:   "0x2afd0d8a477ad393d2234253407fb1cec92749d1",
				Function: "setBridgeFeeBP",
				Args:     ir.List(ir.U64(5)),
				Payload:  []byte{0x01, 0x02},
			},
			Diff: map[string]task.Change{"fee_bp": {Old: ir.U64(0), New: ir.U64(5)}},
		},
	}
}

func TestWriteAudit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAudit(&buf, auditTasks()))

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "audit", buf.Bytes())
}

func TestWriteAudit_EmptyPlanHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteAudit(&buf, nil))
	assert.Equal(t, `"authority","needChange","chainId","remoteChainId","module","function","args","diff","payload"`+"\n", buf.String())
}

func TestExportAudit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := ExportAudit(dir, "run-1", auditTasks())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "omniwire-audit-run-1.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 4)
}

func TestBoard_Lines(t *testing.T) {
	var buf bytes.Buffer
	b := NewBoard(&buf, false)

	b.Observe(engine.Event{Seq: 1, Progress: engine.Progress{Authority: "layerzero", State: engine.LaneRunning, Current: "chain-address-size@10121", Total: 2}})
	b.Observe(engine.Event{Seq: 2, Progress: engine.Progress{Authority: "oracle", State: engine.LaneFailed, Current: "oracle-threshold", Total: 1, Err: errors.New("rejected")}})
	b.Observe(engine.Event{Seq: 3, Progress: engine.Progress{Authority: "layerzero", State: engine.LaneDone, Succeeded: 2, Total: 2, LastRef: "7"}})

	assert.Equal(t, "layerzero\trunning\t0/2\tchain-address-size@10121\n"+
		"oracle\tfailed\t0/1\toracle-threshold: rejected\n"+
		"layerzero\tdone\t2/2\t\n", buf.String())

	buf.Reset()
	b.Render()
	out := buf.String()
	assert.Contains(t, out, "Authority")
	assert.Contains(t, out, "oracle-threshold: rejected")
	assert.Less(t, strings.Index(out, "layerzero"), strings.Index(out, "oracle"), "rows keep first-seen order")
}

func TestBoard_LiveRedrawsInPlace(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString("plan summary\n")
	b := NewBoard(&buf, true)

	b.Observe(engine.Event{Seq: 1, Progress: engine.Progress{Authority: "layerzero", State: engine.LaneRunning, Total: 2}})
	first := strings.TrimPrefix(buf.String(), "plan summary\n")
	height := strings.Count(first, "\n")
	require.Positive(t, height)
	assert.False(t, strings.HasPrefix(first, "\x1b["), "nothing to erase before the first draw")

	buf.Reset()
	b.Observe(engine.Event{Seq: 2, Progress: engine.Progress{Authority: "oracle", State: engine.LaneRunning, Total: 1}})
	second := buf.String()
	assert.True(t, strings.HasPrefix(second, fmt.Sprintf("\x1b[%dA\x1b[J", height)), "moves up over exactly the previous table")
	assert.NotContains(t, second, "\x1b[2J")
	assert.NotContains(t, second, "\x1b[H")
	assert.Contains(t, second, "oracle")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		sum  *engine.Summary
		want Outcome
	}{
		{"not run", nil, OutcomeNoChanges},
		{"nothing executed", &engine.Summary{}, OutcomeNoChanges},
		{"failures", &engine.Summary{Lanes: []engine.Progress{{}}, Err: errors.New("x")}, OutcomePartial},
		{"success", &engine.Summary{Lanes: []engine.Progress{{}}}, OutcomeFull},
		{"dry run", &engine.Summary{
			Lanes:   []engine.Progress{{}},
			Results: []engine.TaskResult{{Outcome: engine.OutcomeDryRun}, {Outcome: engine.OutcomeDryRun}},
		}, OutcomeDryRun},
		{"applied", &engine.Summary{
			Lanes:   []engine.Progress{{}},
			Results: []engine.TaskResult{{Outcome: engine.OutcomeApplied}},
		}, OutcomeFull},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.sum))
		})
	}
}

func TestWritePlanSummary(t *testing.T) {
	res := &plan.Result{
		Tasks: auditTasks(),
		Excluded: []plan.Exclusion{{
			Authority: task.AuthorityExecutor,
			Step:      task.StepRegisterExecutor,
			Err:       fault.InvariantViolation("plan", "sender", "must not be empty"),
		}},
	}
	var buf bytes.Buffer
	WritePlanSummary(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "bridge-evm:10121")
	assert.Contains(t, out, "excluded: executor register-executor")
}

func TestWriteRunSummary(t *testing.T) {
	var buf bytes.Buffer
	WriteRunSummary(&buf, nil)
	assert.Equal(t, "no changes needed\n", buf.String())

	buf.Reset()
	WriteRunSummary(&buf, &engine.Summary{RunID: "r1", Lanes: []engine.Progress{{Authority: "oracle"}}})
	assert.Equal(t, "run r1: fully applied (0 applied, 0 failed lanes)\n", buf.String())

	buf.Reset()
	WriteRunSummary(&buf, &engine.Summary{
		RunID:   "r2",
		Lanes:   []engine.Progress{{Authority: "oracle"}},
		Results: []engine.TaskResult{{Outcome: engine.OutcomeDryRun}},
	})
	assert.Equal(t, "run r2: dry run, nothing submitted (0 applied, 0 failed lanes)\n", buf.String())
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes ", true},
		{"n\n", false},
		{"sure\n", false},
		{"", false},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			var out bytes.Buffer
			ok, err := Confirm(strings.NewReader(tc.input), &out, "Apply?", false)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
			assert.Equal(t, "Apply? [y/N]: ", out.String())
		})
	}
}

func TestConfirm_AssumeYes(t *testing.T) {
	var out bytes.Buffer
	ok, err := Confirm(strings.NewReader(""), &out, "Apply?", true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, out.String())
}

func TestConfirm_RefusesNonTerminalFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdin")
	require.NoError(t, err)
	defer f.Close()

	_, err = Confirm(f, &bytes.Buffer{}, "Apply?", false)
	assert.ErrorIs(t, err, ErrNotInteractive)
}
