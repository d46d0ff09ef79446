package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/engine"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/ledger/memledger"
	"github.com/roach88/omniwire/internal/plan"
	"github.com/roach88/omniwire/internal/report"
	"github.com/roach88/omniwire/internal/state"
	"github.com/roach88/omniwire/internal/store"
	"github.com/roach88/omniwire/internal/task"
	"github.com/roach88/omniwire/internal/testutil"
)

const readConcurrency = 4

// Harness executes scenarios. Each scenario gets its own ledger, store,
// clock and run id.
type Harness struct {
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger passed to every component. Logs are
// discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a Harness.
func New(opts ...Option) *Harness {
	h := &Harness{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes s with a default Harness.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	return New().Run(ctx, s)
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Build the target config and seed a fresh in-memory ledger
//  2. Read state and build the plan
//  3. Record the run, execute it and record the results
//  4. Plan again against the final ledger
//  5. Check expectations, assertions and principles
//
// An error means the scenario could not be executed at all; failed checks
// are reported in the Result.
func (h *Harness) Run(ctx context.Context, s *Scenario) (*Result, error) {
	cfg, err := config.NewBuilder(s.Declaration).Build(s.scope())
	if err != nil {
		return nil, fmt.Errorf("build target config: %w", err)
	}
	declHash, err := s.Declaration.Hash()
	if err != nil {
		return nil, err
	}

	m, err := testutil.SeededLedger(cfg, s.Seed.threshold(), memledger.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("seed ledger: %w", err)
	}
	if err := m.Apply(s.Fixture); err != nil {
		return nil, fmt.Errorf("apply fixture: %w", err)
	}
	for _, f := range s.Failures {
		msg := f.Message
		if msg == "" {
			msg = "rejected by scenario"
		}
		m.FailOn(f.Module, f.Function, errors.New(msg))
	}

	first, err := h.plan(ctx, cfg, m)
	if err != nil {
		return nil, err
	}
	var audit bytes.Buffer
	if err := report.WriteAudit(&audit, first.Tasks); err != nil {
		return nil, fmt.Errorf("write audit: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	clock := testutil.NewDeterministicClock()
	rec := engine.New(
		func(context.Context, task.Authority) (ledger.Submitter, error) { return m, nil },
		engine.WithLogger(h.logger),
		engine.WithDryRun(s.DryRun),
		engine.WithRunIDs(testutil.NewFixedRunIDGenerator(s.RunID)),
	)
	runID := rec.NewRunID()

	if _, err := st.BeginRun(ctx, store.Run{
		ID:              runID,
		Mode:            store.ModeWire,
		Network:         string(cfg.Stage),
		DeclarationHash: declHash,
		StartedAt:       clock.Now(),
	}, first.Tasks); err != nil {
		return nil, err
	}
	sum := rec.Run(ctx, runID, first.Tasks)
	if err := st.RecordResults(ctx, runID, sum.Results); err != nil {
		return nil, err
	}
	outcome := report.Classify(sum)
	if err := st.FinishRun(ctx, runID, string(outcome), clock.Now()); err != nil {
		return nil, err
	}
	if err := st.VerifyRun(ctx, runID); err != nil {
		return nil, err
	}
	runState, err := st.GetRunState(ctx, runID)
	if err != nil {
		return nil, err
	}

	second, err := h.plan(ctx, cfg, m)
	if err != nil {
		return nil, fmt.Errorf("replan: %w", err)
	}

	res := NewResult()
	res.RunID = runID
	res.Plan = first
	res.Summary = sum
	res.Outcome = outcome
	res.State = runState
	res.Calls = m.Submitted()
	res.Audit = audit.Bytes()
	res.ReplanChanges = second.Changes()

	checkExpect(res, s.Expect)
	for _, msg := range EvaluateAssertions(res, s.Assertions) {
		res.AddError("%s", msg)
	}
	checkPrinciples(res, s)
	return res, nil
}

func (h *Harness) plan(ctx context.Context, cfg *config.TargetConfig, m *memledger.Ledger) (*plan.Result, error) {
	src := state.Sources{Local: state.NewReader(m, cfg.Addresses, state.WithLogger(h.logger))}
	snap, err := state.Read(ctx, cfg, src, readConcurrency)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	return plan.Build(cfg, snap, plan.WithLogger(h.logger))
}

func checkExpect(res *Result, e Expect) {
	if e.Outcome != "" && string(res.Outcome) != e.Outcome {
		res.AddError("outcome: expected %q, got %q", e.Outcome, res.Outcome)
	}
	checkCount(res, "changes", e.Changes, res.Plan.Changes())
	checkCount(res, "excluded", e.Excluded, len(res.Plan.Excluded))
	checkCount(res, "applied", e.Applied, res.Summary.Applied())
	checkCount(res, "replan changes", e.Replan, res.ReplanChanges)

	if e.FailedLanes != nil {
		got := failedLanes(res.Summary)
		if fmt.Sprint(got) != fmt.Sprint(e.FailedLanes) {
			res.AddError("failed lanes: expected %v, got %v", e.FailedLanes, got)
		}
	}
}

func checkCount(res *Result, what string, want *int, got int) {
	if want != nil && *want != got {
		res.AddError("%s: expected %d, got %d", what, *want, got)
	}
}

// failedLanes returns the authorities of failed lanes in lane order. Never
// nil.
func failedLanes(sum *engine.Summary) []string {
	out := []string{}
	for _, le := range engine.LaneErrors(sum.Err) {
		out = append(out, string(le.Authority))
	}
	return out
}
