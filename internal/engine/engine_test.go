package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omniwire/internal/fault"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/task"
)

// recorder is a submitter that records calls per authority and fails the
// calls named in fail.
type recorder struct {
	mu     sync.Mutex
	calls  map[task.Authority][]string
	fail   map[string]bool
	opened map[task.Authority]int
}

func newRecorder(fail ...string) *recorder {
	r := &recorder{calls: map[task.Authority][]string{}, fail: map[string]bool{}, opened: map[task.Authority]int{}}
	for _, f := range fail {
		r.fail[f] = true
	}
	return r
}

type laneSubmitter struct {
	r *recorder
	a task.Authority
}

func (s laneSubmitter) Submit(ctx context.Context, call ledger.Call) (ledger.Receipt, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.calls[s.a] = append(s.r.calls[s.a], call.Function)
	if s.r.fail[call.Function] {
		return ledger.Receipt{}, fault.TransactionRejected("test", errors.New("boom"))
	}
	return ledger.Receipt{Ref: fmt.Sprintf("%s#%d", s.a, len(s.r.calls[s.a]))}, nil
}

func (r *recorder) submitterFor(_ context.Context, a task.Authority) (ledger.Submitter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened[a]++
	return laneSubmitter{r: r, a: a}, nil
}

func tk(a task.Authority, fn string, need bool) task.Task {
	return task.Task{
		Authority:  a,
		Step:       task.Step(fn),
		NeedChange: need,
		Call:       ledger.Call{Module: "0xa::m", Function: fn},
	}
}

func TestReconciler_FailFastPerLane(t *testing.T) {
	rec := newRecorder("a2")
	r := New(rec.submitterFor, WithRunIDs(NewFixedGenerator("run-1")))
	tasks := []task.Task{
		tk("A", "a1", true), tk("A", "a2", true), tk("A", "a3", true),
		tk("B", "b1", true), tk("B", "b2", true),
	}

	sum := r.Run(context.Background(), r.NewRunID(), tasks)
	assert.Equal(t, "run-1", sum.RunID)

	assert.Equal(t, []string{"a1", "a2"}, rec.calls["A"], "a3 never runs")
	assert.Equal(t, []string{"b1", "b2"}, rec.calls["B"])

	require.Error(t, sum.Err)
	lanes := LaneErrors(sum.Err)
	require.Len(t, lanes, 1)
	assert.Equal(t, task.Authority("A"), lanes[0].Authority)
	assert.Equal(t, 1, lanes[0].Remaining)
	assert.True(t, fault.IsTransactionRejected(lanes[0]))
	assert.Equal(t, 1, sum.Failed())
	assert.Equal(t, 3, sum.Applied())

	require.Len(t, sum.Lanes, 2)
	assert.Equal(t, Progress{Authority: "A", State: LaneFailed, Current: "a2", Succeeded: 1, Total: 3, LastRef: "A#1", Err: lanes[0].Err}, sum.Lanes[0])
	assert.Equal(t, LaneDone, sum.Lanes[1].State)
	assert.Equal(t, 2, sum.Lanes[1].Succeeded)

	var outcomes []Outcome
	for _, res := range sum.Results {
		outcomes = append(outcomes, res.Outcome)
	}
	assert.Equal(t, []Outcome{OutcomeApplied, OutcomeFailed, OutcomeSkipped, OutcomeApplied, OutcomeApplied}, outcomes)
}

func TestReconciler_SkipsTasksWithoutChanges(t *testing.T) {
	rec := newRecorder()
	r := New(rec.submitterFor)

	sum := r.Run(context.Background(), "run", []task.Task{tk("A", "a1", false), tk("B", "b1", false)})
	assert.NoError(t, sum.Err)
	assert.Empty(t, sum.Lanes)
	assert.Empty(t, sum.Results)
	assert.Empty(t, rec.opened, "no ledger opened")

	sum = r.Run(context.Background(), "run", []task.Task{tk("A", "a1", false), tk("A", "a2", true)})
	assert.NoError(t, sum.Err)
	assert.Equal(t, []string{"a2"}, rec.calls["A"])
}

func TestReconciler_DryRun(t *testing.T) {
	rec := newRecorder()
	r := New(rec.submitterFor, WithDryRun(true))

	sum := r.Run(context.Background(), "run", []task.Task{tk("A", "a1", true), tk("B", "b1", true)})
	assert.NoError(t, sum.Err)
	assert.Empty(t, rec.calls)
	assert.Empty(t, rec.opened)
	for _, res := range sum.Results {
		assert.Equal(t, OutcomeDryRun, res.Outcome)
	}
	assert.Zero(t, sum.Applied())
}

func TestReconciler_ObserverSeesOrderedEvents(t *testing.T) {
	rec := newRecorder("b2")
	var events []Event
	r := New(rec.submitterFor, WithObserver(func(e Event) { events = append(events, e) }))

	r.Run(context.Background(), "run", []task.Task{
		tk("A", "a1", true), tk("A", "a2", true),
		tk("B", "b1", true), tk("B", "b2", true),
	})

	require.NotEmpty(t, events)
	final := map[task.Authority]Progress{}
	for i, e := range events {
		if i > 0 {
			assert.Greater(t, e.Seq, events[i-1].Seq)
		}
		final[e.Progress.Authority] = e.Progress
	}
	assert.Equal(t, LaneDone, final["A"].State)
	assert.Equal(t, "A#2", final["A"].LastRef)
	assert.Equal(t, LaneFailed, final["B"].State)
	assert.Equal(t, "b2", final["B"].Current)
}

type blocking struct{}

func (blocking) Submit(ctx context.Context, _ ledger.Call) (ledger.Receipt, error) {
	<-ctx.Done()
	return ledger.Receipt{}, ctx.Err()
}

func TestReconciler_Timeout(t *testing.T) {
	r := New(func(context.Context, task.Authority) (ledger.Submitter, error) { return blocking{}, nil },
		WithTimeout(10*time.Millisecond))

	sum := r.Run(context.Background(), "run", []task.Task{tk("A", "a1", true), tk("A", "a2", true)})
	require.Error(t, sum.Err)
	assert.ErrorIs(t, sum.Err, context.DeadlineExceeded)
	assert.Equal(t, []Outcome{OutcomeFailed, OutcomeSkipped}, []Outcome{sum.Results[0].Outcome, sum.Results[1].Outcome})
}

func TestReconciler_OpenLedgerFailure(t *testing.T) {
	r := New(func(_ context.Context, a task.Authority) (ledger.Submitter, error) {
		if a == "A" {
			return nil, errors.New("no key")
		}
		return newRecorder().submitterFor(context.Background(), a)
	})

	sum := r.Run(context.Background(), "run", []task.Task{tk("A", "a1", true), tk("A", "a2", true), tk("B", "b1", true)})
	lanes := LaneErrors(sum.Err)
	require.Len(t, lanes, 1)
	assert.Equal(t, "a1", lanes[0].Task)
	assert.Equal(t, LaneDone, sum.Lanes[1].State)
	assert.Len(t, sum.Results, 3)
}
