package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/task"
)

// LaneState is the lifecycle state of one lane.
type LaneState string

const (
	LaneIdle    LaneState = "idle"
	LaneRunning LaneState = "running"
	LaneDone    LaneState = "done"
	LaneFailed  LaneState = "failed"
)

// Terminal reports whether s is Done or Failed.
func (s LaneState) Terminal() bool { return s == LaneDone || s == LaneFailed }

// Progress is a snapshot of one lane's slot.
type Progress struct {
	Authority task.Authority
	State     LaneState
	// Current is the label of the running task, or the failed one.
	Current   string
	Succeeded int
	Total     int
	// LastRef is the receipt reference of the last successful write.
	LastRef string
	Err     error
}

// Event is a lane's slot snapshot, stamped in the order it was published.
type Event struct {
	Seq      int64
	Progress Progress
}

// Outcome is what happened to one task.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
	OutcomeDryRun  Outcome = "dry-run"
)

// TaskResult records one task of a run.
type TaskResult struct {
	Task    task.Task
	Outcome Outcome
	Ref     string
	Err     error
	Elapsed time.Duration
}

// Summary is the result of a run.
type Summary struct {
	RunID string
	// Lanes holds each lane's final slot, in lane order.
	Lanes []Progress
	// Results holds every executed task, lane by lane in lane order.
	Results []TaskResult
	// Err aggregates the LaneErrors of failed lanes; nil on full success.
	Err error
}

// Applied returns the number of successful writes.
func (s *Summary) Applied() int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == OutcomeApplied {
			n++
		}
	}
	return n
}

// Failed returns the number of failed lanes.
func (s *Summary) Failed() int {
	return len(LaneErrors(s.Err))
}

// SubmitterFor returns the submitter that signs for an authority.
type SubmitterFor func(ctx context.Context, a task.Authority) (ledger.Submitter, error)

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithTimeout bounds each submit call. Zero means no deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Reconciler) { r.timeout = d }
}

// WithDryRun walks every lane without submitting anything.
func WithDryRun(dry bool) Option {
	return func(r *Reconciler) { r.dryRun = dry }
}

// WithObserver receives every progress event, from one goroutine, in Seq
// order.
func WithObserver(fn func(Event)) Option {
	return func(r *Reconciler) { r.observe = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.logger = l }
}

// WithRunIDs sets the run id generator.
func WithRunIDs(g RunIDGenerator) Option {
	return func(r *Reconciler) { r.ids = g }
}

// WithSubmitDelay pauses after each successful write, for chains that need
// time before the next nonce is usable.
func WithSubmitDelay(d time.Duration) Option {
	return func(r *Reconciler) { r.delay = d }
}

// Reconciler runs task lanes against ledgers.
type Reconciler struct {
	submitter SubmitterFor
	timeout   time.Duration
	delay     time.Duration
	dryRun    bool
	observe   func(Event)
	logger    *slog.Logger
	ids       RunIDGenerator
}

// New creates a Reconciler that signs through submitter.
func New(submitter SubmitterFor, opts ...Option) *Reconciler {
	r := &Reconciler{
		submitter: submitter,
		observe:   func(Event) {},
		logger:    slog.Default(),
		ids:       UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRunID returns a fresh run id from the configured generator.
func (r *Reconciler) NewRunID() string {
	return r.ids.Generate()
}

// Run executes the tasks that need a change. tasks must be in plan order;
// tasks that need no change are ignored. A run with nothing to do returns
// an empty summary without touching any ledger.
func (r *Reconciler) Run(ctx context.Context, runID string, tasks []task.Task) *Summary {
	authorities, lanes := task.GroupByAuthority(task.NeedingChange(tasks))
	sum := &Summary{RunID: runID, Lanes: make([]Progress, len(authorities))}
	if len(authorities) == 0 {
		return sum
	}

	log := r.logger.With("run_id", runID)
	log.Info("run starting", "lanes", len(authorities), "dry_run", r.dryRun)

	queue := newEventQueue()
	aggregated := make(chan struct{})
	go func() {
		defer close(aggregated)
		r.aggregate(queue)
	}()

	results := make([][]TaskResult, len(authorities))
	var wg sync.WaitGroup
	for i, a := range authorities {
		slot := &sum.Lanes[i]
		*slot = Progress{Authority: a, State: LaneIdle, Total: len(lanes[a])}
		publish := func() { queue.Publish(*slot) }
		publish()

		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.lane(ctx, log.With("authority", a), lanes[a], slot, publish)
		}()
	}
	wg.Wait()
	queue.Close()
	<-aggregated

	var errs *multierror.Error
	for i, slot := range sum.Lanes {
		sum.Results = append(sum.Results, results[i]...)
		if slot.State == LaneFailed {
			errs = multierror.Append(errs, &LaneError{
				Authority: slot.Authority,
				Task:      slot.Current,
				Remaining: slot.Total - slot.Succeeded - 1,
				Err:       slot.Err,
			})
		}
	}
	sum.Err = errs.ErrorOrNil()
	log.Info("run finished", "applied", sum.Applied(), "failed_lanes", sum.Failed())
	return sum
}

// lane runs one authority's tasks in order. It owns slot exclusively and
// publishes a copy after every change.
func (r *Reconciler) lane(ctx context.Context, log *slog.Logger, tasks []task.Task, slot *Progress, publish func()) []TaskResult {
	results := make([]TaskResult, 0, len(tasks))
	// fail records tasks[i] as failed with res, skips the rest of the lane
	// and marks the slot Failed.
	fail := func(i int, res TaskResult) []TaskResult {
		res.Task, res.Outcome = tasks[i], OutcomeFailed
		results = append(results, res)
		for _, t := range tasks[i+1:] {
			results = append(results, TaskResult{Task: t, Outcome: OutcomeSkipped})
		}
		log.Error("lane failed", "step", tasks[i].Step, "err", res.Err)
		slot.State = LaneFailed
		slot.Current = tasks[i].Label()
		slot.Err = res.Err
		publish()
		return results
	}

	slot.State = LaneRunning
	var sub ledger.Submitter
	if !r.dryRun {
		var err error
		if sub, err = r.submitter(ctx, slot.Authority); err != nil {
			return fail(0, TaskResult{Err: fmt.Errorf("open ledger: %w", err)})
		}
	}

	for i, t := range tasks {
		slot.Current = t.Label()
		publish()

		if r.dryRun {
			results = append(results, TaskResult{Task: t, Outcome: OutcomeDryRun})
			slot.Succeeded++
			continue
		}

		start := time.Now()
		receipt, err := r.submit(ctx, sub, t)
		if err != nil {
			return fail(i, TaskResult{Ref: receipt.Ref, Err: err, Elapsed: time.Since(start)})
		}
		results = append(results, TaskResult{Task: t, Outcome: OutcomeApplied, Ref: receipt.Ref, Elapsed: time.Since(start)})
		slot.Succeeded++
		slot.LastRef = receipt.Ref
		log.Debug("task applied", "step", t.Step, "chain_id", t.ChainID, "module", t.Call.Module, "function", t.Call.Function, "ref", receipt.Ref)

		if r.delay > 0 && i < len(tasks)-1 {
			select {
			case <-ctx.Done():
				return fail(i+1, TaskResult{Err: ctx.Err()})
			case <-time.After(r.delay):
			}
		}
	}

	slot.State = LaneDone
	slot.Current = ""
	publish()
	return results
}

func (r *Reconciler) submit(ctx context.Context, sub ledger.Submitter, t task.Task) (ledger.Receipt, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return sub.Submit(ctx, t.Call)
}

// aggregate delivers queued events to the observer until the queue is
// closed and drained.
func (r *Reconciler) aggregate(q *eventQueue) {
	for {
		if ev, ok := q.TryDequeue(); ok {
			r.observe(ev)
			continue
		}
		if _, open := <-q.Wait(); !open {
			for {
				ev, ok := q.TryDequeue()
				if !ok {
					return
				}
				r.observe(ev)
			}
		}
	}
}
