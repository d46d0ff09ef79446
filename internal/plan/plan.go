// Package plan compares the declared configuration with the on-chain
// snapshot and builds one task per comparison.
//
// Every comparison yields a task whether or not it needs a change, so a
// preview shows no-ops alongside real writes. A task whose call cannot be
// built, because a required field is empty or an address has the wrong
// width, is excluded from the plan and reported instead; its siblings are
// unaffected.
package plan

import (
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/state"
	"github.com/roach88/omniwire/internal/task"
)

// Exclusion is a task that could not be built.
type Exclusion struct {
	Authority     task.Authority
	Step          task.Step
	RemoteChainID *chain.EndpointID
	Subject       string
	Err           error
}

func (e Exclusion) Error() string {
	label := task.Task{Step: e.Step, RemoteChainID: e.RemoteChainID, Subject: e.Subject}.Label()
	return fmt.Sprintf("%s %s: %v", e.Authority, label, e.Err)
}

func (e Exclusion) Unwrap() error { return e.Err }

// Result is a plan: every buildable task, lane-ordered, and the exclusions.
type Result struct {
	Tasks    []task.Task
	Excluded []Exclusion
}

// Changes returns the number of tasks needing a change.
func (r *Result) Changes() int {
	return len(task.NeedingChange(r.Tasks))
}

// Violations aggregates the exclusions, or returns nil when there are none.
func (r *Result) Violations() error {
	var result *multierror.Error
	for _, e := range r.Excluded {
		result = multierror.Append(result, e)
	}
	return result.ErrorOrNil()
}

// Option configures Build.
type Option func(*planner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *planner) { p.logger = l }
}

// WithGraph replaces the declared step dependencies.
func WithGraph(g task.Graph) Option {
	return func(p *planner) { p.graph = g }
}

type planner struct {
	cfg    *config.TargetConfig
	snap   *state.Snapshot
	logger *slog.Logger
	graph  task.Graph

	tasks    []task.Task
	excluded []Exclusion
}

// Build diffs snap against cfg. snap must have been read for cfg.
func Build(cfg *config.TargetConfig, snap *state.Snapshot, opts ...Option) (*Result, error) {
	if len(snap.Remotes) != len(cfg.Remotes) ||
		len(snap.Coins) != len(cfg.Bridge.Coins) ||
		len(snap.Validators) != len(cfg.Oracle.Validators) {
		return nil, fmt.Errorf("plan: snapshot does not match configuration")
	}
	p := &planner{cfg: cfg, snap: snap, logger: slog.Default(), graph: task.Dependencies}
	for _, opt := range opts {
		opt(p)
	}

	p.layerZero()
	p.executor()
	p.relayer()
	p.oracle()
	p.bridge()
	p.evm()

	authorities, lanes := task.GroupByAuthority(p.tasks)
	res := &Result{Excluded: p.excluded}
	for _, a := range authorities {
		ordered, err := p.graph.Order(lanes[a])
		if err != nil {
			return nil, fmt.Errorf("plan: order %s: %w", a, err)
		}
		res.Tasks = append(res.Tasks, ordered...)
	}
	p.logger.Debug("plan built", "tasks", len(res.Tasks), "changes", res.Changes(), "excluded", len(res.Excluded))
	return res, nil
}

// add records t, or an exclusion when err is set.
func (p *planner) add(t task.Task, err error) {
	if err != nil {
		p.logger.Warn("task excluded", "authority", t.Authority, "step", t.Step, "subject", t.Subject, "err", err)
		p.excluded = append(p.excluded, Exclusion{
			Authority:     t.Authority,
			Step:          t.Step,
			RemoteChainID: t.RemoteChainID,
			Subject:       t.Subject,
			Err:           err,
		})
		return
	}
	p.tasks = append(p.tasks, t)
}

// local starts a task on the local chain.
func (p *planner) local(a task.Authority, step task.Step, remote *config.Remote) task.Task {
	t := task.Task{Authority: a, Step: step, ChainID: p.cfg.Local.ID}
	if remote != nil {
		t.RemoteChainID = task.Remote(remote.Chain.ID)
	}
	return t
}

// finish sets the change flag and diff of t from d.
func finish(t task.Task, d diff) task.Task {
	t.NeedChange = d.changed()
	t.Diff = d.result()
	return t
}
