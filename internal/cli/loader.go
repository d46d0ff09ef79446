package cli

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/ledger/evmledger"
	"github.com/roach88/omniwire/internal/ledger/memledger"
	"github.com/roach88/omniwire/internal/plan"
	"github.com/roach88/omniwire/internal/state"
	"github.com/roach88/omniwire/internal/store"
	"github.com/roach88/omniwire/internal/task"
)

// session is what plan and wire share: settings, the target config, the
// ledgers and the run history. Close releases all of it.
type session struct {
	settings config.Settings
	decl     config.Declaration
	declHash string
	cfg      *config.TargetConfig
	logger   *slog.Logger

	local   *memledger.Ledger
	key     *ecdsa.PrivateKey
	factory *ledger.Factory
	// networks maps each EVM bridge authority to the network it signs on.
	networks map[task.Authority]ledger.Network

	store *store.Store
}

// openSession loads the declaration at path, scoped to chains, and opens
// the ledgers and the store. Errors are ExitCommandError.
func openSession(opts *RootOptions, cmd *cobra.Command, path string, chains []uint) (*session, error) {
	settings, err := opts.Settings(cmd)
	if err != nil {
		return nil, err
	}
	decl, err := loadDeclaration(path)
	if err != nil {
		return nil, err
	}
	declHash, err := decl.Hash()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "declaration", err)
	}
	scope, err := scopeOf(chains)
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewBuilder(decl).Build(scope)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "declaration", err)
	}

	s := &session{
		settings: settings,
		decl:     decl,
		declHash: declHash,
		cfg:      cfg,
		logger:   opts.Logger(),
		networks: make(map[task.Authority]ledger.Network),
	}
	if s.local, err = s.openLocal(); err != nil {
		return nil, err
	}
	if settings.EVMKey != "" {
		if s.key, err = evmledger.ParseKey(settings.EVMKey); err != nil {
			return nil, WrapExitError(ExitCommandError, "evm key", err)
		}
	}
	s.factory = ledger.NewFactory(s.dial)

	if s.store, err = store.Open(settings.StorePath); err != nil {
		return nil, WrapExitError(ExitCommandError, "run history", err)
	}
	return s, nil
}

func loadDeclaration(path string) (config.Declaration, error) {
	if _, err := os.Stat(path); err != nil {
		return config.Declaration{}, NewExitError(ExitCommandError, fmt.Sprintf("declaration not found: %s", path))
	}
	decl, err := config.Load(path)
	if err != nil {
		return config.Declaration{}, WrapExitError(ExitCommandError, "declaration", err)
	}
	return decl, nil
}

// scopeOf converts --chains values to endpoint ids, which are 16 bits wide.
func scopeOf(chains []uint) ([]chain.EndpointID, error) {
	if len(chains) == 0 {
		return nil, nil
	}
	out := make([]chain.EndpointID, len(chains))
	for i, id := range chains {
		if id > math.MaxUint16 {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("chain id %d out of range (max %d)", id, math.MaxUint16))
		}
		out[i] = chain.EndpointID(id)
	}
	return out, nil
}

// openLocal serves the local ledger from the fixture file.
func (s *session) openLocal() (*memledger.Ledger, error) {
	if s.settings.Fixture == "" {
		return nil, NewExitError(ExitCommandError, "no local ledger: set --fixture or OMNIWIRE_FIXTURE")
	}
	m := memledger.New(s.cfg.Addresses, memledger.WithLogger(s.logger))
	f, err := memledger.LoadFixture(s.settings.Fixture)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "local ledger", err)
	}
	if err := m.Apply(f); err != nil {
		return nil, WrapExitError(ExitCommandError, "local ledger", err)
	}
	return m, nil
}

// saveLocal writes the local ledger back to the fixture file.
func (s *session) saveLocal() error {
	data, err := yaml.Marshal(s.local)
	if err != nil {
		return fmt.Errorf("save fixture: %w", err)
	}
	if err := os.WriteFile(s.settings.Fixture, data, 0o644); err != nil {
		return fmt.Errorf("save fixture: %w", err)
	}
	return nil
}

func (s *session) dial(ctx context.Context, n ledger.Network) (ledger.Client, error) {
	c, err := evmledger.Dial(ctx, n.URL, s.key, evmledger.WithLogger(s.logger.With("network", n.Name)))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// sources returns the state readers for the scope. EVM remotes without an
// RPC URL are left out; the plan then has no tasks for their bridge.
func (s *session) sources(ctx context.Context) (state.Sources, error) {
	readerOpts := []state.Option{state.WithTimeout(s.settings.Timeout), state.WithLogger(s.logger)}
	src := state.Sources{
		Local: state.NewReader(s.local, s.cfg.Addresses, readerOpts...),
		EVM:   make(map[chain.EndpointID]*state.Reader),
	}
	for _, r := range s.cfg.Remotes {
		if r.EVM == nil {
			continue
		}
		url := s.settings.RPC(r.Chain.Name, r.RPC)
		if url == "" {
			s.logger.Warn("no RPC for EVM remote, skipping its bridge", "remote_chain_id", r.Chain.ID, "name", r.Chain.Name)
			continue
		}
		n := ledger.Network{Name: r.Chain.Name, ChainID: r.Chain.ID, Family: chain.FamilyEVM, URL: url}
		client, err := s.factory.Client(ctx, n)
		if err != nil {
			return state.Sources{}, WrapExitError(ExitCommandError, "ledger", err)
		}
		src.EVM[r.Chain.ID] = state.NewReader(client, s.cfg.Addresses, readerOpts...)
		s.networks[task.EVMBridge(r.Chain.ID)] = n
	}
	return src, nil
}

// plan reads state and builds the plan.
func (s *session) plan(ctx context.Context) (*plan.Result, error) {
	src, err := s.sources(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := state.Read(ctx, s.cfg, src, s.settings.ReadConcurrency)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "read state", err)
	}
	res, err := plan.Build(s.cfg, snap, plan.WithLogger(s.logger))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "plan", err)
	}
	return res, nil
}

// submitter implements engine.SubmitterFor. Local authorities share the
// local ledger; each EVM bridge signs on its own network with the EVM key.
func (s *session) submitter(ctx context.Context, a task.Authority) (ledger.Submitter, error) {
	if !a.IsEVM() {
		return s.local, nil
	}
	n, ok := s.networks[a]
	if !ok {
		return nil, fmt.Errorf("no network for %s", a)
	}
	if s.key == nil {
		return nil, fmt.Errorf("%s needs a signing key: set OMNIWIRE_EVM_KEY", a)
	}
	c, err := s.factory.Client(ctx, n)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// begin records a run and its plan.
func (s *session) begin(ctx context.Context, runID string, mode store.Mode, tasks []task.Task) error {
	_, err := s.store.BeginRun(ctx, store.Run{
		ID:              runID,
		Mode:            mode,
		Network:         string(s.cfg.Stage),
		DeclarationHash: s.declHash,
		StartedAt:       time.Now().UTC(),
	}, tasks)
	if err != nil {
		return WrapExitError(ExitCommandError, "record run", err)
	}
	return nil
}

func (s *session) finish(ctx context.Context, runID, outcome string) error {
	if err := s.store.FinishRun(ctx, runID, outcome, time.Now().UTC()); err != nil {
		return WrapExitError(ExitCommandError, "record run", err)
	}
	return nil
}

func (s *session) Close() error {
	var result *multierror.Error
	if err := s.factory.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := s.store.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}
