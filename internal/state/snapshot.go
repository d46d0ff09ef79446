package state

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/omniwire/internal/adapterparams"
	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/limiter"
	"github.com/roach88/omniwire/internal/protocol"
)

// Snapshot mirrors the shape of a TargetConfig with the values currently on
// chain. Slices are index-aligned with the TargetConfig they were read for.
type Snapshot struct {
	ExecutorRegistered  bool
	RelayerRegistered   bool
	OracleThreshold     uint64
	CustomAdapterParams bool
	// Validators[i] is the on-chain status of cfg.Oracle.Validators[i].
	Validators []bool
	Remotes    []RemoteState
	Coins      []CoinState
}

// RemoteState is the local ledger's configuration toward one remote, plus
// the remote's own TokenBridge state when it was read.
type RemoteState struct {
	AddressSize    uint64
	AppConfig      config.AppConfig
	SendVersion    config.SemVer
	ReceiveVersion config.SemVer
	Executor       DefaultExecutor
	AdapterParams  []byte
	ExecutorFee    adapterparams.ExecutorFee
	RelayerFee     config.RelayerFee
	OracleFee      uint64
	Peer           string
	MinDstGas      uint64
	// EVM is nil when the remote has no TokenBridge or no EVM client.
	EVM *EVMState
}

// EVMState is the TokenBridge state on one EVM remote.
type EVMState struct {
	CustomAdapterParams bool
	FeeBP               uint64
	TrustedRemote       bool
	MinDstGas           uint64
	// Tokens[i] reports whether cfg EVM.Tokens[i] is supported.
	Tokens []bool
	WETH   string
}

// CoinState is a coin's registration, limiter and peers.
type CoinState struct {
	Registered bool
	Limiter    limiter.State
	// Remotes[i] is the peer of coin.Remotes[i].
	Remotes []RemoteCoin
}

// Sources are the readers a snapshot draws from. EVM readers are keyed by
// the remote's lookup id.
type Sources struct {
	Local *Reader
	EVM   map[chain.EndpointID]*Reader
}

// Read snapshots every value cfg declares. Independent reads run
// concurrently, at most limit at a time; each writes only its own slot of
// the snapshot. The first read error cancels the rest.
func Read(ctx context.Context, cfg *config.TargetConfig, src Sources, limit int) (*Snapshot, error) {
	snap := &Snapshot{
		Validators: make([]bool, len(cfg.Oracle.Validators)),
		Remotes:    make([]RemoteState, len(cfg.Remotes)),
		Coins:      make([]CoinState, len(cfg.Bridge.Coins)),
	}
	if limit <= 0 {
		limit = 1
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	l := src.Local
	read := func(name string, fn func() error) {
		g.Go(func() error {
			if err := fn(); err != nil {
				return fmt.Errorf("read %s: %w", name, err)
			}
			return nil
		})
	}

	read("executor registration", func() (err error) {
		snap.ExecutorRegistered, err = l.ExecutorRegistered(ctx, cfg.Executor.Address)
		return err
	})
	read("relayer registration", func() (err error) {
		snap.RelayerRegistered, err = l.RelayerRegistered(ctx, cfg.Relayer.Signer)
		return err
	})
	read("oracle threshold", func() (err error) {
		snap.OracleThreshold, err = l.OracleThreshold(ctx)
		return err
	})
	read("custom adapter params", func() (err error) {
		snap.CustomAdapterParams, err = l.CustomAdapterParams(ctx)
		return err
	})
	for i, v := range cfg.Oracle.Validators {
		read("oracle validator "+v.Address, func() (err error) {
			snap.Validators[i], err = l.OracleValidator(ctx, v.Address)
			return err
		})
	}

	for i, remote := range cfg.Remotes {
		rs := &snap.Remotes[i]
		id := remote.LocalID
		name := fmt.Sprintf("remote %d", remote.Chain.ID)

		read(name+" address size", func() (err error) {
			rs.AddressSize, err = l.ChainAddressSize(ctx, id)
			return err
		})
		read(name+" app config", func() (err error) {
			rs.AppConfig, err = l.DefaultAppConfig(ctx, id)
			return err
		})
		read(name+" send version", func() (err error) {
			rs.SendVersion, err = l.SendVersion(ctx, id)
			return err
		})
		read(name+" receive version", func() (err error) {
			rs.ReceiveVersion, err = l.ReceiveVersion(ctx, id)
			return err
		})
		read(name+" executor", func() (err error) {
			rs.Executor, err = l.DefaultExecutor(ctx, id)
			return err
		})
		read(name+" adapter params", func() (err error) {
			rs.AdapterParams, err = l.DefaultAdapterParams(ctx, id)
			return err
		})
		read(name+" executor fee", func() (err error) {
			rs.ExecutorFee, err = l.ExecutorFee(ctx, cfg.Executor.Address, id)
			return err
		})
		read(name+" relayer fee", func() (err error) {
			rs.RelayerFee, err = l.RelayerFee(ctx, cfg.Relayer.Signer, id)
			return err
		})
		read(name+" oracle fee", func() (err error) {
			rs.OracleFee, err = l.OracleFee(ctx, cfg.Oracle.Signer, id)
			return err
		})
		if remote.Peer == "" {
			continue
		}
		read(name+" peer", func() (err error) {
			rs.Peer, err = l.RemoteBridge(ctx, id)
			return err
		})
		read(name+" min dst gas", func() (err error) {
			rs.MinDstGas, err = l.MinDstGas(ctx, id, protocol.PacketTypeSend)
			return err
		})

		if remote.EVM == nil {
			continue
		}
		er, ok := src.EVM[remote.Chain.ID]
		if !ok {
			l.logger.Warn("no client for EVM remote, skipping its bridge", "remote_chain_id", remote.Chain.ID)
			continue
		}
		readEVM(ctx, read, cfg, remote, er, rs)
	}

	for i, coin := range cfg.Bridge.Coins {
		cs := &snap.Coins[i]
		cs.Remotes = make([]RemoteCoin, len(coin.Remotes))
		coinType := cfg.Addresses.CoinType(coin.Symbol)

		read("coin "+coin.Symbol, func() (err error) {
			cs.Registered, err = l.CoinRegistered(ctx, coinType)
			return err
		})
		read("coin "+coin.Symbol+" limiter", func() (err error) {
			cs.Limiter, err = l.CoinLimiter(ctx, coinType)
			return err
		})
		for j, rc := range coin.Remotes {
			remote, ok := cfg.Remote(rc.ChainID)
			if !ok {
				continue
			}
			read(fmt.Sprintf("coin %s remote %d", coin.Symbol, rc.ChainID), func() (err error) {
				cs.Remotes[j], err = l.RemoteCoin(ctx, coinType, remote.LocalID)
				return err
			})
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

func readEVM(ctx context.Context, read func(string, func() error), cfg *config.TargetConfig, remote config.Remote, er *Reader, rs *RemoteState) {
	target := remote.EVM
	es := &EVMState{Tokens: make([]bool, len(target.Tokens))}
	rs.EVM = es
	name := fmt.Sprintf("evm %d", remote.Chain.ID)

	read(name+" custom adapter params", func() (err error) {
		es.CustomAdapterParams, err = er.EVMCustomAdapterParams(ctx, target.Address)
		return err
	})
	read(name+" bridge fee", func() (err error) {
		es.FeeBP, err = er.EVMBridgeFeeBP(ctx, target.Address)
		return err
	})
	read(name+" trusted remote", func() error {
		path, err := protocol.TrustedRemotePath(cfg.Addresses.Bridge, target.Address)
		if err != nil {
			return err
		}
		es.TrustedRemote, err = er.EVMTrustedRemote(ctx, target.Address, target.LocalID, path)
		return err
	})
	read(name+" min dst gas", func() (err error) {
		es.MinDstGas, err = er.EVMMinDstGas(ctx, target.Address, target.LocalID)
		return err
	})
	for i, token := range target.Tokens {
		read(name+" token "+token, func() (err error) {
			es.Tokens[i], err = er.EVMTokenSupported(ctx, target.Address, token)
			return err
		})
	}
	if target.WETH != "" {
		read(name+" weth", func() (err error) {
			es.WETH, err = er.EVMWETH(ctx, target.Address)
			return err
		})
	}
}
