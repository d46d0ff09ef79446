package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/omniwire/internal/adapterparams"
	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/limiter"
	"github.com/roach88/omniwire/internal/protocol"
)

// Builder resolves a Declaration into TargetConfigs. It keeps its own copy
// of the declaration and never modifies it.
type Builder struct {
	decl Declaration
}

// NewBuilder returns a Builder for decl.
func NewBuilder(decl Declaration) *Builder {
	return &Builder{decl: decl}
}

// Build returns a fresh TargetConfig covering the remotes in scope, or every
// declared remote when scope is empty. Nothing in the result aliases the
// declaration or any earlier result.
func (b *Builder) Build(scope []chain.EndpointID) (*TargetConfig, error) {
	d := b.decl

	stage, err := chain.ParseStage(d.Stage)
	if err != nil {
		return nil, fmt.Errorf("build config: %w", err)
	}
	if d.Local.ID == 0 {
		return nil, fmt.Errorf("build config: local chain id is required")
	}
	local := chain.Chain{ID: chain.EndpointID(d.Local.ID), Name: d.Local.Name, Family: chain.FamilyLocal}

	remotes, err := b.selectRemotes(scope)
	if err != nil {
		return nil, fmt.Errorf("build config: %w", err)
	}

	chains := []chain.Chain{local}
	for _, rd := range remotes {
		c, err := remoteChain(rd)
		if err != nil {
			return nil, fmt.Errorf("build config: %w", err)
		}
		chains = append(chains, c)
	}
	registry, err := chain.NewRegistry(chains...)
	if err != nil {
		return nil, fmt.Errorf("build config: %w", err)
	}

	cfg := &TargetConfig{
		Stage:    stage,
		Local:    local,
		LocalRPC: d.Local.RPC,
		Chains:   registry,
		Addresses: protocol.Addresses{
			LayerZero: d.Addresses.LayerZero,
			Oracle:    d.Addresses.Oracle,
			Bridge:    d.Addresses.Bridge,
		},
		Msglib:   Msglib{SendVersion: d.Msglib.SendVersion, ReceiveVersion: d.Msglib.ReceiveVersion},
		Executor: Executor{Address: d.Executor.Address, Version: d.Executor.Version},
		Relayer:  Relayer{Signer: d.Relayer.Signer},
		Oracle: Oracle{
			Signer:     d.Oracle.Signer,
			Threshold:  d.Oracle.Threshold,
			Validators: validators(d.Oracle.Validators),
		},
		Bridge: Bridge{CustomAdapterParams: d.Bridge.CustomAdapterParams},
	}

	for _, cd := range d.Bridge.Coins {
		coin, err := b.coin(cd, registry)
		if err != nil {
			return nil, fmt.Errorf("build config: %w", err)
		}
		cfg.Bridge.Coins = append(cfg.Bridge.Coins, coin)
	}

	for i, rd := range remotes {
		cfg.Remotes = append(cfg.Remotes, b.remote(rd, chains[i+1], stage, local, cfg.Bridge.Coins))
	}
	return cfg, nil
}

func (b *Builder) selectRemotes(scope []chain.EndpointID) ([]RemoteDecl, error) {
	var out []RemoteDecl
	if len(scope) == 0 {
		out = slices.Clone(b.decl.Remotes)
	}
	scope = slices.Compact(slices.Sorted(slices.Values(scope)))
	for _, id := range scope {
		i := slices.IndexFunc(b.decl.Remotes, func(r RemoteDecl) bool { return chain.EndpointID(r.ID) == id })
		if i < 0 {
			return nil, fmt.Errorf("remote %d is not declared", id)
		}
		out = append(out, b.decl.Remotes[i])
	}
	slices.SortStableFunc(out, func(x, y RemoteDecl) int { return int(x.ID) - int(y.ID) })
	return out, nil
}

func remoteChain(rd RemoteDecl) (chain.Chain, error) {
	var family chain.Family
	switch f := chain.Family(strings.ToLower(rd.Family)); f {
	case chain.FamilyEVM, chain.FamilyLocal:
		family = f
	case "":
		family = chain.FamilyEVM
	default:
		return chain.Chain{}, fmt.Errorf("remote %d: unknown family %q", rd.ID, rd.Family)
	}
	if rd.ID == 0 {
		return chain.Chain{}, fmt.Errorf("remote %q: id is required", rd.Name)
	}
	return chain.Chain{ID: chain.EndpointID(rd.ID), Name: rd.Name, Family: family, AddressWidth: rd.AddressWidth}, nil
}

func validators(decls []ValidatorDecl) []Validator {
	out := make([]Validator, 0, len(decls))
	for _, v := range decls {
		active := true
		if v.Active != nil {
			active = *v.Active
		}
		out = append(out, Validator{Address: v.Address, Active: active})
	}
	return out
}

func (b *Builder) coin(cd CoinDecl, registry *chain.Registry) (Coin, error) {
	if cd.Symbol == "" {
		return Coin{}, fmt.Errorf("coin %q: symbol is required", cd.Name)
	}
	def := limiter.Default()
	coin := Coin{
		Symbol:   cd.Symbol,
		Name:     cd.Name,
		Decimals: cd.Decimals,
		Limiter:  CoinLimiter{Enabled: def.Enabled, CapSD: def.CapSD, WindowSec: def.WindowSec},
	}
	if cd.Limiter != nil {
		coin.Limiter = CoinLimiter{Enabled: cd.Limiter.Enabled, CapSD: cd.Limiter.CapSD, WindowSec: cd.Limiter.WindowSec}
		if coin.Limiter.CapSD == 0 {
			coin.Limiter.CapSD = def.CapSD
		}
		if coin.Limiter.WindowSec == 0 {
			coin.Limiter.WindowSec = def.WindowSec
		}
	}
	for _, rc := range cd.Remotes {
		id := chain.EndpointID(rc.ChainID)
		if _, ok := registry.Lookup(id); !ok {
			if !b.declared(id) {
				return Coin{}, fmt.Errorf("coin %s: remote %d is not declared", cd.Symbol, id)
			}
			continue
		}
		coin.Remotes = append(coin.Remotes, RemoteCoin{ChainID: id, Address: rc.Address, Unwrappable: rc.Unwrappable})
	}
	slices.SortFunc(coin.Remotes, func(x, y RemoteCoin) int { return int(x.ChainID) - int(y.ChainID) })
	return coin, nil
}

func (b *Builder) declared(id chain.EndpointID) bool {
	return slices.ContainsFunc(b.decl.Remotes, func(r RemoteDecl) bool { return chain.EndpointID(r.ID) == id })
}

func (b *Builder) remote(rd RemoteDecl, c chain.Chain, stage chain.Stage, local chain.Chain, coins []Coin) Remote {
	d := b.decl

	conf := d.Msglib.Confirmations
	if rd.Confirmations != nil {
		conf = *rd.Confirmations
	}
	app := AppConfig{
		Oracle:                d.Oracle.Signer,
		Relayer:               d.Relayer.Signer,
		InboundConfirmations:  conf.Inbound,
		OutboundConfirmations: conf.Outbound,
	}
	if rd.AppConfig != nil {
		if rd.AppConfig.Oracle != "" {
			app.Oracle = rd.AppConfig.Oracle
		}
		if rd.AppConfig.Relayer != "" {
			app.Relayer = rd.AppConfig.Relayer
		}
	}

	gas := d.Executor.GasLimit
	if rd.GasLimit != nil {
		gas = *rd.GasLimit
	}
	execFee := d.Executor.Fee
	if rd.ExecutorFee != nil {
		execFee = *rd.ExecutorFee
	}
	relayerFee := d.Relayer.Fee
	if rd.RelayerFee != nil {
		relayerFee = *rd.RelayerFee
	}
	oracleFee := d.Oracle.Fee
	if rd.OracleFee != nil {
		oracleFee = *rd.OracleFee
	}

	r := Remote{
		Chain:         c,
		LocalID:       stage.RemoteID(c.ID),
		RPC:           rd.RPC,
		AddressSize:   uint64(c.Width()),
		AppConfig:     app,
		AdapterParams: adapterparams.BuildDefault(gas),
		ExecutorFee: adapterparams.ExecutorFee{
			AirdropAmtCap: execFee.AirdropAmtCap,
			PriceRatio:    execFee.PriceRatio,
			GasPrice:      execFee.GasPrice,
		},
		RelayerFee: RelayerFee{BaseFee: relayerFee.BaseFee, FeePerByte: relayerFee.FeePerByte},
		OracleFee:  oracleFee,
	}

	if rd.Bridge == nil || rd.Bridge.Address == "" {
		return r
	}
	r.Peer = rd.Bridge.Address
	r.MinDstGas = d.Bridge.MinDstGas
	if rd.Bridge.MinDstGas != nil {
		r.MinDstGas = *rd.Bridge.MinDstGas
	}
	if c.Family != chain.FamilyEVM {
		return r
	}

	evm := &EVMBridge{
		Address:             rd.Bridge.Address,
		CustomAdapterParams: d.Bridge.EVM.CustomAdapterParams,
		FeeBP:               d.Bridge.EVM.FeeBP,
		LocalID:             stage.RemoteID(local.ID),
		MinDstGas:           d.Bridge.EVM.MinDstGas,
		WETH:                rd.Bridge.WETH,
	}
	if rd.Bridge.CustomAdapterParams != nil {
		evm.CustomAdapterParams = *rd.Bridge.CustomAdapterParams
	}
	if rd.Bridge.FeeBP != nil {
		evm.FeeBP = *rd.Bridge.FeeBP
	}
	if rd.Bridge.EVMMinDstGas != nil {
		evm.MinDstGas = *rd.Bridge.EVMMinDstGas
	}
	for _, coin := range coins {
		for _, rc := range coin.Remotes {
			if rc.ChainID == c.ID && rc.Address != "" {
				evm.Tokens = append(evm.Tokens, rc.Address)
			}
		}
	}
	r.EVM = evm
	return r
}
