package config

import (
	"github.com/roach88/omniwire/internal/adapterparams"
	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/protocol"
)

// TargetConfig is the resolved configuration for one run. Per-remote values
// exist only for remotes in scope.
type TargetConfig struct {
	Stage     chain.Stage
	Local     chain.Chain
	LocalRPC  string
	Chains    *chain.Registry
	Addresses protocol.Addresses
	Msglib    Msglib
	Executor  Executor
	Relayer   Relayer
	Oracle    Oracle
	Bridge    Bridge
	Remotes   []Remote
}

type Msglib struct {
	SendVersion    SemVer
	ReceiveVersion SemVer
}

type Executor struct {
	Address string
	Version uint64
}

type Relayer struct {
	Signer string
}

type Validator struct {
	Address string
	Active  bool
}

type Oracle struct {
	Signer     string
	Threshold  uint64
	Validators []Validator
}

type Bridge struct {
	CustomAdapterParams bool
	Coins               []Coin
}

// Coin is a bridged asset. Remotes lists only in-scope chains.
type Coin struct {
	Symbol   string
	Name     string
	Decimals uint8
	Limiter  CoinLimiter
	Remotes  []RemoteCoin
}

type CoinLimiter struct {
	Enabled   bool
	CapSD     uint64
	WindowSec uint64
}

type RemoteCoin struct {
	ChainID     chain.EndpointID
	Address     string
	Unwrappable bool
}

type AppConfig struct {
	Oracle                string
	Relayer               string
	InboundConfirmations  uint64
	OutboundConfirmations uint64
}

type RelayerFee struct {
	BaseFee    uint64
	FeePerByte uint64
}

// Remote is one remote chain with every per-remote value resolved.
type Remote struct {
	Chain chain.Chain
	// LocalID is the id the local ledger knows this chain by.
	LocalID       chain.EndpointID
	RPC           string
	AddressSize   uint64
	AppConfig     AppConfig
	AdapterParams []byte
	ExecutorFee   adapterparams.ExecutorFee
	RelayerFee    RelayerFee
	OracleFee     uint64
	// Peer is the bridge on the remote, as declared. Empty when the remote
	// has no bridge.
	Peer      string
	MinDstGas uint64
	// EVM is set for EVM remotes with a peer bridge.
	EVM *EVMBridge
}

// EVMBridge is the target state of the TokenBridge on one EVM remote.
type EVMBridge struct {
	Address             string
	CustomAdapterParams bool
	FeeBP               uint64
	// LocalID is the id the EVM chain knows the local ledger by.
	LocalID   chain.EndpointID
	MinDstGas uint64
	Tokens    []string
	WETH      string
}

// Remote returns the in-scope remote with lookup id.
func (c *TargetConfig) Remote(id chain.EndpointID) (Remote, bool) {
	for _, r := range c.Remotes {
		if r.Chain.ID == id {
			return r, true
		}
	}
	return Remote{}, false
}
