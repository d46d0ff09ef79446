package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/fault"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/ledger/memledger"
	"github.com/roach88/omniwire/internal/protocol"
)

const evmBridge = "0x2afd0d8a477ad393d2234253407fb1cec92749d1"

func testConfig(t *testing.T) *config.TargetConfig {
	t.Helper()
	decl := config.Declaration{
		Stage:     "sandbox",
		Local:     config.ChainDecl{ID: 10108, Name: "aptos"},
		Addresses: config.AddressesDecl{LayerZero: "0xa", Oracle: "0xc", Bridge: "0xb"},
		Remotes: []config.RemoteDecl{{
			ChainDecl: config.ChainDecl{ID: 10121, Name: "ethereum"},
			Family:    "evm",
			Bridge:    &config.RemoteBridgeDecl{Address: evmBridge, WETH: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"},
		}},
		Executor: config.ExecutorDecl{Address: "0xe1", Version: 1, GasLimit: 150000},
		Relayer:  config.RelayerDecl{Signer: "0xd1"},
		Oracle: config.OracleDecl{
			Signer:     "0xf1",
			Threshold:  1,
			Validators: []config.ValidatorDecl{{Address: "0x1001"}, {Address: "0x1002"}},
		},
		Bridge: config.BridgeDecl{
			Coins: []config.CoinDecl{{
				Symbol:  "WETH",
				Name:    "Wrapped Ether",
				Remotes: []config.RemoteCoinDecl{{ChainID: 10121, Address: "0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"}},
			}},
		},
	}
	cfg, err := config.NewBuilder(decl).Build(nil)
	require.NoError(t, err)
	return cfg
}

// evmFake answers TokenBridge view calls from a map keyed by method.
type evmFake map[string]ledger.Value

func (f evmFake) ReadNamedValue(_ context.Context, module, key string, _ ...ir.Value) (ledger.Value, error) {
	if v, ok := f[key]; ok {
		return v, nil
	}
	return nil, fault.NotFound("evm_fake", module+"."+key)
}
func (evmFake) ReadTableEntry(context.Context, ledger.TableQuery) (ledger.Value, error) {
	return nil, fault.NotFound("evm_fake", "table")
}
func (evmFake) ReadAccountModuleState(context.Context, string, string) (ledger.Value, error) {
	return nil, fault.NotFound("evm_fake", "account")
}

func TestRead_FreshLedgerFailsOnFieldsWithoutDefault(t *testing.T) {
	cfg := testConfig(t)
	m := memledger.New(cfg.Addresses)

	_, err := Read(context.Background(), cfg, Sources{Local: NewReader(m, cfg.Addresses)}, 4)
	require.Error(t, err)
	assert.True(t, fault.IsNoDefault(err))
}

func TestRead_Snapshot(t *testing.T) {
	cfg := testConfig(t)
	m := memledger.New(cfg.Addresses)
	require.NoError(t, m.PutResource("0xc", cfg.Addresses.OracleConfig(), map[string]any{
		"threshold":     "1",
		"validators":    map[string]bool{"0x1001": true},
		"resource_addr": "0xf1",
	}))
	require.NoError(t, m.PutResource("0xb", cfg.Addresses.BridgeConfig(), map[string]any{"custom_adapter_params": true}))

	evm := evmFake{
		protocol.EvmUseCustomAdapterParams: ledger.ValueOf(true),
		protocol.EvmBridgeFeeBP:            ledger.ValueOf("5"),
		protocol.EvmSupportedTokens:        ledger.ValueOf(true),
		protocol.EvmWETH:                   ledger.ValueOf("0x0000000000000000000000000000000000000000"),
	}
	src := Sources{
		Local: NewReader(m, cfg.Addresses),
		EVM:   map[chain.EndpointID]*Reader{10121: NewReader(evm, protocol.Addresses{})},
	}

	snap, err := Read(context.Background(), cfg, src, 3)
	require.NoError(t, err)

	assert.False(t, snap.ExecutorRegistered)
	assert.Equal(t, uint64(1), snap.OracleThreshold)
	assert.True(t, snap.CustomAdapterParams)
	assert.Equal(t, []bool{true, false}, snap.Validators)

	require.Len(t, snap.Remotes, 1)
	rs := snap.Remotes[0]
	assert.Zero(t, rs.AddressSize)
	assert.Empty(t, rs.Peer)

	require.NotNil(t, rs.EVM)
	assert.True(t, rs.EVM.CustomAdapterParams)
	assert.Equal(t, uint64(5), rs.EVM.FeeBP)
	assert.False(t, rs.EVM.TrustedRemote, "not found reads as untrusted")
	assert.Equal(t, []bool{true}, rs.EVM.Tokens)
	assert.True(t, chain.IsZeroAddress(rs.EVM.WETH))

	require.Len(t, snap.Coins, 1)
	assert.False(t, snap.Coins[0].Registered)
	assert.Equal(t, []RemoteCoin{{}}, snap.Coins[0].Remotes)
}

func TestRead_SkipsEVMWithoutClient(t *testing.T) {
	cfg := testConfig(t)
	m := memledger.New(cfg.Addresses)
	require.NoError(t, m.PutResource("0xc", cfg.Addresses.OracleConfig(), map[string]any{"threshold": "1"}))
	require.NoError(t, m.PutResource("0xb", cfg.Addresses.BridgeConfig(), map[string]any{"custom_adapter_params": false}))

	snap, err := Read(context.Background(), cfg, Sources{Local: NewReader(m, cfg.Addresses)}, 1)
	require.NoError(t, err)
	assert.Nil(t, snap.Remotes[0].EVM)
}
