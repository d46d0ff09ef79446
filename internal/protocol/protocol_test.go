package protocol

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omniwire/internal/ir"
)

func TestAddresses_Types(t *testing.T) {
	a := Addresses{LayerZero: "0xa", Oracle: "0xo", Bridge: "0xb"}

	assert.Equal(t, "0xa::uln_config::ChainConfig", a.ChainConfig())
	assert.Equal(t, "0xb::coin_bridge::CoinStore<0xb::asset::WETH>", a.CoinStore(a.CoinType("weth")))
	assert.Equal(t, "0xb::limiter::Limiter<0xb::asset::USDC>", a.Limiter(a.CoinType("USDC")))
	assert.Equal(t, "0xo::oracle::Config", a.OracleConfig())
}

func TestSplitModule(t *testing.T) {
	addr, name, ok := SplitModule("0xa::uln_config")
	assert.True(t, ok)
	assert.Equal(t, "0xa", addr)
	assert.Equal(t, "uln_config", name)

	_, _, ok = SplitModule("uln_config")
	assert.False(t, ok)
}

func TestPackCall(t *testing.T) {
	contract, err := TokenBridgeABI()
	require.NoError(t, err)

	data, err := PackCall(contract, EvmSetMinDstGas, ir.List(ir.U64(10108), ir.U64(0), ir.U64(150000)))
	require.NoError(t, err)
	assert.Equal(t, contract.Methods[EvmSetMinDstGas].ID, data[:4])
	assert.Len(t, data, 4+3*32)
	assert.Equal(t, "00000000000000000000000000000000000000000000000000000000000249f0", hex.EncodeToString(data[4+64:]))

	data, err = PackCall(contract, EvmRegisterToken, ir.List(ir.String("0x2afd0d8a477ad393d2234253407fb1cec92749d1")))
	require.NoError(t, err)
	assert.Equal(t, "0000000000000000000000002afd0d8a477ad393d2234253407fb1cec92749d1", hex.EncodeToString(data[4:]))
}

func TestPackCall_Rejects(t *testing.T) {
	contract, err := TokenBridgeABI()
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		args   ir.Array
	}{
		{"unknown method", "mint", nil},
		{"arity", EvmSetBridgeFeeBP, nil},
		{"uint16 overflow", EvmMinDstGasLookup, ir.List(ir.U64(70000), ir.U64(0))},
		{"bad address", EvmRegisterToken, ir.List(ir.String("0x12"))},
		{"wrong kind", EvmSetUseCustomAdapterParams, ir.List(ir.U64(1))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PackCall(contract, tt.method, tt.args)
			assert.Error(t, err)
		})
	}
}

func TestTrustedRemotePath(t *testing.T) {
	path, err := TrustedRemotePath("0xb3", "0x2afd0d8a477ad393d2234253407fb1cec92749d1")
	require.NoError(t, err)
	require.Len(t, path, 52)
	assert.Equal(t, byte(0xb3), path[31])
	assert.Equal(t, "2afd0d8a477ad393d2234253407fb1cec92749d1", hex.EncodeToString(path[32:]))

	_, err = TrustedRemotePath("0xb3", "0x2afd")
	assert.Error(t, err)
}
