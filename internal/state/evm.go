package state

import (
	"context"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/protocol"
)

// The EVM reads below call TokenBridge view functions on an EVM ledger
// client: the module is the contract address and the key is the method.

// EVMCustomAdapterParams reads useCustomAdapterParams().
func (r *Reader) EVMCustomAdapterParams(ctx context.Context, bridge string) (bool, error) {
	return optional(ctx, r, FieldEVMCustomAdapterParams, func(ctx context.Context) (bool, error) {
		v, err := r.client.ReadNamedValue(ctx, bridge, protocol.EvmUseCustomAdapterParams)
		if err != nil {
			return false, err
		}
		return v.Bool()
	})
}

// EVMBridgeFeeBP reads bridgeFeeBP().
func (r *Reader) EVMBridgeFeeBP(ctx context.Context, bridge string) (uint64, error) {
	return optional(ctx, r, FieldEVMBridgeFeeBP, func(ctx context.Context) (uint64, error) {
		v, err := r.client.ReadNamedValue(ctx, bridge, protocol.EvmBridgeFeeBP)
		if err != nil {
			return 0, err
		}
		return v.Uint64()
	})
}

// EVMTrustedRemote reads isTrustedRemote(localID, path).
func (r *Reader) EVMTrustedRemote(ctx context.Context, bridge string, localID chain.EndpointID, path []byte) (bool, error) {
	return optional(ctx, r, FieldEVMTrustedRemote, func(ctx context.Context) (bool, error) {
		v, err := r.client.ReadNamedValue(ctx, bridge, protocol.EvmIsTrustedRemote, ir.U64(uint64(localID)), ir.BytesOf(path))
		if err != nil {
			return false, err
		}
		return v.Bool()
	})
}

// EVMMinDstGas reads minDstGasLookup(localID, SEND_TO_LOCAL).
func (r *Reader) EVMMinDstGas(ctx context.Context, bridge string, localID chain.EndpointID) (uint64, error) {
	return optional(ctx, r, FieldEVMMinDstGas, func(ctx context.Context) (uint64, error) {
		v, err := r.client.ReadNamedValue(ctx, bridge, protocol.EvmMinDstGasLookup,
			ir.U64(uint64(localID)), ir.U64(protocol.EvmPacketTypeSendToLocal))
		if err != nil {
			return 0, err
		}
		return v.Uint64()
	})
}

// EVMTokenSupported reads supportedTokens(token).
func (r *Reader) EVMTokenSupported(ctx context.Context, bridge, token string) (bool, error) {
	return optional(ctx, r, FieldEVMTokenSupported, func(ctx context.Context) (bool, error) {
		v, err := r.client.ReadNamedValue(ctx, bridge, protocol.EvmSupportedTokens, ir.String(token))
		if err != nil {
			return false, err
		}
		return v.Bool()
	})
}

// EVMWETH reads weth().
func (r *Reader) EVMWETH(ctx context.Context, bridge string) (string, error) {
	return optional(ctx, r, FieldEVMWETH, func(ctx context.Context) (string, error) {
		v, err := r.client.ReadNamedValue(ctx, bridge, protocol.EvmWETH)
		if err != nil {
			return "", err
		}
		return v.String()
	})
}
