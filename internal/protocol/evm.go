package protocol

import (
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/ir"
)

// TokenBridge methods.
const (
	EvmUseCustomAdapterParams    = "useCustomAdapterParams"
	EvmSetUseCustomAdapterParams = "setUseCustomAdapterParams"
	EvmBridgeFeeBP               = "bridgeFeeBP"
	EvmSetBridgeFeeBP            = "setBridgeFeeBP"
	EvmIsTrustedRemote           = "isTrustedRemote"
	EvmSetTrustedRemote          = "setTrustedRemote"
	EvmMinDstGasLookup           = "minDstGasLookup"
	EvmSetMinDstGas              = "setMinDstGas"
	EvmSupportedTokens           = "supportedTokens"
	EvmRegisterToken             = "registerToken"
	EvmWETH                      = "weth"
	EvmSetWETH                   = "setWETH"
)

// EvmPacketTypeSendToLocal is the TokenBridge packet type for transfers
// toward the local ledger.
const EvmPacketTypeSendToLocal = 0

// EvmContractTokenBridge is the contract name used in reports.
const EvmContractTokenBridge = "TokenBridge"

const tokenBridgeABIJSON = `[
 {"type":"function","name":"useCustomAdapterParams","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"setUseCustomAdapterParams","stateMutability":"nonpayable","inputs":[{"name":"_useCustomAdapterParams","type":"bool"}],"outputs":[]},
 {"type":"function","name":"bridgeFeeBP","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"setBridgeFeeBP","stateMutability":"nonpayable","inputs":[{"name":"_bridgeFeeBP","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"isTrustedRemote","stateMutability":"view","inputs":[{"name":"_srcChainId","type":"uint16"},{"name":"_srcAddress","type":"bytes"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"setTrustedRemote","stateMutability":"nonpayable","inputs":[{"name":"_srcChainId","type":"uint16"},{"name":"_path","type":"bytes"}],"outputs":[]},
 {"type":"function","name":"minDstGasLookup","stateMutability":"view","inputs":[{"name":"_dstChainId","type":"uint16"},{"name":"_packetType","type":"uint16"}],"outputs":[{"name":"","type":"uint256"}]},
 {"type":"function","name":"setMinDstGas","stateMutability":"nonpayable","inputs":[{"name":"_dstChainId","type":"uint16"},{"name":"_packetType","type":"uint16"},{"name":"_minGas","type":"uint256"}],"outputs":[]},
 {"type":"function","name":"supportedTokens","stateMutability":"view","inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
 {"type":"function","name":"registerToken","stateMutability":"nonpayable","inputs":[{"name":"_token","type":"address"}],"outputs":[]},
 {"type":"function","name":"weth","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
 {"type":"function","name":"setWETH","stateMutability":"nonpayable","inputs":[{"name":"_weth","type":"address"}],"outputs":[]}
]`

// TokenBridgeABI returns the parsed TokenBridge ABI.
var TokenBridgeABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(tokenBridgeABIJSON))
})

// TrustedRemotePath is the path a TokenBridge trusts for the local ledger:
// the local bridge address padded to 32 bytes followed by the EVM bridge's
// own 20-byte address.
func TrustedRemotePath(localBridge, evmBridge string) ([]byte, error) {
	remote, err := chain.ParseAddress(localBridge)
	if err != nil {
		return nil, err
	}
	if len(remote) > chain.LocalAddressWidth {
		return nil, chain.CheckWidth("trusted remote path", remote, chain.LocalAddressWidth)
	}
	self, err := chain.ParseEVMAddress(evmBridge)
	if err != nil {
		return nil, err
	}
	return append(chain.Pad(remote, chain.LocalAddressWidth), self.Bytes()...), nil
}

// PackCall ABI-encodes a call to method with ir arguments converted to the
// method's input types.
func PackCall(contract abi.ABI, method string, args ir.Array) ([]byte, error) {
	m, ok := contract.Methods[method]
	if !ok {
		return nil, fmt.Errorf("abi has no method %q", method)
	}
	if len(m.Inputs) != len(args) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", method, len(m.Inputs), len(args))
	}
	goArgs := make([]any, len(args))
	for i, in := range m.Inputs {
		v, err := toABI(in.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("%s argument %d (%s): %w", method, i, in.Name, err)
		}
		goArgs[i] = v
	}
	return contract.Pack(method, goArgs...)
}

func toABI(t abi.Type, v ir.Value) (any, error) {
	switch t.T {
	case abi.BoolTy:
		b, ok := v.(ir.Bool)
		if !ok {
			return nil, fmt.Errorf("want bool, got %T", v)
		}
		return bool(b), nil
	case abi.UintTy:
		u, ok := v.(ir.Uint)
		if !ok {
			return nil, fmt.Errorf("want uint, got %T", v)
		}
		n := u.Big()
		if n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s overflows uint%d", u, t.Size)
		}
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		default:
			return new(big.Int).Set(n), nil
		}
	case abi.AddressTy:
		switch a := v.(type) {
		case ir.String:
			if !common.IsHexAddress(string(a)) {
				return nil, fmt.Errorf("%q is not an address", string(a))
			}
			return common.HexToAddress(string(a)), nil
		case ir.Bytes:
			raw := a.Raw()
			if len(raw) != common.AddressLength {
				return nil, fmt.Errorf("address is %d bytes", len(raw))
			}
			return common.BytesToAddress(raw), nil
		}
		return nil, fmt.Errorf("want address, got %T", v)
	case abi.BytesTy:
		b, ok := v.(ir.Bytes)
		if !ok {
			return nil, fmt.Errorf("want bytes, got %T", v)
		}
		return b.Raw(), nil
	default:
		return nil, fmt.Errorf("unsupported abi type %s", t.String())
	}
}
