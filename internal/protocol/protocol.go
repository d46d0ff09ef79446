// Package protocol names the on-chain modules, resources and entry
// functions of the messaging protocol on the local ledger.
//
// The state reader, the transaction builder and the in-memory ledger all
// address the protocol through these names, so a read always lands where
// the matching write puts its data.
package protocol

import (
	"fmt"
	"strings"
)

// Addresses are the accounts the protocol modules are published under.
type Addresses struct {
	// LayerZero owns the endpoint, messaging library, executor and app
	// helper modules.
	LayerZero string
	Oracle    string
	Bridge    string
}

// Module names.
const (
	ModULNConfig      = "uln_config"
	ModMsglibConfig   = "msglib_config"
	ModExecutorConfig = "executor_config"
	ModExecutorV1     = "executor_v1"
	ModULNSigner      = "uln_signer"
	ModOracle         = "oracle"
	ModCoinBridge     = "coin_bridge"
	ModLimiter        = "limiter"
	ModRemote         = "remote"
	ModLzApp          = "lzapp"
	ModSemver         = "semver"
)

// Entry functions.
const (
	FnSetChainAddressSize     = "set_chain_address_size"
	FnSetDefaultConfig        = "set_default_config"
	FnSetDefaultSendMsglib    = "set_default_send_msglib"
	FnSetDefaultReceiveMsglib = "set_default_receive_msglib"
	FnSetDefaultExecutor      = "set_default_executor"
	FnSetDefaultAdapterParams = "set_default_adapter_params"
	FnRegister                = "register"
	FnSetFee                  = "set_fee"
	FnSetValidator            = "set_validator"
	FnSetThreshold            = "set_threshold"
	FnEnableCustomAdapter     = "enable_custom_adapter_params"
	FnRegisterCoin            = "register_coin"
	FnSetLimiterCap           = "set_limiter_cap"
	FnSetRemoteCoin           = "set_remote_coin"
	FnSetRemote               = "set"
	FnSetMinDstGas            = "set_min_dst_gas"
)

// Well-known globals.
const (
	TimestampModule = "0x1::timestamp"
	TimestampKey    = "now_microseconds"
)

// PacketTypeSend is the bridge packet type used for min-dst-gas lookups.
const PacketTypeSend = 1

// Module returns the qualified module name address::name.
func Module(address, name string) string {
	return address + "::" + name
}

// Type returns the qualified type address::module::name, with optional
// generic arguments.
func Type(address, module, name string, typeArgs ...string) string {
	t := fmt.Sprintf("%s::%s::%s", address, module, name)
	if len(typeArgs) > 0 {
		t += "<" + strings.Join(typeArgs, ", ") + ">"
	}
	return t
}

// SplitModule splits address::name.
func SplitModule(qualified string) (address, name string, ok bool) {
	i := strings.LastIndex(qualified, "::")
	if i < 0 {
		return "", "", false
	}
	return qualified[:i], qualified[i+2:], true
}

// Resources on the LayerZero account.
func (a Addresses) ChainConfig() string {
	return Type(a.LayerZero, ModULNConfig, "ChainConfig")
}
func (a Addresses) DefaultULNConfig() string {
	return Type(a.LayerZero, ModULNConfig, "DefaultUlnConfig")
}
func (a Addresses) ULNConfigValue() string {
	return Type(a.LayerZero, ModULNConfig, "UlnConfig")
}
func (a Addresses) MsglibConfig() string {
	return Type(a.LayerZero, ModMsglibConfig, "MsgLibConfig")
}
func (a Addresses) SemVer() string {
	return Type(a.LayerZero, ModSemver, "SemVer")
}
func (a Addresses) ExecutorConfigStore() string {
	return Type(a.LayerZero, ModExecutorConfig, "ConfigStore")
}
func (a Addresses) ExecutorConfigValue() string {
	return Type(a.LayerZero, ModExecutorConfig, "Config")
}
func (a Addresses) AdapterParamsConfig() string {
	return Type(a.LayerZero, ModExecutorV1, "AdapterParamsConfig")
}

// ExecutorConfig is stored under the executor's own account.
func (a Addresses) ExecutorConfig() string {
	return Type(a.LayerZero, ModExecutorV1, "ExecutorConfig")
}
func (a Addresses) ExecutorFee() string {
	return Type(a.LayerZero, ModExecutorV1, "Fee")
}

// SignerConfig is stored under a relayer or oracle signer's account.
func (a Addresses) SignerConfig() string {
	return Type(a.LayerZero, ModULNSigner, "Config")
}
func (a Addresses) SignerFee() string {
	return Type(a.LayerZero, ModULNSigner, "Fee")
}

// Resources on the oracle account.
func (a Addresses) OracleConfig() string {
	return Type(a.Oracle, ModOracle, "Config")
}

// Resources on the bridge account.
func (a Addresses) BridgeConfig() string {
	return Type(a.Bridge, ModCoinBridge, "Config")
}
func (a Addresses) CoinStore(coinType string) string {
	return Type(a.Bridge, ModCoinBridge, "CoinStore", coinType)
}
func (a Addresses) RemoteCoin() string {
	return Type(a.Bridge, ModCoinBridge, "RemoteCoin")
}
func (a Addresses) Limiter(coinType string) string {
	return Type(a.Bridge, ModLimiter, "Limiter", coinType)
}
func (a Addresses) BridgeUA() string {
	return Type(a.Bridge, ModCoinBridge, "BridgeUA")
}
func (a Addresses) Remotes() string {
	return Type(a.LayerZero, ModRemote, "Remotes")
}
func (a Addresses) LzAppConfig() string {
	return Type(a.LayerZero, ModLzApp, "Config")
}
func (a Addresses) LzAppPath() string {
	return Type(a.LayerZero, ModLzApp, "Path")
}

// CoinType returns the Move type of a bridged coin symbol.
func (a Addresses) CoinType(symbol string) string {
	return Type(a.Bridge, "asset", strings.ToUpper(symbol))
}
