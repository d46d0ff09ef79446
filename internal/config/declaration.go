// Package config turns an operator's declaration into the TargetConfig a
// reconciliation run converges on.
//
// A Declaration is what the operator writes, in YAML or CUE. Domain-level
// defaults apply to every remote chain unless the remote overrides them.
// Builder resolves the declaration against a chain scope into a fresh
// TargetConfig on every call.
package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"
)

// Declaration is the operator's declared configuration.
type Declaration struct {
	Stage     string        `json:"stage" yaml:"stage"`
	Local     ChainDecl     `json:"local" yaml:"local"`
	Remotes   []RemoteDecl  `json:"remotes" yaml:"remotes"`
	Addresses AddressesDecl `json:"addresses" yaml:"addresses"`
	Msglib    MsglibDecl    `json:"msglib" yaml:"msglib"`
	Executor  ExecutorDecl  `json:"executor" yaml:"executor"`
	Relayer   RelayerDecl   `json:"relayer" yaml:"relayer"`
	Oracle    OracleDecl    `json:"oracle" yaml:"oracle"`
	Bridge    BridgeDecl    `json:"bridge" yaml:"bridge"`
}

// ChainDecl identifies a chain. ID is the lookup id; the id used on chain
// is derived from it and the stage.
type ChainDecl struct {
	ID   uint16 `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
	RPC  string `json:"rpc,omitempty" yaml:"rpc,omitempty"`
}

// RemoteDecl is a remote chain and its per-chain overrides. Nil overrides
// take the domain default.
type RemoteDecl struct {
	ChainDecl `yaml:",inline"`

	Family        string             `json:"family" yaml:"family"`
	AddressWidth  int                `json:"address_width,omitempty" yaml:"address_width,omitempty"`
	Confirmations *Confirmations     `json:"confirmations,omitempty" yaml:"confirmations,omitempty"`
	GasLimit      *uint64            `json:"gas_limit,omitempty" yaml:"gas_limit,omitempty"`
	ExecutorFee   *ExecutorFeeDecl   `json:"executor_fee,omitempty" yaml:"executor_fee,omitempty"`
	RelayerFee    *RelayerFeeDecl    `json:"relayer_fee,omitempty" yaml:"relayer_fee,omitempty"`
	OracleFee     *uint64            `json:"oracle_fee,omitempty" yaml:"oracle_fee,omitempty"`
	Bridge        *RemoteBridgeDecl  `json:"bridge,omitempty" yaml:"bridge,omitempty"`
	AppConfig     *AppConfigOverride `json:"app_config,omitempty" yaml:"app_config,omitempty"`
}

// AddressesDecl are the accounts the protocol is published under.
type AddressesDecl struct {
	LayerZero string `json:"layerzero" yaml:"layerzero"`
	Oracle    string `json:"oracle" yaml:"oracle"`
	Bridge    string `json:"bridge" yaml:"bridge"`
}

// SemVer is a message library version.
type SemVer struct {
	Major uint64 `json:"major" yaml:"major"`
	Minor uint64 `json:"minor" yaml:"minor"`
}

func (v SemVer) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Confirmations are block confirmation counts for one path.
type Confirmations struct {
	Inbound  uint64 `json:"inbound" yaml:"inbound"`
	Outbound uint64 `json:"outbound" yaml:"outbound"`
}

// AppConfigOverride replaces the oracle or relayer of a remote's default
// app config.
type AppConfigOverride struct {
	Oracle  string `json:"oracle,omitempty" yaml:"oracle,omitempty"`
	Relayer string `json:"relayer,omitempty" yaml:"relayer,omitempty"`
}

type MsglibDecl struct {
	SendVersion    SemVer        `json:"send_version" yaml:"send_version"`
	ReceiveVersion SemVer        `json:"receive_version" yaml:"receive_version"`
	Confirmations  Confirmations `json:"confirmations" yaml:"confirmations"`
}

type ExecutorFeeDecl struct {
	AirdropAmtCap uint64 `json:"airdrop_amt_cap" yaml:"airdrop_amt_cap"`
	PriceRatio    uint64 `json:"price_ratio" yaml:"price_ratio"`
	GasPrice      uint64 `json:"gas_price" yaml:"gas_price"`
}

type ExecutorDecl struct {
	Address  string          `json:"address" yaml:"address"`
	Version  uint64          `json:"version" yaml:"version"`
	GasLimit uint64          `json:"gas_limit" yaml:"gas_limit"`
	Fee      ExecutorFeeDecl `json:"fee" yaml:"fee"`
}

type RelayerFeeDecl struct {
	BaseFee    uint64 `json:"base_fee" yaml:"base_fee"`
	FeePerByte uint64 `json:"fee_per_byte" yaml:"fee_per_byte"`
}

type RelayerDecl struct {
	Signer string         `json:"signer" yaml:"signer"`
	Fee    RelayerFeeDecl `json:"fee" yaml:"fee"`
}

type ValidatorDecl struct {
	Address string `json:"address" yaml:"address"`
	// Active defaults to true.
	Active *bool `json:"active,omitempty" yaml:"active,omitempty"`
}

type OracleDecl struct {
	// Signer is the oracle's resource account; it is the oracle address
	// written into default app configs.
	Signer     string          `json:"signer" yaml:"signer"`
	Threshold  uint64          `json:"threshold" yaml:"threshold"`
	Validators []ValidatorDecl `json:"validators" yaml:"validators"`
	Fee        uint64          `json:"fee" yaml:"fee"`
}

type BridgeDecl struct {
	CustomAdapterParams bool          `json:"custom_adapter_params" yaml:"custom_adapter_params"`
	MinDstGas           uint64        `json:"min_dst_gas" yaml:"min_dst_gas"`
	EVM                 EVMBridgeDecl `json:"evm" yaml:"evm"`
	Coins               []CoinDecl    `json:"coins" yaml:"coins"`
}

// EVMBridgeDecl holds defaults for the TokenBridge on EVM remotes.
type EVMBridgeDecl struct {
	CustomAdapterParams bool   `json:"custom_adapter_params" yaml:"custom_adapter_params"`
	FeeBP               uint64 `json:"fee_bp" yaml:"fee_bp"`
	MinDstGas           uint64 `json:"min_dst_gas" yaml:"min_dst_gas"`
}

// RemoteBridgeDecl is the peer bridge on one remote. EVM fields are used
// only when the remote is an EVM chain.
type RemoteBridgeDecl struct {
	Address             string  `json:"address" yaml:"address"`
	MinDstGas           *uint64 `json:"min_dst_gas,omitempty" yaml:"min_dst_gas,omitempty"`
	CustomAdapterParams *bool   `json:"custom_adapter_params,omitempty" yaml:"custom_adapter_params,omitempty"`
	FeeBP               *uint64 `json:"fee_bp,omitempty" yaml:"fee_bp,omitempty"`
	EVMMinDstGas        *uint64 `json:"evm_min_dst_gas,omitempty" yaml:"evm_min_dst_gas,omitempty"`
	WETH                string  `json:"weth,omitempty" yaml:"weth,omitempty"`
}

type LimiterDecl struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	CapSD     uint64 `json:"cap_sd" yaml:"cap_sd"`
	WindowSec uint64 `json:"window_sec" yaml:"window_sec"`
}

type RemoteCoinDecl struct {
	ChainID     uint16 `json:"chain_id" yaml:"chain_id"`
	Address     string `json:"address" yaml:"address"`
	Unwrappable bool   `json:"unwrappable" yaml:"unwrappable"`
}

type CoinDecl struct {
	Symbol   string           `json:"symbol" yaml:"symbol"`
	Name     string           `json:"name" yaml:"name"`
	Decimals uint8            `json:"decimals" yaml:"decimals"`
	Limiter  *LimiterDecl     `json:"limiter,omitempty" yaml:"limiter,omitempty"`
	Remotes  []RemoteCoinDecl `json:"remotes" yaml:"remotes"`
}

// Load reads a declaration file. The format follows the extension: .yaml
// and .yml are YAML, .cue is CUE.
func Load(path string) (Declaration, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return Declaration{}, fmt.Errorf("read declaration: %w", err)
		}
		return ParseYAML(data)
	case ".cue":
		return LoadCUE(path)
	default:
		return Declaration{}, fmt.Errorf("declaration %s: unsupported extension %q", path, ext)
	}
}

// ParseYAML decodes a YAML declaration. Unknown fields are rejected.
func ParseYAML(data []byte) (Declaration, error) {
	var decl Declaration
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&decl); err != nil {
		return Declaration{}, fmt.Errorf("parse declaration: %w", err)
	}
	return decl, nil
}

// LoadCUE evaluates a CUE declaration. The file may use CUE constraints and
// defaults; the result must be concrete.
func LoadCUE(path string) (Declaration, error) {
	ctx := cuecontext.New()
	instances := load.Instances([]string{filepath.Base(path)}, &load.Config{Dir: filepath.Dir(path)})
	if len(instances) == 0 {
		return Declaration{}, fmt.Errorf("load %s: no CUE instances", path)
	}
	inst := instances[0]
	if inst.Err != nil {
		return Declaration{}, fmt.Errorf("load %s: %w", path, inst.Err)
	}
	return decodeCUE(ctx.BuildInstance(inst))
}

// ParseCUE evaluates CUE source held in memory.
func ParseCUE(src []byte) (Declaration, error) {
	return decodeCUE(cuecontext.New().CompileBytes(src))
}

func decodeCUE(value cue.Value) (Declaration, error) {
	if err := value.Err(); err != nil {
		return Declaration{}, fmt.Errorf("build CUE value: %w", err)
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return Declaration{}, fmt.Errorf("validate CUE value: %w", err)
	}
	data, err := value.MarshalJSON()
	if err != nil {
		return Declaration{}, fmt.Errorf("export CUE value: %w", err)
	}
	var decl Declaration
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&decl); err != nil {
		return Declaration{}, fmt.Errorf("decode declaration: %w", err)
	}
	return decl, nil
}

// Hash fingerprints the declaration. Runs recorded from the same
// declaration share the hash regardless of source format.
func (d Declaration) Hash() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("hash declaration: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
