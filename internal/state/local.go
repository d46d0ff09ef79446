package state

import (
	"context"
	"fmt"

	"github.com/roach88/omniwire/internal/adapterparams"
	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/fault"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/limiter"
	"github.com/roach88/omniwire/internal/protocol"
)

const keyU64 = "u64"

func remoteKey(remote chain.EndpointID) ir.Value { return ir.U64(uint64(remote)) }

// ChainAddressSize reads the peer address width registered for remote.
func (r *Reader) ChainAddressSize(ctx context.Context, remote chain.EndpointID) (uint64, error) {
	return optional(ctx, r, FieldChainAddressSize, func(ctx context.Context) (uint64, error) {
		v, err := r.resourceEntry(ctx, r.addrs.LayerZero, r.addrs.ChainConfig(), "chain_address_size", keyU64, keyU64, remoteKey(remote))
		if err != nil {
			return 0, err
		}
		return v.Uint64()
	})
}

// DefaultAppConfig reads the messaging library's default app config for
// remote.
func (r *Reader) DefaultAppConfig(ctx context.Context, remote chain.EndpointID) (config.AppConfig, error) {
	return optional(ctx, r, FieldDefaultAppConfig, func(ctx context.Context) (config.AppConfig, error) {
		v, err := r.resourceEntry(ctx, r.addrs.LayerZero, r.addrs.DefaultULNConfig(), "config", keyU64, r.addrs.ULNConfigValue(), remoteKey(remote))
		if err != nil {
			return config.AppConfig{}, err
		}
		var out config.AppConfig
		d := decoder{v: v}
		out.Oracle = d.str("oracle")
		out.Relayer = d.str("relayer")
		out.InboundConfirmations = d.uint("inbound_confirmations")
		out.OutboundConfirmations = d.uint("outbound_confirmations")
		return out, d.err
	})
}

// SendVersion reads the default send library version for remote.
func (r *Reader) SendVersion(ctx context.Context, remote chain.EndpointID) (config.SemVer, error) {
	return optional(ctx, r, FieldSendVersion, func(ctx context.Context) (config.SemVer, error) {
		return r.semver(ctx, "send_version", remote)
	})
}

// ReceiveVersion reads the default receive library version for remote.
func (r *Reader) ReceiveVersion(ctx context.Context, remote chain.EndpointID) (config.SemVer, error) {
	return optional(ctx, r, FieldReceiveVersion, func(ctx context.Context) (config.SemVer, error) {
		return r.semver(ctx, "receive_version", remote)
	})
}

func (r *Reader) semver(ctx context.Context, field string, remote chain.EndpointID) (config.SemVer, error) {
	v, err := r.resourceEntry(ctx, r.addrs.LayerZero, r.addrs.MsglibConfig(), field, keyU64, r.addrs.SemVer(), remoteKey(remote))
	if err != nil {
		return config.SemVer{}, err
	}
	d := decoder{v: v}
	out := config.SemVer{Major: d.uint("major"), Minor: d.uint("minor")}
	return out, d.err
}

// DefaultExecutor reads the default executor for remote.
func (r *Reader) DefaultExecutor(ctx context.Context, remote chain.EndpointID) (DefaultExecutor, error) {
	return optional(ctx, r, FieldDefaultExecutor, func(ctx context.Context) (DefaultExecutor, error) {
		v, err := r.resourceEntry(ctx, r.addrs.LayerZero, r.addrs.ExecutorConfigStore(), "config", keyU64, r.addrs.ExecutorConfigValue(), remoteKey(remote))
		if err != nil {
			return DefaultExecutor{}, err
		}
		d := decoder{v: v}
		out := DefaultExecutor{Version: d.uint("version"), Address: d.str("executor")}
		return out, d.err
	})
}

// DefaultAdapterParams reads the encoded default adapter params for remote.
func (r *Reader) DefaultAdapterParams(ctx context.Context, remote chain.EndpointID) ([]byte, error) {
	return optional(ctx, r, FieldDefaultAdapterParams, func(ctx context.Context) ([]byte, error) {
		v, err := r.resourceEntry(ctx, r.addrs.LayerZero, r.addrs.AdapterParamsConfig(), "params", keyU64, "vector<u8>", remoteKey(remote))
		if err != nil {
			return nil, err
		}
		return bytesOf(v)
	})
}

// ExecutorRegistered reports whether executor has registered its config.
func (r *Reader) ExecutorRegistered(ctx context.Context, executor string) (bool, error) {
	return r.exists(ctx, FieldExecutorRegistered, executor, r.addrs.ExecutorConfig())
}

// ExecutorFee reads an executor's fee schedule toward remote.
func (r *Reader) ExecutorFee(ctx context.Context, executor string, remote chain.EndpointID) (adapterparams.ExecutorFee, error) {
	return optional(ctx, r, FieldExecutorFee, func(ctx context.Context) (adapterparams.ExecutorFee, error) {
		v, err := r.resourceEntry(ctx, executor, r.addrs.ExecutorConfig(), "fee", keyU64, r.addrs.ExecutorFee(), remoteKey(remote))
		if err != nil {
			return adapterparams.ExecutorFee{}, err
		}
		d := decoder{v: v}
		out := adapterparams.ExecutorFee{
			AirdropAmtCap: d.uint("airdrop_amt_cap"),
			PriceRatio:    d.uint("price_ratio"),
			GasPrice:      d.uint("gas_price"),
		}
		return out, d.err
	})
}

// RelayerRegistered reports whether a relayer signer has registered.
func (r *Reader) RelayerRegistered(ctx context.Context, signer string) (bool, error) {
	return r.exists(ctx, FieldRelayerRegistered, signer, r.addrs.SignerConfig())
}

// RelayerFee reads a signer's fee toward remote.
func (r *Reader) RelayerFee(ctx context.Context, signer string, remote chain.EndpointID) (config.RelayerFee, error) {
	return optional(ctx, r, FieldRelayerFee, func(ctx context.Context) (config.RelayerFee, error) {
		return r.signerFee(ctx, signer, remote)
	})
}

// OracleFee reads the oracle signer's base fee toward remote.
func (r *Reader) OracleFee(ctx context.Context, signer string, remote chain.EndpointID) (uint64, error) {
	return optional(ctx, r, FieldOracleFee, func(ctx context.Context) (uint64, error) {
		fee, err := r.signerFee(ctx, signer, remote)
		return fee.BaseFee, err
	})
}

func (r *Reader) signerFee(ctx context.Context, signer string, remote chain.EndpointID) (config.RelayerFee, error) {
	v, err := r.resourceEntry(ctx, signer, r.addrs.SignerConfig(), "fees", keyU64, r.addrs.SignerFee(), remoteKey(remote))
	if err != nil {
		return config.RelayerFee{}, err
	}
	d := decoder{v: v}
	out := config.RelayerFee{BaseFee: d.uint("base_fee"), FeePerByte: d.uint("fee_per_byte")}
	return out, d.err
}

// OracleValidator reports whether validator is active in the oracle.
func (r *Reader) OracleValidator(ctx context.Context, validator string) (bool, error) {
	full, err := chain.FullAddress(validator)
	if err != nil {
		return false, err
	}
	return optional(ctx, r, FieldOracleValidator, func(ctx context.Context) (bool, error) {
		res, err := r.client.ReadAccountModuleState(ctx, r.addrs.Oracle, r.addrs.OracleConfig())
		if err != nil {
			return false, err
		}
		var cfg struct {
			Validators map[string]bool `json:"validators"`
		}
		if err := res.Decode(&cfg); err != nil {
			return false, fmt.Errorf("decode oracle config: %w", err)
		}
		for addr, active := range cfg.Validators {
			if chain.EqualAddressHex(addr, full, chain.LocalAddressWidth) {
				return active, nil
			}
		}
		return false, fault.NotFound("state.oracle_validator", validator)
	})
}

// OracleThreshold reads the oracle's approval threshold. It has no default.
func (r *Reader) OracleThreshold(ctx context.Context) (uint64, error) {
	return optional(ctx, r, FieldOracleThreshold, func(ctx context.Context) (uint64, error) {
		res, err := r.client.ReadAccountModuleState(ctx, r.addrs.Oracle, r.addrs.OracleConfig())
		if err != nil {
			return 0, err
		}
		v, err := res.Field("threshold")
		if err != nil {
			return 0, fault.NotFound("state.oracle_threshold", r.addrs.OracleConfig()+".threshold")
		}
		return v.Uint64()
	})
}

// CustomAdapterParams reads the bridge's custom adapter params toggle. It
// has no default.
func (r *Reader) CustomAdapterParams(ctx context.Context) (bool, error) {
	return optional(ctx, r, FieldCustomAdapterParams, func(ctx context.Context) (bool, error) {
		res, err := r.client.ReadAccountModuleState(ctx, r.addrs.Bridge, r.addrs.BridgeConfig())
		if err != nil {
			return false, err
		}
		v, err := res.Field("custom_adapter_params")
		if err != nil {
			return false, fault.NotFound("state.custom_adapter_params", r.addrs.BridgeConfig()+".custom_adapter_params")
		}
		return v.Bool()
	})
}

// CoinRegistered reports whether the bridge has registered coinType.
func (r *Reader) CoinRegistered(ctx context.Context, coinType string) (bool, error) {
	return r.exists(ctx, FieldCoinRegistered, r.addrs.Bridge, r.addrs.CoinStore(coinType))
}

// CoinLimiter reads the stored limiter of coinType.
func (r *Reader) CoinLimiter(ctx context.Context, coinType string) (limiter.State, error) {
	return optional(ctx, r, FieldCoinLimiter, func(ctx context.Context) (limiter.State, error) {
		res, err := r.client.ReadAccountModuleState(ctx, r.addrs.Bridge, r.addrs.Limiter(coinType))
		if err != nil {
			return limiter.State{}, err
		}
		var s limiter.State
		if err := res.Decode(&s); err != nil {
			return limiter.State{}, fmt.Errorf("decode limiter: %w", err)
		}
		return s, nil
	})
}

// RemoteCoin reads the peer of coinType on remote.
func (r *Reader) RemoteCoin(ctx context.Context, coinType string, remote chain.EndpointID) (RemoteCoin, error) {
	return optional(ctx, r, FieldRemoteCoin, func(ctx context.Context) (RemoteCoin, error) {
		v, err := r.resourceEntry(ctx, r.addrs.Bridge, r.addrs.CoinStore(coinType), "remote_coins", keyU64, r.addrs.RemoteCoin(), remoteKey(remote))
		if err != nil {
			return RemoteCoin{}, err
		}
		d := decoder{v: v}
		out := RemoteCoin{Address: d.str("remote_address"), Unwrappable: d.bool("unwrappable")}
		return out, d.err
	})
}

// RemoteBridge reads the trusted peer bridge of the bridge app on remote,
// as hex.
func (r *Reader) RemoteBridge(ctx context.Context, remote chain.EndpointID) (string, error) {
	return optional(ctx, r, FieldRemoteBridge, func(ctx context.Context) (string, error) {
		v, err := r.resourceEntry(ctx, r.addrs.Bridge, r.addrs.Remotes(), "peers", keyU64, "vector<u8>", remoteKey(remote))
		if err != nil {
			return "", err
		}
		return v.String()
	})
}

// MinDstGas reads the bridge app's minimum destination gas for remote and
// packetType.
func (r *Reader) MinDstGas(ctx context.Context, remote chain.EndpointID, packetType uint64) (uint64, error) {
	return optional(ctx, r, FieldMinDstGas, func(ctx context.Context) (uint64, error) {
		key := ir.ObjectOf(ir.P("chain_id", ir.U64(uint64(remote))), ir.P("packet_type", ir.U64(packetType)))
		v, err := r.resourceEntry(ctx, r.addrs.Bridge, r.addrs.LzAppConfig(), "min_dst_gas_lookup", r.addrs.LzAppPath(), keyU64, key)
		if err != nil {
			return 0, err
		}
		return v.Uint64()
	})
}

// NowMicros reads the ledger clock. It has no default.
func (r *Reader) NowMicros(ctx context.Context) (uint64, error) {
	return optional(ctx, r, FieldClock, func(ctx context.Context) (uint64, error) {
		v, err := r.client.ReadNamedValue(ctx, protocol.TimestampModule, protocol.TimestampKey)
		if err != nil {
			return 0, err
		}
		return v.Uint64()
	})
}

// LimiterRemaining reads the remaining transfer capacity of coinType at the
// current ledger time.
func (r *Reader) LimiterRemaining(ctx context.Context, coinType string) (limiter.Reading, error) {
	s, err := r.CoinLimiter(ctx, coinType)
	if err != nil {
		return limiter.Reading{}, err
	}
	now, err := r.NowMicros(ctx)
	if err != nil {
		return limiter.Reading{}, err
	}
	rate := uint64(1)
	res, err := r.client.ReadAccountModuleState(ctx, r.addrs.Bridge, r.addrs.CoinStore(coinType))
	switch {
	case err == nil:
		if v, ferr := res.Field("ld2sd_rate"); ferr == nil {
			if rate, err = v.Uint64(); err != nil {
				return limiter.Reading{}, fmt.Errorf("decode ld2sd_rate: %w", err)
			}
		}
	case !fault.IsNotFound(err):
		return limiter.Reading{}, err
	}
	return s.Remaining(limiter.MicrosToSec(now), rate), nil
}

func (r *Reader) exists(ctx context.Context, field Field, address, resourceType string) (bool, error) {
	return optional(ctx, r, field, func(ctx context.Context) (bool, error) {
		if _, err := r.client.ReadAccountModuleState(ctx, address, resourceType); err != nil {
			return false, err
		}
		return true, nil
	})
}

func bytesOf(v ledger.Value) ([]byte, error) {
	s, err := v.String()
	if err != nil {
		return nil, err
	}
	return chain.ParseAddress(s)
}

// decoder reads fields of an object value, keeping the first error.
type decoder struct {
	v   ledger.Value
	err error
}

func (d *decoder) field(name string) ledger.Value {
	if d.err != nil {
		return nil
	}
	f, err := d.v.Field(name)
	if err != nil {
		d.err = err
		return nil
	}
	return f
}

func (d *decoder) uint(name string) uint64 {
	f := d.field(name)
	if f == nil {
		return 0
	}
	n, err := f.Uint64()
	if err != nil {
		d.err = fmt.Errorf("field %q: %w", name, err)
	}
	return n
}

func (d *decoder) str(name string) string {
	f := d.field(name)
	if f == nil {
		return ""
	}
	s, err := f.String()
	if err != nil {
		d.err = fmt.Errorf("field %q: %w", name, err)
	}
	return s
}

func (d *decoder) bool(name string) bool {
	f := d.field(name)
	if f == nil {
		return false
	}
	b, err := f.Bool()
	if err != nil {
		d.err = fmt.Errorf("field %q: %w", name, err)
	}
	return b
}
