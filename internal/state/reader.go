// Package state reads the current on-chain configuration.
//
// Every read goes through one optional-read primitive: a NotFound result is
// replaced by the field's entry in the defaults table, and a field without
// an entry fails with a NO_DEFAULT error. Nothing read here is cached; each
// run reads fresh.
package state

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/omniwire/internal/adapterparams"
	"github.com/roach88/omniwire/internal/config"
	"github.com/roach88/omniwire/internal/fault"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/limiter"
	"github.com/roach88/omniwire/internal/protocol"
)

// Field names one kind of on-chain value.
type Field string

const (
	FieldChainAddressSize     Field = "chain_address_size"
	FieldDefaultAppConfig     Field = "default_app_config"
	FieldSendVersion          Field = "default_send_version"
	FieldReceiveVersion       Field = "default_receive_version"
	FieldDefaultExecutor      Field = "default_executor"
	FieldDefaultAdapterParams Field = "default_adapter_params"
	FieldExecutorRegistered   Field = "executor_registered"
	FieldExecutorFee          Field = "executor_fee"
	FieldRelayerRegistered    Field = "relayer_registered"
	FieldRelayerFee           Field = "relayer_fee"
	FieldOracleValidator      Field = "oracle_validator"
	FieldOracleThreshold      Field = "oracle_threshold"
	FieldOracleFee            Field = "oracle_fee"
	FieldCustomAdapterParams  Field = "custom_adapter_params"
	FieldCoinRegistered       Field = "coin_registered"
	FieldCoinLimiter          Field = "coin_limiter"
	FieldRemoteCoin           Field = "remote_coin"
	FieldRemoteBridge         Field = "remote_bridge"
	FieldMinDstGas            Field = "min_dst_gas"
	FieldClock                Field = "clock"

	FieldEVMCustomAdapterParams Field = "evm_custom_adapter_params"
	FieldEVMBridgeFeeBP         Field = "evm_bridge_fee_bp"
	FieldEVMTrustedRemote       Field = "evm_trusted_remote"
	FieldEVMMinDstGas           Field = "evm_min_dst_gas"
	FieldEVMTokenSupported      Field = "evm_token_supported"
	FieldEVMWETH                Field = "evm_weth"
)

// DefaultExecutor is the default executor entry of one remote.
type DefaultExecutor struct {
	Version uint64
	Address string
}

// RemoteCoin is a coin's peer on one remote.
type RemoteCoin struct {
	Address     string
	Unwrappable bool
}

// defaults is the value substituted when a field is not found on chain.
// Fields missing from the table have no safe default.
var defaults = map[Field]func() any{
	FieldChainAddressSize:     func() any { return uint64(0) },
	FieldDefaultAppConfig:     func() any { return config.AppConfig{} },
	FieldSendVersion:          func() any { return config.SemVer{} },
	FieldReceiveVersion:       func() any { return config.SemVer{} },
	FieldDefaultExecutor:      func() any { return DefaultExecutor{} },
	FieldDefaultAdapterParams: func() any { return adapterparams.BuildDefault(0) },
	FieldExecutorRegistered:   func() any { return false },
	FieldExecutorFee:          func() any { return adapterparams.ExecutorFee{} },
	FieldRelayerRegistered:    func() any { return false },
	FieldRelayerFee:           func() any { return config.RelayerFee{} },
	FieldOracleValidator:      func() any { return false },
	FieldOracleFee:            func() any { return uint64(0) },
	FieldCoinRegistered:       func() any { return false },
	FieldCoinLimiter:          func() any { return limiter.Default() },
	FieldRemoteCoin:           func() any { return RemoteCoin{} },
	FieldRemoteBridge:         func() any { return "" },
	FieldMinDstGas:            func() any { return uint64(0) },

	FieldEVMCustomAdapterParams: func() any { return false },
	FieldEVMBridgeFeeBP:         func() any { return uint64(0) },
	FieldEVMTrustedRemote:       func() any { return false },
	FieldEVMMinDstGas:           func() any { return uint64(0) },
	FieldEVMTokenSupported:      func() any { return false },
	FieldEVMWETH:                func() any { return "" },
}

// HasDefault reports whether field has a NotFound default.
func HasDefault(field Field) bool {
	_, ok := defaults[field]
	return ok
}

// optional runs read and substitutes the field's default when the value is
// not on chain.
func optional[T any](ctx context.Context, r *Reader, field Field, read func(context.Context) (T, error)) (T, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	v, err := read(ctx)
	if err == nil {
		return v, nil
	}
	var zero T
	if !fault.IsNotFound(err) {
		return zero, err
	}
	def, ok := defaults[field]
	if !ok {
		return zero, fault.NoDefault(string(field), err)
	}
	r.logger.Debug("using default", "field", field, "err", err)
	return def().(T), nil
}

// Reader reads protocol state from one ledger.
type Reader struct {
	client  ledger.Reader
	addrs   protocol.Addresses
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithTimeout bounds each read.
func WithTimeout(d time.Duration) Option {
	return func(r *Reader) { r.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) { r.logger = l }
}

// NewReader returns a Reader over client for the protocol at addrs. For an
// EVM ledger addrs may be zero.
func NewReader(client ledger.Reader, addrs protocol.Addresses, opts ...Option) *Reader {
	r := &Reader{client: client, addrs: addrs, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// resourceEntry reads the table stored in a resource field and looks up key
// in it. A missing resource or entry is NotFound.
func (r *Reader) resourceEntry(ctx context.Context, address, resourceType, field, keyType, valueType string, key ir.Value) (ledger.Value, error) {
	res, err := r.client.ReadAccountModuleState(ctx, address, resourceType)
	if err != nil {
		return nil, err
	}
	handle, err := res.Handle(field)
	if err != nil {
		return nil, err
	}
	return r.client.ReadTableEntry(ctx, ledger.TableQuery{
		Handle:    handle,
		KeyType:   keyType,
		ValueType: valueType,
		Key:       key,
	})
}
