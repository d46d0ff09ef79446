// Package evmledger is the ledger client for EVM chains. Reads are view
// calls into a contract, with the contract address as the module and the
// method name as the key; writes are signed legacy transactions.
package evmledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/roach88/omniwire/internal/adapterparams"
	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/fault"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/protocol"
)

// Backend is the subset of ethclient.Client the client uses.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

var _ ledger.Client = (*Client)(nil)

// Client reads and writes one EVM chain.
type Client struct {
	backend  Backend
	contract abi.ABI
	from     common.Address
	signer   bind.SignerFn
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithSigner sets the account that signs submitted calls. Without a signer
// the client is read-only.
func WithSigner(from common.Address, fn bind.SignerFn) Option {
	return func(c *Client) {
		c.from = from
		c.signer = fn
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a client over backend for TokenBridge contracts.
func New(backend Backend, opts ...Option) (*Client, error) {
	contract, err := protocol.TokenBridgeABI()
	if err != nil {
		return nil, fmt.Errorf("evmledger: %w", err)
	}
	c := &Client{backend: backend, contract: contract, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Dial connects to url. key may be nil for a read-only client.
func Dial(ctx context.Context, url string, key *ecdsa.PrivateKey, opts ...Option) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("evmledger: dial: %w", err)
	}
	if key != nil {
		id, err := ec.ChainID(ctx)
		if err != nil {
			ec.Close()
			return nil, fmt.Errorf("evmledger: chain id: %w", err)
		}
		signer, err := KeySigner(key, id)
		if err != nil {
			ec.Close()
			return nil, err
		}
		opts = append([]Option{signer}, opts...)
	}
	return New(ec, opts...)
}

// KeySigner returns a WithSigner option that signs with key for chainID.
func KeySigner(key *ecdsa.PrivateKey, chainID *big.Int) (Option, error) {
	auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("evmledger: signer: %w", err)
	}
	return WithSigner(auth.From, auth.Signer), nil
}

// ParseKey parses a hex private key, with or without 0x.
func ParseKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(trim0x(s))
	if err != nil {
		return nil, fmt.Errorf("evmledger: parse key: %w", err)
	}
	return key, nil
}

func trim0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// Family implements ledger.Client.
func (c *Client) Family() chain.Family { return chain.FamilyEVM }

// Close releases the backend connection.
func (c *Client) Close() error {
	if closer, ok := c.backend.(interface{ Close() }); ok {
		closer.Close()
	}
	return nil
}

// ReadNamedValue calls the view method key on contract module. Empty return
// data, which is what a call to an address without code yields, is
// NotFound.
func (c *Client) ReadNamedValue(ctx context.Context, module, key string, args ...ir.Value) (ledger.Value, error) {
	op := "evmledger.read." + key
	to, err := chain.ParseEVMAddress(module)
	if err != nil {
		return nil, err
	}
	data, err := protocol.PackCall(c.contract, key, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(out) == 0 {
		return nil, fault.NotFound(op, to.Hex())
	}
	values, err := c.contract.Methods[key].Outputs.Unpack(out)
	if err != nil {
		return nil, fault.InvalidWireFormat(op, err, "unpack %d bytes", len(out))
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("%s: expected one output, got %d", op, len(values))
	}
	return ledger.ValueOf(normalize(values[0])), nil
}

// normalize converts an unpacked ABI value into the JSON shape the ledger
// value accessors read: integers as decimal strings, addresses and bytes as
// lowercase hex.
func normalize(v any) any {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", x)
	case common.Address:
		return hexutil.Encode(x.Bytes())
	case []byte:
		return hexutil.Encode(x)
	default:
		return v
	}
}

// ReadTableEntry is not supported on EVM chains.
func (c *Client) ReadTableEntry(context.Context, ledger.TableQuery) (ledger.Value, error) {
	return nil, fmt.Errorf("evmledger: table reads: %w", errors.ErrUnsupported)
}

// ReadAccountModuleState reports the code deployed at address. moduleType
// is ignored. An address without code is NotFound.
func (c *Client) ReadAccountModuleState(ctx context.Context, address, _ string) (ledger.Value, error) {
	addr, err := chain.ParseEVMAddress(address)
	if err != nil {
		return nil, err
	}
	code, err := c.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("evmledger.code_at: %w", err)
	}
	if len(code) == 0 {
		return nil, fault.NotFound("evmledger.code_at", addr.Hex())
	}
	return ledger.ValueOf(map[string]string{
		"code_hash": crypto.Keccak256Hash(code).Hex(),
		"code_size": fmt.Sprintf("%d", len(code)),
	}), nil
}

// Submit signs call.Payload as a transaction to call.Module, sends it and
// waits for the receipt. A reverted transaction is rejected.
func (c *Client) Submit(ctx context.Context, call ledger.Call) (ledger.Receipt, error) {
	const op = "evmledger.submit"
	if c.signer == nil {
		return ledger.Receipt{}, fault.TransactionRejected(op, errors.New("client has no signer"))
	}
	to, err := chain.ParseEVMAddress(call.Module)
	if err != nil {
		return ledger.Receipt{}, fault.TransactionRejected(op, err)
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return ledger.Receipt{}, fault.TransactionRejected(op, fmt.Errorf("nonce: %w", err))
	}
	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return ledger.Receipt{}, fault.TransactionRejected(op, fmt.Errorf("gas price: %w", err))
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: call.Payload})
	if err != nil {
		return ledger.Receipt{}, fault.TransactionRejected(op, fmt.Errorf("estimate gas: %w", err))
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Gas:      adapterparams.ApplyGasLimitSafety(gas).Uint64(),
		GasPrice: gasPrice,
		Data:     call.Payload,
	})
	signed, err := c.signer(c.from, tx)
	if err != nil {
		return ledger.Receipt{}, fault.TransactionRejected(op, fmt.Errorf("sign: %w", err))
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return ledger.Receipt{}, fault.TransactionRejected(op, fmt.Errorf("send: %w", err))
	}
	c.logger.Debug("transaction sent", "module", call.Module, "function", call.Function, "tx", signed.Hash().Hex())

	receipt, err := bind.WaitMined(ctx, c.backend, signed)
	if err != nil {
		return ledger.Receipt{}, fault.TransactionRejected(op, fmt.Errorf("wait for %s: %w", signed.Hash().Hex(), err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ledger.Receipt{}, fault.TransactionRejected(op, fmt.Errorf("%s %s reverted in %s", call.Function, to.Hex(), signed.Hash().Hex()))
	}
	return ledger.Receipt{Ref: signed.Hash().Hex()}, nil
}
