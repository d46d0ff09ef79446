// Package ledger is the boundary between omniwire and the chains it
// configures.
//
// A Client reads named values, table entries and account module state, and
// submits calls. Each chain family provides its own implementation:
// memledger for the local ledger (fixtures and offline previews) and
// evmledger for EVM chains. A read that finds nothing returns an error for
// which fault.IsNotFound is true; callers decide whether that has a default.
package ledger

import (
	"context"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/ir"
)

// TableQuery addresses one entry of an on-chain table.
type TableQuery struct {
	Handle    string
	KeyType   string
	ValueType string
	Key       ir.Value
}

// Reader reads on-chain state.
type Reader interface {
	// ReadNamedValue reads a value published by a module under key, such as
	// a view function result or a well-known global.
	ReadNamedValue(ctx context.Context, module, key string, args ...ir.Value) (Value, error)

	// ReadTableEntry reads one entry of a table.
	ReadTableEntry(ctx context.Context, q TableQuery) (Value, error)

	// ReadAccountModuleState reads the state a module stores under an
	// account, e.g. a resource of type moduleType at address.
	ReadAccountModuleState(ctx context.Context, address, moduleType string) (Value, error)
}

// Call is an executable write. Module and Function locate the entry point;
// Payload is the family-specific encoded form that is actually submitted.
type Call struct {
	Sender   string
	Module   string
	Function string
	TypeArgs []string
	Args     ir.Array
	Payload  []byte
}

// Receipt describes a completed write.
type Receipt struct {
	// Ref is the transaction hash or ledger version of the write.
	Ref string
}

// Submitter submits writes. Submit blocks until the write is final or has
// failed; failures are fault.TransactionRejected errors.
type Submitter interface {
	Submit(ctx context.Context, call Call) (Receipt, error)
}

// Client is a Reader and Submitter for one network.
type Client interface {
	Reader
	Submitter
	Family() chain.Family
}
