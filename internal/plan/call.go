package plan

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/omniwire/internal/fault"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/protocol"
)

// required fails with a configuration invariant violation when value is
// empty.
func required(op, field, value string) error {
	if value == "" {
		return fault.InvariantViolation(op, field, "must not be empty")
	}
	return nil
}

// LocalCall builds a call to an entry function on the local ledger. The
// payload is the canonical JSON of the entry function payload:
// {"arguments": [...], "function": "addr::module::fn", "type_arguments": [...]}.
func LocalCall(sender, address, module, function string, typeArgs []string, args ...ir.Value) (ledger.Call, error) {
	op := "plan." + module + "." + function
	if err := required(op, "sender", sender); err != nil {
		return ledger.Call{}, err
	}
	if err := required(op, module+" address", address); err != nil {
		return ledger.Call{}, err
	}
	qualified := protocol.Module(address, module)
	ta := make(ir.Array, len(typeArgs))
	for i, t := range typeArgs {
		ta[i] = ir.String(t)
	}
	argv := ir.List(args...)
	payload, err := ir.MarshalCanonical(ir.ObjectOf(
		ir.P("function", ir.String(qualified+"::"+function)),
		ir.P("type_arguments", ta),
		ir.P("arguments", argv),
	))
	if err != nil {
		return ledger.Call{}, fmt.Errorf("%s: encode payload: %w", op, err)
	}
	return ledger.Call{
		Sender:   sender,
		Module:   qualified,
		Function: function,
		TypeArgs: typeArgs,
		Args:     argv,
		Payload:  payload,
	}, nil
}

// EVMCall builds a TokenBridge call. The payload is the ABI calldata.
func EVMCall(contract, method string, args ...ir.Value) (ledger.Call, error) {
	op := "plan.evm." + method
	if !common.IsHexAddress(contract) {
		return ledger.Call{}, fault.InvariantViolation(op, "bridge", fmt.Sprintf("%q is not an EVM address", contract))
	}
	bridgeABI, err := protocol.TokenBridgeABI()
	if err != nil {
		return ledger.Call{}, fmt.Errorf("%s: %w", op, err)
	}
	argv := ir.List(args...)
	payload, err := protocol.PackCall(bridgeABI, method, argv)
	if err != nil {
		return ledger.Call{}, fault.InvariantViolation(op, "arguments", err.Error())
	}
	return ledger.Call{
		Module:   common.HexToAddress(contract).Hex(),
		Function: method,
		Args:     argv,
		Payload:  payload,
	}, nil
}
