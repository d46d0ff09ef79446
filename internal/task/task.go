// Package task defines reconciliation tasks: one comparison between a
// declared value and the value on chain, together with the call that would
// converge them.
package task

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/ledger"
)

// Authority is the on-chain owner whose key signs a task's call. Each
// authority's tasks run as one sequential lane.
type Authority string

const (
	AuthorityLayerZero Authority = "layerzero"
	AuthorityExecutor  Authority = "executor"
	AuthorityRelayer   Authority = "relayer"
	AuthorityOracle    Authority = "oracle"
	AuthorityBridge    Authority = "bridge"
)

const evmBridgePrefix = "bridge-evm:"

// EVMBridge is the authority owning the TokenBridge on one EVM chain.
func EVMBridge(id chain.EndpointID) Authority {
	return Authority(fmt.Sprintf("%s%d", evmBridgePrefix, id))
}

// IsEVM reports whether a is an EVM bridge authority.
func (a Authority) IsEVM() bool {
	return strings.HasPrefix(string(a), evmBridgePrefix)
}

// Change is the old and new value of one field.
type Change struct {
	Old ir.Value
	New ir.Value
}

// Task is one reconciliation task. It is immutable once built.
type Task struct {
	Authority  Authority
	Step       Step
	NeedChange bool
	ChainID    chain.EndpointID
	// RemoteChainID is nil for tasks that are not about a remote.
	RemoteChainID *chain.EndpointID
	// Subject names what the task configures within its step when a step
	// has several tasks per remote, such as a coin symbol or a validator.
	Subject string
	Call    ledger.Call
	// Diff holds one entry per differing field when NeedChange is set.
	Diff map[string]Change
}

// Remote returns a pointer suitable for Task.RemoteChainID.
func Remote(id chain.EndpointID) *chain.EndpointID {
	return &id
}

// Canonical returns the task as an ir object. Its canonical JSON is the
// task's identity.
func (t Task) Canonical() ir.Object {
	obj := ir.Object{
		"authority":   ir.String(t.Authority),
		"step":        ir.String(t.Step),
		"need_change": ir.Bool(t.NeedChange),
		"chain_id":    ir.U64(uint64(t.ChainID)),
		"module":      ir.String(t.Call.Module),
		"function":    ir.String(t.Call.Function),
		"args":        argsOrEmpty(t.Call.Args),
		"payload":     ir.BytesOf(t.Call.Payload),
	}
	if t.RemoteChainID != nil {
		obj["remote_chain_id"] = ir.U64(uint64(*t.RemoteChainID))
	}
	if t.Subject != "" {
		obj["subject"] = ir.String(t.Subject)
	}
	if len(t.Call.TypeArgs) > 0 {
		typeArgs := make(ir.Array, len(t.Call.TypeArgs))
		for i, ta := range t.Call.TypeArgs {
			typeArgs[i] = ir.String(ta)
		}
		obj["type_args"] = typeArgs
	}
	if diff := t.DiffObject(); diff != nil {
		obj["diff"] = diff
	}
	return obj
}

// DiffObject renders Diff as {field: {old, new}}, or nil when empty.
func (t Task) DiffObject() ir.Object {
	if len(t.Diff) == 0 {
		return nil
	}
	out := make(ir.Object, len(t.Diff))
	for field, c := range t.Diff {
		out[field] = ir.ObjectOf(ir.P("old", c.Old), ir.P("new", c.New))
	}
	return out
}

// ID is the task's domain-separated content hash.
func (t Task) ID() string {
	return ir.MustIdentity(ir.DomainTask, t.Canonical())
}

// PayloadHex returns the call payload as 0x-prefixed hex.
func (t Task) PayloadHex() string {
	return "0x" + hex.EncodeToString(t.Call.Payload)
}

// Label is a short human description used in logs and progress output.
func (t Task) Label() string {
	var b strings.Builder
	b.WriteString(string(t.Step))
	if t.RemoteChainID != nil {
		fmt.Fprintf(&b, "@%d", *t.RemoteChainID)
	}
	if t.Subject != "" {
		b.WriteString("[" + t.Subject + "]")
	}
	return b.String()
}

func argsOrEmpty(a ir.Array) ir.Array {
	if a == nil {
		return ir.Array{}
	}
	return a
}

// NeedingChange returns the tasks with NeedChange set, in order.
func NeedingChange(tasks []Task) []Task {
	var out []Task
	for _, t := range tasks {
		if t.NeedChange {
			out = append(out, t)
		}
	}
	return out
}
