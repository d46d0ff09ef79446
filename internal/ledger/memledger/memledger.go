// Package memledger is an in-memory local ledger.
//
// It stores account resources and tables as JSON, answers reads the same way
// the chain's REST interface does, and applies submitted calls by simulating
// the protocol's configuration entry functions. It backs tests, harness
// scenarios and offline previews from a fixture file.
package memledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/roach88/omniwire/internal/chain"
	"github.com/roach88/omniwire/internal/fault"
	"github.com/roach88/omniwire/internal/ir"
	"github.com/roach88/omniwire/internal/ledger"
	"github.com/roach88/omniwire/internal/protocol"
)

// Ledger is a concurrency-safe in-memory ledger.
type Ledger struct {
	addrs  protocol.Addresses
	logger *slog.Logger

	mu         sync.RWMutex
	nowMicros  uint64
	version    uint64
	resources  map[string]map[string]json.RawMessage // address -> type -> data
	tables     map[string]map[string]json.RawMessage // handle -> key -> value
	named      map[string]json.RawMessage
	failures   map[string]error
	submitted  []ledger.Call
	nextHandle uint64
}

var _ ledger.Client = (*Ledger)(nil)

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger for applied calls.
func WithLogger(l *slog.Logger) Option {
	return func(m *Ledger) { m.logger = l }
}

// WithNowMicros sets the ledger clock.
func WithNowMicros(us uint64) Option {
	return func(m *Ledger) { m.nowMicros = us }
}

// New creates an empty ledger for the protocol published at addrs.
func New(addrs protocol.Addresses, opts ...Option) *Ledger {
	m := &Ledger{
		addrs:      addrs,
		logger:     slog.Default(),
		resources:  make(map[string]map[string]json.RawMessage),
		tables:     make(map[string]map[string]json.RawMessage),
		named:      make(map[string]json.RawMessage),
		failures:   make(map[string]error),
		nextHandle: 0x1000,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Family implements ledger.Client.
func (m *Ledger) Family() chain.Family { return chain.FamilyLocal }

// ReadNamedValue implements ledger.Reader. The ledger clock is served as
// 0x1::timestamp now_microseconds.
func (m *Ledger) ReadNamedValue(ctx context.Context, module, key string, args ...ir.Value) (ledger.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if module == protocol.TimestampModule && key == protocol.TimestampKey {
		return ledger.ValueOf(fmt.Sprintf("%d", m.nowMicros)), nil
	}
	name := namedKey(module, key, args)
	v, ok := m.named[name]
	if !ok {
		return nil, fault.NotFound("memledger.named", name)
	}
	return ledger.Value(v), nil
}

// ReadTableEntry implements ledger.Reader.
func (m *Ledger) ReadTableEntry(ctx context.Context, q ledger.TableQuery) (ledger.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key, err := tableKey(q.Key)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.tables[q.Handle][key]
	if !ok {
		return nil, fault.NotFound("memledger.table", fmt.Sprintf("table %s key %s", q.Handle, key))
	}
	return ledger.Value(v), nil
}

// ReadAccountModuleState implements ledger.Reader.
func (m *Ledger) ReadAccountModuleState(ctx context.Context, address, moduleType string) (ledger.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.resources[normAddr(address)][moduleType]
	if !ok {
		return nil, fault.NotFound("memledger.resource", fmt.Sprintf("resource %s at %s", moduleType, address))
	}
	return ledger.Value(v), nil
}

// Submit implements ledger.Submitter by applying call to the stored state.
// A failing call leaves the state unchanged.
func (m *Ledger) Submit(ctx context.Context, call ledger.Call) (ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, fault.TransactionRejected("memledger.submit", err)
	}
	_, mod, ok := protocol.SplitModule(call.Module)
	if !ok {
		return ledger.Receipt{}, fault.TransactionRejected("memledger.submit", fmt.Errorf("malformed module %q", call.Module))
	}
	entry := mod + "::" + call.Function

	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.failures[entry]; ok {
		return ledger.Receipt{}, fault.TransactionRejected("memledger.submit", err)
	}
	h, ok := handlers[entry]
	if !ok {
		return ledger.Receipt{}, fault.TransactionRejected("memledger.submit", fmt.Errorf("no entry function %s", entry))
	}
	tx := m.begin()
	if err := h(tx, call); err != nil {
		return ledger.Receipt{}, fault.TransactionRejected("memledger.submit", fmt.Errorf("%s: %w", entry, err))
	}
	tx.commit()

	m.version++
	m.submitted = append(m.submitted, call)
	ref := fmt.Sprintf("%d", m.version)
	m.logger.Debug("applied call", "module", call.Module, "function", call.Function, "version", ref)
	return ledger.Receipt{Ref: ref}, nil
}

// FailOn makes every later call to module::function fail with err.
func (m *Ledger) FailOn(module, function string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[module+"::"+function] = err
}

// Submitted returns the calls applied so far, in order.
func (m *Ledger) Submitted() []ledger.Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ledger.Call, len(m.submitted))
	copy(out, m.submitted)
	return out
}

// SetNowMicros moves the ledger clock.
func (m *Ledger) SetNowMicros(us uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nowMicros = us
}

// PutResource stores data as the resource moduleType at address.
func (m *Ledger) PutResource(address, moduleType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("put resource %s: %w", moduleType, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putResource(address, moduleType, raw)
	return nil
}

// PutTableEntry stores value under key in the table handle.
func (m *Ledger) PutTableEntry(handle string, key ir.Value, value any) error {
	k, err := tableKey(key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("put table entry: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tables[handle] == nil {
		m.tables[handle] = make(map[string]json.RawMessage)
	}
	m.tables[handle][k] = raw
	return nil
}

// PutNamedValue stores a named value.
func (m *Ledger) PutNamedValue(module, key string, value any, args ...ir.Value) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("put named value: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.named[namedKey(module, key, args)] = raw
	return nil
}

func (m *Ledger) putResource(address, moduleType string, raw json.RawMessage) {
	addr := normAddr(address)
	if m.resources[addr] == nil {
		m.resources[addr] = make(map[string]json.RawMessage)
	}
	m.resources[addr][moduleType] = raw
}

func namedKey(module, key string, args []ir.Value) string {
	if len(args) == 0 {
		return module + "::" + key
	}
	return module + "::" + key + ir.MustCanonical(ir.List(args...))
}

// tableKey renders a table key canonically, with integers as decimal
// strings the way the chain's REST interface expects them.
func tableKey(key ir.Value) (string, error) {
	out, err := ir.MarshalCanonical(stringifyInts(key))
	if err != nil {
		return "", fmt.Errorf("table key: %w", err)
	}
	return string(out), nil
}

func stringifyInts(v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.Uint:
		return ir.String(val.Big().String())
	case ir.Array:
		out := make(ir.Array, len(val))
		for i, e := range val {
			out[i] = stringifyInts(e)
		}
		return out
	case ir.Object:
		out := make(ir.Object, len(val))
		for k, e := range val {
			out[k] = stringifyInts(e)
		}
		return out
	default:
		return v
	}
}

// normAddr gives every spelling of an account address one map key.
func normAddr(address string) string {
	full, err := chain.FullAddress(address)
	if err != nil {
		return strings.ToLower(address)
	}
	return full
}
