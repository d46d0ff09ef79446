package memledger

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/omniwire/internal/ir"
)

type resKey struct{ addr, typ string }
type entryKey struct{ handle, key string }

// txn stages the writes of one call so a failing handler leaves no trace.
type txn struct {
	m         *Ledger
	resources map[resKey]json.RawMessage
	entries   map[entryKey]json.RawMessage
	order     []any
}

func (m *Ledger) begin() *txn {
	return &txn{
		m:         m,
		resources: make(map[resKey]json.RawMessage),
		entries:   make(map[entryKey]json.RawMessage),
	}
}

func (t *txn) commit() {
	for _, k := range t.order {
		switch k := k.(type) {
		case resKey:
			t.m.putResource(k.addr, k.typ, t.resources[k])
		case entryKey:
			if t.m.tables[k.handle] == nil {
				t.m.tables[k.handle] = make(map[string]json.RawMessage)
			}
			t.m.tables[k.handle][k.key] = t.entries[k]
		}
	}
}

// resource returns the decoded resource, staged writes first.
func (t *txn) resource(addr, typ string) (map[string]any, bool, error) {
	k := resKey{normAddr(addr), typ}
	raw, ok := t.resources[k]
	if !ok {
		raw, ok = t.m.resources[k.addr][typ]
	}
	if !ok {
		return nil, false, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, false, fmt.Errorf("decode resource %s: %w", typ, err)
	}
	return out, true, nil
}

func (t *txn) putResource(addr, typ string, data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode resource %s: %w", typ, err)
	}
	k := resKey{normAddr(addr), typ}
	if _, staged := t.resources[k]; !staged {
		t.order = append(t.order, k)
	}
	t.resources[k] = raw
	return nil
}

// tableOf returns the handle stored in field of the resource, creating the
// resource and a fresh handle when either is missing.
func (t *txn) tableOf(addr, typ, field string) (string, error) {
	res, ok, err := t.resource(addr, typ)
	if err != nil {
		return "", err
	}
	if !ok {
		res = map[string]any{}
	}
	if f, ok := res[field].(map[string]any); ok {
		if h, ok := f["handle"].(string); ok {
			return h, nil
		}
	}
	h := t.newHandle()
	res[field] = map[string]any{"handle": h}
	return h, t.putResource(addr, typ, res)
}

func (t *txn) newHandle() string {
	t.m.nextHandle++
	return fmt.Sprintf("0x%x", t.m.nextHandle)
}

func (t *txn) putEntry(handle string, key ir.Value, value any) error {
	k, err := tableKey(key)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode table value: %w", err)
	}
	ek := entryKey{handle, k}
	if _, staged := t.entries[ek]; !staged {
		t.order = append(t.order, ek)
	}
	t.entries[ek] = raw
	return nil
}

// updateResource applies fn to the resource, starting from an empty object
// when it does not exist and create is set.
func (t *txn) updateResource(addr, typ string, create bool, fn func(map[string]any) error) error {
	res, ok, err := t.resource(addr, typ)
	if err != nil {
		return err
	}
	if !ok {
		if !create {
			return fmt.Errorf("resource %s does not exist at %s", typ, addr)
		}
		res = map[string]any{}
	}
	if err := fn(res); err != nil {
		return err
	}
	return t.putResource(addr, typ, res)
}
