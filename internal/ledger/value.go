package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/omniwire/internal/ir"
)

// Value is a JSON document returned by a read. Integers may be encoded as
// JSON numbers or decimal strings; accessors accept both.
type Value json.RawMessage

// ValueOf marshals v into a Value. Use for fixtures and defaults.
func ValueOf(v any) Value {
	out, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("ledger.ValueOf(%T): %v", v, err))
	}
	return Value(out)
}

// Field returns the named member of an object value.
func (v Value) Field(name string) (Value, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(v, &obj); err != nil {
		return nil, fmt.Errorf("field %q: value is not an object: %w", name, err)
	}
	f, ok := obj[name]
	if !ok {
		return nil, fmt.Errorf("field %q: missing", name)
	}
	return Value(f), nil
}

// Handle returns the table handle stored in the named field, which holds an
// object of the form {"handle": "..."}.
func (v Value) Handle(field string) (string, error) {
	f, err := v.Field(field)
	if err != nil {
		return "", err
	}
	h, err := f.Field("handle")
	if err != nil {
		return "", fmt.Errorf("field %q: %w", field, err)
	}
	return h.String()
}

// Uint decodes an unsigned integer from a number or a decimal string.
func (v Value) Uint() (ir.Uint, error) {
	raw := bytes.TrimSpace(v)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return ir.ParseUint(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("not an integer: %s", raw)
	}
	return ir.ParseUint(n.String())
}

// Uint64 decodes a 64-bit unsigned integer.
func (v Value) Uint64() (uint64, error) {
	u, err := v.Uint()
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(string(u), 10, 64)
}

// Bool decodes a boolean.
func (v Value) Bool() (bool, error) {
	var b bool
	err := json.Unmarshal(v, &b)
	return b, err
}

// String decodes a string.
func (v Value) String() (string, error) {
	var s string
	err := json.Unmarshal(v, &s)
	return s, err
}

// Decode unmarshals v into out.
func (v Value) Decode(out any) error {
	return json.Unmarshal(v, out)
}
