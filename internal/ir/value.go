package ir

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"slices"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface. Only String, Uint, Bool, Bytes, Array and
// Object implement it.
type Value interface {
	irValue()
}

// String is a text value.
type String string

func (String) irValue() {}

// Uint is a non-negative integer of any size, held as normalized decimal
// digits so that values compare with ==.
type Uint string

func (Uint) irValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) irValue() {}

// Bytes is a byte string, held as 0x-prefixed lowercase hex.
type Bytes string

func (Bytes) irValue() {}

// Array is an ordered list of values.
type Array []Value

func (Array) irValue() {}

// Object maps keys to values. Iterate with SortedKeys for determinism.
type Object map[string]Value

func (Object) irValue() {}

// U64 returns n as a Uint.
func U64(n uint64) Uint {
	return Uint(new(big.Int).SetUint64(n).String())
}

// BigUint returns n as a Uint. Negative n is clamped to zero.
func BigUint(n *big.Int) Uint {
	if n == nil || n.Sign() < 0 {
		return "0"
	}
	return Uint(n.String())
}

// ParseUint parses decimal digits, or 0x-prefixed hex, into a Uint.
func ParseUint(s string) (Uint, error) {
	n, ok := new(big.Int).SetString(strings.TrimSpace(s), 0)
	if !ok || n.Sign() < 0 {
		return "", fmt.Errorf("not an unsigned integer: %q", s)
	}
	return Uint(n.String()), nil
}

// Big returns u as a *big.Int. An empty Uint is zero.
func (u Uint) Big() *big.Int {
	n, ok := new(big.Int).SetString(string(u), 10)
	if !ok {
		return new(big.Int)
	}
	return n
}

// Uint64 returns u truncated to 64 bits.
func (u Uint) Uint64() uint64 {
	return u.Big().Uint64()
}

// Cmp compares a and b numerically.
func (u Uint) Cmp(other Uint) int {
	return u.Big().Cmp(other.Big())
}

// BytesOf returns b as a Bytes value.
func BytesOf(b []byte) Bytes {
	return Bytes("0x" + hex.EncodeToString(b))
}

// Raw decodes b. Malformed hex decodes to nil.
func (b Bytes) Raw() []byte {
	raw, err := hex.DecodeString(strings.TrimPrefix(string(b), "0x"))
	if err != nil {
		return nil
	}
	return raw
}

// List builds an Array.
func List(vals ...Value) Array {
	return Array(vals)
}

// Pair is a key-value pair for Object construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// ObjectOf builds an Object from pairs.
func ObjectOf(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 orders by UTF-16 code units. Go's native string order
// is by UTF-8 bytes, which differs for characters outside the BMP.
func compareKeysRFC8785(a, b string) int {
	return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
}

// Equal reports whether a and b have the same canonical rendering.
func Equal(a, b Value) bool {
	ab, err := MarshalCanonical(a)
	if err != nil {
		return false
	}
	bb, err := MarshalCanonical(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

// MarshalJSON renders the canonical form.
func (v String) MarshalJSON() ([]byte, error) { return MarshalCanonical(v) }

// MarshalJSON renders the canonical form.
func (v Uint) MarshalJSON() ([]byte, error) { return MarshalCanonical(v) }

// MarshalJSON renders the canonical form.
func (v Bytes) MarshalJSON() ([]byte, error) { return MarshalCanonical(v) }

// MarshalJSON renders the canonical form.
func (v Array) MarshalJSON() ([]byte, error) { return MarshalCanonical(v) }

// MarshalJSON renders the canonical form.
func (v Object) MarshalJSON() ([]byte, error) { return MarshalCanonical(v) }

// FromAny converts a decoded YAML or JSON document into a Value. Integers
// become Uint; negative numbers and floats are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden")
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		if val < 0 {
			return nil, fmt.Errorf("negative integer %d", val)
		}
		return U64(uint64(val)), nil
	case int64:
		if val < 0 {
			return nil, fmt.Errorf("negative integer %d", val)
		}
		return U64(uint64(val)), nil
	case uint64:
		return U64(val), nil
	case json.Number:
		return ParseUint(val.String())
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden: %v", val)
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			e, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = e
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			e, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = e
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}
