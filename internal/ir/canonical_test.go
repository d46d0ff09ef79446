package ir

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical(t *testing.T) {
	huge, _ := new(big.Int).SetString("340282366920938463463374607431768211456", 10)

	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"string", String("uln_config"), `"uln_config"`},
		{"no html escape", String("<a&b>"), `"<a&b>"`},
		{"line separator literal", String("a\u2028b"), "\"a\u2028b\""},
		{"escaped backslash kept", String(`\u2028`), `"\\u2028"`},
		{"uint", U64(10121), `10121`},
		{"uint beyond 64 bits", BigUint(huge), `340282366920938463463374607431768211456`},
		{"uint leading zeros", Uint("0007"), `7`},
		{"empty uint is zero", Uint(""), `0`},
		{"bool", Bool(true), `true`},
		{"bytes lowercased", Bytes("0xABCD"), `"0xabcd"`},
		{"empty bytes", BytesOf(nil), `"0x"`},
		{"array", List(U64(1), String("x"), Bool(false)), `[1,"x",false]`},
		{"object sorted", ObjectOf(P("old", U64(0)), P("new", U64(20))), `{"new":20,"old":0}`},
		{"nested", ObjectOf(P("b", List()), P("a", ObjectOf())), `{"a":{},"b":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalCanonical(tt.v)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestMarshalCanonical_NFC(t *testing.T) {
	decomposed := String("e\u0301")
	composed := String("\u00e9")

	assert.Equal(t, MustCanonical(composed), MustCanonical(decomposed))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(List(String("ok"), nil))
	assert.Error(t, err)

	_, err = MarshalCanonical(Uint("12a"))
	assert.Error(t, err)
}

func TestSortedKeys_UTF16Order(t *testing.T) {
	// U+1F600 encodes to surrogates 0xD83D..., which sort before U+FF61.
	obj := ObjectOf(P("\uFF61", Bool(true)), P("\U0001F600", Bool(true)), P("a", Bool(true)))

	assert.Equal(t, []string{"a", "\U0001F600", "\uFF61"}, obj.SortedKeys())
}
