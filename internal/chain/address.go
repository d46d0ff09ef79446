package chain

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/roach88/omniwire/internal/fault"
)

// LocalAddressWidth is the address width of the local ledger.
const LocalAddressWidth = 32

// ParseAddress decodes a hex address with or without 0x prefix. Odd-length
// short forms such as "0x1" are accepted.
func ParseAddress(s string) ([]byte, error) {
	raw := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(raw)%2 == 1 {
		raw = "0" + raw
	}
	if raw == "" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode("0x" + raw)
	if err != nil {
		return nil, fmt.Errorf("parse address %q: %w", s, err)
	}
	return b, nil
}

// MustParseAddress is ParseAddress for literals. Panics on error.
func MustParseAddress(s string) []byte {
	b, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return b
}

// Pad left-pads addr with zero bytes to width. Addresses already at or over
// width are returned unchanged.
func Pad(addr []byte, width int) []byte {
	if len(addr) >= width {
		return bytes.Clone(addr)
	}
	out := make([]byte, width)
	copy(out[width-len(addr):], addr)
	return out
}

// EqualAddress reports whether a and b denote the same address once both are
// left-padded to width. A short form equals its padded form.
func EqualAddress(a, b []byte, width int) bool {
	return bytes.Equal(Pad(a, width), Pad(b, width))
}

// EqualAddressHex is EqualAddress over hex strings. Unparseable input is
// never equal to anything.
func EqualAddressHex(a, b string, width int) bool {
	ab, err := ParseAddress(a)
	if err != nil {
		return false
	}
	bb, err := ParseAddress(b)
	if err != nil {
		return false
	}
	return EqualAddress(ab, bb, width)
}

// FullAddress renders addr as a 0x-prefixed, lowercase, 64-digit hex string.
func FullAddress(s string) (string, error) {
	b, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	if len(b) > LocalAddressWidth {
		return "", fmt.Errorf("address %q is wider than %d bytes", s, LocalAddressWidth)
	}
	return "0x" + hex.EncodeToString(Pad(b, LocalAddressWidth)), nil
}

// IsZeroAddress reports whether s parses to all zero bytes.
func IsZeroAddress(s string) bool {
	b, err := ParseAddress(s)
	if err != nil {
		return false
	}
	return len(bytes.Trim(b, "\x00")) == 0
}

// CheckWidth fails with an AddressWidthMismatch when addr is not exactly
// width bytes.
func CheckWidth(op string, addr []byte, width int) error {
	if len(addr) != width {
		return fault.AddressWidthMismatch(op, len(addr), width)
	}
	return nil
}

// EVMAddress converts a 20-byte address to its go-ethereum form.
func EVMAddress(addr []byte) (common.Address, error) {
	if err := CheckWidth("chain.evm_address", addr, common.AddressLength); err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(addr), nil
}

// ParseEVMAddress parses a hex EVM address, rejecting anything that is not
// 20 bytes.
func ParseEVMAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fault.InvariantViolation("chain.evm_address", s, "not a 20-byte hex address")
	}
	return common.HexToAddress(s), nil
}
