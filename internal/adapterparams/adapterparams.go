// Package adapterparams encodes the execution parameters attached to an
// outbound message: the destination gas limit and an optional native-token
// airdrop.
//
//	tag 1 (default): tag(2) | gasLimit(8)
//	tag 2 (airdrop): tag(2) | gasLimit(8) | amount(8) | address(tail)
//
// All integers are big-endian.
package adapterparams

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/roach88/omniwire/internal/fault"
)

// Tag identifies the params variant.
type Tag uint16

const (
	TagDefault Tag = 1
	TagAirdrop Tag = 2
)

const (
	defaultLen       = 10
	airdropHeaderLen = 18
)

// ErrInvalidAdapterParams is wrapped by every decode failure.
var ErrInvalidAdapterParams = errors.New("invalid adapter params")

// Params is a decoded adapter-params value. Amount and Address are zero for
// the default variant.
type Params struct {
	Tag      Tag
	GasLimit uint64
	Amount   uint64
	Address  []byte
}

// AddressHex renders Address as 0x-prefixed hex, or "" when there is none.
func (p Params) AddressHex() string {
	if len(p.Address) == 0 {
		return ""
	}
	return "0x" + hex.EncodeToString(p.Address)
}

// BuildDefault encodes a default-variant params value.
func BuildDefault(gasLimit uint64) []byte {
	buf := binary.BigEndian.AppendUint16(make([]byte, 0, defaultLen), uint16(TagDefault))
	return binary.BigEndian.AppendUint64(buf, gasLimit)
}

// BuildAirdrop encodes an airdrop-variant params value. A zero amount
// degenerates to BuildDefault(gasLimit).
func BuildAirdrop(gasLimit, amount uint64, address []byte) []byte {
	if amount == 0 {
		return BuildDefault(gasLimit)
	}
	buf := make([]byte, 0, airdropHeaderLen+len(address))
	buf = binary.BigEndian.AppendUint16(buf, uint16(TagAirdrop))
	buf = binary.BigEndian.AppendUint64(buf, gasLimit)
	buf = binary.BigEndian.AppendUint64(buf, amount)
	return append(buf, address...)
}

// Decode parses an encoded params value.
func Decode(data []byte) (Params, error) {
	if len(data) < 2 {
		return Params{}, invalid("need a 2-byte tag, got %d bytes", len(data))
	}
	tag := Tag(binary.BigEndian.Uint16(data))
	switch tag {
	case TagDefault:
		if len(data) != defaultLen {
			return Params{}, invalid("default params must be %d bytes, got %d", defaultLen, len(data))
		}
		return Params{Tag: tag, GasLimit: binary.BigEndian.Uint64(data[2:10])}, nil
	case TagAirdrop:
		if len(data) <= airdropHeaderLen {
			return Params{}, invalid("airdrop params must exceed %d bytes, got %d", airdropHeaderLen, len(data))
		}
		return Params{
			Tag:      tag,
			GasLimit: binary.BigEndian.Uint64(data[2:10]),
			Amount:   binary.BigEndian.Uint64(data[10:18]),
			Address:  bytes.Clone(data[airdropHeaderLen:]),
		}, nil
	default:
		return Params{}, invalid("unknown tag %d", tag)
	}
}

func invalid(format string, args ...any) error {
	return fault.InvalidWireFormat("adapterparams.decode", ErrInvalidAdapterParams, format, args...)
}
