package packet

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"

	"github.com/roach88/omniwire/internal/fault"
)

// LocalAddressWidth is the fixed source-address width of packets emitted by
// the local ledger.
const LocalAddressWidth = 32

// ErrTruncatedPacket is wrapped by decode errors where fewer bytes remain
// than a fixed-width field requires.
var ErrTruncatedPacket = errors.New("truncated packet")

// Packet is an immutable cross-chain message envelope.
type Packet struct {
	Nonce      uint64
	SrcChainID uint16
	SrcAddress []byte
	DstChainID uint16
	DstAddress []byte
	Payload    []byte
}

// Width resolves the address width of a chain.
type Width interface {
	WidthOf(chainID uint16) (int, error)
}

// FixedWidth is a Width that ignores the chain id.
type FixedWidth int

// WidthOf implements Width.
func (w FixedWidth) WidthOf(uint16) (int, error) { return int(w), nil }

// WidthFunc adapts a function to Width.
type WidthFunc func(chainID uint16) (int, error)

// WidthOf implements Width.
func (f WidthFunc) WidthOf(chainID uint16) (int, error) { return f(chainID) }

// Encode serializes p.
func Encode(p Packet) []byte {
	buf := make([]byte, 0, 12+len(p.SrcAddress)+len(p.DstAddress)+len(p.Payload))
	buf = appendHeader(buf, p)
	return append(buf, p.Payload...)
}

func appendHeader(buf []byte, p Packet) []byte {
	buf = binary.BigEndian.AppendUint64(buf, p.Nonce)
	buf = binary.BigEndian.AppendUint16(buf, p.SrcChainID)
	buf = append(buf, p.SrcAddress...)
	buf = binary.BigEndian.AppendUint16(buf, p.DstChainID)
	return append(buf, p.DstAddress...)
}

// Decode parses data emitted by the local ledger: the source address is
// read as LocalAddressWidth bytes and the destination width comes from dst.
func Decode(data []byte, dst Width) (Packet, error) {
	return DecodeWithSource(data, FixedWidth(LocalAddressWidth), dst)
}

// DecodeWithSource parses data with explicit widths for both addresses.
// The returned packet does not alias data.
func DecodeWithSource(data []byte, src, dst Width) (Packet, error) {
	r := reader{buf: data}
	var p Packet

	p.Nonce = binary.BigEndian.Uint64(r.take(8))
	p.SrcChainID = binary.BigEndian.Uint16(r.take(2))
	srcWidth, err := src.WidthOf(p.SrcChainID)
	if err != nil {
		return Packet{}, fault.InvalidWireFormat("packet.decode", err, "resolve width of source chain %d", p.SrcChainID)
	}
	p.SrcAddress = bytes.Clone(r.take(srcWidth))
	p.DstChainID = binary.BigEndian.Uint16(r.take(2))
	dstWidth, err := dst.WidthOf(p.DstChainID)
	if err != nil {
		return Packet{}, fault.InvalidWireFormat("packet.decode", err, "resolve width of destination chain %d", p.DstChainID)
	}
	p.DstAddress = bytes.Clone(r.take(dstWidth))
	if r.short != "" {
		return Packet{}, fault.InvalidWireFormat("packet.decode", ErrTruncatedPacket, "%s needs more bytes than the %d available", r.short, len(data))
	}
	p.Payload = bytes.Clone(r.rest())
	return p, nil
}

// Hash returns the SHA3-256 of Encode(p) as lowercase hex.
func Hash(p Packet) string {
	return hashHex(Encode(p))
}

// GUID returns the hash of the envelope without its payload. It identifies a
// message independently of its content.
func GUID(p Packet) string {
	return hashHex(appendHeader(nil, p))
}

func hashHex(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Equal reports whether a and b are the same envelope.
func Equal(a, b Packet) bool {
	return a.Nonce == b.Nonce &&
		a.SrcChainID == b.SrcChainID &&
		a.DstChainID == b.DstChainID &&
		bytes.Equal(a.SrcAddress, b.SrcAddress) &&
		bytes.Equal(a.DstAddress, b.DstAddress) &&
		bytes.Equal(a.Payload, b.Payload)
}

// reader consumes fixed-width fields and remembers the first one that did
// not fit, so Decode reports a single error.
type reader struct {
	buf   []byte
	off   int
	short string
	field int
}

var fieldNames = []string{"nonce", "srcChainId", "srcAddress", "dstChainId", "dstAddress"}

func (r *reader) take(n int) []byte {
	name := fieldNames[r.field]
	r.field++
	if r.short != "" {
		return make([]byte, n)
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.short = name
		return make([]byte, max(n, 0))
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out
}

func (r *reader) rest() []byte {
	return r.buf[r.off:]
}
