package packet

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/roach88/omniwire/internal/fault"
)

// PacketType is the first byte of a bridge payload.
type PacketType uint8

const (
	// TypeReceive credits coins on the local ledger.
	TypeReceive PacketType = 0
	// TypeSend debits coins on the local ledger.
	TypeSend PacketType = 1
)

// BridgePayload is the decoded body of a bridge packet.
type BridgePayload struct {
	Type           PacketType
	RemoteCoinAddr []byte
	Receiver       []byte
	AmountSD       uint64
	Unwrap         bool
}

// bridgePayloadHeader is type(1) + remote coin(32) + receiver(32).
const bridgePayloadHeader = 1 + 32 + 32

// DecodeBridgePayload parses a bridge payload. The amount and the trailing
// unwrap flag are optional; when absent they decode to zero values.
func DecodeBridgePayload(payload []byte) (BridgePayload, error) {
	if len(payload) < bridgePayloadHeader {
		return BridgePayload{}, fault.InvalidWireFormat("packet.decode_payload", ErrTruncatedPacket,
			"bridge payload is %d bytes, need at least %d", len(payload), bridgePayloadHeader)
	}
	out := BridgePayload{
		Type:           PacketType(payload[0]),
		RemoteCoinAddr: bytes.Clone(payload[1:33]),
		Receiver:       bytes.Clone(payload[33:65]),
	}
	tail := payload[bridgePayloadHeader:]
	switch {
	case len(tail) == 0:
	case len(tail) >= 8:
		out.AmountSD = binary.BigEndian.Uint64(tail[:8])
		if len(tail) > 8 {
			out.Unwrap = tail[8] != 0
		}
	default:
		return BridgePayload{}, fault.InvalidWireFormat("packet.decode_payload", ErrTruncatedPacket,
			"amount needs 8 bytes, %d remain", len(tail))
	}
	if out.Type != TypeReceive && out.Type != TypeSend {
		return BridgePayload{}, fault.InvalidWireFormat("packet.decode_payload", errUnknownType, "packet type %d", out.Type)
	}
	return out, nil
}

var errUnknownType = errors.New("unknown packet type")
