package packets

import "fmt"

// FixedHeader represents the fixed header present in all MQTT control packets.
// Format: [PacketType + Flags (1 byte)][Remaining Length (1-4 bytes)]
type FixedHeader struct {
	PacketType      byte
	Flags           byte
	RemainingLength int
}

// fixedHeaderSize returns the encoded size of the header for a given
// remaining length.
func fixedHeaderSize(remainingLength int) int {
	return 1 + varIntLen(remainingLength)
}

// encode writes the fixed header into buf and returns the number of bytes
// written. The caller must have verified that buf is large enough.
func (h *FixedHeader) encode(buf []byte) int {
	buf[0] = (h.PacketType << 4) | (h.Flags & 0x0F)
	return 1 + EncodeRemainingLength(buf[1:], h.RemainingLength)
}

// decodeFixedHeader parses the fixed header at the start of buf. It returns
// the header and the number of bytes it occupies.
func decodeFixedHeader(buf []byte) (FixedHeader, int, error) {
	if len(buf) < 2 {
		return FixedHeader{}, 0, ErrBufferTooShort
	}

	h := FixedHeader{
		PacketType: buf[0] >> 4,
		Flags:      buf[0] & 0x0F,
	}

	remaining, n, err := DecodeRemainingLength(buf[1:])
	if err != nil {
		return FixedHeader{}, 0, fmt.Errorf("remaining length: %w", err)
	}
	h.RemainingLength = remaining

	total := 1 + n
	if len(buf) < total+remaining {
		return FixedHeader{}, 0, ErrBufferTooShort
	}
	return h, total, nil
}

// expectHeader decodes the fixed header and checks the packet type. It
// returns the packet body (exactly RemainingLength bytes).
func expectHeader(buf []byte, packetType byte) ([]byte, FixedHeader, error) {
	h, n, err := decodeFixedHeader(buf)
	if err != nil {
		return nil, h, err
	}
	if h.PacketType != packetType {
		return nil, h, fmt.Errorf("%w: expected %s, got %s",
			ErrMalformed, PacketNames[packetType], PacketNames[h.PacketType])
	}
	return buf[n : n+h.RemainingLength], h, nil
}
