package mqttclient

import (
	"fmt"

	"github.com/Raysen37/mqttclient/internal/packets"
)

// readPacket reads exactly one control packet from the transport into the
// read buffer: the type byte, the remaining-length field (re-encoded back
// into the buffer so the caller sees the full raw packet) and the body. It
// returns the packet type and the total packet length.
//
// A packet whose declared length exceeds the read buffer is drained from
// the transport and reported as ErrBufferTooShort, leaving the stream on a
// packet boundary.
func (c *Client) readPacket(timer *countdown) (byte, int, error) {
	conn := c.transport()
	if conn == nil {
		return 0, 0, ErrNotConnected
	}

	timer.cutdown(c.opts.commandTimeout)

	n, err := conn.Read(c.readBuf[:1], timer.remaining())
	if err != nil || n != 1 {
		return 0, 0, ErrNothingToRead
	}

	// Remaining length: 1-4 bytes, high bit marks continuation, low 7 bits
	// contribute base-128 digits.
	remaining := 0
	multiplier := 1
	var digit [1]byte
	for i := 0; ; i++ {
		if i >= 4 {
			return 0, 0, fmt.Errorf("%w: remaining length exceeds 4 bytes", packets.ErrMalformed)
		}
		if n, err = conn.Read(digit[:], timer.remaining()); err != nil || n != 1 {
			return 0, 0, ErrNothingToRead
		}
		remaining += int(digit[0]&0x7F) * multiplier
		multiplier *= 128
		if digit[0]&0x80 == 0 {
			break
		}
	}

	headerLen := 1 + varIntSize(remaining)
	total := headerLen + remaining
	if total > len(c.readBuf) {
		c.drainPacket(timer, remaining)
		return 0, 0, ErrBufferTooShort
	}

	// Put the remaining length field back so the buffer holds the packet
	// exactly as it appeared on the wire.
	packets.EncodeRemainingLength(c.readBuf[1:], remaining)

	for read := 0; read < remaining; {
		if timer.expired() {
			return 0, 0, ErrNothingToRead
		}
		n, _ = conn.Read(c.readBuf[headerLen+read:total], timer.remaining())
		if n <= 0 {
			return 0, 0, ErrNothingToRead
		}
		read += n
	}

	c.lastReceived.cutdown(c.opts.keepAlive)
	c.packetsReceived.Add(1)
	c.bytesReceived.Add(uint64(total))

	return c.readBuf[0] >> 4, total, nil
}

// drainPacket reads and discards length bytes from the transport, reusing
// the read buffer as scratch space. The wait is bounded by the timer and by
// the transport making progress.
func (c *Client) drainPacket(timer *countdown, length int) {
	conn := c.transport()
	if conn == nil {
		return
	}

	for left := length; left > 0 && !timer.expired(); {
		chunk := min(left, len(c.readBuf))
		n, err := conn.Read(c.readBuf[:chunk], timer.remaining())
		if n <= 0 {
			return
		}
		left -= n
		if err != nil {
			return
		}
	}
}

// sendPacket writes the first length bytes of the write buffer to the
// transport, honoring partial writes, until done or the timer expires. The
// caller must hold the write lock.
func (c *Client) sendPacket(length int, timer *countdown) error {
	conn := c.transport()
	if conn == nil {
		return ErrNotConnected
	}

	timer.cutdown(c.opts.commandTimeout)

	sent := 0
	for sent < length && !timer.expired() {
		n, _ := conn.Write(c.writeBuf[sent:length], timer.remaining())
		if n <= 0 {
			break
		}
		sent += n
	}

	if sent != length {
		return fmt.Errorf("wrote %d of %d bytes: %w", sent, length, ErrSendFailed)
	}

	c.lastSent.cutdown(c.opts.keepAlive)
	c.packetsSent.Add(1)
	c.bytesSent.Add(uint64(length))
	return nil
}

// varIntSize returns the encoded size of a remaining-length value (1-4).
func varIntSize(value int) int {
	switch {
	case value < 128:
		return 1
	case value < 16384:
		return 2
	case value < 2097152:
		return 3
	default:
		return 4
	}
}
