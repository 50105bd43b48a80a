package mqttclient

import (
	"bytes"
	"errors"
	"testing"

	"github.com/Raysen37/mqttclient/internal/packets"
)

func TestReadPacketRoundTrip(t *testing.T) {
	c, tr := newTestClient(t)

	raw := serialize(t, func(buf []byte) (int, error) {
		return packets.SerializePublish(buf, false, packets.QoS1, true, 12, "a/b", []byte("payload"))
	})
	tr.feed(raw)

	var timer countdown
	kind, length, err := c.readPacket(&timer)
	if err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	if kind != packets.PUBLISH {
		t.Errorf("kind = %d, want PUBLISH", kind)
	}
	if length != len(raw) {
		t.Errorf("length = %d, want %d", length, len(raw))
	}
	// The remaining-length field is re-encoded in place, so the buffer holds
	// the packet exactly as it appeared on the wire.
	if !bytes.Equal(c.readBuf[:length], raw) {
		t.Errorf("read buffer = %x, want %x", c.readBuf[:length], raw)
	}
}

func TestReadPacketNothingToRead(t *testing.T) {
	c, _ := newTestClient(t)

	var timer countdown
	if _, _, err := c.readPacket(&timer); !errors.Is(err, ErrNothingToRead) {
		t.Errorf("readPacket on empty transport = %v, want ErrNothingToRead", err)
	}
}

// An oversized inbound packet is drained completely so the next read starts
// on a packet boundary.
func TestReadPacketOversizedDrain(t *testing.T) {
	c, tr := newTestClient(t, WithReadBufferSize(16))

	big := serialize(t, func(buf []byte) (int, error) {
		return packets.SerializePublish(buf, false, packets.QoS0, false, 0, "t", bytes.Repeat([]byte("x"), 40))
	})
	ping := serialize(t, packets.SerializePingresp)
	tr.feed(big)
	tr.feed(ping)

	var timer countdown
	if _, _, err := c.readPacket(&timer); !errors.Is(err, ErrBufferTooShort) {
		t.Fatalf("oversized packet = %v, want ErrBufferTooShort", err)
	}

	kind, _, err := c.readPacket(&timer)
	if err != nil {
		t.Fatalf("read after drain: %v", err)
	}
	if kind != packets.PINGRESP {
		t.Errorf("kind after drain = %d, want PINGRESP", kind)
	}
}

func TestReadPacketRemainingLengthOverflow(t *testing.T) {
	c, tr := newTestClient(t)

	// Five length bytes (the first four with the continuation bit set): the
	// remaining-length field may span at most four.
	tr.feed([]byte{0x30, 0x80, 0x80, 0x80, 0x80, 0x01})

	var timer countdown
	_, _, err := c.readPacket(&timer)
	if err == nil || errors.Is(err, ErrNothingToRead) {
		t.Errorf("overlong remaining length = %v, want protocol error", err)
	}
}

func TestSendPacketHonorsPartialWrites(t *testing.T) {
	c, tr := newTestClient(t)
	tr.writeChunk = 3

	raw := serialize(t, func(buf []byte) (int, error) {
		return packets.SerializePublish(buf, false, packets.QoS0, false, 0, "topic", []byte("payload"))
	})
	copy(c.writeBuf, raw)

	timer := newCountdown(c.opts.commandTimeout)
	c.writeMu.Lock()
	err := c.sendPacket(len(raw), &timer)
	c.writeMu.Unlock()
	if err != nil {
		t.Fatalf("sendPacket: %v", err)
	}
	if got := tr.sent(); !bytes.Equal(got, raw) {
		t.Errorf("sent = %x, want %x", got, raw)
	}
}

func TestSendPacketWithoutTransport(t *testing.T) {
	c, _ := newTestClient(t)
	c.releaseTransport()

	timer := newCountdown(c.opts.commandTimeout)
	c.writeMu.Lock()
	err := c.sendPacket(2, &timer)
	c.writeMu.Unlock()
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("sendPacket without transport = %v, want ErrNotConnected", err)
	}
}
