package mqttclient

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Raysen37/mqttclient/internal/packets"
)

func TestAckRecordRejectsDuplicate(t *testing.T) {
	c, _ := newTestClient(t)
	copy(c.writeBuf, []byte{0x40, 0x02, 0x00, 0x07})

	if err := c.ackRecord(packets.PUBACK, 7, 4, nil); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := c.ackRecord(packets.PUBACK, 7, 4, nil); !errors.Is(err, ErrAckDuplicate) {
		t.Errorf("duplicate record = %v, want ErrAckDuplicate", err)
	}

	// A different kind with the same id is a distinct entry.
	if err := c.ackRecord(packets.PUBREC, 7, 4, nil); err != nil {
		t.Errorf("record with different kind: %v", err)
	}
}

func TestAckRecordLimit(t *testing.T) {
	c, _ := newTestClient(t)

	for id := uint16(1); id <= maxPendingAcks; id++ {
		if err := c.ackRecord(packets.PUBACK, id, 2, nil); err != nil {
			t.Fatalf("record %d: %v", id, err)
		}
	}
	if err := c.ackRecord(packets.PUBACK, maxPendingAcks+1, 2, nil); !errors.Is(err, ErrAckTooMany) {
		t.Errorf("record past limit = %v, want ErrAckTooMany", err)
	}
	if len(c.acks) != maxPendingAcks {
		t.Errorf("table length %d, want %d", len(c.acks), maxPendingAcks)
	}
}

func TestAckUnrecordReturnsCarriedSubscription(t *testing.T) {
	c, _ := newTestClient(t)
	sub := &subscription{filter: "t", handler: noopHandler}

	if err := c.ackRecord(packets.SUBACK, 3, 2, sub); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := c.ackUnrecord(packets.SUBACK, 3); got != sub {
		t.Errorf("unrecord returned %v, want the recorded subscription", got)
	}
	// Removing an absent pair is a no-op.
	if got := c.ackUnrecord(packets.SUBACK, 3); got != nil {
		t.Errorf("second unrecord returned %v, want nil", got)
	}
}

func TestAckScanRetransmitsExpiredPublish(t *testing.T) {
	c, tr := newTestClient(t, WithCommandTimeout(10*time.Millisecond))

	payload := serialize(t, func(buf []byte) (int, error) {
		return packets.SerializePublish(buf, true, packets.QoS1, false, 9, "t", []byte("p"))
	})
	copy(c.writeBuf, payload)
	if err := c.ackRecord(packets.PUBACK, 9, len(payload), nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	// Not yet expired: a blocking scan leaves it alone.
	c.ackScan(true)
	if got := tr.sent(); len(got) != 0 {
		t.Fatalf("unexpired entry retransmitted: %x", got)
	}

	time.Sleep(20 * time.Millisecond)
	c.ackScan(true)
	if got := tr.sent(); !bytes.Equal(got, payload) {
		t.Errorf("retransmission = %x, want %x", got, payload)
	}

	// The deadline was reset, so an immediate second scan sends nothing.
	c.ackScan(true)
	if got := tr.sent(); len(got) != 0 {
		t.Errorf("entry retransmitted before deadline reset elapsed: %x", got)
	}

	// A non-blocking scan retransmits regardless of the deadline.
	c.ackScan(false)
	if got := tr.sent(); !bytes.Equal(got, payload) {
		t.Errorf("non-blocking scan = %x, want %x", got, payload)
	}
}

func TestAckScanDropsExpiredSubscribeEntries(t *testing.T) {
	c, tr := newTestClient(t, WithCommandTimeout(10*time.Millisecond))
	sub := &subscription{filter: "t", handler: noopHandler}

	if err := c.ackRecord(packets.SUBACK, 4, 2, sub); err != nil {
		t.Fatalf("record: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	c.ackScan(true)

	if len(c.acks) != 0 {
		t.Errorf("expired SUBACK entry still present")
	}
	if got := tr.sent(); len(got) != 0 {
		t.Errorf("SUBACK entry retransmitted: %x", got)
	}
}

func TestAckScanOnlyWhenConnected(t *testing.T) {
	c, tr := newTestClient(t, WithCommandTimeout(time.Millisecond))
	copy(c.writeBuf, []byte{0x40, 0x02, 0x00, 0x01})
	if err := c.ackRecord(packets.PUBACK, 1, 4, nil); err != nil {
		t.Fatalf("record: %v", err)
	}

	c.state.Store(int32(stateDisconnected))
	time.Sleep(5 * time.Millisecond)
	c.ackScan(false)
	if got := tr.sent(); len(got) != 0 {
		t.Errorf("scan retransmitted while disconnected: %x", got)
	}
}

func TestAckClear(t *testing.T) {
	c, _ := newTestClient(t)
	for id := uint16(1); id <= 5; id++ {
		if err := c.ackRecord(packets.PUBACK, id, 2, nil); err != nil {
			t.Fatalf("record %d: %v", id, err)
		}
	}

	c.ackClear()
	if len(c.acks) != 0 {
		t.Errorf("table length %d after clear", len(c.acks))
	}
}
