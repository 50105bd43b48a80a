package mqttclient

import "github.com/Raysen37/mqttclient/internal/packets"

// maxPendingAcks bounds the table of outstanding acknowledgments. Publishes
// with QoS > 0 fail fast once the table is full.
const maxPendingAcks = 64

// ackKey identifies an outstanding acknowledgment: the packet type we expect
// from the broker and the packet id it must carry. The pair is unique in the
// table.
type ackKey struct {
	kind byte
	id   uint16
}

// ackEntry is one outstanding acknowledgment. payload holds the full
// serialized outbound packet so a retransmission needs no re-serialization.
// sub carries the subscription entry to install on SUBACK (or to drop on
// UNSUBACK).
type ackEntry struct {
	kind     byte
	packetID uint16
	deadline countdown
	payload  []byte
	sub      *subscription
}

// ackRecord inserts an entry awaiting (kind, id). The caller must hold the
// write lock: the saved payload is copied out of the write buffer. Returns
// ErrAckDuplicate when the pair is already present and ErrAckTooMany when
// the table is full.
func (c *Client) ackRecord(kind byte, id uint16, length int, sub *subscription) error {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	key := ackKey{kind: kind, id: id}
	if _, ok := c.acks[key]; ok {
		return ErrAckDuplicate
	}
	if len(c.acks) >= maxPendingAcks {
		return ErrAckTooMany
	}

	payload := make([]byte, length)
	copy(payload, c.writeBuf[:length])

	c.acks[key] = &ackEntry{
		kind:     kind,
		packetID: id,
		deadline: newCountdown(c.opts.commandTimeout),
		payload:  payload,
		sub:      sub,
	}
	return nil
}

// ackUnrecord removes the entry matching (kind, id) and returns the carried
// subscription, if any. Removing an absent pair is a no-op.
func (c *Client) ackUnrecord(kind byte, id uint16) *subscription {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()

	key := ackKey{kind: kind, id: id}
	e, ok := c.acks[key]
	if !ok {
		return nil
	}
	delete(c.acks, key)
	return e.sub
}

// ackPendingFull reports whether the table has reached its limit.
func (c *Client) ackPendingFull() bool {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	return len(c.acks) >= maxPendingAcks
}

// ackScan walks the outstanding acknowledgments. With onlyExpired set,
// entries whose deadline has not passed are skipped. Expired QoS 1/2
// entries are retransmitted from their saved payload and re-armed; expired
// SUBACK/UNSUBACK entries are dropped (subscribe is not retried at the
// protocol level — the reconnect path re-subscribes from the subscription
// table).
func (c *Client) ackScan(onlyExpired bool) {
	if c.loadState() != stateConnected {
		return
	}

	c.globalMu.Lock()
	entries := make([]*ackEntry, 0, len(c.acks))
	for _, e := range c.acks {
		entries = append(entries, e)
	}
	c.globalMu.Unlock()

	for _, e := range entries {
		if onlyExpired && !e.deadline.expired() {
			continue
		}

		switch e.kind {
		case packets.PUBACK, packets.PUBREC, packets.PUBREL, packets.PUBCOMP:
			c.ackResend(e)
		case packets.SUBACK, packets.UNSUBACK:
			c.globalMu.Lock()
			delete(c.acks, ackKey{kind: e.kind, id: e.packetID})
			c.globalMu.Unlock()
			c.opts.logger.Debug("dropping unacknowledged request",
				"kind", packets.PacketNames[e.kind], "packet_id", e.packetID)
		}
	}
}

// ackResend copies the entry's saved payload back into the write buffer,
// sends it and resets the entry deadline.
func (c *Client) ackResend(e *ackEntry) {
	timer := newCountdown(c.opts.commandTimeout)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	copy(c.writeBuf, e.payload)
	if err := c.sendPacket(len(e.payload), &timer); err != nil {
		c.opts.logger.Warn("retransmission failed",
			"kind", packets.PacketNames[e.kind], "packet_id", e.packetID, "error", err)
	} else {
		c.opts.logger.Debug("retransmitted packet",
			"kind", packets.PacketNames[e.kind], "packet_id", e.packetID)
	}
	e.deadline.cutdown(c.opts.commandTimeout)
}

// ackClear drops every outstanding entry together with any carried
// subscription. Used during session cleanup.
func (c *Client) ackClear() {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	clear(c.acks)
}
