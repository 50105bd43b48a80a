package mqttclient

import (
	"errors"
	"fmt"

	"github.com/Raysen37/mqttclient/internal/packets"
)

// dispatchTurn reads one packet (or times out), handles it, and runs the
// keep-alive check. Handler errors are returned after keep-alive has run;
// the caller decides whether they end the polling loop.
func (c *Client) dispatchTurn(timer *countdown) error {
	kind, length, readErr := c.readPacket(timer)

	var handlerErr error
	switch {
	case readErr == nil:
		handlerErr = c.handlePacket(kind, length, timer)
	case errors.Is(readErr, ErrBufferTooShort):
		// The oversized packet was drained; the stream is still on a packet
		// boundary.
		c.opts.logger.Error("inbound packet exceeds read buffer, discarded",
			"read_buf_size", len(c.readBuf))
	case errors.Is(readErr, ErrNothingToRead):
		// Nothing arrived this turn.
	default:
		c.opts.logger.Debug("read failed", "error", readErr)
	}

	if err := c.keepAlive(); err != nil {
		return err
	}
	return handlerErr
}

// handlePacket dispatches the packet sitting in the read buffer.
func (c *Client) handlePacket(kind byte, length int, timer *countdown) error {
	c.opts.logger.Debug("received packet", "type", packets.PacketNames[kind])

	switch kind {
	case packets.CONNACK:
		// Handled inside the connect path; ignored here.
		return nil
	case packets.PUBACK, packets.PUBCOMP:
		return c.handlePubackPubcomp(length)
	case packets.PUBREC, packets.PUBREL:
		return c.handlePubrecPubrel(length)
	case packets.SUBACK:
		return c.handleSuback(length)
	case packets.UNSUBACK:
		return c.handleUnsuback(length)
	case packets.PUBLISH:
		return c.handlePublish(length, timer)
	case packets.PINGRESP:
		c.pingOutstanding = false
		return nil
	default:
		// Unknown kinds are consumed and ignored.
		return nil
	}
}

// handlePubackPubcomp finishes a QoS 1 publish (PUBACK) or the QoS 2
// handshake (PUBCOMP) by dropping the matching ack entry. A repeated ack
// for the same id is a no-op.
func (c *Client) handlePubackPubcomp(length int) error {
	kind, _, id, err := packets.DeserializeAck(c.readBuf[:length])
	if err != nil {
		return fmt.Errorf("ack: %w", err)
	}
	c.ackUnrecord(kind, id)
	return nil
}

// handlePubrecPubrel advances the QoS 2 handshake. PUBREC answers our
// PUBLISH: reply PUBREL and start expecting PUBCOMP. PUBREL answers our
// PUBREC: reply PUBCOMP and drop the receive-side entry.
func (c *Client) handlePubrecPubrel(length int) error {
	kind, _, id, err := packets.DeserializeAck(c.readBuf[:length])
	if err != nil {
		return err
	}

	switch kind {
	case packets.PUBREC:
		c.writeMu.Lock()
		n, err := packets.SerializeAck(c.writeBuf, packets.PUBREL, false, id)
		if err == nil {
			// Save the PUBREL before sending so a lost PUBCOMP retransmits
			// it. A duplicate record means the broker re-sent PUBREC; the
			// existing entry already covers the retry.
			if recErr := c.ackRecord(packets.PUBCOMP, id, n, nil); recErr == nil {
				timer := newCountdown(c.opts.commandTimeout)
				err = c.sendPacket(n, &timer)
			}
		}
		c.writeMu.Unlock()
		if err != nil {
			return err
		}
		c.ackUnrecord(packets.PUBREC, id)

	case packets.PUBREL:
		c.writeMu.Lock()
		n, err := packets.SerializeAck(c.writeBuf, packets.PUBCOMP, false, id)
		if err == nil {
			timer := newCountdown(c.opts.commandTimeout)
			err = c.sendPacket(n, &timer)
		}
		c.writeMu.Unlock()
		if err != nil {
			return err
		}
		c.ackUnrecord(packets.PUBREL, id)
	}
	return nil
}

// handleSuback resolves a pending subscribe: on success the carried entry
// is installed into the subscription table, on failure it is dropped.
func (c *Client) handleSuback(length int) error {
	id, granted, err := packets.DeserializeSuback(c.readBuf[:length])
	if err != nil {
		return err
	}

	sub := c.ackUnrecord(packets.SUBACK, id)
	if sub == nil {
		c.opts.logger.Debug("SUBACK with no pending subscribe", "packet_id", id)
		return nil
	}

	if granted[0] == packets.SubackFailure {
		c.opts.logger.Warn("subscription rejected by broker", "filter", sub.filter)
		return nil
	}

	c.globalMu.Lock()
	c.subs.install(sub)
	c.globalMu.Unlock()
	c.opts.logger.Debug("subscription installed", "filter", sub.filter, "granted_qos", granted[0])
	return nil
}

// handleUnsuback resolves a pending unsubscribe by removing the matching
// subscription entry.
func (c *Client) handleUnsuback(length int) error {
	id, err := packets.DeserializeUnsuback(c.readBuf[:length])
	if err != nil {
		return err
	}

	sub := c.ackUnrecord(packets.UNSUBACK, id)
	if sub == nil {
		c.opts.logger.Debug("UNSUBACK with no pending unsubscribe", "packet_id", id)
		return nil
	}

	c.globalMu.Lock()
	c.subs.remove(sub.filter)
	c.globalMu.Unlock()
	c.opts.logger.Debug("subscription removed", "filter", sub.filter)
	return nil
}

// handlePublish acknowledges an inbound PUBLISH according to its QoS and
// delivers it to the matching handler. A QoS 2 duplicate (same packet id
// while the PUBREL is still pending) is acknowledged again but delivered
// only once.
func (c *Client) handlePublish(length int, timer *countdown) error {
	p, err := packets.DeserializePublish(c.readBuf[:length])
	if err != nil {
		return err
	}

	deliver := true
	switch p.QoS {
	case packets.QoS1:
		c.writeMu.Lock()
		n, err := packets.SerializeAck(c.writeBuf, packets.PUBACK, false, p.PacketID)
		if err == nil {
			err = c.sendPacket(n, timer)
		}
		c.writeMu.Unlock()
		if err != nil {
			return err
		}

	case packets.QoS2:
		c.writeMu.Lock()
		n, err := packets.SerializeAck(c.writeBuf, packets.PUBREC, false, p.PacketID)
		if err == nil {
			// First arrival delivers; later duplicates with the same id are
			// only acknowledged.
			recErr := c.ackRecord(packets.PUBREL, p.PacketID, n, nil)
			if errors.Is(recErr, ErrAckDuplicate) {
				deliver = false
			}
			err = c.sendPacket(n, timer)
		}
		c.writeMu.Unlock()
		if err != nil {
			return err
		}
	}

	if deliver {
		c.deliverMessage(p)
	}
	return nil
}

// deliverMessage routes the message to the first matching subscription, or
// to the interceptor, or drops it.
func (c *Client) deliverMessage(p *packets.PublishData) {
	msg := &Message{
		Topic:    p.Topic,
		Payload:  p.Payload,
		QoS:      QoS(p.QoS),
		Retained: p.Retained,
		Dup:      p.Dup,
		PacketID: p.PacketID,
	}

	c.globalMu.Lock()
	sub := c.subs.findFor(p.Topic)
	c.globalMu.Unlock()

	switch {
	case sub != nil:
		sub.handler(c, msg)
	case c.opts.interceptor != nil:
		c.opts.interceptor(c, msg)
	default:
		c.opts.logger.Debug("message matched no subscription, dropped", "topic", p.Topic)
	}
}

// keepAlive runs at the end of every dispatcher turn. When the link has
// been idle past the keep-alive interval in either direction it sends a
// PINGREQ; a second expiry with the ping still outstanding declares the
// link dead.
func (c *Client) keepAlive() error {
	switch c.loadState() {
	case stateConnected:
	case stateCleanSession:
		return ErrCleanSession
	default:
		return ErrNotConnected
	}

	if c.opts.keepAlive <= 0 {
		return nil
	}

	c.writeMu.Lock()
	if !c.lastSent.expired() && !c.lastReceived.expired() {
		c.writeMu.Unlock()
		return nil
	}

	if c.pingOutstanding {
		c.writeMu.Unlock()
		c.opts.logger.Warn("no PINGRESP within keep-alive interval, link is dead")
		c.releaseTransport()
		c.setState(stateDisconnected)
		return ErrNotConnected
	}

	timer := newCountdown(c.opts.commandTimeout)
	n, err := packets.SerializePingreq(c.writeBuf)
	if err == nil {
		err = c.sendPacket(n, &timer)
	}
	if err == nil {
		c.pingOutstanding = true
	} else {
		c.opts.logger.Debug("failed to send PINGREQ", "error", err)
	}
	c.writeMu.Unlock()
	return nil
}
