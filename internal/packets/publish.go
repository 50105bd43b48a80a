package packets

import "fmt"

// PublishData is the decoded form of a PUBLISH packet. Payload aliases the
// buffer it was parsed from and must not be retained past the buffer's reuse.
type PublishData struct {
	Dup      bool
	QoS      byte
	Retained bool
	PacketID uint16 // only meaningful when QoS > 0
	Topic    string
	Payload  []byte
}

// SerializePublish writes a PUBLISH packet into buf and returns its total
// encoded length.
func SerializePublish(buf []byte, dup bool, qos byte, retained bool, id uint16, topic string, payload []byte) (int, error) {
	variableHeaderLen := stringSize(topic)
	if qos > 0 {
		variableHeaderLen += 2
	}
	remainingLength := variableHeaderLen + len(payload)

	var flags byte
	if dup {
		flags |= 0x08
	}
	flags |= (qos & 0x03) << 1
	if retained {
		flags |= 0x01
	}

	header := FixedHeader{PacketType: PUBLISH, Flags: flags, RemainingLength: remainingLength}
	total := fixedHeaderSize(remainingLength) + remainingLength
	if total > len(buf) {
		return 0, ErrBufferTooShort
	}

	n := header.encode(buf)
	n += putString(buf[n:], topic)
	if qos > 0 {
		putUint16(buf[n:], id)
		n += 2
	}
	copy(buf[n:], payload)
	return n + len(payload), nil
}

// DeserializePublish parses a PUBLISH packet.
func DeserializePublish(buf []byte) (*PublishData, error) {
	body, header, err := expectHeader(buf, PUBLISH)
	if err != nil {
		return nil, err
	}

	p := &PublishData{
		Dup:      header.Flags&0x08 != 0,
		QoS:      (header.Flags >> 1) & 0x03,
		Retained: header.Flags&0x01 != 0,
	}
	if p.QoS > QoS2 {
		return nil, fmt.Errorf("%w: invalid QoS %d", ErrMalformed, p.QoS)
	}

	topic, n, err := getString(body)
	if err != nil {
		return nil, fmt.Errorf("topic: %w", err)
	}
	p.Topic = topic
	body = body[n:]

	if p.QoS > 0 {
		p.PacketID, err = getUint16(body)
		if err != nil {
			return nil, fmt.Errorf("packet id: %w", err)
		}
		body = body[2:]
	}

	p.Payload = body
	return p, nil
}
