package packets

import "fmt"

// SerializeSubscribe writes a SUBSCRIBE packet into buf. filters and qoss
// must have the same length.
func SerializeSubscribe(buf []byte, dup bool, id uint16, filters []string, qoss []byte) (int, error) {
	if len(filters) != len(qoss) {
		return 0, fmt.Errorf("%w: %d filters, %d qos values", ErrMalformed, len(filters), len(qoss))
	}

	payloadLen := 0
	for _, f := range filters {
		payloadLen += stringSize(f) + 1
	}
	remainingLength := 2 + payloadLen

	// SUBSCRIBE has mandatory fixed header flags 0x02.
	var flags byte = 0x02
	if dup {
		flags |= 0x08
	}
	header := FixedHeader{PacketType: SUBSCRIBE, Flags: flags, RemainingLength: remainingLength}

	total := fixedHeaderSize(remainingLength) + remainingLength
	if total > len(buf) {
		return 0, ErrBufferTooShort
	}

	n := header.encode(buf)
	putUint16(buf[n:], id)
	n += 2
	for i, f := range filters {
		n += putString(buf[n:], f)
		buf[n] = qoss[i] & 0x03
		n++
	}
	return n, nil
}

// DeserializeSubscribe parses a SUBSCRIBE packet. Used by broker-side test
// doubles.
func DeserializeSubscribe(buf []byte) (uint16, []string, []byte, error) {
	body, _, err := expectHeader(buf, SUBSCRIBE)
	if err != nil {
		return 0, nil, nil, err
	}

	id, err := getUint16(body)
	if err != nil {
		return 0, nil, nil, err
	}
	body = body[2:]

	var filters []string
	var qoss []byte
	for len(body) > 0 {
		f, n, err := getString(body)
		if err != nil {
			return 0, nil, nil, fmt.Errorf("topic filter: %w", err)
		}
		body = body[n:]
		if len(body) < 1 {
			return 0, nil, nil, ErrBufferTooShort
		}
		filters = append(filters, f)
		qoss = append(qoss, body[0]&0x03)
		body = body[1:]
	}
	if len(filters) == 0 {
		return 0, nil, nil, fmt.Errorf("%w: SUBSCRIBE with no topic filters", ErrMalformed)
	}
	return id, filters, qoss, nil
}
