package packets

import "fmt"

// SerializeSuback writes a SUBACK packet into buf. Used by broker-side test
// doubles.
func SerializeSuback(buf []byte, id uint16, returnCodes []byte) (int, error) {
	remainingLength := 2 + len(returnCodes)
	header := FixedHeader{PacketType: SUBACK, RemainingLength: remainingLength}

	total := fixedHeaderSize(remainingLength) + remainingLength
	if total > len(buf) {
		return 0, ErrBufferTooShort
	}

	n := header.encode(buf)
	putUint16(buf[n:], id)
	n += 2
	copy(buf[n:], returnCodes)
	return n + len(returnCodes), nil
}

// DeserializeSuback parses a SUBACK packet and returns the packet id and the
// granted QoS (or failure) codes, one per requested filter.
func DeserializeSuback(buf []byte) (uint16, []byte, error) {
	body, _, err := expectHeader(buf, SUBACK)
	if err != nil {
		return 0, nil, err
	}

	id, err := getUint16(body)
	if err != nil {
		return 0, nil, err
	}
	codes := body[2:]
	if len(codes) == 0 {
		return 0, nil, fmt.Errorf("%w: SUBACK with no return codes", ErrMalformed)
	}
	return id, codes, nil
}
