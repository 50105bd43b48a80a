package packets

import "fmt"

// ConnectOptions carries everything that goes into a CONNECT packet.
type ConnectOptions struct {
	ClientID     string
	Username     string
	Password     string
	KeepAlive    uint16 // seconds
	CleanSession bool
	Version      byte // protocol level, 4 for v3.1.1

	WillFlag    bool
	WillTopic   string
	WillMessage []byte
	WillQoS     byte
	WillRetain  bool
}

// SerializeConnect writes a CONNECT packet into buf and returns its total
// encoded length.
func SerializeConnect(buf []byte, o *ConnectOptions) (int, error) {
	// Variable header: protocol name + level + flags + keepalive
	variableHeaderLen := stringSize("MQTT") + 1 + 1 + 2

	var connectFlags byte
	if o.CleanSession {
		connectFlags |= 0x02
	}

	payloadLen := stringSize(o.ClientID)

	if o.WillFlag {
		connectFlags |= 0x04
		connectFlags |= (o.WillQoS & 0x03) << 3
		if o.WillRetain {
			connectFlags |= 0x20
		}
		payloadLen += stringSize(o.WillTopic) + 2 + len(o.WillMessage)
	}
	if o.Username != "" {
		connectFlags |= 0x80
		payloadLen += stringSize(o.Username)
	}
	if o.Password != "" {
		connectFlags |= 0x40
		payloadLen += stringSize(o.Password)
	}

	remainingLength := variableHeaderLen + payloadLen
	header := FixedHeader{PacketType: CONNECT, RemainingLength: remainingLength}

	total := fixedHeaderSize(remainingLength) + remainingLength
	if total > len(buf) {
		return 0, ErrBufferTooShort
	}

	n := header.encode(buf)
	n += putString(buf[n:], "MQTT")
	buf[n] = o.Version
	n++
	buf[n] = connectFlags
	n++
	putUint16(buf[n:], o.KeepAlive)
	n += 2

	n += putString(buf[n:], o.ClientID)
	if o.WillFlag {
		n += putString(buf[n:], o.WillTopic)
		n += putBytes(buf[n:], o.WillMessage)
	}
	if o.Username != "" {
		n += putString(buf[n:], o.Username)
	}
	if o.Password != "" {
		n += putString(buf[n:], o.Password)
	}

	return n, nil
}

// DeserializeConnect parses a CONNECT packet. It is used by broker-side test
// doubles; the client itself never receives CONNECT.
func DeserializeConnect(buf []byte) (*ConnectOptions, error) {
	body, _, err := expectHeader(buf, CONNECT)
	if err != nil {
		return nil, err
	}

	protocol, n, err := getString(body)
	if err != nil {
		return nil, fmt.Errorf("protocol name: %w", err)
	}
	if protocol != "MQTT" && protocol != "MQIsdp" {
		return nil, fmt.Errorf("%w: unknown protocol name %q", ErrMalformed, protocol)
	}
	body = body[n:]

	if len(body) < 4 {
		return nil, ErrBufferTooShort
	}
	o := &ConnectOptions{Version: body[0]}
	flags := body[1]
	o.CleanSession = flags&0x02 != 0
	o.KeepAlive = uint16(body[2])<<8 | uint16(body[3])
	body = body[4:]

	o.ClientID, n, err = getString(body)
	if err != nil {
		return nil, fmt.Errorf("client id: %w", err)
	}
	body = body[n:]

	if flags&0x04 != 0 {
		o.WillFlag = true
		o.WillQoS = (flags >> 3) & 0x03
		o.WillRetain = flags&0x20 != 0

		o.WillTopic, n, err = getString(body)
		if err != nil {
			return nil, fmt.Errorf("will topic: %w", err)
		}
		body = body[n:]

		o.WillMessage, n, err = getBytes(body)
		if err != nil {
			return nil, fmt.Errorf("will message: %w", err)
		}
		body = body[n:]
	}

	if flags&0x80 != 0 {
		o.Username, n, err = getString(body)
		if err != nil {
			return nil, fmt.Errorf("username: %w", err)
		}
		body = body[n:]
	}
	if flags&0x40 != 0 {
		o.Password, _, err = getString(body)
		if err != nil {
			return nil, fmt.Errorf("password: %w", err)
		}
	}

	return o, nil
}
