package mqttclient

// QoS is the delivery guarantee requested for a publish or carried by a
// subscription.
type QoS uint8

// The three MQTT delivery guarantees, weakest to strongest. Each step up
// costs extra round trips: QoS 1 waits for a PUBACK, QoS 2 runs the full
// four-packet handshake.
const (
	// AtMostOnce hands the message to the transport once and forgets it.
	// Nothing is acknowledged or retried, so it can vanish with the link.
	AtMostOnce QoS = 0

	// AtLeastOnce keeps retransmitting (with DUP set) until the broker
	// answers PUBACK. Delivery is guaranteed, duplicates are possible.
	AtLeastOnce QoS = 1

	// ExactlyOnce trades throughput for the PUBREC/PUBREL/PUBCOMP
	// handshake, which filters retransmitted copies out on the receiving
	// side.
	ExactlyOnce QoS = 2
)
