package mqttclient

// Message represents an MQTT application message.
//
// On the publish side the caller fills QoS, Retained and Payload; PacketID
// is assigned by the client for QoS 1 and 2. On the receive side a Message
// is built per inbound PUBLISH and passed to the selected handler. A
// received Message's Payload aliases the client's read buffer and is only
// valid for the duration of the handler call; copy it if it must outlive
// the call.
type Message struct {
	// Topic the message was published to. Empty on the publish side (the
	// topic is a separate Publish argument).
	Topic string

	// Message payload
	Payload []byte

	// Quality of Service level
	QoS QoS

	// Retained message flag
	Retained bool

	// Duplicate delivery flag
	Dup bool

	// Packet identifier, set for QoS 1 and 2
	PacketID uint16
}

// MessageHandler is called for each message received on a subscribed topic.
// Handlers run on the client's worker goroutine and should not block for
// long periods.
type MessageHandler func(*Client, *Message)
