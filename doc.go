// Package mqttclient implements an MQTT 3.1.1 client runtime for long-lived
// sessions: publish and subscribe with QoS 0/1/2 guarantees, keep-alive
// probing, and automatic reconnection with subscription restoration.
//
// The engine is built for constrained deployments: it works out of two
// fixed-size buffers that never grow, a single background worker owns all
// network reads, and any number of goroutines may publish or subscribe
// concurrently.
//
// # Basic usage
//
//	c := mqttclient.New(
//	    mqttclient.WithHost("broker.example.com"),
//	    mqttclient.WithClientID("sensor-1"),
//	)
//	if err := c.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Disconnect()
//
//	c.Subscribe("commands/sensor-1", mqttclient.AtLeastOnce,
//	    func(c *mqttclient.Client, m *mqttclient.Message) {
//	        fmt.Printf("%s: %s\n", m.Topic, m.Payload)
//	    })
//
//	c.Publish("telemetry/sensor-1", &mqttclient.Message{
//	    QoS:     mqttclient.AtLeastOnce,
//	    Payload: []byte(`{"temp": 22.5}`),
//	})
//
// # Delivery guarantees
//
// QoS 1 and 2 publishes are tracked in a table of outstanding
// acknowledgments and retransmitted with DUP=1 until the broker answers.
// Inbound QoS 2 messages are deduplicated by packet id, so a handler sees
// each message exactly once even when the broker retries.
//
// # Reconnection
//
// When the link is declared dead — a missed PINGRESP or ack-table overflow —
// the worker rebuilds the transport, replays every installed subscription
// in order, and retransmits whatever was still in flight. A failed send is
// reported to the caller and does not by itself drop the link. A
// reconnect-preparation hook (WithReconnectHandler) can rotate credentials
// before each attempt.
//
// # Transports
//
// Plain TCP is the default; supplying a CA bundle (WithCA) switches to TLS,
// and WithWebSocketURL runs MQTT over a WebSocket. Custom transports can be
// injected with WithTransport.
//
// Handlers run on the worker goroutine: a received Message (and its
// payload, which aliases the read buffer) is only valid during the handler
// call.
package mqttclient
