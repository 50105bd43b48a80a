package mqttclient

import (
	"io"
	"log/slog"
	"time"
)

const (
	defaultKeepAlive         = 60 * time.Second
	defaultCommandTimeout    = 5 * time.Second
	defaultReconnectInterval = time.Second
	defaultBufferSize        = 1024

	// Buffer sizes outside [minBufferSize, maxBufferSize] fall back to the
	// default. The upper bound is the largest value the MQTT
	// remaining-length field can encode.
	minBufferSize = 2
	maxBufferSize = 268435455
)

// ProtocolV311 is the protocol level byte for MQTT version 3.1.1.
const ProtocolV311 byte = 4

// clientOptions holds configuration for the MQTT client.
type clientOptions struct {
	// Broker endpoint
	host string
	port string

	// Client identifier; a random one is generated when empty
	clientID string

	// Credentials (optional)
	username string
	password string

	// Keep alive interval
	keepAlive time.Duration

	// Clean session flag
	cleanSession bool

	// Protocol level byte carried in CONNECT
	version byte

	// Default deadline for blocking operations; also the per-entry ack
	// deadline
	commandTimeout time.Duration

	// Sleep between failed reconnect attempts
	reconnectInterval time.Duration

	// PEM CA bundle; non-nil enables TLS
	ca []byte

	// WebSocket endpoint; non-empty selects the WebSocket transport
	websocketURL string

	// Will message (optional)
	will *willMessage

	// Hooks (optional)
	reconnectHandler func(*Client)
	interceptor      MessageHandler
	defaultHandler   MessageHandler

	// Logger for client events (optional, defaults to discarding logs)
	logger *slog.Logger

	// Read/write buffer sizes; the engine never grows them
	readBufSize  int
	writeBufSize int

	// Custom transport (optional); overrides host/port/ca/websocketURL
	transport Transport
}

// willMessage represents the Last Will and Testament message.
type willMessage struct {
	topic    string
	payload  []byte
	qos      QoS
	retained bool
}

// Option is a functional option for configuring the client.
type Option func(*clientOptions)

// WithHost sets the broker host name or address (default: "localhost").
func WithHost(host string) Option {
	return func(o *clientOptions) {
		o.host = host
	}
}

// WithPort sets the broker port (default: "1883").
func WithPort(port string) Option {
	return func(o *clientOptions) {
		o.port = port
	}
}

// WithClientID sets the client identifier.
//
// The client ID uniquely identifies this client to the broker. When empty,
// a random identifier is generated at connect time. For persistent sessions
// (clean session disabled) you should provide a stable, non-empty ID.
func WithClientID(id string) Option {
	return func(o *clientOptions) {
		o.clientID = id
	}
}

// WithCredentials sets the username and password for authentication.
func WithCredentials(username, password string) Option {
	return func(o *clientOptions) {
		o.username = username
		o.password = password
	}
}

// WithKeepAlive sets the MQTT keep alive interval (default: 60s).
// Zero disables keep-alive probing.
func WithKeepAlive(duration time.Duration) Option {
	return func(o *clientOptions) {
		o.keepAlive = duration
	}
}

// WithCleanSession sets the clean session flag (default: true).
//
// When true the broker discards any previous session state for this client
// ID and each connection starts fresh. When false the broker keeps
// subscriptions and queued QoS 1/2 messages across disconnections; the
// client must then use a stable client ID.
func WithCleanSession(clean bool) Option {
	return func(o *clientOptions) {
		o.cleanSession = clean
	}
}

// WithCommandTimeout sets the default deadline for blocking operations
// (default: 5s). The same duration arms each outstanding acknowledgment,
// so it is also the retransmission interval for unacknowledged QoS 1/2
// publishes.
func WithCommandTimeout(duration time.Duration) Option {
	return func(o *clientOptions) {
		o.commandTimeout = duration
	}
}

// WithReconnectInterval sets the pause between failed reconnect attempts
// (default: 1s).
func WithReconnectInterval(duration time.Duration) Option {
	return func(o *clientOptions) {
		o.reconnectInterval = duration
	}
}

// WithCA supplies a PEM certificate bundle and switches the transport to
// TLS. Only the trust anchors come from the bundle; host name verification
// uses the configured host.
func WithCA(pem []byte) Option {
	return func(o *clientOptions) {
		o.ca = pem
	}
}

// WithWebSocketURL selects the WebSocket transport and sets its endpoint,
// e.g. "ws://broker.example.com:8080/mqtt". Combine with WithCA for wss.
func WithWebSocketURL(url string) Option {
	return func(o *clientOptions) {
		o.websocketURL = url
	}
}

// WithVersion sets the MQTT protocol level byte carried in CONNECT
// (default: ProtocolV311).
func WithVersion(version byte) Option {
	return func(o *clientOptions) {
		o.version = version
	}
}

// WithWill sets the Last Will and Testament (LWT) message.
//
// The LWT is published by the broker on behalf of the client if the client
// disconnects unexpectedly (network failure, crash, missed keep-alives). It
// is not sent on a graceful Disconnect. Commonly used to signal that a
// device has gone offline:
//
//	c := mqttclient.New(
//	    mqttclient.WithClientID("sensor-1"),
//	    mqttclient.WithWill("devices/sensor-1/status", []byte("offline"), mqttclient.AtLeastOnce, true))
func WithWill(topic string, payload []byte, qos QoS, retained bool) Option {
	return func(o *clientOptions) {
		o.will = &willMessage{
			topic:    topic,
			payload:  payload,
			qos:      qos,
			retained: retained,
		}
	}
}

// WithReconnectHandler sets a hook invoked before every reconnect attempt.
// It can mutate the client's credentials, which some platforms require to
// be rotated per connection.
func WithReconnectHandler(handler func(*Client)) Option {
	return func(o *clientOptions) {
		o.reconnectHandler = handler
	}
}

// WithInterceptor sets a handler for messages that match no installed
// subscription. Without it such messages are dropped silently (but still
// acknowledged to comply with the protocol).
func WithInterceptor(handler MessageHandler) Option {
	return func(o *clientOptions) {
		o.interceptor = handler
	}
}

// WithDefaultHandler sets the handler substituted when Subscribe is called
// with a nil handler. The built-in default logs the message.
func WithDefaultHandler(handler MessageHandler) Option {
	return func(o *clientOptions) {
		o.defaultHandler = handler
	}
}

// WithLogger sets a custom logger for the client.
// If not provided, the client will use a logger that discards all output.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	c := mqttclient.New(mqttclient.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) {
		o.logger = logger
	}
}

// WithReadBufferSize sets the read buffer size in bytes. Values outside
// [2, 268435455] fall back to the default of 1024. An inbound packet larger
// than the read buffer is drained and reported as ErrBufferTooShort; the
// buffer is never grown implicitly.
func WithReadBufferSize(size int) Option {
	return func(o *clientOptions) {
		o.readBufSize = clampBufferSize(size)
	}
}

// WithWriteBufferSize sets the write buffer size in bytes. Values outside
// [2, 268435455] fall back to the default of 1024. It bounds the largest
// packet the client can send.
func WithWriteBufferSize(size int) Option {
	return func(o *clientOptions) {
		o.writeBufSize = clampBufferSize(size)
	}
}

// WithTransport injects a custom Transport, overriding the built-in TCP,
// TLS and WebSocket dialing. Useful for proxies, in-process brokers and
// tests.
func WithTransport(t Transport) Option {
	return func(o *clientOptions) {
		o.transport = t
	}
}

func clampBufferSize(size int) int {
	if size < minBufferSize || size > maxBufferSize {
		return defaultBufferSize
	}
	return size
}

// defaultOptions returns the default client options.
func defaultOptions() *clientOptions {
	return &clientOptions{
		host:              "localhost",
		port:              "1883",
		keepAlive:         defaultKeepAlive,
		cleanSession:      true,
		version:           ProtocolV311,
		commandTimeout:    defaultCommandTimeout,
		reconnectInterval: defaultReconnectInterval,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		readBufSize:       defaultBufferSize,
		writeBufSize:      defaultBufferSize,
	}
}
