package mqttclient

import (
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Raysen37/mqttclient/internal/packets"
)

// clientState is the session lifecycle state.
type clientState int32

const (
	// stateInvalid is the post-cleanup state; the client must be recreated.
	stateInvalid clientState = iota
	// stateInitialized is a fresh or failed-to-connect session.
	stateInitialized
	// stateConnected means the worker is running and the link is healthy.
	stateConnected
	// stateDisconnected means the worker is running but the link is down
	// and being retried.
	stateDisconnected
	// stateCleanSession means the user requested shutdown; the worker must
	// exit and clean up.
	stateCleanSession
)

// Client is a long-lived MQTT 3.1.1 session. One background worker owns all
// network reads; any number of goroutines may call the public methods
// concurrently. Create it with New, then Connect.
type Client struct {
	opts *clientOptions

	// conn is the transport handle; nil after release. Pointer swaps are
	// guarded by globalMu.
	conn Transport

	// readBuf is touched only by the goroutine driving the dispatcher;
	// writeBuf only under writeMu. Neither buffer ever grows.
	readBuf  []byte
	writeBuf []byte

	// writeMu guards the write buffer and the outbound send path, including
	// ack recording that copies from the write buffer. globalMu guards
	// state transitions, the packet-id counter and both tables, and is
	// never held across a transport call. Lock order: writeMu before
	// globalMu.
	writeMu  sync.Mutex
	globalMu sync.Mutex

	state    atomic.Int32
	packetID uint16

	subs subscriptionTable
	acks map[ackKey]*ackEntry

	// Keep-alive countdowns re-armed on every successful send and receive.
	lastSent     countdown
	lastReceived countdown

	// pingOutstanding is only touched by the goroutine driving the
	// dispatcher.
	pingOutstanding bool

	workerRunning bool

	// Stats (atomic)
	packetsSent     atomic.Uint64
	packetsReceived atomic.Uint64
	bytesSent       atomic.Uint64
	bytesReceived   atomic.Uint64
	reconnectCount  atomic.Uint64
}

// New creates an initialized client. It performs no I/O; call Connect to
// establish the session.
//
// Example:
//
//	c := mqttclient.New(
//	    mqttclient.WithHost("broker.example.com"),
//	    mqttclient.WithClientID("sensor-1"),
//	    mqttclient.WithKeepAlive(30*time.Second))
//	if err := c.Connect(); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Disconnect()
func New(opts ...Option) *Client {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.logger != nil {
		options.logger = options.logger.With("lib", "mqttclient")
	}

	c := &Client{
		opts:     options,
		readBuf:  make([]byte, options.readBufSize),
		writeBuf: make([]byte, options.writeBufSize),
		acks:     make(map[ackKey]*ackEntry),
	}
	c.state.Store(int32(stateInitialized))
	return c
}

// Connect establishes the transport, performs the MQTT handshake and, on
// the first success, starts the background worker. It blocks until the
// broker answers CONNACK or the command timeout passes.
func (c *Client) Connect() error {
	return c.connectWithResults()
}

func (c *Client) connectWithResults() error {
	switch c.loadState() {
	case stateConnected:
		return nil
	case stateCleanSession, stateInvalid:
		return ErrCleanSession
	}

	if c.opts.clientID == "" {
		c.opts.clientID = randomClientID("mqc-")
		c.opts.logger.Debug("generated client id", "client_id", c.opts.clientID)
	}

	conn, err := c.buildTransport()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	if err := conn.Connect(); err != nil {
		conn.Disconnect()
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}
	c.setTransport(conn)

	c.lastReceived.cutdown(c.opts.keepAlive)

	c.writeMu.Lock()
	code, err := c.handshake()
	c.writeMu.Unlock()

	if err == nil {
		err = connackError(code)
	}
	if err != nil {
		c.releaseTransport()
		c.setState(stateInitialized)
		return err
	}

	c.globalMu.Lock()
	startWorker := !c.workerRunning
	c.workerRunning = true
	c.state.Store(int32(stateConnected))
	c.globalMu.Unlock()

	c.pingOutstanding = false

	if startWorker {
		go c.yieldLoop()
	}

	c.opts.logger.Debug("connected", "host", c.opts.host, "port", c.opts.port,
		"client_id", c.opts.clientID)
	return nil
}

// handshake sends CONNECT and waits for CONNACK. Caller holds the write
// lock for the whole exchange so producers cannot interleave.
func (c *Client) handshake() (byte, error) {
	connOpts := &packets.ConnectOptions{
		ClientID:     c.opts.clientID,
		Username:     c.opts.username,
		Password:     c.opts.password,
		KeepAlive:    uint16(c.opts.keepAlive / time.Second),
		CleanSession: c.opts.cleanSession,
		Version:      c.opts.version,
	}
	if w := c.opts.will; w != nil {
		connOpts.WillFlag = true
		connOpts.WillTopic = w.topic
		connOpts.WillMessage = w.payload
		connOpts.WillQoS = byte(w.qos)
		connOpts.WillRetain = w.retained
	}

	n, err := packets.SerializeConnect(c.writeBuf, connOpts)
	if err != nil {
		return 0, err
	}

	timer := newCountdown(c.opts.commandTimeout)
	if err := c.sendPacket(n, &timer); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	for !timer.expired() {
		kind, length, err := c.readPacket(&timer)
		if err != nil {
			return 0, fmt.Errorf("%w: no CONNACK: %v", ErrConnectFailed, err)
		}
		if kind != packets.CONNACK {
			// Nothing else is legal before CONNACK; skip it.
			c.opts.logger.Debug("ignoring packet before CONNACK",
				"type", packets.PacketNames[kind])
			continue
		}
		_, code, err := packets.DeserializeConnack(c.readBuf[:length])
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrConnectFailed, err)
		}
		return code, nil
	}
	return 0, ErrConnectFailed
}

// buildTransport selects the transport from the options: injected,
// WebSocket, TLS or plain TCP.
func (c *Client) buildTransport() (Transport, error) {
	if c.opts.transport != nil {
		return c.opts.transport, nil
	}

	var tlsConfig *tls.Config
	if c.opts.ca != nil {
		var err error
		tlsConfig, err = tlsConfigForCA(c.opts.ca, c.opts.host)
		if err != nil {
			return nil, err
		}
	}

	if c.opts.websocketURL != "" {
		return newWebSocketTransport(c.opts.websocketURL, tlsConfig, c.opts.commandTimeout), nil
	}
	return newTCPTransport(c.opts.host, c.opts.port, tlsConfig, c.opts.commandTimeout), nil
}

// Disconnect sends DISCONNECT and marks the session for cleanup. The worker
// observes the state, releases the transport, drains the tables and exits;
// every public call after this returns ErrCleanSession.
func (c *Client) Disconnect() error {
	timer := newCountdown(c.opts.commandTimeout)

	c.writeMu.Lock()
	n, err := packets.SerializeDisconnect(c.writeBuf)
	if err == nil {
		err = c.sendPacket(n, &timer)
	}
	c.writeMu.Unlock()

	// The session winds down whether or not the DISCONNECT reached the
	// broker.
	c.setState(stateCleanSession)
	return err
}

// Subscribe sends SUBSCRIBE for the given filter and registers handler for
// matching messages once the broker acknowledges. A nil handler is
// replaced by the configured default. Filters may use MQTT wildcards:
//
//	c.Subscribe("sensors/+/temperature", mqttclient.AtLeastOnce, onTemperature)
//	c.Subscribe("alerts/#", mqttclient.AtMostOnce, onAlert)
//
// Ill-formed filters ('#' not last, '+' not a whole level) are rejected
// before anything is sent.
func (c *Client) Subscribe(filter string, qos QoS, handler MessageHandler) error {
	if err := validateSubscribeFilter(filter); err != nil {
		return err
	}
	if err := c.requireConnected(); err != nil {
		return err
	}

	timer := newCountdown(c.opts.commandTimeout)
	id := c.nextPacketID()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	n, err := packets.SerializeSubscribe(c.writeBuf, false, id, []string{filter}, []byte{byte(qos)})
	if err != nil {
		return err
	}
	if err := c.sendPacket(n, &timer); err != nil {
		return err
	}

	if handler == nil {
		handler = c.opts.defaultHandler
	}
	if handler == nil {
		handler = logMessageHandler
	}

	sub := &subscription{filter: filter, qos: qos, handler: handler}
	return c.ackRecord(packets.SUBACK, id, n, sub)
}

// logMessageHandler is installed when Subscribe gets a nil handler and no
// default is configured.
func logMessageHandler(c *Client, m *Message) {
	c.opts.logger.Info("message received",
		"topic", m.Topic, "qos", uint8(m.QoS), "payload", string(m.Payload))
}

// Unsubscribe sends UNSUBSCRIBE for the filter. The installed subscription
// entry is removed when the broker acknowledges with UNSUBACK.
func (c *Client) Unsubscribe(filter string) error {
	if err := c.requireConnected(); err != nil {
		return err
	}

	timer := newCountdown(c.opts.commandTimeout)
	id := c.nextPacketID()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	n, err := packets.SerializeUnsubscribe(c.writeBuf, false, id, []string{filter})
	if err != nil {
		return err
	}
	if err := c.sendPacket(n, &timer); err != nil {
		return err
	}

	c.globalMu.Lock()
	sub := c.subs.lookup(filter)
	c.globalMu.Unlock()
	if sub == nil {
		return fmt.Errorf("%w: %q", ErrNoSubscription, filter)
	}

	return c.ackRecord(packets.UNSUBACK, id, n, sub)
}

// Publish sends msg to the given topic. For QoS 0 it returns once the
// packet is written. For QoS 1 and 2 a packet id is assigned to
// msg.PacketID and the publish is tracked until the broker acknowledges,
// with automatic retransmission (DUP=1) every command timeout.
//
// Payloads larger than the write buffer are rejected with
// ErrBufferTooShort. When the table of outstanding acknowledgments is
// full, Publish fails with ErrAckTooMany and drops the link so the worker
// can rebuild it.
func (c *Client) Publish(topic string, msg *Message) error {
	if msg == nil {
		return ErrNilArgument
	}
	if err := validatePublishTopic(topic); err != nil {
		return err
	}
	if err := c.requireConnected(); err != nil {
		return err
	}
	if len(msg.Payload) > len(c.writeBuf) {
		return ErrBufferTooShort
	}

	timer := newCountdown(c.opts.commandTimeout)

	var rc error
	if msg.QoS != AtMostOnce {
		if c.ackPendingFull() {
			rc = ErrAckTooMany
		} else {
			msg.PacketID = c.nextPacketID()
		}
	}

	if rc == nil {
		c.writeMu.Lock()
		n, err := packets.SerializePublish(c.writeBuf, false, byte(msg.QoS),
			msg.Retained, msg.PacketID, topic, msg.Payload)
		switch {
		case err != nil:
			rc = err
		default:
			rc = c.sendPacket(n, &timer)
			if rc == nil && msg.QoS != AtMostOnce {
				// Flip DUP on the buffered copy: the ack entry saves that
				// form, so every retransmission carries DUP=1.
				c.setPublishDup()
				kind := byte(packets.PUBACK)
				if msg.QoS == ExactlyOnce {
					kind = packets.PUBREC
				}
				rc = c.ackRecord(kind, msg.PacketID, n, nil)
			}
		}
		c.writeMu.Unlock()
	}

	if errors.Is(rc, ErrAckTooMany) {
		c.opts.logger.Warn("outstanding ack limit reached, dropping link for rebuild")
		c.releaseTransport()
		c.setState(stateDisconnected)
	}
	return rc
}

// setPublishDup sets the DUP bit of the PUBLISH packet sitting at the start
// of the write buffer. Caller holds the write lock.
func (c *Client) setPublishDup() {
	if c.writeBuf[0]>>4 == packets.PUBLISH {
		c.writeBuf[0] |= 0x08
	}
}

// Yield runs the receive/dispatch loop until timeout (the command timeout
// when zero) has elapsed. No new turn starts after that, but a turn already
// started may wait up to the command timeout for a packet, so a call can
// return up to one command timeout late. It is called continuously by the background worker;
// cooperative integrations that want to own the polling thread can call it
// themselves instead.
//
// It returns ErrCleanSession once Disconnect has been called,
// ErrReconnectTimeout when a reconnect attempt failed (the next call
// retries), and nil when the slice of work completed uneventfully.
func (c *Client) Yield(timeout time.Duration) error {
	return c.yield(timeout)
}

func (c *Client) yield(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = c.opts.commandTimeout
	}

	deadline := newCountdown(timeout)
	var turn countdown

	for !deadline.expired() {
		switch c.loadState() {
		case stateCleanSession, stateInvalid:
			return ErrCleanSession

		case stateConnected:
			err := c.dispatchTurn(&turn)
			switch {
			case err == nil:
				// Time out, retransmit or drop outstanding acks.
				c.ackScan(true)
			case errors.Is(err, ErrNotConnected):
				c.opts.logger.Debug("link lost during dispatch")
			default:
				return err
			}

		default:
			// Link is down (or never came up): rebuild it.
			if err := c.tryReconnect(); err != nil {
				return err
			}
		}
	}
	return nil
}

// yieldLoop is the background worker. It exists exactly while the session
// is in the connected or disconnected states and destroys itself on clean
// session.
func (c *Client) yieldLoop() {
	if c.loadState() != stateConnected {
		// Misconfiguration guard: the worker only ever starts connected.
		c.opts.logger.Warn("worker started while not connected, exiting")
		c.globalMu.Lock()
		c.workerRunning = false
		c.globalMu.Unlock()
		return
	}

	for {
		err := c.yield(c.opts.commandTimeout)
		switch {
		case errors.Is(err, ErrCleanSession):
			c.opts.logger.Debug("worker observed clean session, shutting down")
			c.releaseTransport()
			c.cleanSession()
			c.globalMu.Lock()
			c.workerRunning = false
			c.globalMu.Unlock()
			return
		case errors.Is(err, ErrReconnectTimeout):
			c.opts.logger.Warn("reconnect attempt timed out, will retry")
		}
	}
}

// tryReconnect makes one reconnect attempt: optional credential-rotation
// hook, transport + handshake, subscription restoration, then an immediate
// non-blocking ack scan so still-outstanding QoS 1/2 publishes are
// retransmitted on the new link.
func (c *Client) tryReconnect() error {
	if h := c.opts.reconnectHandler; h != nil {
		h(c)
	}

	var err error
	if c.loadState() != stateConnected {
		err = c.connectWithResults()
	}
	if err != nil {
		time.Sleep(c.opts.reconnectInterval)
		return ErrReconnectTimeout
	}

	c.reconnectCount.Add(1)

	if err := c.resubscribe(); err != nil {
		c.opts.logger.Warn("resubscribe incomplete", "error", err)
	}
	c.ackScan(false)
	return nil
}

// resubscribe re-sends SUBSCRIBE for every installed subscription, in
// insertion order, reusing the stored handler and QoS.
func (c *Client) resubscribe() error {
	c.globalMu.Lock()
	subs := c.subs.all()
	c.globalMu.Unlock()

	var firstErr error
	for _, s := range subs {
		if err := c.Subscribe(s.filter, s.qos, s.handler); err != nil {
			c.opts.logger.Warn("resubscribe failed", "filter", s.filter, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: %q: %v", ErrResubscribeFailed, s.filter, err)
			}
		}
	}
	return firstErr
}

// cleanSession drains both tables and invalidates the session.
func (c *Client) cleanSession() {
	c.ackClear()
	c.globalMu.Lock()
	c.subs.clear()
	c.state.Store(int32(stateInvalid))
	c.globalMu.Unlock()
}

// nextPacketID returns the next packet identifier: 1..65535, wrapping to 1,
// never 0.
func (c *Client) nextPacketID() uint16 {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	if c.packetID == 65535 {
		c.packetID = 1
	} else {
		c.packetID++
	}
	return c.packetID
}

// requireConnected is the precondition check run by every public operation.
func (c *Client) requireConnected() error {
	switch c.loadState() {
	case stateConnected:
		return nil
	case stateCleanSession, stateInvalid:
		return ErrCleanSession
	default:
		return ErrNotConnected
	}
}

// IsConnected reports whether the session currently has a healthy link.
// It is safe to call from any goroutine.
func (c *Client) IsConnected() bool {
	return c.loadState() == stateConnected
}

// Subscriptions returns the installed topic filters in insertion order.
func (c *Client) Subscriptions() []string {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	filters := make([]string, 0, len(c.subs.entries))
	for _, s := range c.subs.entries {
		filters = append(filters, s.filter)
	}
	return filters
}

func (c *Client) loadState() clientState {
	return clientState(c.state.Load())
}

func (c *Client) setState(s clientState) {
	c.globalMu.Lock()
	c.state.Store(int32(s))
	c.globalMu.Unlock()
}

func (c *Client) transport() Transport {
	c.globalMu.Lock()
	defer c.globalMu.Unlock()
	return c.conn
}

func (c *Client) setTransport(t Transport) {
	c.globalMu.Lock()
	c.conn = t
	c.globalMu.Unlock()
}

// releaseTransport closes the link and resets the handle to nil, the
// released sentinel.
func (c *Client) releaseTransport() {
	c.globalMu.Lock()
	conn := c.conn
	c.conn = nil
	c.globalMu.Unlock()
	if conn != nil {
		conn.Disconnect()
	}
}
