package mqttclient

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// newWebSocketTransport returns a transport that speaks MQTT over a
// WebSocket connection (ws:// or wss://), as used by brokers behind HTTP
// infrastructure. The connection negotiates the "mqtt" subprotocol and
// carries each write as one binary message.
func newWebSocketTransport(url string, tlsConfig *tls.Config, dialTimeout time.Duration) *netTransport {
	return &netTransport{
		dial: func() (net.Conn, error) {
			dialer := websocket.Dialer{
				Subprotocols:     []string{"mqtt"},
				TLSClientConfig:  tlsConfig,
				HandshakeTimeout: dialTimeout,
			}
			ws, _, err := dialer.Dial(url, nil)
			if err != nil {
				return nil, err
			}
			return &wsConn{ws: ws}, nil
		},
	}
}

// wsConn adapts a websocket connection to net.Conn so the rest of the
// engine can treat it as a byte stream. Reads that consume only part of a
// message keep the remainder for the next call.
type wsConn struct {
	ws     *websocket.Conn
	buffer []byte
}

func (c *wsConn) Read(b []byte) (int, error) {
	if len(c.buffer) > 0 {
		n := copy(b, c.buffer)
		c.buffer = c.buffer[n:]
		return n, nil
	}

	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return 0, err
	}

	n := copy(b, data)
	if n < len(data) {
		c.buffer = data[n:]
	}
	return n, nil
}

func (c *wsConn) Write(b []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr {
	return c.ws.LocalAddr()
}

func (c *wsConn) RemoteAddr() net.Addr {
	return c.ws.RemoteAddr()
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.ws.SetReadDeadline(t)
}

func (c *wsConn) SetWriteDeadline(t time.Time) error {
	return c.ws.SetWriteDeadline(t)
}

var _ net.Conn = (*wsConn)(nil)
