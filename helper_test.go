package mqttclient

import (
	"bytes"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/Raysen37/mqttclient/internal/packets"
)

// fakeTransport is an in-memory Transport: the test appends inbound bytes
// with feed and inspects what the client wrote with sent.
type fakeTransport struct {
	mu         sync.Mutex
	in         bytes.Buffer
	out        bytes.Buffer
	writeChunk int // max bytes accepted per Write call, 0 = unlimited
	closed     bool
}

func (t *fakeTransport) Connect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = false
	return nil
}

func (t *fakeTransport) Read(p []byte, _ time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.in.Len() == 0 {
		return 0, io.EOF
	}
	return t.in.Read(p)
}

func (t *fakeTransport) Write(p []byte, _ time.Duration) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeChunk > 0 && len(p) > t.writeChunk {
		p = p[:t.writeChunk]
	}
	return t.out.Write(p)
}

func (t *fakeTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *fakeTransport) feed(data []byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.in.Write(data)
}

// sent drains and returns everything the client has written so far.
func (t *fakeTransport) sent() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	data := make([]byte, t.out.Len())
	copy(data, t.out.Bytes())
	t.out.Reset()
	return data
}

// newTestClient returns a client wired to a fakeTransport, already in the
// connected state with fresh keep-alive countdowns.
func newTestClient(t *testing.T, opts ...Option) (*Client, *fakeTransport) {
	t.Helper()

	c := New(opts...)
	tr := &fakeTransport{}
	c.setTransport(tr)
	c.state.Store(int32(stateConnected))
	c.lastSent.cutdown(c.opts.keepAlive)
	c.lastReceived.cutdown(c.opts.keepAlive)
	return c, tr
}

// splitPackets slices a byte stream into raw MQTT packets.
func splitPackets(t *testing.T, data []byte) [][]byte {
	t.Helper()

	var out [][]byte
	for len(data) > 0 {
		remaining, n, err := packets.DecodeRemainingLength(data[1:])
		if err != nil {
			t.Fatalf("splitPackets: bad remaining length: %v", err)
		}
		total := 1 + n + remaining
		if total > len(data) {
			t.Fatalf("splitPackets: truncated packet: need %d, have %d", total, len(data))
		}
		out = append(out, data[:total])
		data = data[total:]
	}
	return out
}

// serialize runs fn into a scratch buffer and returns the packet bytes.
func serialize(t *testing.T, fn func(buf []byte) (int, error)) []byte {
	t.Helper()

	buf := make([]byte, 2048)
	n, err := fn(buf)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf[:n]
}

func packetType(b []byte) byte {
	return b[0] >> 4
}
