package mqttclient

import (
	"errors"
	"testing"
	"time"

	"github.com/Raysen37/mqttclient/internal/packets"
)

func TestKeepAliveSendsPing(t *testing.T) {
	c, tr := newTestClient(t, WithKeepAlive(20*time.Millisecond))

	// Both countdowns expired: the link has been idle in both directions.
	c.lastSent = countdown{}
	c.lastReceived = countdown{}

	if err := c.keepAlive(); err != nil {
		t.Fatalf("keepAlive: %v", err)
	}

	out := splitPackets(t, tr.sent())
	if len(out) != 1 || packetType(out[0]) != packets.PINGREQ {
		t.Fatalf("expected PINGREQ, got %d packets", len(out))
	}
	if !c.pingOutstanding {
		t.Error("pingOutstanding not set after PINGREQ")
	}
}

func TestKeepAliveFreshLinkIsQuiet(t *testing.T) {
	c, tr := newTestClient(t, WithKeepAlive(time.Minute))

	if err := c.keepAlive(); err != nil {
		t.Fatalf("keepAlive: %v", err)
	}
	if got := tr.sent(); len(got) != 0 {
		t.Errorf("PINGREQ sent on a fresh link: %x", got)
	}
}

// A second expiry while a ping is still outstanding declares the link dead:
// the transport is released and the session goes to the disconnected state
// for the worker to rebuild.
func TestKeepAliveMissedPingresp(t *testing.T) {
	c, tr := newTestClient(t, WithKeepAlive(20*time.Millisecond))

	c.lastSent = countdown{}
	c.lastReceived = countdown{}
	c.pingOutstanding = true

	err := c.keepAlive()
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("keepAlive = %v, want ErrNotConnected", err)
	}
	if c.loadState() != stateDisconnected {
		t.Error("state should be disconnected")
	}
	if c.transport() != nil {
		t.Error("transport should be released")
	}
	tr.mu.Lock()
	closed := tr.closed
	tr.mu.Unlock()
	if !closed {
		t.Error("transport not closed")
	}
}

func TestKeepAliveDisabled(t *testing.T) {
	c, tr := newTestClient(t, WithKeepAlive(0))

	c.lastSent = countdown{}
	c.lastReceived = countdown{}
	c.pingOutstanding = true

	if err := c.keepAlive(); err != nil {
		t.Fatalf("keepAlive: %v", err)
	}
	if got := tr.sent(); len(got) != 0 {
		t.Errorf("PINGREQ sent with keep-alive disabled: %x", got)
	}
}

// Traffic in one direction only still triggers probing once the other
// direction goes idle.
func TestKeepAliveReceiveOnlyTraffic(t *testing.T) {
	c, tr := newTestClient(t, WithKeepAlive(50*time.Millisecond))

	c.lastReceived.cutdown(50 * time.Millisecond)
	c.lastSent = countdown{}

	if err := c.keepAlive(); err != nil {
		t.Fatalf("keepAlive: %v", err)
	}
	out := splitPackets(t, tr.sent())
	if len(out) != 1 || packetType(out[0]) != packets.PINGREQ {
		t.Errorf("expected PINGREQ when send side is idle")
	}
}
