package ssgs

import (
	"net/netip"
	"testing"
	"time"

	"github.com/sensorseal/ssgs/pkg/ssgscp"
)

func TestIdFIFOBoundedEviction(t *testing.T) {
	var f idFIFO
	for i := 0; i < ReceivedIDFIFOMaxLen+10; i++ {
		f.Add(uint16(i))
	}
	if f.Len() != ReceivedIDFIFOMaxLen {
		t.Fatalf("Len() = %d, want %d", f.Len(), ReceivedIDFIFOMaxLen)
	}
	for i := 0; i < 10; i++ {
		if f.Contains(uint16(i)) {
			t.Errorf("id %d should have been evicted", i)
		}
	}
	for i := 10; i < ReceivedIDFIFOMaxLen+10; i++ {
		if !f.Contains(uint16(i)) {
			t.Errorf("id %d should still be present", i)
		}
	}
}

func TestIdFIFOAddIsIdempotent(t *testing.T) {
	var f idFIFO
	f.Add(5)
	f.Add(5)
	f.Add(5)
	if f.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", f.Len())
	}
	if !f.Contains(5) {
		t.Fatal("expected id 5 to be present")
	}
}

func TestNewClientInitialState(t *testing.T) {
	now := time.Now()
	c := newClient(nil, ssgscp.GatewayUID{1, 2, 3, 4}, testKey(), netip.MustParseAddrPort("127.0.0.1:1"), now)

	if c.SendPacketID != 0 {
		t.Errorf("SendPacketID = %d, want 0", c.SendPacketID)
	}
	if len(c.sentMessages) != 0 {
		t.Errorf("sentMessages not empty on a new client")
	}
	if c.receivedIDs.Len() != 0 {
		t.Errorf("receivedIDs not empty on a new client")
	}
	if c.RetransmissionTimeout != DefaultRetransmissionTimeout {
		t.Errorf("RetransmissionTimeout = %v, want %v", c.RetransmissionTimeout, DefaultRetransmissionTimeout)
	}
}

func TestClientResetClearsSequencingState(t *testing.T) {
	now := time.Now()
	c := newClient(nil, ssgscp.GatewayUID{1, 2, 3, 4}, testKey(), netip.MustParseAddrPort("127.0.0.1:1"), now)

	c.SendPacketID = 7
	c.sentMessages = append(c.sentMessages, sentMessage{packetID: 3})
	c.receivedIDs.Add(9)

	newAddr := netip.MustParseAddrPort("127.0.0.1:2")
	later := now.Add(time.Minute)
	c.reset(newAddr, later)

	if c.SendPacketID != 0 {
		t.Errorf("SendPacketID after reset = %d, want 0", c.SendPacketID)
	}
	if len(c.sentMessages) != 0 {
		t.Errorf("sentMessages after reset not empty")
	}
	if c.receivedIDs.Len() != 0 {
		t.Errorf("receivedIDs after reset not empty")
	}
	if c.RemoteAddr != newAddr {
		t.Errorf("RemoteAddr after reset = %v, want %v", c.RemoteAddr, newAddr)
	}
	if !c.LastSeen.Equal(later) {
		t.Errorf("LastSeen after reset = %v, want %v", c.LastSeen, later)
	}
}
