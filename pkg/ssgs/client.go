package ssgs

import (
	"net/netip"
	"time"

	"github.com/sensorseal/ssgs/pkg/sensorseal"
	"github.com/sensorseal/ssgs/pkg/ssgscp"
)

const (
	// SentMsgListMaxLen bounds the number of outstanding unacknowledged
	// outbound messages kept per client (spec.md §3).
	SentMsgListMaxLen = 100

	// ReceivedIDFIFOMaxLen bounds the number of recently-seen inbound
	// packet IDs kept per client for duplicate suppression (spec.md §3).
	ReceivedIDFIFOMaxLen = 100

	// DefaultRetransmissionTimeout is the fixed per-client retransmission
	// threshold (spec.md §3, §4.4).
	DefaultRetransmissionTimeout = 2000 * time.Millisecond

	// MaxRetransmitsPerClientPerTick bounds the work done for a single
	// client during one tick (spec.md §4.4).
	MaxRetransmitsPerClientPerTick = 10

	// TickInterval is the cadence of the periodic retransmission scan
	// (spec.md §4.4).
	TickInterval = 200 * time.Millisecond
)

// sentMessage is an outbound message awaiting acknowledgement.
type sentMessage struct {
	packetID    uint16
	sentAt      time.Time
	packetBytes []byte
}

// Client is the server's per-gateway connection state (spec.md §3, §4.3). A
// Client is only ever mutated by its owning Server while it holds its mutex;
// see the package doc for the concurrency model.
type Client struct {
	GatewayUID ssgscp.GatewayUID
	Key        ssgscp.Key

	RemoteAddr netip.AddrPort
	LastSeen   time.Time

	SendPacketID           uint16
	RetransmissionTimeout  time.Duration
	sentMessages           []sentMessage
	receivedIDs            idFIFO

	// OnMessage is invoked for each newly-delivered (non-duplicate)
	// telemetry update.
	OnMessage func(sensorseal.Update)
	// OnReconnect is invoked once, after RetransmissionTimeout, whenever a
	// second CONN is observed for this gateway.
	OnReconnect func()

	server *Server
}

// newClient creates the initial state for a freshly-authorized connection
// (spec.md §4.3: sendPacketID=0, empty queues, retransmissionTimeout=2000).
func newClient(s *Server, uid ssgscp.GatewayUID, key ssgscp.Key, addr netip.AddrPort, now time.Time) *Client {
	return &Client{
		GatewayUID:            uid,
		Key:                   key,
		RemoteAddr:            addr,
		LastSeen:              now,
		RetransmissionTimeout: DefaultRetransmissionTimeout,
		server:                s,
	}
}

// reset clears sequencing state on an observed peer restart (spec.md §4.3
// "Reconnection").
func (c *Client) reset(addr netip.AddrPort, now time.Time) {
	c.SendPacketID = 0
	c.sentMessages = nil
	c.receivedIDs = idFIFO{}
	c.RemoteAddr = addr
	c.LastSeen = now
}

// Send reliably dispatches payload to the gateway as a MSGCONF, per spec.md
// §4.4 "Outbound send". It is safe to call concurrently with the server's
// own dispatch loop and with other calls to Send.
func (c *Client) Send(payload []byte) error {
	return c.server.Send(c.GatewayUID, payload)
}

// idFIFO is a bounded, order-preserving set of recently-seen packet IDs,
// used for ReceivedIDFIFOMaxLen duplicate suppression (spec.md §3,
// invariant I3).
type idFIFO struct {
	order []uint16
	seen  map[uint16]struct{}
}

func (f *idFIFO) Contains(id uint16) bool {
	if f.seen == nil {
		return false
	}
	_, ok := f.seen[id]
	return ok
}

// Add appends id, evicting the oldest entry if the FIFO is already at
// ReceivedIDFIFOMaxLen.
func (f *idFIFO) Add(id uint16) {
	if f.seen == nil {
		f.seen = make(map[uint16]struct{})
	}
	if f.Contains(id) {
		return
	}
	if len(f.order) >= ReceivedIDFIFOMaxLen {
		old := f.order[0]
		f.order = f.order[1:]
		delete(f.seen, old)
	}
	f.order = append(f.order, id)
	f.seen[id] = struct{}{}
}

func (f *idFIFO) Len() int {
	return len(f.order)
}
