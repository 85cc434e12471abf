// Package ssgs implements the SSGSCP server core: UDP I/O, gateway
// authorization, packet-type dispatch, and the per-client reliability
// protocol driver (spec.md §4.4).
//
// The dispatch path (handleDatagram) runs on the goroutine that calls Serve,
// and the periodic tick on Run's ticker goroutine; Send and the debug
// monitor may be called from any goroutine. All of them hold mu while they
// touch Client state, so Client mutation is serialized as spec.md §5
// requires.
package ssgs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sensorseal/ssgs/pkg/gateway"
	"github.com/sensorseal/ssgs/pkg/sensorseal"
	"github.com/sensorseal/ssgs/pkg/ssgscp"
)

// ErrServerClosed is returned by Serve after Close is called.
var ErrServerClosed = errors.New("ssgs: server closed")

// Server binds a UDP socket and drives the SSGSCP protocol for every
// authorized gateway in Table.
type Server struct {
	// Table is the read-only authorized-gateway table (C5). Required.
	Table *gateway.Table

	// OnConnection is invoked once, synchronously, for each newly created
	// Client (spec.md §4.4 step 5). Required for the server to be useful,
	// but nil is tolerated (the connection is still tracked).
	OnConnection func(*Client)

	// IdleTimeout, if non-zero, evicts a client whose LastSeen is older
	// than IdleTimeout, checked once per tick. This is an addition beyond
	// spec.md's literal protocol (see DESIGN.md "Open question — client
	// eviction"); the default (0) preserves the source behavior of never
	// evicting.
	IdleTimeout time.Duration

	// Logger receives debug/info-level protocol trace messages. The zero
	// value discards everything.
	Logger zerolog.Logger

	// Metrics, if non-nil, counts connects, reconnects, delivered and
	// duplicate telemetry, rejected and auth-failed datagrams, and
	// retransmissions. See NewMetrics.
	Metrics *Metrics

	// Audit, if non-nil, receives a best-effort, fire-and-forget
	// historical record of connection events and delivered telemetry. A
	// failure to write never affects protocol processing.
	Audit AuditSink

	// Geo, if non-nil, is consulted to attach a country code to
	// connection logs/audit rows.
	Geo GeoLookup

	// clock is overridable for deterministic tests; defaults to time.Now.
	clock func() time.Time

	mu        sync.Mutex
	conn      *net.UDPConn
	closing   bool
	serveDone chan struct{}
	clients   map[ssgscp.GatewayUID]*Client
	mon       map[chan<- MonitorPacket]struct{}
}

// AuditSink is the subset of db/auditdb.DB the server core depends on; kept
// as an interface so tests can stub it without a real sqlite database.
type AuditSink interface {
	RecordEventAsync(kind, gatewayUID, remoteAddr, detail string, raw []byte)
	RecordTelemetryAsync(gatewayUID string, u sensorseal.Update)
}

// GeoLookup is the subset of pkg/geo.DB the server core depends on.
type GeoLookup interface {
	Country(addr netip.Addr) string
}

// NewServer creates a Server for table. OnConnection, Logger, Metrics, Audit,
// Geo, and IdleTimeout may be set on the returned value before Serve/Run is
// called.
func NewServer(table *gateway.Table) *Server {
	return &Server{
		Table:   table,
		clients: make(map[ssgscp.GatewayUID]*Client),
		mon:     make(map[chan<- MonitorPacket]struct{}),
		clock:   time.Now,
	}
}

// SetTable atomically swaps the authorized-gateway table, e.g. after a
// SIGHUP reload. Clients of gateways no longer in the table stay in the
// connected set, but their inbound datagrams, a new CONN included, are
// dropped as unauthorized from then on.
func (s *Server) SetTable(table *gateway.Table) {
	s.mu.Lock()
	s.Table = table
	s.mu.Unlock()
}

func (s *Server) now() time.Time {
	if s.clock != nil {
		return s.clock()
	}
	return time.Now()
}

// ListenAndServe creates a UDP socket on addr and calls Serve.
func (s *Server) ListenAndServe(addr netip.AddrPort) error {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return err
	}
	return s.Serve(conn)
}

// Serve binds the server to conn, which should not be used afterwards, and
// blocks processing inbound datagrams until Close is called or a fatal
// socket error occurs.
func (s *Server) Serve(conn *net.UDPConn) error {
	done := make(chan struct{})
	defer close(done)
	defer conn.Close()

	s.mu.Lock()
	for s.conn != nil {
		s.mu.Unlock()
		s.Close()
		s.mu.Lock()
	}
	s.conn = conn
	s.closing = false
	s.serveDone = done
	s.mu.Unlock()

	buf := make([]byte, 1500)
	for {
		n, addr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			s.mu.Lock()
			if s.closing {
				err = ErrServerClosed
			}
			s.conn = nil
			s.mu.Unlock()
			return err
		}

		datagram := make([]byte, n)
		copy(datagram, buf[:n])
		addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())

		s.mu.Lock()
		s.handleDatagram(datagram, addr)
		s.mu.Unlock()
	}
}

// Close immediately closes the active socket, if any, and waits for Serve to
// return.
func (s *Server) Close() {
	var done <-chan struct{}

	s.mu.Lock()
	if s.conn != nil {
		s.closing = true
		s.conn.Close()
		done = s.serveDone
	}
	s.mu.Unlock()

	if done != nil {
		<-done
	}
}

// LocalAddr gets the local address of the active socket, if any.
func (s *Server) LocalAddr() net.Addr {
	var a net.Addr
	s.mu.Lock()
	if s.conn != nil {
		a = s.conn.LocalAddr()
	}
	s.mu.Unlock()
	return a
}

// Run binds addr, serves inbound datagrams, and drives the periodic
// retransmission tick until ctx is canceled. It returns ctx.Err() on a
// normal shutdown.
func (s *Server) Run(ctx context.Context, addr netip.AddrPort) error {
	conn, err := net.ListenUDP("udp", net.UDPAddrFromAddrPort(addr))
	if err != nil {
		return fmt.Errorf("ssgs: listen: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := s.Serve(conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	})

	g.Go(func() error {
		ticker := time.NewTicker(TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				// Closing conn directly also stops a Serve that has not
				// yet registered it with s.
				conn.Close()
				s.Close()
				return ctx.Err()
			case <-ticker.C:
				s.mu.Lock()
				s.tick(s.now())
				s.mu.Unlock()
			}
		}
	})

	return g.Wait()
}

// MonitorPacket describes a sent/received SSGSCP datagram for the debug
// monitor, tagged with the gateway it belongs to so the monitor can filter
// a noisy fleet down to one device.
type MonitorPacket struct {
	In     bool
	Remote netip.AddrPort
	UID    ssgscp.GatewayUID
	Desc   string
	Data   []byte
}

// Monitor writes a description of every sent/received datagram to c until
// ctx is canceled, discarding them if c doesn't have room.
func (s *Server) Monitor(ctx context.Context, c chan<- MonitorPacket) {
	s.mu.Lock()
	s.mon[c] = struct{}{}
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	delete(s.mon, c)
	s.mu.Unlock()
}

func (s *Server) notifyMonitor(p MonitorPacket) {
	for c := range s.mon {
		select {
		case c <- p:
		default:
		}
	}
}

func (s *Server) debugf(format string, args ...any) {
	s.Logger.Debug().Msgf(format, args...)
}
