package ssgs

import (
	"net/netip"

	"github.com/sensorseal/ssgs/pkg/sensorseal"
	"github.com/sensorseal/ssgs/pkg/ssgscp"
)

// country returns a short geo hint for addr's log/audit detail, or "" if no
// Geo lookup is configured.
func (s *Server) country(addr netip.AddrPort) string {
	if s.Geo == nil {
		return ""
	}
	return s.Geo.Country(addr.Addr())
}

func (s *Server) auditConnected(uid ssgscp.GatewayUID, addr netip.AddrPort, reconnect bool) {
	kind := "connected"
	if reconnect {
		kind = "reconnected"
	}
	s.debugf("ssgs: %s %s from %s (%s)", kind, uid, addr, s.country(addr))
	if s.Audit == nil {
		return
	}
	s.Audit.RecordEventAsync(kind, uid.String(), addr.String(), s.country(addr), nil)
}

func (s *Server) auditUnauthorized(uid ssgscp.GatewayUID, addr netip.AddrPort) {
	s.debugf("ssgs: rejected unauthorized uid %s from %s", uid, addr)
	if s.Audit == nil {
		return
	}
	s.Audit.RecordEventAsync("unauthorized_uid", uid.String(), addr.String(), "", nil)
}

func (s *Server) auditAuthFailed(uid ssgscp.GatewayUID, addr netip.AddrPort, raw []byte) {
	s.debugf("ssgs: auth tag mismatch for %s from %s", uid, addr)
	if s.Audit == nil {
		return
	}
	s.Audit.RecordEventAsync("auth_failed", uid.String(), addr.String(), "", raw)
}

func (s *Server) auditMalformed(addr netip.AddrPort, raw []byte, detail string) {
	s.debugf("ssgs: malformed datagram from %s: %s", addr, detail)
	if s.Audit == nil {
		return
	}
	s.Audit.RecordEventAsync("malformed_datagram", "", addr.String(), detail, raw)
}

func (s *Server) auditTelemetry(uid ssgscp.GatewayUID, u sensorseal.Update) {
	if s.Audit == nil {
		return
	}
	s.Audit.RecordTelemetryAsync(uid.String(), u)
}
