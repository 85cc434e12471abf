package ssgs

import (
	"net/netip"
	"time"

	"github.com/sensorseal/ssgs/pkg/sensorseal"
	"github.com/sensorseal/ssgs/pkg/ssgscp"
)

// handleDatagram implements spec.md §4.4 "Inbound dispatch". s.mu is held by
// the caller.
func (s *Server) handleDatagram(datagram []byte, addr netip.AddrPort) {
	now := s.now()

	uid, ok := ssgscp.ParseUID(datagram)
	if !ok {
		s.metricsRejectMalformed()
		s.auditMalformed(addr, datagram, "too short to contain a gateway UID")
		return
	}

	key, authorized := s.Table.Lookup(uid)
	if !authorized {
		s.metricsRejectUnauthorized()
		s.auditUnauthorized(uid, addr)
		return
	}

	outcome := ssgscp.Parse(datagram, key)
	switch outcome.Kind {
	case ssgscp.ParseMalformed:
		s.metricsRejectMalformed()
		s.auditMalformed(addr, datagram, "malformed datagram from authorized gateway")
		return
	case ssgscp.ParseAuthFailed:
		s.metricsFailAuth()
		s.auditAuthFailed(uid, addr, datagram)
		s.sendRaw(uid, ssgscp.ZeroKey, addr, ssgscp.PacketConnFail, nil)
		return
	}

	pkt := outcome.Packet
	s.notifyMonitor(MonitorPacket{In: true, Remote: addr, UID: uid, Desc: pkt.Type.String(), Data: datagram})

	client, exists := s.clients[uid]
	if !exists {
		if pkt.Type != ssgscp.PacketConn {
			// A non-CONN from an authorized-but-unknown gateway has no
			// session to resume; spec.md §4.4 treats this the same as an
			// authorization failure from the gateway's point of view.
			s.metricsRejectUnauthorized()
			s.sendRaw(uid, ssgscp.ZeroKey, addr, ssgscp.PacketConnFail, nil)
			return
		}
		client = newClient(s, uid, key, addr, now)
		s.clients[uid] = client
		s.metricsSuccessConnect()
		s.auditConnected(uid, addr, false)
		s.sendRaw(uid, key, addr, ssgscp.PacketConnAccept, nil)
		if s.OnConnection != nil {
			s.OnConnection(client)
		}
		return
	}

	switch pkt.Type {
	case ssgscp.PacketConn:
		wasReconnect := client.OnReconnect
		timeout := client.RetransmissionTimeout
		client.reset(addr, now)
		s.metricsSuccessReconnect()
		s.auditConnected(uid, addr, true)
		s.sendRaw(client.GatewayUID, client.Key, client.RemoteAddr, ssgscp.PacketConnAccept, nil)
		if wasReconnect != nil {
			time.AfterFunc(timeout, wasReconnect)
		}

	case ssgscp.PacketReceiptOK:
		client.LastSeen = now
		s.ackSentMessage(client, pkt.PacketID)

	case ssgscp.PacketMsgStatus:
		client.LastSeen = now
		s.transmit(client.GatewayUID, client.Key, client.RemoteAddr, ssgscp.PacketReceiptOK, pkt.PacketID, nil)
		if client.receivedIDs.Contains(pkt.PacketID) {
			s.metricsSuccessDuplicate()
			return
		}
		client.receivedIDs.Add(pkt.PacketID)

		update, err := sensorseal.ParseUpdate(pkt.Payload)
		if err != nil {
			s.metricsRejectMalformed()
			s.auditMalformed(addr, datagram, "unparseable sensorseal payload: "+err.Error())
			return
		}
		s.metricsSuccessTelemetry()
		s.auditTelemetry(uid, update)
		if client.OnMessage != nil {
			client.OnMessage(update)
		}

	case ssgscp.PacketMsgConfig, ssgscp.PacketConnAccept, ssgscp.PacketConnFail:
		// These are server-to-gateway packet types; a gateway never sends
		// them to us. Log and drop rather than treat as protocol failure.
		s.debugf("ssgs: unexpected %s from %s, ignoring", pkt.Type, uid)

	default:
		s.debugf("ssgs: unknown packet type %d from %s, ignoring", uint8(pkt.Type), uid)
	}
}

// Send reliably delivers payload to the authorized gateway uid as a
// MSGCONF (spec.md §4.4 "Outbound send"). It returns an error only if uid
// has no active connection.
func (s *Server) Send(uid ssgscp.GatewayUID, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, ok := s.clients[uid]
	if !ok {
		return errUnknownGateway{uid}
	}
	s.sendMsgConfig(client, payload)
	return nil
}

// sendMsgConfig assigns the next sendPacketID, transmits a MSGCONF, and
// enqueues a sentMessage awaiting its RCPTOK (spec.md §4.4 "Outbound send").
func (s *Server) sendMsgConfig(c *Client, payload []byte) {
	id := c.SendPacketID
	c.SendPacketID++

	packed := s.transmit(c.GatewayUID, c.Key, c.RemoteAddr, ssgscp.PacketMsgConfig, id, payload)
	if packed == nil {
		return
	}

	if len(c.sentMessages) >= SentMsgListMaxLen {
		c.sentMessages = c.sentMessages[1:]
	}
	c.sentMessages = append(c.sentMessages, sentMessage{
		packetID:    id,
		sentAt:      s.now(),
		packetBytes: packed,
	})
}

// sendRaw packs and transmits a datagram with PacketID 0, used for
// CONNACPT/CONNFAIL replies that are never retransmitted and never
// acknowledged, so the ID is not meaningful.
func (s *Server) sendRaw(uid ssgscp.GatewayUID, key ssgscp.Key, addr netip.AddrPort, typ ssgscp.PacketType, payload []byte) []byte {
	return s.transmit(uid, key, addr, typ, 0, payload)
}

func (s *Server) transmit(uid ssgscp.GatewayUID, key ssgscp.Key, addr netip.AddrPort, typ ssgscp.PacketType, id uint16, payload []byte) []byte {
	pkt := ssgscp.Packet{Type: typ, GatewayUID: uid, PacketID: id, Payload: payload}
	packed, err := ssgscp.Pack(pkt, key)
	if err != nil {
		s.debugf("ssgs: pack %s for %s: %v", typ, uid, err)
		return nil
	}
	if s.conn != nil {
		_, _ = s.conn.WriteToUDPAddrPort(packed, addr)
	}
	s.notifyMonitor(MonitorPacket{In: false, Remote: addr, UID: uid, Desc: typ.String(), Data: packed})
	return packed
}

// ackSentMessage removes the sentMessage matching id, if any.
func (s *Server) ackSentMessage(c *Client, id uint16) {
	for i, m := range c.sentMessages {
		if m.packetID == id {
			c.sentMessages = append(c.sentMessages[:i], c.sentMessages[i+1:]...)
			return
		}
	}
}

// tick retransmits overdue messages and evicts idle clients (spec.md §4.4
// "Periodic tick"). s.mu is held by the caller.
func (s *Server) tick(now time.Time) {
	for uid, c := range s.clients {
		if s.IdleTimeout > 0 && !c.LastSeen.IsZero() && now.Sub(c.LastSeen) > s.IdleTimeout {
			delete(s.clients, uid)
			continue
		}

		retransmitted := 0
		for i := range c.sentMessages {
			if retransmitted >= MaxRetransmitsPerClientPerTick {
				break
			}
			m := &c.sentMessages[i]
			if now.Sub(m.sentAt) < c.RetransmissionTimeout {
				continue
			}
			if s.conn != nil {
				_, _ = s.conn.WriteToUDPAddrPort(m.packetBytes, c.RemoteAddr)
			}
			s.notifyMonitor(MonitorPacket{In: false, Remote: c.RemoteAddr, UID: uid, Desc: "MSGCONF (retransmit)", Data: m.packetBytes})
			m.sentAt = now
			retransmitted++
			s.metricsRetransmit()
		}
	}
}

type errUnknownGateway struct {
	uid ssgscp.GatewayUID
}

func (e errUnknownGateway) Error() string {
	return "ssgs: " + e.uid.String() + " has no active connection"
}
