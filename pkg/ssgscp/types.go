// Package ssgscp implements the Sensor Seal Gateway Server Control Protocol
// wire format: framed, partially-encrypted UDP datagrams with an embedded
// authentication tag and 16-bit packet IDs.
package ssgscp

import (
	"encoding/hex"
	"fmt"
)

// GatewayUID is a gateway's fixed 4-byte identifier.
type GatewayUID [4]byte

// String formats the UID as lowercase space-separated hex, e.g. "[ab cd ef 12]".
func (u GatewayUID) String() string {
	return fmt.Sprintf("[%02x %02x %02x %02x]", u[0], u[1], u[2], u[3])
}

// GoString formats the UID in Go syntax.
func (u GatewayUID) GoString() string {
	return "GatewayUID{0x" + hex.EncodeToString(u[:1]) + ", 0x" + hex.EncodeToString(u[1:2]) + ", 0x" + hex.EncodeToString(u[2:3]) + ", 0x" + hex.EncodeToString(u[3:4]) + "}"
}

// Key is a 256-bit symmetric secret shared out-of-band with a gateway.
type Key [32]byte

// ZeroKey is the well-known all-zero key used to send an unencrypted-in-intent
// CONNFAIL (the peer can decrypt with any key; CONNFAIL is identified by type).
var ZeroKey Key

// PacketType identifies the kind of SSGSCP packet.
type PacketType uint8

const (
	// PacketConn is sent by a gateway to (re)establish a connection.
	PacketConn PacketType = 1
	// PacketConnAccept is sent by the server to accept a CONN.
	PacketConnAccept PacketType = 2
	// PacketConnFail is sent by the server to reject a packet that fails
	// authentication, or a non-CONN packet from a gateway with no connection.
	PacketConnFail PacketType = 3
	// PacketReceiptOK acknowledges a packet ID, in either direction.
	PacketReceiptOK PacketType = 10
	// PacketMsgConfig is sent by the server to deliver application payloads.
	PacketMsgConfig PacketType = 20
	// PacketMsgStatus is sent by a gateway to deliver telemetry payloads.
	PacketMsgStatus PacketType = 21
)

// String names the packet type, or "UNKNOWN(n)" if not recognized.
func (t PacketType) String() string {
	switch t {
	case PacketConn:
		return "CONN"
	case PacketConnAccept:
		return "CONNACPT"
	case PacketConnFail:
		return "CONNFAIL"
	case PacketReceiptOK:
		return "RCPTOK"
	case PacketMsgConfig:
		return "MSGCONF"
	case PacketMsgStatus:
		return "MSGSTATUS"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(t))
	}
}

// Valid reports whether t is one of the enumerated packet types.
func (t PacketType) Valid() bool {
	switch t {
	case PacketConn, PacketConnAccept, PacketConnFail, PacketReceiptOK, PacketMsgConfig, PacketMsgStatus:
		return true
	default:
		return false
	}
}

// Packet is the logical, decoded form of an SSGSCP datagram.
type Packet struct {
	Type      PacketType
	GatewayUID GatewayUID
	PacketID  uint16
	Payload   []byte // at most 255 bytes
}
