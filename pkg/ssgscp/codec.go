package ssgscp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
)

// magic is the fixed 6-byte prefix of every SSGSCP datagram.
var magic = [6]byte{'S', 'S', 'G', 'S', 'C', 'P'}

// authTag is the literal plaintext used as a weak authentication primitive:
// under CTR it only detects corruption of these bytes; it is not a real MAC.
var authTag = [4]byte{0x00, 0x01, 0x02, 0x03}

const (
	ivSize     = 8  // random IV bytes carried on the wire, right-padded to ctrIVSize
	ctrIVSize  = 16 // AES block size, used as the full CTR IV
	uidOffset  = 14
	headerSize = uidOffset + 4 // magic + iv + uid
	plainMin   = 8             // packetType(1) + authTag(4) + packetID(2) + payloadLen(1)
)

// ErrPackInvalid is returned by Pack for a payload longer than 255 bytes.
var ErrPackInvalid = errors.New("ssgscp: invalid packet fields")

// Pack encodes packet using key, generating a fresh random IV. A payload
// longer than 255 bytes is rejected; packetID and type always fit their wire
// fields, since their Go types have the wire widths.
func Pack(p Packet, key Key) ([]byte, error) {
	if len(p.Payload) > 255 {
		return nil, fmt.Errorf("%w: payload too long (%d bytes)", ErrPackInvalid, len(p.Payload))
	}

	plainLen := plainMin + len(p.Payload)
	if pad := plainLen % 4; pad != 0 {
		plainLen += 4 - pad
	}

	plain := make([]byte, plainLen)
	plain[0] = byte(p.Type)
	copy(plain[1:5], authTag[:])
	binary.BigEndian.PutUint16(plain[5:7], p.PacketID)
	plain[7] = byte(len(p.Payload))
	copy(plain[8:], p.Payload)

	out := make([]byte, headerSize+plainLen)
	copy(out[0:6], magic[:])
	if _, err := rand.Read(out[6 : 6+ivSize]); err != nil {
		return nil, fmt.Errorf("ssgscp: generate iv: %w", err)
	}
	copy(out[uidOffset:headerSize], p.GatewayUID[:])

	if err := ctrCrypt(key, out[6:6+ivSize], plain, out[headerSize:]); err != nil {
		return nil, err
	}

	return out, nil
}

// ParseKind classifies the outcome of Parse.
type ParseKind uint8

const (
	// ParseMalformed means the datagram was too short, had a bad magic, or
	// had an encrypted portion that is not a multiple of 4 bytes.
	ParseMalformed ParseKind = iota
	// ParseAuthFailed means decryption succeeded structurally but the fixed
	// auth tag did not match, or the declared payload length runs past the
	// decrypted portion.
	ParseAuthFailed
	// ParseOK means the packet decrypted and authenticated successfully.
	ParseOK
)

// ParseOutcome is the sum-type result of Parse: Packet is only valid when
// Kind == ParseOK.
type ParseOutcome struct {
	Kind   ParseKind
	Packet Packet
}

// Parse decrypts and authenticates datagram using key. It never returns a Go
// error for malformed or unauthenticated input — those are represented in the
// returned ParseOutcome.Kind, per the protocol's "never crash on bad input"
// disposition.
func Parse(datagram []byte, key Key) ParseOutcome {
	if len(datagram) < headerSize+plainMin || [6]byte(datagram[0:6]) != magic {
		return ParseOutcome{Kind: ParseMalformed}
	}

	enc := datagram[headerSize:]
	if len(enc)%4 != 0 || len(enc) < plainMin {
		return ParseOutcome{Kind: ParseMalformed}
	}

	plain := make([]byte, len(enc))
	if err := ctrCrypt(key, datagram[6:6+ivSize], enc, plain); err != nil {
		return ParseOutcome{Kind: ParseMalformed}
	}

	if [4]byte(plain[1:5]) != authTag {
		return ParseOutcome{Kind: ParseAuthFailed}
	}

	payloadLen := int(plain[7])
	if 8+payloadLen > len(plain) {
		return ParseOutcome{Kind: ParseAuthFailed}
	}

	var uid GatewayUID
	copy(uid[:], datagram[uidOffset:headerSize])

	payload := make([]byte, payloadLen)
	copy(payload, plain[8:8+payloadLen])

	return ParseOutcome{
		Kind: ParseOK,
		Packet: Packet{
			Type:       PacketType(plain[0]),
			GatewayUID: uid,
			PacketID:   binary.BigEndian.Uint16(plain[5:7]),
			Payload:    payload,
		},
	}
}

// ParseUID extracts the unencrypted gateway UID from datagram without
// touching encryption, or returns ok=false if the datagram is too short or
// has a bad magic.
func ParseUID(datagram []byte) (uid GatewayUID, ok bool) {
	if len(datagram) < headerSize || [6]byte(datagram[0:6]) != magic {
		return uid, false
	}
	copy(uid[:], datagram[uidOffset:headerSize])
	return uid, true
}

// PackedLen returns the number of bytes Pack would produce for a payload of
// length n, matching the padding invariant headerSize+ceil((8+n)/4)*4.
func PackedLen(n int) int {
	l := plainMin + n
	if pad := l % 4; pad != 0 {
		l += 4 - pad
	}
	return headerSize + l
}

// ctrCrypt runs AES-256-CTR over src into dst using key and an 8-byte IV
// right-padded with zeros to the AES block size, per the wire format.
func ctrCrypt(key Key, iv8 []byte, src, dst []byte) error {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return fmt.Errorf("ssgscp: init cipher: %w", err)
	}

	var iv [ctrIVSize]byte
	copy(iv[:], iv8)

	stream := cipher.NewCTR(block, iv[:])
	stream.XORKeyStream(dst, src)
	return nil
}
