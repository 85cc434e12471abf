package ssgscp

import (
	"bytes"
	"testing"
)

func testKey() Key {
	var k Key
	for i := range k {
		k[i] = 0x11
	}
	return k
}

func TestPackParseRoundTrip(t *testing.T) {
	key := testKey()
	for _, payloadLen := range []int{0, 1, 3, 4, 8, 100, 255} {
		payload := make([]byte, payloadLen)
		for i := range payload {
			payload[i] = byte(i)
		}

		p := Packet{
			Type:       PacketMsgStatus,
			GatewayUID: GatewayUID{0xaa, 0xbb, 0xcc, 0xdd},
			PacketID:   0x1234,
			Payload:    payload,
		}

		buf, err := Pack(p, key)
		if err != nil {
			t.Fatalf("payload len %d: pack: %v", payloadLen, err)
		}

		if want := PackedLen(payloadLen); len(buf) != want {
			t.Fatalf("payload len %d: got packed length %d, want %d", payloadLen, len(buf), want)
		}

		out := Parse(buf, key)
		if out.Kind != ParseOK {
			t.Fatalf("payload len %d: parse kind = %v, want ParseOK", payloadLen, out.Kind)
		}
		if out.Packet.Type != p.Type {
			t.Errorf("payload len %d: type = %v, want %v", payloadLen, out.Packet.Type, p.Type)
		}
		if out.Packet.GatewayUID != p.GatewayUID {
			t.Errorf("payload len %d: uid = %v, want %v", payloadLen, out.Packet.GatewayUID, p.GatewayUID)
		}
		if out.Packet.PacketID != p.PacketID {
			t.Errorf("payload len %d: packetID = %v, want %v", payloadLen, out.Packet.PacketID, p.PacketID)
		}
		if !bytes.Equal(out.Packet.Payload, p.Payload) {
			t.Errorf("payload len %d: payload mismatch", payloadLen)
		}
	}
}

func TestPackedLenInvariant(t *testing.T) {
	for n := 0; n <= 255; n++ {
		want := headerSize + ((8+n+3)/4)*4
		if got := PackedLen(n); got != want {
			t.Errorf("n=%d: PackedLen = %d, want %d", n, got, want)
		}
	}
}

func TestParseMalformed(t *testing.T) {
	key := testKey()

	if out := Parse(nil, key); out.Kind != ParseMalformed {
		t.Errorf("empty datagram: kind = %v, want ParseMalformed", out.Kind)
	}

	short := make([]byte, 20)
	copy(short, magic[:])
	if out := Parse(short, key); out.Kind != ParseMalformed {
		t.Errorf("short datagram: kind = %v, want ParseMalformed", out.Kind)
	}

	buf, err := Pack(Packet{Type: PacketConn, GatewayUID: GatewayUID{1, 2, 3, 4}}, key)
	if err != nil {
		t.Fatal(err)
	}
	bad := append([]byte(nil), buf...)
	bad[0] ^= 0xff
	if out := Parse(bad, key); out.Kind != ParseMalformed {
		t.Errorf("bad magic: kind = %v, want ParseMalformed", out.Kind)
	}
}

func TestParseAuthFailureOnTagCorruption(t *testing.T) {
	key := testKey()
	buf, err := Pack(Packet{
		Type:       PacketMsgStatus,
		GatewayUID: GatewayUID{0xaa, 0xbb, 0xcc, 0xdd},
		PacketID:   7,
		Payload:    []byte("hello"),
	}, key)
	if err != nil {
		t.Fatal(err)
	}

	corrupt := append([]byte(nil), buf...)
	corrupt[headerSize] ^= 0x01 // flip first byte of encrypted portion (plaintext byte 0: packetType)

	out := Parse(corrupt, key)
	// flipping packetType doesn't touch the auth tag bytes directly under CTR,
	// since each plaintext byte maps to an independent keystream byte; the
	// auth tag bytes themselves are untouched here, so this should still parse.
	if out.Kind != ParseOK {
		t.Fatalf("flipping packetType byte: kind = %v, want ParseOK (auth tag untouched)", out.Kind)
	}

	corrupt2 := append([]byte(nil), buf...)
	corrupt2[headerSize+1] ^= 0x01 // flip first byte of the fixed auth tag
	out2 := Parse(corrupt2, key)
	if out2.Kind != ParseAuthFailed {
		t.Fatalf("flipping auth tag byte: kind = %v, want ParseAuthFailed", out2.Kind)
	}
}

func TestParseUID(t *testing.T) {
	key := testKey()
	want := GatewayUID{0xaa, 0xbb, 0xcc, 0xdd}
	buf, err := Pack(Packet{Type: PacketConn, GatewayUID: want}, key)
	if err != nil {
		t.Fatal(err)
	}

	uid, ok := ParseUID(buf)
	if !ok {
		t.Fatal("ParseUID: ok = false")
	}
	if uid != want {
		t.Errorf("ParseUID = %v, want %v", uid, want)
	}

	if _, ok := ParseUID([]byte("short")); ok {
		t.Error("ParseUID on short datagram: ok = true")
	}
}

func TestPackRejectsOversizedPayload(t *testing.T) {
	key := testKey()
	_, err := Pack(Packet{Type: PacketMsgConfig, Payload: make([]byte, 256)}, key)
	if err == nil {
		t.Fatal("expected error for 256-byte payload")
	}
}

func TestPackIVIsRandomPerCall(t *testing.T) {
	key := testKey()
	p := Packet{Type: PacketConn, GatewayUID: GatewayUID{1, 2, 3, 4}}

	a, err := Pack(p, key)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Pack(p, key)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(a[6:6+ivSize], b[6:6+ivSize]) {
		t.Error("two Pack calls produced the same IV")
	}
}
