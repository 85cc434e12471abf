package sensorseal

import (
	"encoding/binary"
	"fmt"
)

// Payload formats, selected by the leading marker byte. The server core
// treats this dispatch as opaque; it only ever calls ParseUpdate.
const (
	formatLegacy  = 0x00 // fixed UID+temperature+msgID record, no optional fields
	formatBitmask = 0x01 // marker + bitmask byte, followed by only the present fields
)

// field bits within the formatBitmask bitmask byte, in wire order.
const (
	bitSensorSealUID = 1 << iota
	bitTemperature
	bitVibration
	bitRPM
	bitVoltage
	bitMsgID
)

const fixedPointScale = 100.0

// ParseUpdate decodes a MSGSTATUS payload into an Update. Fields the payload
// doesn't carry are left nil. An error is returned only when the payload is
// too short for the fields its own header claims to carry — never for an
// unrecognized marker, which simply yields an empty Update (forward
// compatibility with future sensor seal firmware).
func ParseUpdate(payload []byte) (Update, error) {
	if len(payload) == 0 {
		return Update{}, nil
	}

	switch payload[0] {
	case formatLegacy:
		return parseLegacy(payload[1:])
	case formatBitmask:
		return parseBitmask(payload[1:])
	default:
		return Update{}, nil
	}
}

func parseLegacy(b []byte) (Update, error) {
	const want = 4 + 2 + 4 // uid + temperature + msgID
	if len(b) < want {
		return Update{}, fmt.Errorf("sensorseal: legacy payload too short (%d bytes, want %d)", len(b), want)
	}

	uid := UID(binary.BigEndian.Uint32(b[0:4]))
	temp := fixedPointToFloat(int16(binary.BigEndian.Uint16(b[4:6])))
	msgID := binary.BigEndian.Uint32(b[6:10])

	return Update{
		SensorSealUID: &uid,
		Temperature:   &temp,
		MsgID:         &msgID,
	}, nil
}

func parseBitmask(b []byte) (Update, error) {
	if len(b) < 1 {
		return Update{}, fmt.Errorf("sensorseal: missing bitmask byte")
	}
	mask := b[0]
	b = b[1:]

	var u Update

	take := func(name string, n int) ([]byte, error) {
		if len(b) < n {
			return nil, fmt.Errorf("sensorseal: payload too short for %s field (need %d more bytes)", name, n)
		}
		f := b[:n]
		b = b[n:]
		return f, nil
	}

	if mask&bitSensorSealUID != 0 {
		f, err := take("sensorSealUID", 4)
		if err != nil {
			return Update{}, err
		}
		v := UID(binary.BigEndian.Uint32(f))
		u.SensorSealUID = &v
	}
	if mask&bitTemperature != 0 {
		f, err := take("temperature", 2)
		if err != nil {
			return Update{}, err
		}
		v := fixedPointToFloat(int16(binary.BigEndian.Uint16(f)))
		u.Temperature = &v
	}
	if mask&bitVibration != 0 {
		f, err := take("vibration", 2)
		if err != nil {
			return Update{}, err
		}
		v := fixedPointToFloat(int16(binary.BigEndian.Uint16(f)))
		u.Vibration = &v
	}
	if mask&bitRPM != 0 {
		f, err := take("rpm", 2)
		if err != nil {
			return Update{}, err
		}
		v := uint32(binary.BigEndian.Uint16(f))
		u.RPM = &v
	}
	if mask&bitVoltage != 0 {
		f, err := take("voltage", 2)
		if err != nil {
			return Update{}, err
		}
		v := fixedPointToFloat(int16(binary.BigEndian.Uint16(f)))
		u.Voltage = &v
	}
	if mask&bitMsgID != 0 {
		f, err := take("msgID", 4)
		if err != nil {
			return Update{}, err
		}
		v := binary.BigEndian.Uint32(f)
		u.MsgID = &v
	}

	return u, nil
}

func fixedPointToFloat(v int16) float64 {
	return float64(v) / fixedPointScale
}
