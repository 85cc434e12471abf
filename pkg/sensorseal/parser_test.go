package sensorseal

import (
	"encoding/binary"
	"testing"
)

func TestParseUpdateEmpty(t *testing.T) {
	u, err := ParseUpdate(nil)
	if err != nil {
		t.Fatal(err)
	}
	if u.SensorSealUID != nil || u.Temperature != nil || u.MsgID != nil {
		t.Errorf("expected all-nil Update, got %+v", u)
	}
}

func TestParseUpdateLegacy(t *testing.T) {
	b := make([]byte, 1+10)
	b[0] = formatLegacy
	binary.BigEndian.PutUint32(b[1:5], 0xdeadbeef)
	binary.BigEndian.PutUint16(b[5:7], uint16(int16(2550))) // 25.50C
	binary.BigEndian.PutUint32(b[7:11], 42)

	u, err := ParseUpdate(b)
	if err != nil {
		t.Fatal(err)
	}
	if u.SensorSealUID == nil || *u.SensorSealUID != UID(0xdeadbeef) {
		t.Errorf("SensorSealUID = %v, want 0xdeadbeef", u.SensorSealUID)
	}
	if u.Temperature == nil || *u.Temperature != 25.5 {
		t.Errorf("Temperature = %v, want 25.5", u.Temperature)
	}
	if u.MsgID == nil || *u.MsgID != 42 {
		t.Errorf("MsgID = %v, want 42", u.MsgID)
	}
	if u.Vibration != nil || u.RPM != nil || u.Voltage != nil {
		t.Errorf("expected optional fields nil, got %+v", u)
	}
}

func TestParseUpdateBitmaskPartial(t *testing.T) {
	b := []byte{formatBitmask, bitTemperature | bitRPM}
	temp := int16(-1025) // -10.25C
	b = binary.BigEndian.AppendUint16(b, uint16(temp))
	b = binary.BigEndian.AppendUint16(b, 3000) // rpm

	u, err := ParseUpdate(b)
	if err != nil {
		t.Fatal(err)
	}
	if u.SensorSealUID != nil {
		t.Error("SensorSealUID should be nil (not in bitmask)")
	}
	if u.Temperature == nil || *u.Temperature != -10.25 {
		t.Errorf("Temperature = %v, want -10.25", u.Temperature)
	}
	if u.RPM == nil || *u.RPM != 3000 {
		t.Errorf("RPM = %v, want 3000", u.RPM)
	}
	if u.Vibration != nil || u.Voltage != nil || u.MsgID != nil {
		t.Errorf("expected remaining optional fields nil, got %+v", u)
	}
}

func TestParseUpdateBitmaskTruncated(t *testing.T) {
	b := []byte{formatBitmask, bitVoltage} // claims voltage field but doesn't carry it
	if _, err := ParseUpdate(b); err == nil {
		t.Fatal("expected error for truncated bitmask payload")
	}
}

func TestParseUpdateUnknownFormat(t *testing.T) {
	u, err := ParseUpdate([]byte{0xff, 1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if u.SensorSealUID != nil {
		t.Error("expected empty Update for unrecognized format marker")
	}
}
