package auditdb

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestAuditDBRecordAndRead(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.RecordEvent(ctx, Event{
		At:         1000,
		GatewayUID: "aabbccdd",
		Kind:       EventConnected,
		RemoteAddr: "10.0.0.2:40000",
		Detail:     "handshake",
	}); err != nil {
		t.Fatal(err)
	}

	if err := db.RecordEvent(ctx, Event{
		At:         2000,
		GatewayUID: "aabbccdd",
		Kind:       EventAuthFailed,
		RemoteAddr: "10.0.0.2:40000",
		Detail:     "bad auth tag",
		Raw:        []byte("some raw datagram bytes to compress"),
	}); err != nil {
		t.Fatal(err)
	}

	events, err := db.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].At != 2000 || events[0].Kind != EventAuthFailed {
		t.Errorf("events[0] = %+v, want most recent first", events[0])
	}
	if string(events[0].Raw) != "some raw datagram bytes to compress" {
		t.Errorf("events[0].Raw = %q, want round-tripped raw bytes", events[0].Raw)
	}
	if events[1].Raw != nil {
		t.Errorf("events[1].Raw = %v, want nil (no raw bytes recorded)", events[1].Raw)
	}
}

func TestAuditDBRecordTelemetry(t *testing.T) {
	ctx := context.Background()
	db, err := Open(ctx, filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	temp := 25.5
	seal := uint32(42)
	if err := db.RecordTelemetry(ctx, Telemetry{
		At:            1000,
		GatewayUID:    "aabbccdd",
		SensorSealUID: &seal,
		Temperature:   &temp,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.RecordTelemetry(ctx, Telemetry{
		At:         2000,
		GatewayUID: "aabbccdd",
	}); err != nil {
		t.Fatal(err)
	}

	rows, err := db.RecentTelemetry(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	if rows[0].At != 2000 {
		t.Errorf("rows[0].At = %d, want 2000 (most recent first)", rows[0].At)
	}
	if rows[0].SensorSealUID != nil {
		t.Errorf("rows[0].SensorSealUID = %v, want nil", rows[0].SensorSealUID)
	}
	if rows[1].SensorSealUID == nil || *rows[1].SensorSealUID != seal {
		t.Errorf("rows[1].SensorSealUID = %v, want %d", rows[1].SensorSealUID, seal)
	}
	if rows[1].Temperature == nil || *rows[1].Temperature != temp {
		t.Errorf("rows[1].Temperature = %v, want %v", rows[1].Temperature, temp)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := db.RecordTelemetry(canceled, Telemetry{GatewayUID: "aabbccdd"}); err == nil {
		t.Error("RecordTelemetry with a canceled context: got nil error, want non-nil")
	}
}
