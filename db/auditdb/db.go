// Package auditdb implements a sqlite3-backed, append-only audit trail of
// gateway connection events and delivered telemetry. It is purely historical:
// nothing in the protocol dispatch path reads from it, so it never
// rehydrates live connection state across restarts.
package auditdb

import (
	"bytes"
	"context"
	"fmt"
	"net/url"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
)

// EventKind names a gateway lifecycle event recorded in the events table.
type EventKind string

const (
	EventConnected        EventKind = "connected"
	EventReconnected      EventKind = "reconnected"
	EventAuthFailed       EventKind = "auth_failed"
	EventUnauthorizedUID  EventKind = "unauthorized_uid"
	EventMalformedDatagram EventKind = "malformed_datagram"
)

// DB stores the audit trail in a sqlite3 database.
type DB struct {
	x *sqlx.DB

	// Logger receives failures from the RecordEventAsync/RecordTelemetryAsync
	// background writers. The zero value discards them.
	Logger zerolog.Logger
}

// Open opens (creating if necessary) a DB at name and migrates it to the
// latest schema version.
func Open(ctx context.Context, name string) (*DB, error) {
	x, err := sqlx.Connect("sqlite3", (&url.URL{
		Path: name,
		RawQuery: (url.Values{
			"_journal":      {"WAL"},
			"_busy_timeout": {"6000"},
		}).Encode(),
	}).String())
	if err != nil {
		return nil, fmt.Errorf("auditdb: connect: %w", err)
	}

	db := &DB{x: x}
	if err := db.MigrateUp(ctx); err != nil {
		x.Close()
		return nil, fmt.Errorf("auditdb: migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.x.Close()
}

// Event is one row of the events table.
type Event struct {
	ID         string
	At         int64 // unix millis
	GatewayUID string // as written by the caller; pkg/ssgs uses GatewayUID.String(), e.g. "[aa bb cc dd]"
	Kind       EventKind
	RemoteAddr string
	Detail     string
	Raw        []byte // raw datagram bytes, if any, gzip-compressed on disk
}

// RecordEvent appends an event row. raw may be nil.
func (db *DB) RecordEvent(ctx context.Context, e Event) error {
	comp, blob, err := compress(e.Raw)
	if err != nil {
		return fmt.Errorf("auditdb: compress raw: %w", err)
	}

	id := e.ID
	if id == "" {
		id = xid.New().String()
	}

	_, err = db.x.ExecContext(ctx, `
		INSERT INTO events (id, at, gateway_uid, kind, remote_addr, detail, raw_comp, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, id, e.At, e.GatewayUID, string(e.Kind), e.RemoteAddr, e.Detail, comp, blob)
	if err != nil {
		return fmt.Errorf("auditdb: insert event: %w", err)
	}
	return nil
}

// Telemetry is one row of the telemetry table; pointer fields mirror
// sensorseal.Update's optionality.
type Telemetry struct {
	ID            string   `db:"id"`
	At            int64    `db:"at"`
	GatewayUID    string   `db:"gateway_uid"`
	SensorSealUID *uint32  `db:"sensor_seal_uid"`
	Temperature   *float64 `db:"temperature"`
	Vibration     *float64 `db:"vibration"`
	RPM           *uint32  `db:"rpm"`
	Voltage       *float64 `db:"voltage"`
	MsgID         *uint32  `db:"msg_id"`
}

// RecordTelemetry appends a telemetry row.
func (db *DB) RecordTelemetry(ctx context.Context, t Telemetry) error {
	id := t.ID
	if id == "" {
		id = xid.New().String()
	}
	_, err := db.x.ExecContext(ctx, `
		INSERT INTO telemetry (id, at, gateway_uid, sensor_seal_uid, temperature, vibration, rpm, voltage, msg_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, t.At, t.GatewayUID, t.SensorSealUID, t.Temperature, t.Vibration, t.RPM, t.Voltage, t.MsgID)
	if err != nil {
		return fmt.Errorf("auditdb: insert telemetry: %w", err)
	}
	return nil
}

// RecentTelemetry returns the most recent n telemetry rows, newest first.
func (db *DB) RecentTelemetry(ctx context.Context, n int) ([]Telemetry, error) {
	var rows []Telemetry
	if err := db.x.SelectContext(ctx, &rows, `
		SELECT id, at, gateway_uid, sensor_seal_uid, temperature, vibration, rpm, voltage, msg_id
		FROM telemetry ORDER BY at DESC LIMIT ?
	`, n); err != nil {
		return nil, fmt.Errorf("auditdb: select telemetry: %w", err)
	}
	return rows, nil
}

// RecentEvents returns the most recent n events, newest first.
func (db *DB) RecentEvents(ctx context.Context, n int) ([]Event, error) {
	var rows []struct {
		ID         string `db:"id"`
		At         int64  `db:"at"`
		GatewayUID string `db:"gateway_uid"`
		Kind       string `db:"kind"`
		RemoteAddr string `db:"remote_addr"`
		Detail     string `db:"detail"`
		RawComp    string `db:"raw_comp"`
		Raw        []byte `db:"raw"`
	}
	if err := db.x.SelectContext(ctx, &rows, `
		SELECT id, at, gateway_uid, kind, remote_addr, detail, raw_comp, raw
		FROM events ORDER BY at DESC LIMIT ?
	`, n); err != nil {
		return nil, fmt.Errorf("auditdb: select events: %w", err)
	}

	out := make([]Event, 0, len(rows))
	for _, r := range rows {
		raw, err := decompress(r.RawComp, r.Raw)
		if err != nil {
			return nil, fmt.Errorf("auditdb: decompress event %s: %w", r.ID, err)
		}
		out = append(out, Event{
			ID:         r.ID,
			At:         r.At,
			GatewayUID: r.GatewayUID,
			Kind:       EventKind(r.Kind),
			RemoteAddr: r.RemoteAddr,
			Detail:     r.Detail,
			Raw:        raw,
		})
	}
	return out, nil
}

// compress gzip-compresses raw, the same technique pdatadb uses for its
// blobs. It returns comp="" and nil blob for an empty/nil input so the
// common "no raw bytes for this event" case doesn't pay the gzip framing
// overhead.
func compress(raw []byte) (comp string, blob []byte, err error) {
	if len(raw) == 0 {
		return "", nil, nil
	}
	var b bytes.Buffer
	zw := gzip.NewWriter(&b)
	if _, err := zw.Write(raw); err != nil {
		return "", nil, err
	}
	if err := zw.Close(); err != nil {
		return "", nil, err
	}
	return "gzip", b.Bytes(), nil
}

func decompress(comp string, blob []byte) ([]byte, error) {
	switch comp {
	case "":
		return nil, nil
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(blob))
		if err != nil {
			return nil, err
		}
		var b bytes.Buffer
		if _, err := b.ReadFrom(zr); err != nil {
			return nil, err
		}
		if err := zr.Close(); err != nil {
			return nil, err
		}
		return b.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported compression method %q", comp)
	}
}
