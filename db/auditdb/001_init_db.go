package auditdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// up001 creates the events and telemetry tables. It is auditdb's one and
// only schema step so far; see migrations.go for how it's applied.
func up001(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, strings.ReplaceAll(`
		CREATE TABLE events (
			id         TEXT PRIMARY KEY NOT NULL,
			at         INTEGER NOT NULL,
			gateway_uid TEXT NOT NULL,
			kind       TEXT NOT NULL COLLATE NOCASE,
			remote_addr TEXT NOT NULL,
			detail     TEXT NOT NULL,
			raw_comp   TEXT NOT NULL,
			raw        BLOB
		) STRICT;
	`, `
		`, "\n")); err != nil {
		return fmt.Errorf("create events table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE INDEX events_uid_idx ON events(gateway_uid, at)`); err != nil {
		return fmt.Errorf("create events index: %w", err)
	}

	if _, err := tx.ExecContext(ctx, strings.ReplaceAll(`
		CREATE TABLE telemetry (
			id            TEXT PRIMARY KEY NOT NULL,
			at            INTEGER NOT NULL,
			gateway_uid   TEXT NOT NULL,
			sensor_seal_uid INTEGER,
			temperature   REAL,
			vibration     REAL,
			rpm           INTEGER,
			voltage       REAL,
			msg_id        INTEGER
		) STRICT;
	`, `
		`, "\n")); err != nil {
		return fmt.Errorf("create telemetry table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `CREATE INDEX telemetry_uid_idx ON telemetry(gateway_uid, at)`); err != nil {
		return fmt.Errorf("create telemetry index: %w", err)
	}
	return nil
}
