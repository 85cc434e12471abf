package auditdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaVersion is the schema auditdb expects, tracked on disk via sqlite's
// PRAGMA user_version. auditdb is append-only and has never shipped a
// breaking schema change, so unlike pdatadb's version-registry-plus-down-
// migration machinery this only has one step (up001) and no downgrade
// path: there's nothing yet to migrate between, and "undo the audit trail's
// schema" isn't a real operation for a historical record. A future
// breaking change adds up002 here and a case below, not a new package.
const schemaVersion = 1

// Version reports the database's current schema version and the version
// this binary requires.
func (db *DB) Version() (current, required uint64, err error) {
	if err = db.x.Get(&current, `PRAGMA user_version`); err != nil {
		return 0, 0, fmt.Errorf("get version: %w", err)
	}
	return current, schemaVersion, nil
}

// MigrateUp brings the database up to schemaVersion. It is idempotent: a
// database already at schemaVersion is left untouched.
func (db *DB) MigrateUp(ctx context.Context) error {
	tx, err := db.x.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var cv uint64
	if err := tx.GetContext(ctx, &cv, `PRAGMA user_version`); err != nil {
		return fmt.Errorf("get version: %w", err)
	}
	if cv > schemaVersion {
		return fmt.Errorf("database version %d is newer than this binary's schema %d", cv, schemaVersion)
	}

	if cv < 1 {
		if err := up001(ctx, tx); err != nil {
			return fmt.Errorf("migrate to version 1: %w", err)
		}
		cv = 1
	}

	if cv != schemaVersion {
		return fmt.Errorf("unknown schema version %d", schemaVersion)
	}

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion)); err != nil {
		return fmt.Errorf("update version: %w", err)
	}
	return tx.Commit()
}
