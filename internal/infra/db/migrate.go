package db

import (
	"context"
	"database/sql"
	"fmt"
)

const createSnapshotPostgres = `
CREATE TABLE IF NOT EXISTS snapshot_entries (
    product_id        TEXT PRIMARY KEY,
    name              TEXT NOT NULL,
    price_amount      NUMERIC,
    currency          VARCHAR(3) NOT NULL DEFAULT '',
    image_url         TEXT NOT NULL DEFAULT '',
    buy_url           TEXT NOT NULL DEFAULT '',
    available         BOOLEAN NOT NULL,
    variants          JSONB NOT NULL DEFAULT '[]',
    variant_signature TEXT NOT NULL DEFAULT '',
    category          TEXT NOT NULL DEFAULT '',
    first_seen        TIMESTAMPTZ NOT NULL,
    last_seen         TIMESTAMPTZ NOT NULL,
    last_seen_cycle   BIGINT NOT NULL,
    notified          VARCHAR(20) NOT NULL
)`

// Tables created with NUMERIC(14, 2) rounded prices with more decimals, which
// showed up as price changes after a restart.
const widenPricePostgres = `ALTER TABLE snapshot_entries ALTER COLUMN price_amount TYPE NUMERIC`

const createSnapshotSQLite = `
CREATE TABLE IF NOT EXISTS snapshot_entries (
    product_id        TEXT PRIMARY KEY,
    name              TEXT NOT NULL,
    price_amount      TEXT,
    currency          TEXT NOT NULL DEFAULT '',
    image_url         TEXT NOT NULL DEFAULT '',
    buy_url           TEXT NOT NULL DEFAULT '',
    available         INTEGER NOT NULL,
    variants          TEXT NOT NULL DEFAULT '[]',
    variant_signature TEXT NOT NULL DEFAULT '',
    category          TEXT NOT NULL DEFAULT '',
    first_seen        TEXT NOT NULL,
    last_seen         TEXT NOT NULL,
    last_seen_cycle   INTEGER NOT NULL,
    notified          TEXT NOT NULL
)`

// MigrateUp creates the snapshot schema for the dialect. It is idempotent.
func MigrateUp(ctx context.Context, db *sql.DB, dialect Dialect) error {
	if dialect != DialectPostgres {
		if _, err := db.ExecContext(ctx, createSnapshotSQLite); err != nil {
			return fmt.Errorf("create snapshot_entries: %w", err)
		}
		return nil
	}
	if _, err := db.ExecContext(ctx, createSnapshotPostgres); err != nil {
		return fmt.Errorf("create snapshot_entries: %w", err)
	}
	if _, err := db.ExecContext(ctx, widenPricePostgres); err != nil {
		return fmt.Errorf("widen price_amount: %w", err)
	}
	return nil
}
