package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied on every start; each statement is idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS market_events (
		event_id      UUID PRIMARY KEY,
		instance      TEXT NOT NULL,
		seq           BIGINT NOT NULL,
		type          TEXT NOT NULL,
		collection    TEXT NOT NULL DEFAULT '',
		asset_id      BIGINT NOT NULL DEFAULT 0,
		listing_id    BIGINT NOT NULL DEFAULT 0,
		caller        TEXT NOT NULL DEFAULT '',
		from_identity TEXT NOT NULL DEFAULT '',
		to_identity   TEXT NOT NULL DEFAULT '',
		amount        BIGINT NOT NULL DEFAULT 0,
		uri           TEXT NOT NULL DEFAULT '',
		occurred_at   BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS market_events_instance_seq ON market_events (instance, seq)`,
	`CREATE INDEX IF NOT EXISTS market_events_time ON market_events (occurred_at, seq)`,
	`CREATE INDEX IF NOT EXISTS market_events_listing ON market_events (listing_id) WHERE listing_id <> 0`,
}

// EnsureSchema creates the journal tables if they do not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
