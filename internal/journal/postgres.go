package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/asset-market/internal/model"
)

const insertEventSQL = `
	INSERT INTO market_events (
		event_id, instance, seq, type, collection, asset_id, listing_id,
		caller, from_identity, to_identity, amount, uri, occurred_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (event_id) DO NOTHING
`

const listEventsSQL = `
	SELECT event_id, seq, type, collection, asset_id, listing_id,
		caller, from_identity, to_identity, amount, uri, occurred_at
	FROM market_events
	WHERE instance = $1 AND occurred_at >= $2
	ORDER BY occurred_at, seq
	LIMIT NULLIF($3, 0)
`

// PostgresSink writes events to the market_events table.
type PostgresSink struct {
	db       *pgxpool.Pool
	instance string
}

// NewPostgresSink creates a sink tagging every row with instance.
func NewPostgresSink(db *pgxpool.Pool, instance string) *PostgresSink {
	return &PostgresSink{db: db, instance: instance}
}

// Write inserts events in one batch, skipping ids already present.
func (s *PostgresSink) Write(ctx context.Context, events []model.Event) (int, error) {
	batch := &pgx.Batch{}
	for _, ev := range events {
		batch.Queue(insertEventSQL, eventArgs(s.instance, ev)...)
	}

	results := s.db.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for _, ev := range events {
		ct, err := results.Exec()
		if err != nil {
			return 0, fmt.Errorf("insert event %d: %w", ev.Seq, err)
		}
		if ct.RowsAffected() > 0 {
			written++
		}
	}
	return written, nil
}

// ListEvents returns up to limit events of this instance with OccurredAt >=
// since (µs), oldest first. A limit of zero returns everything.
func (s *PostgresSink) ListEvents(ctx context.Context, since int64, limit int) ([]model.Event, error) {
	rows, err := s.db.Query(ctx, listEventsSQL, s.instance, since, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			ev                    model.Event
			typ                   string
			seq, assetID, listing int64
			caller, from, to      string
		)
		if err := rows.Scan(&ev.ID, &seq, &typ, &ev.Collection, &assetID, &listing,
			&caller, &from, &to, &ev.Amount, &ev.URI, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Seq = uint64(seq)
		ev.Type = model.EventType(typ)
		ev.AssetID = model.AssetID(assetID)
		ev.ListingID = model.ListingID(listing)
		ev.Caller = model.Identity(caller)
		ev.From = model.Identity(from)
		ev.To = model.Identity(to)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Close is a no-op; the pool is owned by the caller.
func (s *PostgresSink) Close() error {
	return nil
}

// eventArgs flattens ev into insertEventSQL parameters.
func eventArgs(instance string, ev model.Event) []any {
	return []any{
		ev.ID,
		instance,
		int64(ev.Seq),
		string(ev.Type),
		ev.Collection,
		int64(ev.AssetID),
		int64(ev.ListingID),
		string(ev.Caller),
		string(ev.From),
		string(ev.To),
		ev.Amount,
		ev.URI,
		ev.OccurredAt,
	}
}
