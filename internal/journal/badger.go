package journal

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/rickgao/asset-market/internal/model"
)

const (
	prefixEventPayload = "EVENTS:PAYLOAD:"
	prefixEventTimed   = "EVENTS:TIMED:"
)

// BadgerSink stores events in an embedded badger database. Payloads are
// keyed by event id; a second key ordered by time and sequence indexes them.
type BadgerSink struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadgerSink opens (or creates) the database at path. An empty path
// opens an in-memory database.
func OpenBadgerSink(path string, logger *slog.Logger) (*BadgerSink, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return &BadgerSink{db: db, logger: logger}, nil
}

// Write stores events in one transaction, skipping ids already present.
func (s *BadgerSink) Write(_ context.Context, events []model.Event) (int, error) {
	written := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		written = 0
		for _, ev := range events {
			key := append([]byte(prefixEventPayload), ev.ID[:]...)
			_, err := txn.Get(key)
			if err == nil {
				continue
			} else if err != badger.ErrKeyNotFound {
				return err
			}

			val, err := msgpack.Marshal(ev)
			if err != nil {
				return fmt.Errorf("encode event %d: %w", ev.Seq, err)
			}
			if err := txn.Set(key, val); err != nil {
				return err
			}
			if err := txn.Set(buildEventTimedKey(ev), ev.ID[:]); err != nil {
				return err
			}
			written++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// ListEvents returns up to limit events with OccurredAt >= since (µs), oldest
// first. A limit of zero returns everything.
func (s *BadgerSink) ListEvents(_ context.Context, since int64, limit int) ([]model.Event, error) {
	txn := s.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixEventTimed)
	it := txn.NewIterator(opts)
	defer it.Close()

	if since < 0 {
		since = 0
	}
	seek := make([]byte, len(prefixEventTimed)+8)
	copy(seek, prefixEventTimed)
	binary.BigEndian.PutUint64(seek[len(prefixEventTimed):], uint64(since))

	var events []model.Event
	for it.Seek(seek); it.Valid(); it.Next() {
		id, err := it.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		ev, err := readEvent(txn, id)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
		if len(events) == limit {
			break
		}
	}
	return events, nil
}

// Close closes the database.
func (s *BadgerSink) Close() error {
	return s.db.Close()
}

func readEvent(txn *badger.Txn, id []byte) (model.Event, error) {
	var ev model.Event
	item, err := txn.Get(append([]byte(prefixEventPayload), id...))
	if err != nil {
		return ev, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return ev, err
	}
	err = msgpack.Unmarshal(val, &ev)
	return ev, err
}

// buildEventTimedKey orders events by time, then by sequence within a run.
func buildEventTimedKey(ev model.Event) []byte {
	key := make([]byte, len(prefixEventTimed)+16)
	n := copy(key, prefixEventTimed)
	binary.BigEndian.PutUint64(key[n:], uint64(ev.OccurredAt))
	binary.BigEndian.PutUint64(key[n+8:], ev.Seq)
	return key
}
