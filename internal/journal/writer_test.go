package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/asset-market/internal/model"
)

// memorySink records batches and can be told to fail.
type memorySink struct {
	mu      sync.Mutex
	seen    map[uuid.UUID]bool
	events  []model.Event
	batches int
	fail    bool
	closed  bool
}

func newMemorySink() *memorySink {
	return &memorySink{seen: make(map[uuid.UUID]bool)}
}

func (s *memorySink) Write(_ context.Context, events []model.Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail {
		return 0, errors.New("sink unavailable")
	}
	s.batches++
	written := 0
	for _, ev := range events {
		if s.seen[ev.ID] {
			continue
		}
		s.seen[ev.ID] = true
		s.events = append(s.events, ev)
		written++
	}
	return written, nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *memorySink) setFail(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = fail
}

func (s *memorySink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func testEvent(seq uint64) model.Event {
	return model.Event{ID: uuid.New(), Seq: seq, Type: model.EventMint, OccurredAt: int64(seq)}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestWriter_FlushOnBatchSize(t *testing.T) {
	sink := newMemorySink()
	w := NewWriter(WriterConfig{BatchSize: 3, FlushInterval: time.Hour}, sink, nil)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	for i := uint64(1); i <= 3; i++ {
		w.Publish(testEvent(i))
	}
	waitFor(t, func() bool { return sink.count() == 3 })

	if err := w.Stop(ctx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}
	for i, ev := range sink.events {
		if ev.Seq != uint64(i+1) {
			t.Errorf("events[%d].Seq = %d, want %d", i, ev.Seq, i+1)
		}
	}
}

func TestWriter_FlushOnInterval(t *testing.T) {
	sink := newMemorySink()
	w := NewWriter(WriterConfig{BatchSize: 100, FlushInterval: 20 * time.Millisecond}, sink, nil)

	ctx := context.Background()
	w.Start(ctx)
	defer w.Stop(ctx)

	w.Publish(testEvent(1))
	waitFor(t, func() bool { return sink.count() == 1 })
}

func TestWriter_StopFlushesRemainder(t *testing.T) {
	sink := newMemorySink()
	w := NewWriter(WriterConfig{BatchSize: 2, FlushInterval: time.Hour}, sink, nil)

	ctx := context.Background()
	w.Start(ctx)
	for i := uint64(1); i <= 5; i++ {
		w.Publish(testEvent(i))
	}

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() failed: %v", err)
	}

	if sink.count() != 5 {
		t.Errorf("sink has %d events, want 5", sink.count())
	}
	if !sink.closed {
		t.Error("sink not closed on Stop()")
	}

	// Publishing after stop is dropped.
	w.Publish(testEvent(6))
	if got := w.Stats().Queue.Len; got != 0 {
		t.Errorf("queue length after Stop() = %d, want 0", got)
	}
}

func TestWriter_RetriesFailedBatch(t *testing.T) {
	sink := newMemorySink()
	sink.setFail(true)
	w := NewWriter(WriterConfig{BatchSize: 10, FlushInterval: 10 * time.Millisecond}, sink, nil)

	ctx := context.Background()
	w.Start(ctx)
	w.Publish(testEvent(1))
	w.Publish(testEvent(2))

	waitFor(t, func() bool { return w.Stats().Errors > 0 })
	sink.setFail(false)
	waitFor(t, func() bool { return sink.count() == 2 })

	w.Stop(ctx)
	if stats := w.Stats(); stats.Written != 2 {
		t.Errorf("Written = %d, want 2", stats.Written)
	}
}

func TestWriter_CountsDuplicates(t *testing.T) {
	sink := newMemorySink()
	w := NewWriter(WriterConfig{BatchSize: 10, FlushInterval: time.Hour}, sink, nil)

	ev := testEvent(1)
	w.Publish(ev)
	w.Publish(ev)

	ctx := context.Background()
	w.Start(ctx)
	w.Stop(ctx)

	stats := w.Stats()
	if stats.Written != 1 || stats.Duplicates != 1 {
		t.Errorf("Written/Duplicates = %d/%d, want 1/1", stats.Written, stats.Duplicates)
	}
}
