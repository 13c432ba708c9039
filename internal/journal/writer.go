package journal

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/asset-market/internal/model"
)

// Sink persists batches of events. Write must be idempotent per event ID.
type Sink interface {
	Write(ctx context.Context, events []model.Event) (written int, err error)
	Close() error
}

// EventLog reads persisted events back, oldest first.
type EventLog interface {
	ListEvents(ctx context.Context, since int64, limit int) ([]model.Event, error)
}

// WriterConfig controls batching.
type WriterConfig struct {
	// BatchSize is the number of events to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time an event waits in the queue.
	FlushInterval time.Duration

	// QueueCapacity is the initial queue capacity.
	QueueCapacity int
}

// DefaultWriterConfig returns the daemon defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     500,
		FlushInterval: time.Second,
		QueueCapacity: 1024,
	}
}

// WriterStats counts what the writer has done.
type WriterStats struct {
	Written    int64
	Duplicates int64
	Errors     int64
	Flushes    int64
	Queue      QueueStats
}

// Writer receives committed events from the exchange and writes them to a
// Sink in batches. Failed batches are retried on the next flush.
type Writer struct {
	cfg    WriterConfig
	sink   Sink
	logger *slog.Logger

	queue *Queue[model.Event]

	// Events taken from the queue but not yet accepted by the sink.
	pending []model.Event

	flushMu sync.Mutex
	statsMu sync.Mutex
	stats   WriterStats

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWriter creates a writer for sink.
func NewWriter(cfg WriterConfig, sink Sink, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	return &Writer{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
		queue:  NewQueue[model.Event](cfg.QueueCapacity),
	}
}

// Publish queues ev for writing. It never blocks.
func (w *Writer) Publish(ev model.Event) {
	if !w.queue.Push(ev) {
		w.logger.Warn("journal closed, dropping event", "seq", ev.Seq, "type", ev.Type)
	}
}

// Start begins the flush loop.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.loop()

	w.logger.Info("journal writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the queue, writes whatever is left and closes the sink.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping journal writer")

	w.queue.Close()
	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("journal writer stop timed out")
	}

	for w.flush(ctx) {
	}

	if left := len(w.pending) + w.queue.Len(); left > 0 {
		w.logger.Error("journal writer stopped with unwritten events", "count", left)
	} else {
		w.logger.Info("journal writer stopped")
	}
	return w.sink.Close()
}

// Stats returns a snapshot of the counters.
func (w *Writer) Stats() WriterStats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()

	s := w.stats
	s.Queue = w.queue.Stats()
	return s
}

func (w *Writer) loop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			for w.flush(w.ctx) {
			}
		case <-w.queue.Ready():
			for w.queue.Len() >= w.cfg.BatchSize && w.flush(w.ctx) {
			}
		}
	}
}

// flush writes one batch. It reports whether a full batch was written, in
// which case the caller may flush again.
func (w *Writer) flush(ctx context.Context) bool {
	w.flushMu.Lock()
	defer w.flushMu.Unlock()

	if room := w.cfg.BatchSize - len(w.pending); room > 0 {
		w.pending = append(w.pending, w.queue.Drain(room)...)
	}
	if len(w.pending) == 0 {
		return false
	}

	start := time.Now()
	written, err := w.sink.Write(ctx, w.pending)
	if err != nil {
		w.logger.Error("journal batch write failed", "error", err, "count", len(w.pending))
		w.statsMu.Lock()
		w.stats.Errors++
		w.statsMu.Unlock()
		return false
	}

	n := len(w.pending)
	w.statsMu.Lock()
	w.stats.Written += int64(written)
	w.stats.Duplicates += int64(n - written)
	w.stats.Flushes++
	w.statsMu.Unlock()

	w.logger.Debug("journal batch written",
		"count", n,
		"duplicates", n-written,
		"first_seq", w.pending[0].Seq,
		"duration", time.Since(start),
	)
	w.pending = w.pending[:0]
	return n == w.cfg.BatchSize
}
