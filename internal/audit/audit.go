package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/asset-market/internal/model"
)

// IndexChecker is a registry whose owner index can be verified.
type IndexChecker interface {
	Name() string
	CheckIndex() []string
}

// ListingSource reports active and stale listings.
type ListingSource interface {
	ActiveListings() []model.Listing
	StaleListings() []model.ListingID
}

// FundsChecker is a ledger whose money supply can be verified.
type FundsChecker interface {
	CheckSupply() []string
}

// Reporter receives audit results, typically metrics.
type Reporter interface {
	SetListings(active, stale int)
	SetIndexProblems(collection string, n int)
	SetSupplyProblems(n int)
	AuditCompleted()
}

// Config holds auditor configuration.
type Config struct {
	Interval    time.Duration // time between passes
	Concurrency int           // registries checked at once
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		Concurrency: 4,
	}
}

// Report is the result of one pass.
type Report struct {
	IndexProblems  map[string][]string // collection -> problems; empty collections omitted
	SupplyProblems []string
	Active         int
	Stale          []model.ListingID
}

// Healthy reports whether the owner indexes and the ledger are consistent.
// Stale listings are expected and do not count.
func (r Report) Healthy() bool {
	return len(r.IndexProblems) == 0 && len(r.SupplyProblems) == 0
}

// Auditor runs Check on an interval.
type Auditor struct {
	cfg        Config
	registries []IndexChecker
	listings   ListingSource
	funds      FundsChecker
	reporter   Reporter
	logger     *slog.Logger

	mu   sync.Mutex
	last Report

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an auditor. listings, funds and reporter may be nil.
func New(cfg Config, registries []IndexChecker, listings ListingSource, funds FundsChecker, reporter Reporter, logger *slog.Logger) *Auditor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return &Auditor{
		cfg:        cfg,
		registries: registries,
		listings:   listings,
		funds:      funds,
		reporter:   reporter,
		logger:     logger,
	}
}

// Start begins the audit loop.
func (a *Auditor) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go a.run()

	a.logger.Info("auditor started",
		"interval", a.cfg.Interval,
		"registries", len(a.registries),
	)
	return nil
}

// Stop waits for the loop to exit.
func (a *Auditor) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("auditor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Last returns the most recent report.
func (a *Auditor) Last() Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.last
}

func (a *Auditor) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.Check(a.ctx)

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.Check(a.ctx)
		}
	}
}

// Check runs one pass and records the report.
func (a *Auditor) Check(ctx context.Context) Report {
	start := time.Now()

	report := Report{IndexProblems: make(map[string][]string)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Concurrency)

	for _, reg := range a.registries {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			problems := reg.CheckIndex()

			if a.reporter != nil {
				a.reporter.SetIndexProblems(reg.Name(), len(problems))
			}
			if len(problems) == 0 {
				return nil
			}

			a.logger.Error("owner index inconsistent",
				"collection", reg.Name(),
				"problems", len(problems),
				"first", problems[0],
			)
			mu.Lock()
			report.IndexProblems[reg.Name()] = problems
			mu.Unlock()
			return nil
		})
	}

	if a.listings != nil {
		g.Go(func() error {
			active := len(a.listings.ActiveListings())
			stale := a.listings.StaleListings()

			mu.Lock()
			report.Active = active
			report.Stale = stale
			mu.Unlock()
			return nil
		})
	}

	if a.funds != nil {
		g.Go(func() error {
			problems := a.funds.CheckSupply()
			if a.reporter != nil {
				a.reporter.SetSupplyProblems(len(problems))
			}
			if len(problems) == 0 {
				return nil
			}

			a.logger.Error("ledger supply inconsistent", "problems", len(problems), "first", problems[0])
			mu.Lock()
			report.SupplyProblems = problems
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		a.logger.Warn("audit pass interrupted", "error", err)
		return report
	}

	if a.reporter != nil {
		a.reporter.SetListings(report.Active, len(report.Stale))
		a.reporter.AuditCompleted()
	}

	a.mu.Lock()
	a.last = report
	a.mu.Unlock()

	a.logger.Info("audit pass complete",
		"registries", len(a.registries),
		"healthy", report.Healthy(),
		"active_listings", report.Active,
		"stale_listings", len(report.Stale),
		"duration", time.Since(start),
	)
	return report
}
