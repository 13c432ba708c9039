package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/asset-market/internal/audit"
	"github.com/rickgao/asset-market/internal/auth"
	"github.com/rickgao/asset-market/internal/config"
	"github.com/rickgao/asset-market/internal/database"
	"github.com/rickgao/asset-market/internal/exchange"
	"github.com/rickgao/asset-market/internal/feed"
	"github.com/rickgao/asset-market/internal/httpapi"
	"github.com/rickgao/asset-market/internal/journal"
	"github.com/rickgao/asset-market/internal/metrics"
	"github.com/rickgao/asset-market/internal/model"
	"github.com/rickgao/asset-market/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/marketd.local.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "config", *configPath)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to set up logging", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting marketd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("marketd failed", "error", err)
		os.Exit(1)
	}
	logger.Info("marketd stopped")
}

func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	hub := feed.NewHub(feed.Config{
		SendBuffer:   cfg.Feed.SendBuffer,
		PingInterval: cfg.Feed.PingInterval,
		WriteTimeout: cfg.Feed.WriteTimeout,
	}, logger.With("component", "feed"))
	m.RegisterGaugeFunc("feed_subscribers", "Connected event feed subscribers.", func() float64 {
		return float64(hub.Subscribers())
	})

	opts := []exchange.Option{
		exchange.WithRecorder(m),
		exchange.WithPublisher(m),
		exchange.WithPublisher(hub),
	}
	serverOpts := []httpapi.Option{
		httpapi.WithInstance(cfg.Instance.ID),
		httpapi.WithCurrency(cfg.Ledger.Currency, cfg.Ledger.Decimals),
		httpapi.WithFeed(cfg.Feed.Path, hub),
	}

	// Journal
	var writer *journal.Writer
	writerStarted := false
	if cfg.Journal.Driver != config.JournalNone {
		sink, log, pool, err := openSink(ctx, cfg, logger)
		if err != nil {
			return err
		}
		// Once started, the writer closes the sink on Stop.
		defer func() {
			if !writerStarted {
				sink.Close()
			}
		}()
		if pool != nil {
			defer pool.Close()
			serverOpts = append(serverOpts, httpapi.WithCheck("database", func(ctx context.Context) error {
				return pool.Ping(ctx)
			}))
		}

		writer = journal.NewWriter(journal.WriterConfig{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
			QueueCapacity: cfg.Journal.QueueCapacity,
		}, sink, logger.With("component", "journal"))
		opts = append(opts, exchange.WithPublisher(writer))
		serverOpts = append(serverOpts, httpapi.WithEventLog(log))

		m.RegisterGaugeFunc("journal_queue_length", "Events waiting to be journaled.", func() float64 {
			return float64(writer.Stats().Queue.Len)
		})
		m.RegisterGaugeFunc("journal_write_errors", "Failed journal batch writes since start.", func() float64 {
			return float64(writer.Stats().Errors)
		})
	}

	ex, err := exchange.New(exchange.Config{
		MarketplaceIdentity: model.Identity(cfg.Marketplace.Identity),
		Collections:         cfg.Collections,
	}, logger.With("component", "exchange"), opts...)
	if err != nil {
		return fmt.Errorf("create exchange: %w", err)
	}

	authn, err := newAuthenticator(cfg.Server, logger)
	if err != nil {
		return err
	}

	checkers := make([]audit.IndexChecker, 0, len(cfg.Collections))
	for _, name := range ex.Collections() {
		reg, err := ex.Collection(name)
		if err != nil {
			return err
		}
		checkers = append(checkers, reg)
	}
	auditor := audit.New(audit.Config{
		Interval:    cfg.Audit.Interval,
		Concurrency: cfg.Audit.Concurrency,
	}, checkers, ex.Marketplace(), ex.Ledger(), m, logger.With("component", "audit"))

	apiServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpapi.New(ex, authn, logger.With("component", "http"), serverOpts...).Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, m.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: metricsMux,
	}

	if writer != nil {
		if err := writer.Start(ctx); err != nil {
			return fmt.Errorf("start journal: %w", err)
		}
		writerStarted = true
	}
	if err := auditor.Start(ctx); err != nil {
		return fmt.Errorf("start auditor: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting api server", "addr", cfg.Server.Addr, "collections", ex.Collections())
		return serve(apiServer)
	})
	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		return serve(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		return shutdown(cfg, logger, hub, auditor, writer, apiServer, metricsServer)
	})

	return g.Wait()
}

func serve(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	return nil
}

// shutdown stops intake first so the journal sees every committed event.
func shutdown(cfg *config.Config, logger *slog.Logger, hub *feed.Hub, auditor *audit.Auditor, writer *journal.Writer, servers ...*http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}
	hub.Close()

	if err := auditor.Stop(ctx); err != nil {
		logger.Warn("auditor stop timed out", "error", err)
	}
	if writer != nil {
		if err := writer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop journal: %w", err))
		}
		stats := writer.Stats()
		logger.Info("journal totals",
			"written", stats.Written,
			"duplicates", stats.Duplicates,
			"errors", stats.Errors,
		)
	}
	return errors.Join(errs...)
}

// openSink returns the configured journal sink, the same sink as an event
// log, and the database pool when one was opened.
func openSink(ctx context.Context, cfg *config.Config, logger *slog.Logger) (journal.Sink, journal.EventLog, *pgxpool.Pool, error) {
	switch cfg.Journal.Driver {
	case config.JournalPostgres:
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		logger.Info("database connected")
		sink := journal.NewPostgresSink(pool, cfg.Instance.ID)
		return sink, sink, pool, nil

	case config.JournalBadger:
		sink, err := journal.OpenBadgerSink(cfg.Journal.BadgerPath, logger.With("component", "badger"))
		if err != nil {
			return nil, nil, nil, err
		}
		logger.Info("badger journal opened", "path", cfg.Journal.BadgerPath)
		return sink, sink, nil, nil
	}
	return nil, nil, nil, fmt.Errorf("unknown journal driver %q", cfg.Journal.Driver)
}

func newAuthenticator(cfg config.ServerConfig, logger *slog.Logger) (auth.Authenticator, error) {
	if cfg.InsecureCallerHeader {
		logger.Warn("trusting X-Caller header; do not expose this instance")
		return auth.HeaderAuthenticator{}, nil
	}
	v, err := auth.LoadVerifier(cfg.Keys, cfg.MaxClockSkew)
	if err != nil {
		return nil, fmt.Errorf("load caller keys: %w", err)
	}
	logger.Info("caller keys loaded", "count", len(cfg.Keys))
	return v, nil
}
