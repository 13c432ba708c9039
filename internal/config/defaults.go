package config

import "time"

// Journal drivers.
const (
	JournalPostgres = "postgres"
	JournalBadger   = "badger"
	JournalNone     = "none"
)

// Default values for optional configuration fields.
const (
	DefaultServerAddr          = ":8080"
	DefaultReadTimeout         = 10 * time.Second
	DefaultWriteTimeout        = 10 * time.Second
	DefaultShutdownTimeout     = 15 * time.Second
	DefaultMaxClockSkew        = 30 * time.Second
	DefaultMarketplaceIdentity = "marketplace"
	DefaultCollection          = "nft"
	DefaultCurrency            = "ETH"
	DefaultDecimals            = 18
	DefaultJournalDriver       = JournalNone
	DefaultBadgerPath          = "data/journal"
	DefaultBatchSize           = 500
	DefaultFlushInterval       = 1 * time.Second
	DefaultQueueCapacity       = 1024
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultFeedPath            = "/ws/events"
	DefaultFeedSendBuffer      = 256
	DefaultFeedPingInterval    = 30 * time.Second
	DefaultFeedWriteTimeout    = 10 * time.Second
	DefaultAuditInterval       = 1 * time.Minute
	DefaultAuditConcurrency    = 4
	DefaultMetricsPort         = 9090
	DefaultMetricsPath         = "/metrics"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
)

func (c *Config) applyDefaults() {
	// Server defaults
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = DefaultReadTimeout
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = DefaultWriteTimeout
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Server.MaxClockSkew == 0 {
		c.Server.MaxClockSkew = DefaultMaxClockSkew
	}

	// Exchange defaults
	if c.Marketplace.Identity == "" {
		c.Marketplace.Identity = DefaultMarketplaceIdentity
	}
	if len(c.Collections) == 0 {
		c.Collections = []string{DefaultCollection}
	}
	if c.Ledger.Currency == "" {
		c.Ledger.Currency = DefaultCurrency
	}
	if c.Ledger.Decimals == 0 {
		c.Ledger.Decimals = DefaultDecimals
	}

	// Journal defaults
	if c.Journal.Driver == "" {
		c.Journal.Driver = DefaultJournalDriver
	}
	if c.Journal.BadgerPath == "" {
		c.Journal.BadgerPath = DefaultBadgerPath
	}
	if c.Journal.BatchSize == 0 {
		c.Journal.BatchSize = DefaultBatchSize
	}
	if c.Journal.FlushInterval == 0 {
		c.Journal.FlushInterval = DefaultFlushInterval
	}
	if c.Journal.QueueCapacity == 0 {
		c.Journal.QueueCapacity = DefaultQueueCapacity
	}

	applyDBDefaults(&c.Database)

	// Feed defaults
	if c.Feed.Path == "" {
		c.Feed.Path = DefaultFeedPath
	}
	if c.Feed.SendBuffer == 0 {
		c.Feed.SendBuffer = DefaultFeedSendBuffer
	}
	if c.Feed.PingInterval == 0 {
		c.Feed.PingInterval = DefaultFeedPingInterval
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultFeedWriteTimeout
	}

	// Audit defaults
	if c.Audit.Interval == 0 {
		c.Audit.Interval = DefaultAuditInterval
	}
	if c.Audit.Concurrency == 0 {
		c.Audit.Concurrency = DefaultAuditConcurrency
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
