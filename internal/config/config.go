package config

import "time"

// Config is the root configuration for a marketd instance.
type Config struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Server      ServerConfig      `yaml:"server"`
	Marketplace MarketplaceConfig `yaml:"marketplace"`
	Collections []string          `yaml:"collections"`
	Ledger      LedgerConfig      `yaml:"ledger"`
	Journal     JournalConfig     `yaml:"journal"`
	Database    DBConfig          `yaml:"database"`
	Feed        FeedConfig        `yaml:"feed"`
	Audit       AuditConfig       `yaml:"audit"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// InstanceConfig identifies this daemon. The id tags journal rows.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the HTTP API listener and caller authentication.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Keys maps caller identity to the path of its RSA public key PEM.
	Keys         map[string]string `yaml:"keys"`
	MaxClockSkew time.Duration     `yaml:"max_clock_skew"`

	// InsecureCallerHeader trusts X-Caller instead of signatures. Development only.
	InsecureCallerHeader bool `yaml:"insecure_caller_header"`
}

// MarketplaceConfig holds marketplace settings.
type MarketplaceConfig struct {
	Identity string `yaml:"identity"` // identity owners approve before listing
}

// LedgerConfig holds settlement currency settings.
type LedgerConfig struct {
	Currency string `yaml:"currency"`
	Decimals int32  `yaml:"decimals"` // smallest-unit exponent for human amounts
}

// JournalConfig selects where committed events are persisted.
type JournalConfig struct {
	Driver        string        `yaml:"driver"` // postgres | badger | none
	BadgerPath    string        `yaml:"badger_path"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	QueueCapacity int           `yaml:"queue_capacity"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// FeedConfig holds websocket event feed settings.
type FeedConfig struct {
	Path         string        `yaml:"path"`
	SendBuffer   int           `yaml:"send_buffer"`
	PingInterval time.Duration `yaml:"ping_interval"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AuditConfig holds invariant auditor settings.
type AuditConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds log handler settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}
