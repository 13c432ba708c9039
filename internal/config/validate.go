package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if len(c.Server.Keys) == 0 && !c.Server.InsecureCallerHeader {
		return errors.New("server.keys is required unless server.insecure_caller_header is set")
	}
	for id, path := range c.Server.Keys {
		if id == "" || path == "" {
			return fmt.Errorf("server.keys: empty identity or key path (%q: %q)", id, path)
		}
	}
	if c.Server.MaxClockSkew < 0 {
		return errors.New("server.max_clock_skew must be >= 0")
	}

	if c.Marketplace.Identity == "" {
		return errors.New("marketplace.identity is required")
	}
	if _, ok := c.Server.Keys[c.Marketplace.Identity]; ok {
		return fmt.Errorf("server.keys: %q is the marketplace identity and cannot sign requests", c.Marketplace.Identity)
	}

	seen := make(map[string]bool, len(c.Collections))
	for _, name := range c.Collections {
		if name == "" {
			return errors.New("collections: empty collection name")
		}
		if seen[name] {
			return fmt.Errorf("collections: duplicate collection %q", name)
		}
		seen[name] = true
	}

	if c.Ledger.Decimals < 0 || c.Ledger.Decimals > 18 {
		return fmt.Errorf("ledger.decimals must be between 0 and 18, got %d", c.Ledger.Decimals)
	}

	switch c.Journal.Driver {
	case JournalPostgres:
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	case JournalBadger:
		if c.Journal.BadgerPath == "" {
			return errors.New("journal.badger_path is required for the badger driver")
		}
	case JournalNone:
	default:
		return fmt.Errorf("journal.driver must be one of postgres, badger, none; got %q", c.Journal.Driver)
	}
	if c.Journal.BatchSize < 1 {
		return errors.New("journal.batch_size must be >= 1")
	}

	if c.Feed.SendBuffer < 1 {
		return errors.New("feed.send_buffer must be >= 1")
	}
	if !strings.HasPrefix(c.Feed.Path, "/") {
		return fmt.Errorf("feed.path must start with /, got %q", c.Feed.Path)
	}

	if c.Audit.Concurrency < 1 {
		return errors.New("audit.concurrency must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// SlogLevel parses Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
