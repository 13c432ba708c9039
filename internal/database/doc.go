// Package database provides the PostgreSQL connection pool used by the
// journal's Postgres sink, and creates the market_events table on startup.
package database
