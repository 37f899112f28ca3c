// Package store provides storage backends for the Hourglass turn table.
//
// It implements the narrow read/write contract the scheduler holds with the
// relational store: a bounded batch read of open turns plus guarded,
// single-row, column-specific updates. Postgres and SQLite backends are
// provided, along with an in-memory store for tests.
package store

import "strings"

// Opts holds configuration options for store backends.
type Opts struct {
	// DSN is the database connection string (Postgres URL or SQLite file path).
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets a SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite". Postgres DSNs are
// URL-style (postgres://...) or keyword-style (host=... dbname=...); anything
// else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}
