// Package storage provides read-only access to the IRRd status database.
//
// The metrics service never writes: it reads the object statistics and
// per-source status that the IRRd daemon maintains, through short-lived
// sessions checked out from a shared connection pool.
package storage

import (
	"context"
	"time"
)

// ObjectCount is one row of the object statistics query: the number of
// stored objects for one (source, object class) pair. Pairs with zero
// objects never appear.
type ObjectCount struct {
	Source      string
	ObjectClass string
	Count       int64
}

// SourceStatus is one row of the database status query. All fields other
// than Source are optional; presence depends on whether that source
// mirrors, exports, keeps a journal, or has ever errored.
type SourceStatus struct {
	Source              string
	Updated             *time.Time
	LastError           *time.Time
	SerialNewestMirror  *int64
	SerialLastExport    *int64
	SerialOldestJournal *int64
	SerialNewestJournal *int64
}

// Session is a scoped connection to the status database. It must be
// released with Close once the caller is done, on all paths.
type Session interface {
	// ObjectStatistics returns the per-source, per-class object counts.
	ObjectStatistics(ctx context.Context) ([]ObjectCount, error)

	// SourceStatus returns one status row per configured source.
	SourceStatus(ctx context.Context) ([]SourceStatus, error)

	// Close releases the underlying connection.
	Close() error
}

// Store hands out scoped sessions to the status database.
type Store interface {
	// Conn checks out a session. The session is exclusively owned by the
	// caller until Close returns it.
	Conn(ctx context.Context) (Session, error)

	// Close shuts down the store and its connection pool.
	Close() error
}

// Config holds the connection settings for the status database.
type Config struct {
	// Type selects the database driver: "postgres" or "sqlite".
	Type string

	// Host, Port, Database, Username, Password and SSLMode configure the
	// PostgreSQL connection.
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// Path is the file path for SQLite. Use ":memory:" for an in-memory
	// database.
	Path string
}
