// Package storage implements the corpus store (C1): durable storage of
// thinkers, principles, decisions, outcomes and posteriors, plus the
// lexical (FTS5) index over principle text.
package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Store is the embedded single-node corpus store. All writes are serialised
// through writeMu. The handle holds a single connection (see Open), so reads
// inside the process also wait while a write transaction holds it; WAL mode
// lets other connections read the last committed snapshot during a write.
type Store struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open connects to (and if necessary creates) the SQLite database file at
// path, applies pragmas, and ensures the schema exists.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: empty db path")
	}

	dsn := path + "?_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}

	// A single physical connection avoids SQLITE_BUSY from concurrent
	// writers inside the process; it also means reads wait for that
	// connection while a write transaction holds it.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping %s: %v", ErrUnavailable, path, err)
	}

	if err := configureSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := initializeSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for callers (migrations tooling, diagnostics)
// that need it; production code should prefer the typed methods below.
func (s *Store) DB() *sql.DB {
	return s.db
}
