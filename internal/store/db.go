// Package store is the daemon's local sqlite cache of conversations,
// messages, the durable outbox and sync checkpoints. The remote backend
// stays authoritative; everything here can be rebuilt from it.
package store

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps a SQLite database connection for the local collatz.db cache.
type DB struct {
	*sql.DB
}

// Open creates a new SQLite connection with WAL mode, a busy timeout and
// foreign keys enabled.
func Open(path string) (*DB, error) {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")

	db, err := sql.Open("sqlite3", "file:"+path+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db %s: %w", path, err)
	}
	return &DB{db}, nil
}

// Counts summarizes the cache for status reporting.
type Counts struct {
	Conversations int64
	Messages      int64
	PendingSends  int64
}

// Counts returns row counts of the visible conversations, cached messages
// and outbox rows that have not been delivered yet.
func (db *DB) Counts() (Counts, error) {
	var c Counts
	err := db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM conversations WHERE deleted = 0),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM outbox WHERE status IN ('queued', 'sending'))`).
		Scan(&c.Conversations, &c.Messages, &c.PendingSends)
	return c, err
}
