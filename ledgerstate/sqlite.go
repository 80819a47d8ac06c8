package ledgerstate

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/ledgertools/beanport/dedup"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	fingerprint TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL DEFAULT '',
	first_seen  TIMESTAMP NOT NULL,
	last_seen   TIMESTAMP NOT NULL,
	count       INTEGER NOT NULL DEFAULT 1
);
`

// SQLiteStore is a fingerprint store backed by a SQLite database file.
// Contains hits the database directly; drivers that want a stable read-only
// view across a whole run should take a Snapshot before processing.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Contains reports whether the fingerprint is stored. Query errors read as
// absent; Record will surface the underlying problem.
func (s *SQLiteStore) Contains(fingerprint string) bool {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM fingerprints WHERE fingerprint = ?`, fingerprint).Scan(&one)
	return err == nil
}

// Record upserts a fingerprint observation.
func (s *SQLiteStore) Record(fingerprint, sourceID string, timestamp time.Time) error {
	if fingerprint == "" {
		return fmt.Errorf("fingerprint cannot be empty")
	}
	_, err := s.db.Exec(`
		INSERT INTO fingerprints (fingerprint, source_id, first_seen, last_seen, count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(fingerprint) DO UPDATE SET last_seen = excluded.last_seen, count = count + 1`,
		fingerprint, sourceID, timestamp, timestamp)
	if err != nil {
		return fmt.Errorf("failed to record fingerprint: %w", err)
	}
	return nil
}

// Snapshot loads every stored fingerprint into an in-memory set.
func (s *SQLiteStore) Snapshot() (dedup.MapSet, error) {
	rows, err := s.db.Query(`SELECT fingerprint FROM fingerprints`)
	if err != nil {
		return nil, fmt.Errorf("failed to query fingerprints: %w", err)
	}
	defer rows.Close()

	set := make(dedup.MapSet)
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("failed to scan fingerprint: %w", err)
		}
		set.Add(fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate fingerprints: %w", err)
	}
	return set, nil
}

// Count returns the number of stored fingerprints.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM fingerprints`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fingerprints: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
