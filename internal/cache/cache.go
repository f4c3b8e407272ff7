// Package cache stores compiled bundles keyed by source content, so
// unchanged scripts skip recompilation.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a content-addressed bundle cache backed by sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed initializes) the cache database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", path, err)
	}
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bundles (
			hash       TEXT PRIMARY KEY,
			bundle_id  TEXT NOT NULL,
			data       BLOB NOT NULL,
			created_at INTEGER NOT NULL
		)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Key hashes source text into the cache key.
func Key(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached bundle bytes for a source hash, or ok=false.
func (s *Store) Get(hash string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM bundles WHERE hash = ?`, hash).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get: %w", err)
	}
	return data, true, nil
}

// Put stores bundle bytes under a source hash, replacing any previous
// entry.
func (s *Store) Put(hash, bundleID string, data []byte) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO bundles (hash, bundle_id, data, created_at) VALUES (?, ?, ?, ?)`,
		hash, bundleID, data, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("cache: put: %w", err)
	}
	return nil
}

// Prune removes entries older than maxAge and returns how many went.
func (s *Store) Prune(maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := s.db.Exec(`DELETE FROM bundles WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cache: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
