// Package store provides the SQLite-backed local document store. Each
// profile owns a set of JSON collections ("budgets", "transactions") read
// and written as whole documents, mirroring the key-value contract the
// budget engine expects from local storage.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// ErrNotFound indicates the collection has never been written for this profile.
var ErrNotFound = errors.New("store: collection not found")

// Store is a SQLite-backed local document store scoped to one profile.
type Store struct {
	db      *sql.DB
	profile string
}

// Open opens or creates the store database at the given path, scoped to the
// given profile.
func Open(dbPath, profile string) (*Store, error) {
	if profile == "" {
		profile = "default"
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("opening store db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, profile: profile}, nil
}

// Close closes the store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Profile returns the profile this store is scoped to.
func (s *Store) Profile() string { return s.profile }

// Get returns the raw JSON document for a collection, or ErrNotFound.
func (s *Store) Get(collection string) ([]byte, error) {
	var body string
	err := s.db.QueryRow(
		"SELECT body FROM records WHERE profile = ? AND collection = ?",
		s.profile, collection,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", collection, err)
	}
	return []byte(body), nil
}

// Set replaces the JSON document for a collection.
func (s *Store) Set(collection string, body []byte) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO records (profile, collection, body, updated_at)
		 VALUES (?, ?, ?, ?)`,
		s.profile, collection, string(body), now,
	)
	if err != nil {
		return fmt.Errorf("writing %s: %w", collection, err)
	}
	return nil
}

// UpdatedAt returns the last write time of a collection, or false if it has
// never been written.
func (s *Store) UpdatedAt(collection string) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRow(
		"SELECT updated_at FROM records WHERE profile = ? AND collection = ?",
		s.profile, collection,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}
