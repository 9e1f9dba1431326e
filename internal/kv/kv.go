// Package kv is the device-local key-value store. It backs the small set of
// facts that must survive restarts without a network round trip: the device
// id, cached profile hints, and one-shot flags like the rating prompt.
package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "modernc.org/sqlite"
)

// Well-known keys.
const (
	KeyDeviceID       = "device_id"
	KeyPunctuality    = "punctuality"
	KeyOnboardingSeen = "onboarding_seen"
	KeyUnlockCount    = "unlock_count"
	KeyRatingAsked    = "rating_asked"
)

// ErrNotFound indicates the key has never been set.
var ErrNotFound = errors.New("kv: key not found")

// Store is a sqlite-backed string map. Safe for concurrent use; database/sql
// serializes access and every operation is a single statement.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("kv open: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("kv init: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the value for key, or ErrNotFound.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("kv get %q: %w", key, err)
	}
	return value, nil
}

// Set writes key to value, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("kv set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("kv delete %q: %w", key, err)
	}
	return nil
}

// GetBool reads key as a boolean; a missing key reads false.
func (s *Store) GetBool(key string) (bool, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return v == "true" || v == "1", nil
}

// SetBool writes key as "true" or "false".
func (s *Store) SetBool(key string, value bool) error {
	return s.Set(key, strconv.FormatBool(value))
}

// GetInt reads key as an integer; a missing key reads 0.
func (s *Store) GetInt(key string) (int, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("kv get %q: %w", key, err)
	}
	return n, nil
}

// SetInt writes key as a decimal integer.
func (s *Store) SetInt(key string, value int) error {
	return s.Set(key, strconv.Itoa(value))
}

// Increment adds one to the integer stored at key and returns the new value.
func (s *Store) Increment(key string) (int, error) {
	n, err := s.GetInt(key)
	if err != nil {
		return 0, err
	}
	n++
	if err := s.SetInt(key, n); err != nil {
		return 0, err
	}
	return n, nil
}
