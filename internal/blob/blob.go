// Package blob provides a local key-value blob store with synchronous
// get/set semantics, backed by SQLite.
package blob

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// ErrLocked indicates another groundchat process holds the data directory.
var ErrLocked = errors.New("data directory is locked by another instance")

// Store is a SQLite-backed key-value blob store.
//
// Store is safe for concurrent use; SQLite serializes writers and the
// database handle pools connections.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// Open opens (creating if needed) the blob store under dir and takes an
// advisory lock on the directory so a second instance fails fast.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "groundchat.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring data directory lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "chat.db"))
	if err != nil {
		unlock(lock)
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// modernc.org/sqlite is single-writer; cap the pool to avoid
	// SQLITE_BUSY under concurrent mutations.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		unlock(lock)
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, lock: lock}, nil
}

func unlock(l *flock.Flock) {
	_ = l.Unlock()
}

// Get returns the value stored under key. The second return value is false
// when the key is absent.
func (s *Store) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading key %q: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any existing value.
func (s *Store) Set(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("writing key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("deleting key %q: %w", key, err)
	}
	return nil
}

// Close releases the database handle and the directory lock.
func (s *Store) Close() error {
	dbErr := s.db.Close()
	if err := s.lock.Unlock(); err != nil && dbErr == nil {
		dbErr = fmt.Errorf("releasing lock: %w", err)
	}
	return dbErr
}
