// Package cache keeps node responses that rarely change, such as node info,
// in a small sqlite table so a restart does not have to ask again.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

const lockTimeout = 5 * time.Second

type Store struct {
	db   *sql.DB
	lock *flock.Flock
	now  func() time.Time
}

// Entry is a stored response. Expired entries may still be served while the
// node is unreachable, until they are past the caller's grace window.
type Entry struct {
	Body      []byte
	Age       time.Duration
	Expired   bool
	PastGrace bool
}

func Open(path, lockPath string) (*Store, error) {
	for _, dir := range []string{filepath.Dir(path), filepath.Dir(lockPath)} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open node cache: %w", err)
	}
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS node_responses (
			key TEXT PRIMARY KEY,
			body BLOB NOT NULL,
			fetched_at INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL
		);`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init node cache: %w", err)
		}
	}
	s := &Store{db: db, lock: flock.New(lockPath), now: time.Now}
	_ = s.Prune()
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Prune drops entries whose ttl has run out.
func (s *Store) Prune() error {
	if s == nil || s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("DELETE FROM node_responses WHERE fetched_at + ttl_seconds < ?", s.now().Unix()); err != nil {
		return fmt.Errorf("prune node cache: %w", err)
	}
	return nil
}

// Lookup returns the entry for key. grace is how long past its ttl an entry
// stays usable; a negative grace never expires it for fallback purposes.
func (s *Store) Lookup(key string, grace time.Duration) (Entry, bool, error) {
	var (
		body       []byte
		fetchedAt  int64
		ttlSeconds int64
	)
	err := s.db.QueryRow("SELECT body, fetched_at, ttl_seconds FROM node_responses WHERE key = ?", key).
		Scan(&body, &fetchedAt, &ttlSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("read node cache: %w", err)
	}

	age := max(s.now().Sub(time.Unix(fetchedAt, 0)), 0)
	ttl := time.Duration(ttlSeconds) * time.Second
	expired := age > ttl
	return Entry{
		Body:      body,
		Age:       age,
		Expired:   expired,
		PastGrace: expired && grace >= 0 && age > ttl+grace,
	}, true, nil
}

// Put stores body under key. Writers from several processes are serialized by
// the lock file.
func (s *Store) Put(key string, body []byte, ttl time.Duration) error {
	locked, err := s.lock.TryLockContext(context.Background(), lockTimeout)
	if err != nil {
		return fmt.Errorf("lock node cache: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock node cache: timed out after %s", lockTimeout)
	}
	defer func() { _ = s.lock.Unlock() }()

	ttlSeconds := max(int64(ttl.Seconds()), 1)
	_, err = s.db.Exec(`
		INSERT INTO node_responses (key, body, fetched_at, ttl_seconds)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			body=excluded.body,
			fetched_at=excluded.fetched_at,
			ttl_seconds=excluded.ttl_seconds
	`, key, body, s.now().Unix(), ttlSeconds)
	if err != nil {
		return fmt.Errorf("write node cache: %w", err)
	}
	return nil
}

// FetchJSON serves key from the cache while it is fresh, otherwise calls fetch
// and stores the result. When fetch fails, an expired entry still inside grace
// is returned instead. A nil store always fetches.
func FetchJSON[T any](ctx context.Context, s *Store, key string, ttl, grace time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	if s == nil {
		return fetch(ctx)
	}

	var fallback *T
	if entry, ok, err := s.Lookup(key, grace); err == nil && ok {
		var v T
		if json.Unmarshal(entry.Body, &v) == nil {
			if !entry.Expired {
				return v, nil
			}
			if !entry.PastGrace {
				fallback = &v
			}
		}
	}

	v, err := fetch(ctx)
	if err != nil {
		if fallback != nil {
			return *fallback, nil
		}
		var zero T
		return zero, err
	}
	if body, err := json.Marshal(v); err == nil {
		_ = s.Put(key, body, ttl)
	}
	return v, nil
}
