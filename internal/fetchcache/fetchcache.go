// Copyright (c) 2026, the seedbridge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package fetchcache is a small SQLite-backed response cache keyed by request
// URL. Tracker metadata is expensive to re-fetch under its rate limit, so
// repeated runs over the same album list reuse cached bodies until they age
// out.
package fetchcache

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS responses (
	key        TEXT PRIMARY KEY,
	body       BLOB NOT NULL,
	fetched_at INTEGER NOT NULL
);
`

// Store is a TTL blob cache. Safe for concurrent use; SQLite serializes
// writers internally.
type Store struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// Open creates or opens the cache database at path. A non-positive ttl
// disables expiry.
func Open(path string, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrap(err, "open cache database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "initialize cache schema")
	}

	return &Store{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// GetOrFetch returns the cached body for key if it is still fresh, otherwise
// invokes fetch and stores the result. Fetch errors are returned as-is and
// nothing is cached for them.
func (s *Store) GetOrFetch(ctx context.Context, key string, fetch func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if body, ok, err := s.get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		log.Trace().Str("key", key).Msg("cache hit")
		return body, nil
	}

	body, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.put(ctx, key, body); err != nil {
		// The fetched body is still good; a cache write failure is not worth
		// failing the caller over.
		log.Warn().Err(err).Str("key", key).Msg("failed to store cache entry")
	}

	return body, nil
}

// Invalidate drops the entry for key, if any.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE key = ?`, key)
	return errors.Wrap(err, "invalidate cache entry")
}

func (s *Store) get(ctx context.Context, key string) ([]byte, bool, error) {
	var body []byte
	var fetchedAt int64

	err := s.db.QueryRowContext(ctx, `SELECT body, fetched_at FROM responses WHERE key = ?`, key).Scan(&body, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "read cache entry")
	}

	if s.ttl > 0 && s.now().Sub(time.Unix(fetchedAt, 0)) > s.ttl {
		return nil, false, nil
	}

	return body, true, nil
}

func (s *Store) put(ctx context.Context, key string, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (key, body, fetched_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET body = excluded.body, fetched_at = excluded.fetched_at`,
		key, body, s.now().Unix())
	return err
}
