// CLAUDE:SUMMARY SQLite-backed info cache keyed by (bfs_nr, category) with lazy read-time staleness.
// Package cache persists extracted authority-info records per municipality
// and data category.
//
// Staleness is evaluated lazily at read time: an entry older than its
// category's TTL is reported as a miss but kept in the table, so a later
// refresh supersedes it by upsert instead of deletion. Last write wins.
package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Category names a class of cached data with its own freshness window.
type Category string

const (
	// CategoryOperational covers hours and contact details, which
	// municipalities change at short notice.
	CategoryOperational Category = "operational"
	// CategoryProcess covers documents, fees, and procedure notes, which
	// change rarely.
	CategoryProcess Category = "process"
)

// Config tunes the cache.
type Config struct {
	// OperationalTTL for CategoryOperational entries. Default: 4h.
	OperationalTTL time.Duration
	// ProcessTTL for CategoryProcess entries. Default: 7 days.
	ProcessTTL time.Duration
}

func (c *Config) defaults() {
	if c.OperationalTTL <= 0 {
		c.OperationalTTL = 4 * time.Hour
	}
	if c.ProcessTTL <= 0 {
		c.ProcessTTL = 7 * 24 * time.Hour
	}
}

// Entry is one cached record with its write timestamp.
type Entry struct {
	BFSNr    int
	Category Category
	Payload  json.RawMessage
	CachedAt time.Time
}

// Store is the SQLite-backed cache. Safe for concurrent use.
type Store struct {
	db     *sql.DB
	config Config
	now    func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS authority_info_cache (
	bfs_nr    INTEGER NOT NULL,
	category  TEXT    NOT NULL,
	payload   TEXT    NOT NULL,
	cached_at INTEGER NOT NULL,
	PRIMARY KEY (bfs_nr, category)
);
`

// New prepares the cache schema on db and returns a Store.
func New(db *sql.DB, cfg Config) (*Store, error) {
	cfg.defaults()
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("cache: schema: %w", err)
	}
	return &Store{db: db, config: cfg, now: time.Now}, nil
}

// TTL returns the freshness window for a category. Unknown categories get
// the shorter operational window.
func (s *Store) TTL(cat Category) time.Duration {
	if cat == CategoryProcess {
		return s.config.ProcessTTL
	}
	return s.config.OperationalTTL
}

// Get returns the fresh entry for (bfsNr, cat), or nil when there is none
// or the stored entry has aged past its TTL. Stale entries are left in
// place for the next Put to supersede.
func (s *Store) Get(ctx context.Context, bfsNr int, cat Category) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, cached_at FROM authority_info_cache WHERE bfs_nr = ? AND category = ?`,
		bfsNr, string(cat))

	var payload string
	var cachedAt int64
	if err := row.Scan(&payload, &cachedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("cache: get: %w", err)
	}

	at := time.UnixMilli(cachedAt)
	if s.now().Sub(at) > s.TTL(cat) {
		return nil, nil
	}
	return &Entry{
		BFSNr:    bfsNr,
		Category: cat,
		Payload:  json.RawMessage(payload),
		CachedAt: at,
	}, nil
}

// Put stores payload for (bfsNr, cat), replacing any previous entry. The
// returned time is the stored write timestamp, millisecond-truncated exactly
// as a later Get reports it.
func (s *Store) Put(ctx context.Context, bfsNr int, cat Category, payload json.RawMessage) (time.Time, error) {
	at := time.UnixMilli(s.now().UnixMilli())
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO authority_info_cache (bfs_nr, category, payload, cached_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (bfs_nr, category) DO UPDATE SET
			payload   = excluded.payload,
			cached_at = excluded.cached_at`,
		bfsNr, string(cat), string(payload), at.UnixMilli())
	if err != nil {
		return time.Time{}, fmt.Errorf("cache: put: %w", err)
	}
	return at, nil
}

// Invalidate drops all entries for one municipality, forcing the next read
// to refresh. Used by the admin refresh endpoint.
func (s *Store) Invalidate(ctx context.Context, bfsNr int) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM authority_info_cache WHERE bfs_nr = ?`, bfsNr); err != nil {
		return fmt.Errorf("cache: invalidate: %w", err)
	}
	return nil
}

// Stats reports entry counts per category, fresh vs total.
func (s *Store) Stats(ctx context.Context) (map[Category]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM authority_info_cache GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("cache: stats: %w", err)
	}
	defer rows.Close()

	out := make(map[Category]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, fmt.Errorf("cache: stats: %w", err)
		}
		out[Category(cat)] = n
	}
	return out, rows.Err()
}
