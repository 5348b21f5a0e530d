// CLAUDE:SUMMARY SQLite store for the canonical Swiss municipality dataset: postal, name, and sub-locality indexes.
// Package dataset stores the canonical Swiss municipality dataset and the
// lookup indexes the resolver works against.
//
// The dataset is read-mostly: imported once (YAML, see import.go), then
// queried by postal code, canonical name, normalized name, and sub-locality
// alias. Each municipality is keyed by its BFS number (the federal
// statistics office's stable municipality id).
package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Authority is one canonical municipality record. The yaml tags carry the
// import format (seed.yaml, BFS exports); yaml.v3 matches lowercased field
// names otherwise and would drop every underscored key.
type Authority struct {
	BFSNr             int      `json:"bfs_nr" yaml:"bfs_nr"`
	Name              string   `json:"name" yaml:"name"`
	Canton            string   `json:"canton" yaml:"canton"`
	Website           string   `json:"website,omitempty" yaml:"website"`
	PostalCodes       []string `json:"postal_codes,omitempty" yaml:"postal_codes"`
	SubLocalities     []string `json:"sub_localities,omitempty" yaml:"sub_localities"`
	RegistrationPages []string `json:"registration_pages,omitempty" yaml:"registration_pages"`
}

// Store wraps the dataset database.
type Store struct {
	DB *sql.DB
}

// New creates a Store on an open database.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Init creates the dataset tables if they do not exist.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("dataset: init schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS authorities (
	bfs_nr     INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	name_norm  TEXT NOT NULL,
	canton     TEXT NOT NULL,
	website    TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_authorities_name_norm ON authorities(name_norm);
CREATE INDEX IF NOT EXISTS idx_authorities_canton ON authorities(canton);

CREATE TABLE IF NOT EXISTS postal_codes (
	plz    TEXT NOT NULL,
	bfs_nr INTEGER NOT NULL REFERENCES authorities(bfs_nr) ON DELETE CASCADE,
	PRIMARY KEY (plz, bfs_nr)
);
CREATE INDEX IF NOT EXISTS idx_postal_codes_bfs ON postal_codes(bfs_nr);

CREATE TABLE IF NOT EXISTS sub_localities (
	name      TEXT NOT NULL,
	name_norm TEXT NOT NULL,
	bfs_nr    INTEGER NOT NULL REFERENCES authorities(bfs_nr) ON DELETE CASCADE,
	PRIMARY KEY (name_norm, bfs_nr)
);

CREATE TABLE IF NOT EXISTS registration_pages (
	bfs_nr INTEGER NOT NULL REFERENCES authorities(bfs_nr) ON DELETE CASCADE,
	url    TEXT NOT NULL,
	PRIMARY KEY (bfs_nr, url)
);
`

// Get returns the authority with the given BFS number, or nil if absent.
func (s *Store) Get(ctx context.Context, bfsNr int) (*Authority, error) {
	a := &Authority{}
	err := s.DB.QueryRowContext(ctx, `
		SELECT bfs_nr, name, canton, website FROM authorities WHERE bfs_nr = ?`,
		bfsNr).Scan(&a.BFSNr, &a.Name, &a.Canton, &a.Website)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.attachDetails(ctx, a)
}

// ByPostalCode returns the authority whose postal-code set contains plz,
// optionally restricted to a canton. Nil if none.
func (s *Store) ByPostalCode(ctx context.Context, plz, canton string) (*Authority, error) {
	q := `
		SELECT a.bfs_nr, a.name, a.canton, a.website
		FROM postal_codes p JOIN authorities a ON a.bfs_nr = p.bfs_nr
		WHERE p.plz = ?`
	args := []any{plz}
	if canton != "" {
		q += ` AND a.canton = ?`
		args = append(args, canton)
	}
	q += ` ORDER BY a.bfs_nr LIMIT 1`
	return s.queryOne(ctx, q, args...)
}

// ByName returns the authority whose canonical name matches name
// case-insensitively. Nil if none.
//
// SQLite's NOCASE collation only folds ASCII, so candidates are narrowed by
// normalized form and the case-insensitive comparison runs in Go, where
// EqualFold handles Ü/ü correctly.
func (s *Store) ByName(ctx context.Context, name, canton string) (*Authority, error) {
	q := `
		SELECT bfs_nr, name, canton, website FROM authorities
		WHERE name_norm = ?`
	args := []any{Normalize(name)}
	if canton != "" {
		q += ` AND canton = ?`
		args = append(args, canton)
	}
	q += ` ORDER BY bfs_nr`

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	// attachDetails issues its own query; with a single-connection pool
	// (dbopen.OpenMemory) it would deadlock while rows still holds the
	// connection, so close the cursor before the nested query.
	var match *Authority
	for rows.Next() {
		a := &Authority{}
		if err := rows.Scan(&a.BFSNr, &a.Name, &a.Canton, &a.Website); err != nil {
			return nil, err
		}
		if strings.EqualFold(a.Name, name) {
			match = a
			break
		}
	}
	if match == nil {
		return nil, rows.Err()
	}
	rows.Close()
	return s.attachDetails(ctx, match)
}

// ByNormalizedName matches the diacritic-normalized form of name, accepting
// an exact normalized match or a substring containment in either direction.
// Nil if none.
func (s *Store) ByNormalizedName(ctx context.Context, norm, canton string) (*Authority, error) {
	if norm == "" {
		return nil, nil
	}
	// Exact first, then either-direction containment. instr() covers
	// "stored contains query" and "query contains stored".
	q := `
		SELECT bfs_nr, name, canton, website FROM authorities
		WHERE (name_norm = ?1 OR instr(name_norm, ?1) > 0 OR instr(?1, name_norm) > 0)`
	args := []any{norm}
	if canton != "" {
		q += ` AND canton = ?2`
		args = append(args, canton)
	}
	q += ` ORDER BY (name_norm = ?1) DESC, length(name_norm) ASC, bfs_nr LIMIT 1`
	return s.queryOne(ctx, q, args...)
}

// BySubLocality finds an authority that lists name as a sub-locality alias
// (case-insensitive, diacritic-normalized). Returns the parent authority and
// the alias as stored, or nil if none.
func (s *Store) BySubLocality(ctx context.Context, name, canton string) (*Authority, string, error) {
	norm := Normalize(name)
	if norm == "" {
		return nil, "", nil
	}
	q := `
		SELECT a.bfs_nr, a.name, a.canton, a.website, sl.name
		FROM sub_localities sl JOIN authorities a ON a.bfs_nr = sl.bfs_nr
		WHERE sl.name_norm = ?`
	args := []any{norm}
	if canton != "" {
		q += ` AND a.canton = ?`
		args = append(args, canton)
	}
	q += ` ORDER BY a.bfs_nr LIMIT 1`

	a := &Authority{}
	var alias string
	err := s.DB.QueryRowContext(ctx, q, args...).Scan(&a.BFSNr, &a.Name, &a.Canton, &a.Website, &alias)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	full, err := s.attachDetails(ctx, a)
	if err != nil {
		return nil, "", err
	}
	return full, alias, nil
}

// NameRef is a lightweight (id, name) pair for fuzzy scanning.
type NameRef struct {
	BFSNr int
	Name  string
}

// AllNames returns every canonical name, optionally restricted to a canton.
// The fuzzy tier scores these in memory; the dataset has ~2100 rows, so a
// full scan is cheap.
func (s *Store) AllNames(ctx context.Context, canton string) ([]NameRef, error) {
	q := `SELECT bfs_nr, name FROM authorities`
	var args []any
	if canton != "" {
		q += ` WHERE canton = ?`
		args = append(args, canton)
	}
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []NameRef
	for rows.Next() {
		var r NameRef
		if err := rows.Scan(&r.BFSNr, &r.Name); err != nil {
			return nil, err
		}
		refs = append(refs, r)
	}
	return refs, rows.Err()
}

// Upsert writes an authority and its indexes, replacing previous index rows.
func (s *Store) Upsert(ctx context.Context, a *Authority) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dataset: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO authorities (bfs_nr, name, name_norm, canton, website, updated_at)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(bfs_nr) DO UPDATE SET
			name = excluded.name, name_norm = excluded.name_norm,
			canton = excluded.canton, website = excluded.website,
			updated_at = excluded.updated_at`,
		a.BFSNr, a.Name, Normalize(a.Name), a.Canton, a.Website, now); err != nil {
		return fmt.Errorf("dataset: upsert authority %d: %w", a.BFSNr, err)
	}

	for _, table := range []string{"postal_codes", "sub_localities", "registration_pages"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE bfs_nr = ?`, a.BFSNr); err != nil {
			return fmt.Errorf("dataset: clear %s: %w", table, err)
		}
	}
	for _, plz := range a.PostalCodes {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO postal_codes (plz, bfs_nr) VALUES (?,?)`, plz, a.BFSNr); err != nil {
			return fmt.Errorf("dataset: postal code %s: %w", plz, err)
		}
	}
	for _, sub := range a.SubLocalities {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO sub_localities (name, name_norm, bfs_nr) VALUES (?,?,?)`,
			sub, Normalize(sub), a.BFSNr); err != nil {
			return fmt.Errorf("dataset: sub-locality %s: %w", sub, err)
		}
	}
	for _, u := range a.RegistrationPages {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO registration_pages (bfs_nr, url) VALUES (?,?)`, a.BFSNr, u); err != nil {
			return fmt.Errorf("dataset: registration page %s: %w", u, err)
		}
	}

	return tx.Commit()
}

func (s *Store) queryOne(ctx context.Context, q string, args ...any) (*Authority, error) {
	a := &Authority{}
	err := s.DB.QueryRowContext(ctx, q, args...).Scan(&a.BFSNr, &a.Name, &a.Canton, &a.Website)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.attachDetails(ctx, a)
}

func (s *Store) attachDetails(ctx context.Context, a *Authority) (*Authority, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT plz FROM postal_codes WHERE bfs_nr = ? ORDER BY plz`, a.BFSNr)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var plz string
		if err := rows.Scan(&plz); err != nil {
			return nil, err
		}
		a.PostalCodes = append(a.PostalCodes, plz)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subs, err := s.DB.QueryContext(ctx, `SELECT name FROM sub_localities WHERE bfs_nr = ? ORDER BY name`, a.BFSNr)
	if err != nil {
		return nil, err
	}
	defer subs.Close()
	for subs.Next() {
		var name string
		if err := subs.Scan(&name); err != nil {
			return nil, err
		}
		a.SubLocalities = append(a.SubLocalities, name)
	}
	if err := subs.Err(); err != nil {
		return nil, err
	}

	pages, err := s.DB.QueryContext(ctx, `SELECT url FROM registration_pages WHERE bfs_nr = ? ORDER BY url`, a.BFSNr)
	if err != nil {
		return nil, err
	}
	defer pages.Close()
	for pages.Next() {
		var u string
		if err := pages.Scan(&u); err != nil {
			return nil, err
		}
		a.RegistrationPages = append(a.RegistrationPages, u)
	}
	return a, pages.Err()
}
