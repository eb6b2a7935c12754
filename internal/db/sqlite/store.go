// Package sqlite is a catalog backed by a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver registration

	"github.com/kailas-cloud/imgdex/internal/db"
	"github.com/kailas-cloud/imgdex/internal/domain/scope"
)

// Compile-time check: Store implements db.Catalog.
var _ db.Catalog = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS images (
	id          TEXT PRIMARY KEY,
	path        TEXT NOT NULL DEFAULT '',
	name        TEXT NOT NULL DEFAULT '',
	size        INTEGER NOT NULL DEFAULT 0,
	uploaded_at INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL DEFAULT 0,
	modified_at INTEGER NOT NULL DEFAULT 0,
	edited_at   INTEGER NOT NULL DEFAULT 0,
	width       INTEGER NOT NULL DEFAULT 0,
	height      INTEGER NOT NULL DEFAULT 0,
	tag_count   INTEGER NOT NULL DEFAULT 0,
	has_hashes  INTEGER NOT NULL DEFAULT 0,
	hash_average    INTEGER NOT NULL DEFAULT 0,
	hash_difference INTEGER NOT NULL DEFAULT 0,
	hash_wavelet    INTEGER NOT NULL DEFAULT 0,
	hash_perceptual INTEGER NOT NULL DEFAULT 0,
	hash_color      INTEGER NOT NULL DEFAULT 0,
	buckets     BLOB
);
CREATE TABLE IF NOT EXISTS image_tags (
	image_id TEXT NOT NULL,
	tag      TEXT NOT NULL,
	PRIMARY KEY (image_id, tag)
);
CREATE INDEX IF NOT EXISTS idx_image_tags_tag ON image_tags(tag);
CREATE TABLE IF NOT EXISTS image_scopes (
	image_id TEXT NOT NULL,
	scope_id TEXT NOT NULL,
	PRIMARY KEY (image_id, scope_id)
);
CREATE INDEX IF NOT EXISTS idx_image_scopes_scope ON image_scopes(scope_id);
CREATE TABLE IF NOT EXISTS image_ratings (
	image_id TEXT NOT NULL,
	name     TEXT NOT NULL,
	value    REAL NOT NULL,
	PRIMARY KEY (image_id, name)
);
CREATE TABLE IF NOT EXISTS image_colors (
	image_id TEXT NOT NULL,
	name     TEXT NOT NULL,
	value    REAL NOT NULL,
	PRIMARY KEY (image_id, name)
);
CREATE TABLE IF NOT EXISTS scopes (
	id            TEXT PRIMARY KEY,
	kind          TEXT NOT NULL DEFAULT '',
	success_count INTEGER NOT NULL DEFAULT 0
);`

// Config holds the database location.
type Config struct {
	Path string
}

// Store implements db.Catalog over database/sql.
type Store struct {
	db *sql.DB
}

// NewStore opens the database and applies the schema.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	conn, err := sql.Open("sqlite3", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Every connection to an in-memory database sees its own empty database.
	if isMemory(cfg.Path) {
		conn.SetMaxOpenConns(1)
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, &db.Error{Op: db.OpMigrate, Err: err}
	}
	return &Store{db: conn}, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the database responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := s.Ping(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// LoadScope returns scope metadata, or db.ErrKeyNotFound.
func (s *Store) LoadScope(ctx context.Context, id string) (scope.Scope, error) {
	var (
		kind  string
		count int
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, success_count FROM scopes WHERE id = ?`, id,
	).Scan(&kind, &count)
	if err == sql.ErrNoRows {
		return scope.Scope{}, db.ErrKeyNotFound
	}
	if err != nil {
		return scope.Scope{}, &db.Error{Op: db.OpSelect, Err: err}
	}
	return scope.Scope{ID: id, Kind: scope.Kind(kind), SuccessCount: count, Known: true}, nil
}

// SaveScope inserts or replaces scope metadata.
func (s *Store) SaveScope(ctx context.Context, sc scope.Scope) error {
	if sc.ID == "" {
		return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("scope id is required")}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO scopes (id, kind, success_count) VALUES (?, ?, ?)`,
		sc.ID, string(sc.Kind), sc.SuccessCount,
	)
	if err != nil {
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	return nil
}
