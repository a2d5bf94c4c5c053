// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// DRIVER:
// modernc.org/sqlite is pure Go, so the binary builds with CGO_ENABLED=0.
//
// CONNECTION SETTINGS:
// PRAGMAs are per-connection in SQLite, and sql.DB is a pool. Setting them
// with a one-off Exec only configures whichever connection ran it, so they
// are passed in the DSN instead; the driver applies them to every new
// connection in the pool.
//
// ATOMIC COUNTERS:
// views_count, likes_count and forks_count are only changed with
// "col = col + 1" expressions (or inside a transaction), never by writing
// back a value read earlier. Concurrent requests therefore cannot lose updates.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// Registers the "sqlite" driver with database/sql.
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// DB wraps a sql.DB connection pool and provides repository methods.
// A single *DB implements every interface in package repository.
type DB struct {
	conn *sql.DB
}

// defaultPragmas is appended to file paths that carry no query string.
//   - foreign_keys: ON DELETE CASCADE / SET NULL are ignored without it
//   - journal_mode=WAL: readers don't block the writer
//   - busy_timeout: wait up to 5s for the write lock instead of failing with SQLITE_BUSY
const defaultPragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/playground.db"  → file-based database (persistent)
//   - ":memory:"            → in-memory database (lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Every connection to ":memory:" is a separate, empty database.
	if strings.HasPrefix(dbPath, ":memory:") {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn adds the default pragmas unless the caller supplied their own query string.
func dsn(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?" + defaultPragmas
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping checks that the database is reachable. Used by the /healthz endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate creates all tables. CREATE TABLE IF NOT EXISTS makes it safe to run
// on every start.
func (db *DB) migrate() error {
	migrations := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id             TEXT PRIMARY KEY,
				username       TEXT NOT NULL UNIQUE,
				email          TEXT NOT NULL DEFAULT '',
				password_hash  TEXT NOT NULL DEFAULT '',
				github_id      INTEGER UNIQUE,
				avatar_url     TEXT NOT NULL DEFAULT '',
				bio            TEXT NOT NULL DEFAULT '',
				tech_tags      TEXT NOT NULL DEFAULT '[]',
				github_profile TEXT NOT NULL DEFAULT '',
				website        TEXT NOT NULL DEFAULT '',
				streak_count   INTEGER NOT NULL DEFAULT 0,
				total_views    INTEGER NOT NULL DEFAULT 0,
				total_likes    INTEGER NOT NULL DEFAULT 0,
				created_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{"snippets", `
			CREATE TABLE IF NOT EXISTS snippets (
				id          TEXT PRIMARY KEY,
				user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				title       TEXT NOT NULL,
				slug        TEXT NOT NULL UNIQUE,
				description TEXT NOT NULL DEFAULT '',
				html_code   TEXT NOT NULL DEFAULT '',
				css_code    TEXT NOT NULL DEFAULT '',
				js_code     TEXT NOT NULL DEFAULT '',
				environment TEXT NOT NULL DEFAULT '2d' CHECK (environment IN ('2d', '3d')),
				tags        TEXT NOT NULL DEFAULT '[]',
				views_count INTEGER NOT NULL DEFAULT 0,
				likes_count INTEGER NOT NULL DEFAULT 0,
				forks_count INTEGER NOT NULL DEFAULT 0,
				forked_from TEXT REFERENCES snippets(id) ON DELETE SET NULL,
				is_public   INTEGER NOT NULL DEFAULT 1,
				is_pinned   INTEGER NOT NULL DEFAULT 0,
				created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_snippets_created_at ON snippets(created_at);
			CREATE INDEX IF NOT EXISTS idx_snippets_user_created ON snippets(user_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_snippets_forked_from ON snippets(forked_from);`},
		{"likes", `
			CREATE TABLE IF NOT EXISTS likes (
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				PRIMARY KEY (user_id, snippet_id)
			);`},
		{"views", `
			CREATE TABLE IF NOT EXISTS views (
				id         TEXT PRIMARY KEY,
				snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
				user_id    TEXT REFERENCES users(id) ON DELETE CASCADE,
				ip_address TEXT NOT NULL DEFAULT '',
				user_agent TEXT NOT NULL DEFAULT '',
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_views_snippet ON views(snippet_id);`},
		{"comments", `
			CREATE TABLE IF NOT EXISTS comments (
				id         TEXT PRIMARY KEY,
				user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				snippet_id TEXT NOT NULL REFERENCES snippets(id) ON DELETE CASCADE,
				text       TEXT NOT NULL,
				created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);
			CREATE INDEX IF NOT EXISTS idx_comments_snippet ON comments(snippet_id, created_at);`},
		{"activities", `
			CREATE TABLE IF NOT EXISTS activities (
				user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				day           TEXT NOT NULL,
				snippet_count INTEGER NOT NULL DEFAULT 0,
				fork_count    INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (user_id, day)
			);`},
	}

	for _, m := range migrations {
		if _, err := db.conn.Exec(m.sql); err != nil {
			return fmt.Errorf("creating %s table: %w", m.name, err)
		}
	}

	return nil
}

// isUniqueViolation reports whether err came from a UNIQUE or PRIMARY KEY constraint.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// boolToInt converts a Go bool to SQLite's 0/1 integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
