package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X.
var _ repository.SnippetRepository = (*DB)(nil)

// selectSnippet is shared by every query that returns full snippet rows.
// The JOIN fills in the owner's username for feed cards and detail pages.
const selectSnippet = `
	SELECT s.id, s.user_id, u.username, s.title, s.slug, s.description,
	       s.html_code, s.css_code, s.js_code, s.environment, s.tags,
	       s.views_count, s.likes_count, s.forks_count, s.forked_from,
	       s.is_public, s.is_pinned, s.created_at, s.updated_at
	FROM snippets s
	JOIN users u ON u.id = s.user_id`

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// execer is satisfied by both *sql.DB and *sql.Tx, so inserts can run
// standalone or inside a transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func scanSnippet(row scanner) (*model.Snippet, error) {
	var (
		s          model.Snippet
		env        string
		tags       string
		forkedFrom sql.NullString
	)
	err := row.Scan(
		&s.ID, &s.UserID, &s.Username, &s.Title, &s.Slug, &s.Description,
		&s.HTMLCode, &s.CSSCode, &s.JSCode, &env, &tags,
		&s.ViewsCount, &s.LikesCount, &s.ForksCount, &forkedFrom,
		&s.IsPublic, &s.IsPinned, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Environment = model.Environment(env)
	if forkedFrom.Valid {
		s.ForkedFrom = &forkedFrom.String
	}
	if err := json.Unmarshal([]byte(tags), &s.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of snippet %s: %w", s.ID, err)
	}
	if s.Tags == nil {
		s.Tags = []string{}
	}
	return &s, nil
}

// encodeStrings stores a string list as a JSON array. nil is stored as "[]"
// so json_each() in the tag filter never sees NULL.
func encodeStrings(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Create inserts a new snippet.
//
// The ID is generated here unless the caller already chose one (the service
// does that when the ID doubles as the slug for untitled-looking titles).
// A duplicate slug comes back as apperror.ErrConflict so the service can
// allocate a new one and retry.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	if err := insertSnippet(ctx, db.conn, snippet); err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("snippet", snippet.Slug)
		}
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}
	return nil
}

func insertSnippet(ctx context.Context, ex execer, snippet *model.Snippet) error {
	if snippet.ID == "" {
		snippet.ID = xid.New().String()
	}
	now := time.Now().UTC()
	snippet.CreatedAt = now
	snippet.UpdatedAt = now

	tags, err := encodeStrings(snippet.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO snippets (id, user_id, title, slug, description,
		                       html_code, css_code, js_code, environment, tags,
		                       forked_from, is_public, is_pinned, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID, snippet.UserID, snippet.Title, snippet.Slug, snippet.Description,
		snippet.HTMLCode, snippet.CSSCode, snippet.JSCode, string(snippet.Environment), tags,
		snippet.ForkedFrom, boolToInt(snippet.IsPublic), boolToInt(snippet.IsPinned),
		snippet.CreatedAt, snippet.UpdatedAt,
	)
	return err
}

// CreateFork inserts fork and bumps the original's forks_count in a single
// transaction: either both happen or neither does.
func (db *DB) CreateFork(ctx context.Context, fork *model.Snippet, originalID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning fork transaction: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	fork.ForkedFrom = &originalID
	if err := insertSnippet(ctx, tx, fork); err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("snippet", fork.Slug)
		}
		return fmt.Errorf("sqlite: creating fork of %s: %w", originalID, err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE snippets SET forks_count = forks_count + 1 WHERE id = ?`, originalID)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing forks of %s: %w", originalID, err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	} else if n == 0 {
		return apperror.NotFound("snippet", originalID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing fork of %s: %w", originalID, err)
	}
	return nil
}

// GetByID retrieves a single snippet by its ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	s, err := scanSnippet(db.conn.QueryRowContext(ctx, selectSnippet+` WHERE s.id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}
	return s, nil
}

// GetBySlug retrieves a single snippet by its slug.
func (db *DB) GetBySlug(ctx context.Context, slug string) (*model.Snippet, error) {
	s, err := scanSnippet(db.conn.QueryRowContext(ctx, selectSnippet+` WHERE s.slug = ?`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", slug)
		}
		return nil, fmt.Errorf("sqlite: getting snippet by slug %s: %w", slug, err)
	}
	return s, nil
}

// SlugExists reports whether any snippet already uses slug.
func (db *DB) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM snippets WHERE slug = ?)`, slug,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking slug %s: %w", slug, err)
	}
	return exists, nil
}

// List retrieves snippets newest first, applying the filters in opts.
//
// Tags are stored as a JSON array, so the tag filter uses SQLite's
// json_each() table-valued function for an exact membership test.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := max(opts.Offset, 0)

	var (
		where []string
		args  []any
	)
	if opts.UserID != "" {
		where = append(where, "s.user_id = ?")
		args = append(args, opts.UserID)
	}
	if opts.PublicOnly {
		where = append(where, "s.is_public = 1")
	}
	if opts.PinnedOnly {
		where = append(where, "s.is_pinned = 1")
	}
	if opts.Environment != "" {
		where = append(where, "s.environment = ?")
		args = append(args, string(opts.Environment))
	}
	if opts.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(s.tags) WHERE json_each.value = ?)")
		args = append(args, opts.Tag)
	}

	query := selectSnippet
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.created_at DESC, s.rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// Update writes the editable fields of a snippet.
//
// The slug, owner, counters, fork link and pin flag are not in the SET list:
// the slug is immutable once assigned, and the counters only move through
// their atomic increment methods.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	snippet.UpdatedAt = time.Now().UTC()

	tags, err := encodeStrings(snippet.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, description = ?, html_code = ?, css_code = ?, js_code = ?,
		     environment = ?, tags = ?, is_public = ?, updated_at = ?
		 WHERE id = ?`,
		snippet.Title, snippet.Description, snippet.HTMLCode, snippet.CSSCode, snippet.JSCode,
		string(snippet.Environment), tags, boolToInt(snippet.IsPublic), snippet.UpdatedAt,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}
	return expectOneRow(result, "snippet", snippet.ID)
}

// Delete removes a snippet. Likes, views and comments cascade; forks of it
// survive with forked_from set to NULL.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}
	return expectOneRow(result, "snippet", id)
}

// IncrementViews adds one to views_count and returns the new value.
func (db *DB) IncrementViews(ctx context.Context, id string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`UPDATE snippets SET views_count = views_count + 1 WHERE id = ? RETURNING views_count`, id,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperror.NotFound("snippet", id)
		}
		return 0, fmt.Errorf("sqlite: incrementing views of %s: %w", id, err)
	}
	return count, nil
}

// SetPinned sets whether the snippet is featured on its owner's profile.
func (db *DB) SetPinned(ctx context.Context, id string, pinned bool) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets SET is_pinned = ? WHERE id = ?`, boolToInt(pinned), id)
	if err != nil {
		return fmt.Errorf("sqlite: pinning snippet %s: %w", id, err)
	}
	return expectOneRow(result, "snippet", id)
}

// expectOneRow turns "zero rows affected" into a NotFound error.
func expectOneRow(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
