package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/repository"
)

var _ repository.SocialRepository = (*DB)(nil)

// maxUserAgentLength caps the stored user agent, in characters.
const maxUserAgentLength = 500

// ToggleLike flips the like for (userID, snippetID) and returns the new
// state plus the snippet's updated likes_count.
//
// Everything happens in one transaction:
//  1. DELETE the like. If a row went away, the user just unliked → -1.
//  2. Otherwise INSERT ... ON CONFLICT DO NOTHING. One inserted row → +1.
//     Zero rows means a concurrent request liked it first; the result is
//     still "liked" and the counter is left alone.
//  3. Apply the delta with likes_count = likes_count + ? and read the value
//     back with RETURNING.
func (db *DB) ToggleLike(ctx context.Context, userID, snippetID string) (bool, int, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("sqlite: beginning like transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM likes WHERE user_id = ? AND snippet_id = ?`, userID, snippetID)
	if err != nil {
		return false, 0, fmt.Errorf("sqlite: removing like: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}

	liked, delta := false, -1
	if removed == 0 {
		result, err = tx.ExecContext(ctx,
			`INSERT INTO likes (user_id, snippet_id, created_at) VALUES (?, ?, ?)
			 ON CONFLICT (user_id, snippet_id) DO NOTHING`,
			userID, snippetID, time.Now().UTC())
		if err != nil {
			return false, 0, fmt.Errorf("sqlite: adding like: %w", err)
		}
		inserted, err := result.RowsAffected()
		if err != nil {
			return false, 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		liked, delta = true, int(inserted)
	}

	var count int
	err = tx.QueryRowContext(ctx,
		`UPDATE snippets SET likes_count = likes_count + ? WHERE id = ? RETURNING likes_count`,
		delta, snippetID,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, 0, apperror.NotFound("snippet", snippetID)
		}
		return false, 0, fmt.Errorf("sqlite: updating likes of %s: %w", snippetID, err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("sqlite: committing like toggle: %w", err)
	}
	return liked, count, nil
}

// HasLiked reports whether userID currently likes snippetID.
func (db *DB) HasLiked(ctx context.Context, userID, snippetID string) (bool, error) {
	var liked bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = ? AND snippet_id = ?)`,
		userID, snippetID,
	).Scan(&liked)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking like: %w", err)
	}
	return liked, nil
}

// LogView appends a row to the view log.
func (db *DB) LogView(ctx context.Context, view *model.View) error {
	view.ID = xid.New().String()
	view.CreatedAt = time.Now().UTC()
	view.UserAgent = truncateRunes(view.UserAgent, maxUserAgentLength)

	var userID any // NULL for anonymous viewers
	if view.UserID != "" {
		userID = view.UserID
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO views (id, snippet_id, user_id, ip_address, user_agent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		view.ID, view.SnippetID, userID, view.IPAddress, view.UserAgent, view.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: logging view of %s: %w", view.SnippetID, err)
	}
	return nil
}

// truncateRunes cuts s to at most n characters without splitting a
// multi-byte rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// AddComment inserts a comment. Username is not stored; the caller fills it in.
func (db *DB) AddComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	now := time.Now().UTC()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO comments (id, user_id, snippet_id, text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		comment.ID, comment.UserID, comment.SnippetID, comment.Text,
		comment.CreatedAt, comment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding comment to %s: %w", comment.SnippetID, err)
	}
	return nil
}

// ListComments returns a snippet's comments, oldest first.
func (db *DB) ListComments(ctx context.Context, snippetID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.snippet_id, c.user_id, u.username, c.text, c.created_at, c.updated_at
		 FROM comments c
		 JOIN users u ON u.id = c.user_id
		 WHERE c.snippet_id = ?
		 ORDER BY c.created_at ASC, c.rowid ASC`,
		snippetID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of %s: %w", snippetID, err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.SnippetID, &c.UserID, &c.Username, &c.Text,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	return comments, nil
}
