package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/repository"
)

var _ repository.ActivityRepository = (*DB)(nil)

// RecordActivity bumps the (userID, day) counter for kind, creating the row
// on first use. The upsert keeps concurrent saves from losing increments.
func (db *DB) RecordActivity(ctx context.Context, userID, day string, kind model.ActivityKind) error {
	var snippets, forks int
	switch kind {
	case model.ActivitySnippet:
		snippets = 1
	case model.ActivityFork:
		forks = 1
	default:
		return fmt.Errorf("sqlite: unknown activity kind %q", kind)
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO activities (user_id, day, snippet_count, fork_count)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (user_id, day) DO UPDATE SET
		   snippet_count = snippet_count + excluded.snippet_count,
		   fork_count    = fork_count + excluded.fork_count`,
		userID, day, snippets, forks,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording activity for %s: %w", userID, err)
	}
	return nil
}

// ListActivity returns the user's activity rows with fromDay <= day <= toDay,
// oldest first. Days are YYYY-MM-DD so string comparison is date order.
func (db *DB) ListActivity(ctx context.Context, userID, fromDay, toDay string) ([]model.Activity, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT user_id, day, snippet_count, fork_count
		 FROM activities
		 WHERE user_id = ? AND day >= ? AND day <= ?
		 ORDER BY day ASC`,
		userID, fromDay, toDay,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing activity for %s: %w", userID, err)
	}
	defer rows.Close()

	activity := []model.Activity{}
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.UserID, &a.Day, &a.SnippetCount, &a.ForkCount); err != nil {
			return nil, fmt.Errorf("sqlite: scanning activity row: %w", err)
		}
		activity = append(activity, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating activity: %w", err)
	}
	return activity, nil
}
