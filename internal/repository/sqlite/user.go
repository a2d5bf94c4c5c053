package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const selectUser = `
	SELECT id, username, email, password_hash, github_id, avatar_url, bio, tech_tags,
	       github_profile, website, streak_count, total_views, total_likes,
	       created_at, updated_at
	FROM users`

func scanUser(row scanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
		techTags string
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &githubID, &u.AvatarURL, &u.Bio, &techTags,
		&u.GitHubProfile, &u.Website, &u.StreakCount, &u.TotalViews, &u.TotalLikes,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		u.GitHubID = &githubID.Int64
	}
	if err := json.Unmarshal([]byte(techTags), &u.TechTags); err != nil {
		return nil, fmt.Errorf("decoding tech tags of user %s: %w", u.ID, err)
	}
	if u.TechTags == nil {
		u.TechTags = []string{}
	}
	return &u, nil
}

// CreateUser inserts a new account. A taken username (or GitHub id) comes
// back as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = xid.New().String()
	}
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	techTags, err := encodeStrings(user.TechTags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tech tags: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, github_id, avatar_url, bio,
		                    tech_tags, github_profile, website, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.GitHubID, user.AvatarURL,
		user.Bio, techTags, user.GitHubProfile, user.Website, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: creating user %s: %w", user.Username, err)
	}
	return nil
}

// UpsertGitHubUser creates or refreshes the account linked to user.GitHubID.
//
// An existing account keeps its internal ID and username; only email and
// avatar are refreshed from GitHub. On return user holds the stored record.
// A new account whose username is already taken yields apperror.ErrConflict
// so the caller can pick another name.
func (db *DB) UpsertGitHubUser(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return apperror.ValidationFailed("github_id", "GitHub id is required")
	}

	existing, err := scanUser(db.conn.QueryRowContext(ctx,
		selectUser+` WHERE github_id = ?`, *user.GitHubID))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return db.CreateUser(ctx, user)
	case err != nil:
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", *user.GitHubID, err)
	}

	existing.Email = user.Email
	existing.AvatarURL = user.AvatarURL
	existing.UpdatedAt = time.Now().UTC()
	_, err = db.conn.ExecContext(ctx,
		`UPDATE users SET email = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		existing.Email, existing.AvatarURL, existing.UpdatedAt, existing.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating user %s: %w", existing.ID, err)
	}
	*user = *existing
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, selectUser+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by their unique username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, selectUser+` WHERE username = ?`, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", username, err)
	}
	return u, nil
}

// UpdateProfile writes the settings-page fields.
func (db *DB) UpdateProfile(ctx context.Context, user *model.User) error {
	user.UpdatedAt = time.Now().UTC()

	techTags, err := encodeStrings(user.TechTags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tech tags: %w", err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users
		 SET avatar_url = ?, bio = ?, tech_tags = ?, github_profile = ?, website = ?, updated_at = ?
		 WHERE id = ?`,
		user.AvatarURL, user.Bio, techTags, user.GitHubProfile, user.Website, user.UpdatedAt,
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating profile of %s: %w", user.ID, err)
	}
	return expectOneRow(result, "user", user.ID)
}

// RecomputeStats rebuilds the derived aggregates on the users row.
//
// total_views and total_likes are sums over the user's snippets. The streak
// is computed from activity days with a non-zero total, newest first.
func (db *DB) RecomputeStats(ctx context.Context, userID string, now time.Time) error {
	today := model.Today(now)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT day FROM activities
		 WHERE user_id = ? AND day <= ? AND snippet_count + fork_count > 0
		 ORDER BY day DESC`,
		userID, today,
	)
	if err != nil {
		return fmt.Errorf("sqlite: listing active days of %s: %w", userID, err)
	}
	var days []string
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			rows.Close()
			return fmt.Errorf("sqlite: scanning activity day: %w", err)
		}
		days = append(days, day)
	}
	// Close before the UPDATE: with a single pooled connection the open
	// cursor would otherwise block it.
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: iterating activity days: %w", err)
	}

	result, err := db.conn.ExecContext(ctx,
		`UPDATE users SET
		   total_views  = (SELECT COALESCE(SUM(views_count), 0) FROM snippets WHERE user_id = ?),
		   total_likes  = (SELECT COALESCE(SUM(likes_count), 0) FROM snippets WHERE user_id = ?),
		   streak_count = ?
		 WHERE id = ?`,
		userID, userID, model.Streak(days, now), userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recomputing stats of %s: %w", userID, err)
	}
	return expectOneRow(result, "user", userID)
}
