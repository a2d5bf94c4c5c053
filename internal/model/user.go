// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// Users sign up with a username and password, or log in with GitHub. GitHubID
// is nil for password-only accounts; when set it is unique, so one GitHub
// account maps to exactly one app account.
//
// WHY PasswordHash HAS json:"-"?
// The struct is returned as-is from /api/me. The "-" tag keeps the bcrypt hash
// out of every JSON response, no matter which handler serialises the user.
//
// AGGREGATES:
// StreakCount, TotalViews and TotalLikes are derived values. They can always be
// recomputed from the user's snippets and activity rows (see RecomputeStats in
// the repository), so a stale value is harmless.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	GitHubID      *int64    `json:"githubId,omitempty"`
	AvatarURL     string    `json:"avatarUrl"`
	Bio           string    `json:"bio"`
	TechTags      []string  `json:"techTags"`
	GitHubProfile string    `json:"githubProfile"`
	Website       string    `json:"website"`
	StreakCount   int       `json:"streakCount"`
	TotalViews    int       `json:"totalViews"`
	TotalLikes    int       `json:"totalLikes"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
