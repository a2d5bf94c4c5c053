// Package repository declares the data-access interfaces the services depend on.
//
// The services never import a concrete database package. internal/repository/sqlite
// implements every interface here on a single *sqlite.DB; tests substitute
// in-memory mocks.
package repository

import (
	"context"
	"time"

	"github.com/sakif/social-playground/internal/model"
)

// ListOptions filters and paginates snippet listings.
// Zero values mean "no filter".
type ListOptions struct {
	Limit  int
	Offset int

	UserID      string            // only snippets owned by this user
	PublicOnly  bool              // exclude private snippets
	PinnedOnly  bool              // only pinned snippets
	Environment model.Environment // "2d" or "3d"
	Tag         string            // snippet's tag list must contain this tag
}

// SnippetRepository stores snippets and their atomic counters.
type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	GetBySlug(ctx context.Context, slug string) (*model.Snippet, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error

	// CreateFork inserts fork and increments the original's forks_count
	// in one transaction.
	CreateFork(ctx context.Context, fork *model.Snippet, originalID string) error
	IncrementViews(ctx context.Context, id string) (int, error)
	SetPinned(ctx context.Context, id string, pinned bool) error
}

// SocialRepository stores likes, the view log and comments.
type SocialRepository interface {
	// ToggleLike flips the (user, snippet) like and returns the new state
	// together with the snippet's updated likes_count.
	ToggleLike(ctx context.Context, userID, snippetID string) (liked bool, count int, err error)
	HasLiked(ctx context.Context, userID, snippetID string) (bool, error)

	LogView(ctx context.Context, view *model.View) error

	AddComment(ctx context.Context, comment *model.Comment) error
	ListComments(ctx context.Context, snippetID string) ([]model.Comment, error)
}

// ActivityRepository stores the per-user per-day contribution counters.
type ActivityRepository interface {
	RecordActivity(ctx context.Context, userID, day string, kind model.ActivityKind) error
	ListActivity(ctx context.Context, userID, fromDay, toDay string) ([]model.Activity, error)
}

// UserRepository stores user accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	UpsertGitHubUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateProfile(ctx context.Context, user *model.User) error

	// RecomputeStats rebuilds total_views, total_likes and streak_count from
	// the user's snippets and activity, as of now.
	RecomputeStats(ctx context.Context, userID string, now time.Time) error
}
