package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/model"
)

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$10$hash",
		TechTags:     []string{"go", "css"},
	}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if user.ID == "" {
		t.Error("CreateUser() did not set user.ID")
	}

	found, err := db.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if found.ID != user.ID {
		t.Errorf("ID = %q, want %q", found.ID, user.ID)
	}
	if found.PasswordHash != "$2a$10$hash" {
		t.Errorf("PasswordHash = %q, want it persisted", found.PasswordHash)
	}
	if len(found.TechTags) != 2 || found.TechTags[0] != "go" {
		t.Errorf("TechTags = %v, want [go css]", found.TechTags)
	}
	if found.GitHubID != nil {
		t.Errorf("GitHubID = %d, want nil for a password account", *found.GitHubID)
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	err := db.CreateUser(context.Background(), &model.User{Username: "alice"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateUser() error = %v, want ErrConflict", err)
	}
}

func TestCreateUser_SeveralPasswordAccounts(t *testing.T) {
	db := newTestDB(t)

	// github_id is NULL for both; UNIQUE must not treat two NULLs as equal.
	createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")
}

// =========================================================================
// GITHUB UPSERT TESTS
// =========================================================================

func TestUpsertGitHubUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	githubID := int64(12345)

	first := &model.User{Username: "octocat", Email: "old@example.com", GitHubID: &githubID}
	if err := db.UpsertGitHubUser(ctx, first); err != nil {
		t.Fatalf("UpsertGitHubUser() first call error = %v", err)
	}

	second := &model.User{
		Username:  "renamed-on-github",
		Email:     "new@example.com",
		AvatarURL: "https://avatars.githubusercontent.com/u/12345",
		GitHubID:  &githubID,
	}
	if err := db.UpsertGitHubUser(ctx, second); err != nil {
		t.Fatalf("UpsertGitHubUser() second call error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("ID = %q, want existing %q", second.ID, first.ID)
	}
	if second.Username != "octocat" {
		t.Errorf("Username = %q, want the stored username kept", second.Username)
	}
	if second.Email != "new@example.com" {
		t.Errorf("Email = %q, want refreshed email", second.Email)
	}
}

func TestUpsertGitHubUser_RequiresGitHubID(t *testing.T) {
	db := newTestDB(t)

	err := db.UpsertGitHubUser(context.Background(), &model.User{Username: "x"})
	if !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("UpsertGitHubUser() error = %v, want ErrValidation", err)
	}
}

// =========================================================================
// GET / UPDATE TESTS
// =========================================================================

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "alice")

	user.Bio = "I build tiny things"
	user.Website = "https://alice.dev"
	user.GitHubProfile = "https://github.com/alice"
	user.TechTags = []string{"three.js"}
	if err := db.UpdateProfile(ctx, user); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	found, err := db.GetUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Bio != "I build tiny things" || found.Website != "https://alice.dev" {
		t.Errorf("profile not updated: %+v", found)
	}
	if len(found.TechTags) != 1 || found.TechTags[0] != "three.js" {
		t.Errorf("TechTags = %v, want [three.js]", found.TechTags)
	}
}

func TestUpdateProfile_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateProfile(context.Background(), &model.User{ID: "missing"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateProfile() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// STATS TESTS
// =========================================================================

func TestRecomputeStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")

	a := createTestSnippet(t, db, alice, "a")
	b := createTestSnippet(t, db, alice, "b")
	for i := 0; i < 3; i++ {
		if _, err := db.IncrementViews(ctx, a.ID); err != nil {
			t.Fatalf("IncrementViews() error = %v", err)
		}
	}
	if _, err := db.IncrementViews(ctx, b.ID); err != nil {
		t.Fatalf("IncrementViews() error = %v", err)
	}
	if _, _, err := db.ToggleLike(ctx, bob.ID, a.ID); err != nil {
		t.Fatalf("ToggleLike() error = %v", err)
	}

	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	for _, day := range []string{"2026-03-10", "2026-03-09", "2026-03-07"} {
		if err := db.RecordActivity(ctx, alice.ID, day, model.ActivitySnippet); err != nil {
			t.Fatalf("RecordActivity() error = %v", err)
		}
	}

	if err := db.RecomputeStats(ctx, alice.ID, now); err != nil {
		t.Fatalf("RecomputeStats() error = %v", err)
	}

	found, err := db.GetUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.TotalViews != 4 {
		t.Errorf("TotalViews = %d, want 4", found.TotalViews)
	}
	if found.TotalLikes != 1 {
		t.Errorf("TotalLikes = %d, want 1", found.TotalLikes)
	}
	if found.StreakCount != 2 {
		t.Errorf("StreakCount = %d, want 2", found.StreakCount)
	}
}

func TestRecomputeStats_NoSnippets(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice")

	if err := db.RecomputeStats(context.Background(), user.ID, time.Now()); err != nil {
		t.Fatalf("RecomputeStats() error = %v", err)
	}
	found, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.TotalViews != 0 || found.TotalLikes != 0 || found.StreakCount != 0 {
		t.Errorf("stats = %d/%d/%d, want all zero", found.TotalViews, found.TotalLikes, found.StreakCount)
	}
}
