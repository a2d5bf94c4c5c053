package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/repository"
)

// In-memory fakes for the repository interfaces. They follow the same
// contracts as internal/repository/sqlite (NotFound, Conflict on duplicate
// slug or username, atomic counters) without touching a database.

var errDatabaseDown = errors.New("database is on fire")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---- snippets -------------------------------------------------------------

type mockSnippetRepo struct {
	mu       sync.Mutex
	snippets map[string]*model.Snippet // keyed by ID
	clock    time.Time

	// conflictsLeft makes the next N inserts fail as if another request
	// had taken the slug first.
	conflictsLeft int
	createErr     error
	listErr       error
	listCalls     int
}

func newMockSnippetRepo() *mockSnippetRepo {
	return &mockSnippetRepo{
		snippets: make(map[string]*model.Snippet),
		clock:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *mockSnippetRepo) insertLocked(snippet *model.Snippet) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return apperror.Conflict("snippet", snippet.Slug)
	}
	for _, s := range m.snippets {
		if s.Slug == snippet.Slug {
			return apperror.Conflict("snippet", snippet.Slug)
		}
	}
	if snippet.Tags == nil {
		snippet.Tags = []string{}
	}
	// Strictly increasing timestamps keep List ordering deterministic.
	m.clock = m.clock.Add(time.Second)
	snippet.CreatedAt = m.clock
	snippet.UpdatedAt = m.clock
	stored := *snippet
	m.snippets[snippet.ID] = &stored
	return nil
}

func (m *mockSnippetRepo) Create(_ context.Context, snippet *model.Snippet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(snippet)
}

func (m *mockSnippetRepo) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	out := *s
	return &out, nil
}

func (m *mockSnippetRepo) GetBySlug(_ context.Context, slugValue string) (*model.Snippet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snippets {
		if s.Slug == slugValue {
			out := *s
			return &out, nil
		}
	}
	return nil, apperror.NotFound("snippet", slugValue)
}

func (m *mockSnippetRepo) SlugExists(_ context.Context, slugValue string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.snippets {
		if s.Slug == slugValue {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockSnippetRepo) List(_ context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}

	out := []model.Snippet{}
	for _, s := range m.snippets {
		switch {
		case opts.UserID != "" && s.UserID != opts.UserID,
			opts.PublicOnly && !s.IsPublic,
			opts.PinnedOnly && !s.IsPinned,
			opts.Environment != "" && s.Environment != opts.Environment,
			opts.Tag != "" && !slices.Contains(s.Tags, opts.Tag):
			continue
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if opts.Offset >= len(out) {
		return []model.Snippet{}, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *mockSnippetRepo) Update(_ context.Context, snippet *model.Snippet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snippets[snippet.ID]
	if !ok {
		return apperror.NotFound("snippet", snippet.ID)
	}
	// Slug and counters are not writable through Update.
	s.Title = snippet.Title
	s.Description = snippet.Description
	s.HTMLCode = snippet.HTMLCode
	s.CSSCode = snippet.CSSCode
	s.JSCode = snippet.JSCode
	s.Environment = snippet.Environment
	s.Tags = snippet.Tags
	s.IsPublic = snippet.IsPublic
	return nil
}

func (m *mockSnippetRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(m.snippets, id)
	for _, s := range m.snippets {
		if s.ForkedFrom != nil && *s.ForkedFrom == id {
			s.ForkedFrom = nil
		}
	}
	return nil
}

func (m *mockSnippetRepo) CreateFork(_ context.Context, fork *model.Snippet, originalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	original, ok := m.snippets[originalID]
	if !ok {
		return apperror.NotFound("snippet", originalID)
	}
	fork.ForkedFrom = &originalID
	if err := m.insertLocked(fork); err != nil {
		fork.ForkedFrom = nil
		return err
	}
	original.ForksCount++
	return nil
}

func (m *mockSnippetRepo) IncrementViews(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snippets[id]
	if !ok {
		return 0, apperror.NotFound("snippet", id)
	}
	s.ViewsCount++
	return s.ViewsCount, nil
}

func (m *mockSnippetRepo) SetPinned(_ context.Context, id string, pinned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snippets[id]
	if !ok {
		return apperror.NotFound("snippet", id)
	}
	s.IsPinned = pinned
	return nil
}

// put stores a snippet directly, bypassing slug allocation.
func (m *mockSnippetRepo) put(t *testing.T, s model.Snippet) *model.Snippet {
	t.Helper()
	if s.ID == "" {
		s.ID = "id-" + s.Slug
	}
	if s.Environment == "" {
		s.Environment = model.Environment2D
	}
	if err := m.Create(context.Background(), &s); err != nil {
		t.Fatalf("put(%s): %v", s.Slug, err)
	}
	return &s
}

func (m *mockSnippetRepo) get(t *testing.T, id string) *model.Snippet {
	t.Helper()
	s, err := m.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get(%s): %v", id, err)
	}
	return s
}

// ---- likes, views, comments ----------------------------------------------

type likeKey struct{ userID, snippetID string }

type mockSocialRepo struct {
	mu       sync.Mutex
	snippets *mockSnippetRepo // likes_count lives on the snippet
	likes    map[likeKey]bool
	views    []model.View
	comments []model.Comment
}

func newMockSocialRepo(snippets *mockSnippetRepo) *mockSocialRepo {
	return &mockSocialRepo{snippets: snippets, likes: make(map[likeKey]bool)}
}

func (m *mockSocialRepo) ToggleLike(_ context.Context, userID, snippetID string) (bool, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snippets.mu.Lock()
	defer m.snippets.mu.Unlock()

	s, ok := m.snippets.snippets[snippetID]
	if !ok {
		return false, 0, apperror.NotFound("snippet", snippetID)
	}
	key := likeKey{userID, snippetID}
	if m.likes[key] {
		delete(m.likes, key)
		s.LikesCount--
		return false, s.LikesCount, nil
	}
	m.likes[key] = true
	s.LikesCount++
	return true, s.LikesCount, nil
}

func (m *mockSocialRepo) HasLiked(_ context.Context, userID, snippetID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.likes[likeKey{userID, snippetID}], nil
}

func (m *mockSocialRepo) LogView(_ context.Context, view *model.View) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views = append(m.views, *view)
	return nil
}

func (m *mockSocialRepo) AddComment(_ context.Context, comment *model.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment.ID = "comment-" + comment.Text
	comment.CreatedAt = time.Now().UTC()
	comment.UpdatedAt = comment.CreatedAt
	m.comments = append(m.comments, *comment)
	return nil
}

func (m *mockSocialRepo) ListComments(_ context.Context, snippetID string) ([]model.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Comment{}
	for _, c := range m.comments {
		if c.SnippetID == snippetID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ---- activity -------------------------------------------------------------

type mockActivityRepo struct {
	mu   sync.Mutex
	rows map[string]*model.Activity // keyed by userID + "/" + day
	err  error
}

func newMockActivityRepo() *mockActivityRepo {
	return &mockActivityRepo{rows: make(map[string]*model.Activity)}
}

func (m *mockActivityRepo) RecordActivity(_ context.Context, userID, day string, kind model.ActivityKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	key := userID + "/" + day
	a, ok := m.rows[key]
	if !ok {
		a = &model.Activity{UserID: userID, Day: day}
		m.rows[key] = a
	}
	switch kind {
	case model.ActivitySnippet:
		a.SnippetCount++
	case model.ActivityFork:
		a.ForkCount++
	}
	return nil
}

func (m *mockActivityRepo) ListActivity(_ context.Context, userID, fromDay, toDay string) ([]model.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Activity{}
	for _, a := range m.rows {
		if a.UserID == userID && a.Day >= fromDay && a.Day <= toDay {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

func (m *mockActivityRepo) get(userID, day string) model.Activity {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[userID+"/"+day]; ok {
		return *a
	}
	return model.Activity{UserID: userID, Day: day}
}

// ---- users ----------------------------------------------------------------

type mockUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.User // keyed by ID
	nextID int

	createErr    error
	recomputeErr error
	recomputed   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) createLocked(user *model.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Username == user.Username {
			return apperror.Conflict("user", user.Username)
		}
	}
	if user.ID == "" {
		m.nextID++
		user.ID = "user-" + string(rune('a'+m.nextID-1))
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) CreateUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLocked(user)
}

func (m *mockUserRepo) UpsertGitHubUser(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.GitHubID == nil {
		return apperror.ValidationFailed("github_id", "GitHub id is required")
	}
	for _, u := range m.users {
		if u.GitHubID != nil && *u.GitHubID == *user.GitHubID {
			u.Email = user.Email
			u.AvatarURL = user.AvatarURL
			*user = *u
			return nil
		}
	}
	return m.createLocked(user)
}

func (m *mockUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (m *mockUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (m *mockUserRepo) UpdateProfile(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[user.ID]
	if !ok {
		return apperror.NotFound("user", user.ID)
	}
	u.AvatarURL = user.AvatarURL
	u.Bio = user.Bio
	u.TechTags = user.TechTags
	u.GitHubProfile = user.GitHubProfile
	u.Website = user.Website
	return nil
}

func (m *mockUserRepo) RecomputeStats(_ context.Context, userID string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recomputeErr != nil {
		return m.recomputeErr
	}
	u, ok := m.users[userID]
	if !ok {
		return apperror.NotFound("user", userID)
	}
	m.recomputed++
	u.StreakCount = 7
	return nil
}

func (m *mockUserRepo) add(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{Username: username, TechTags: []string{}}
	if err := m.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("add(%s): %v", username, err)
	}
	return u
}

// ---- feed cache -----------------------------------------------------------

type fakeFeedCache struct {
	mu          sync.Mutex
	pages       map[string][]model.Snippet
	invalidated int
}

func newFakeFeedCache() *fakeFeedCache {
	return &fakeFeedCache{pages: make(map[string][]model.Snippet)}
}

func (f *fakeFeedCache) Get(_ context.Context, environment, tag string) ([]model.Snippet, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pages[environment+"|"+tag]
	return p, ok
}

func (f *fakeFeedCache) Set(_ context.Context, environment, tag string, snippets []model.Snippet) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[environment+"|"+tag] = snippets
}

func (f *fakeFeedCache) Invalidate(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
	f.pages = make(map[string][]model.Snippet)
}

// ---- fixture --------------------------------------------------------------

type fixture struct {
	snippets *mockSnippetRepo
	social   *mockSocialRepo
	activity *mockActivityRepo
	users    *mockUserRepo
	feed     *fakeFeedCache
	now      time.Time

	snippetSvc *SnippetService
	socialSvc  *SocialService
	profileSvc *ProfileService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		snippets: newMockSnippetRepo(),
		activity: newMockActivityRepo(),
		users:    newMockUserRepo(),
		feed:     newFakeFeedCache(),
		now:      time.Date(2024, 6, 15, 9, 30, 0, 0, time.UTC),
	}
	f.social = newMockSocialRepo(f.snippets)

	logger := discardLogger()
	clock := func() time.Time { return f.now }

	f.snippetSvc = NewSnippetService(f.snippets, f.social, f.activity, f.feed, logger)
	f.snippetSvc.now = clock
	f.socialSvc = NewSocialService(f.snippets, f.social, f.users, logger)
	f.profileSvc = NewProfileService(f.users, f.snippets, f.activity, logger)
	f.profileSvc.now = clock
	return f
}
