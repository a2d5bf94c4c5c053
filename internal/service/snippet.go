// Package service contains the business rules of the playground.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates, authorises, orchestrates
//	Repository      → reads/writes SQLite
//
// Services take repository interfaces, never *sqlite.DB, so tests run them
// against in-memory mocks. They return apperror values and know nothing
// about HTTP status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/xid"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/observability"
	"github.com/sakif/social-playground/internal/repository"
	"github.com/sakif/social-playground/internal/slug"
)

// Validation limits.
const (
	DefaultTitle         = "Untitled"
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxCodeLength        = 100000 // per field
	MaxTags              = 10
	MaxTagLength         = 30

	FeedPageSize = 20

	// insertAttempts bounds the allocate-then-insert loop when another
	// request takes the same slug between the lookup and the INSERT.
	insertAttempts = 5

	forkSuffix = " (Fork)"
)

// PopularTags are the shortcut chips shown above the feed.
var PopularTags = []string{"navbar", "3d", "animation", "card", "button", "form", "landing", "cyberpunk"}

// FeedCache caches public feed pages per filter. *cache.Feed and cache.Nop
// implement it.
type FeedCache interface {
	Get(ctx context.Context, environment, tag string) ([]model.Snippet, bool)
	Set(ctx context.Context, environment, tag string, snippets []model.Snippet)
	Invalidate(ctx context.Context)
}

// SnippetService owns snippet creation, editing, forking and reading.
type SnippetService struct {
	snippets repository.SnippetRepository
	social   repository.SocialRepository
	activity repository.ActivityRepository
	feed     FeedCache
	logger   *slog.Logger
	now      func() time.Time
}

// NewSnippetService creates a SnippetService.
func NewSnippetService(
	snippets repository.SnippetRepository,
	social repository.SocialRepository,
	activity repository.ActivityRepository,
	feed FeedCache,
	logger *slog.Logger,
) *SnippetService {
	return &SnippetService{
		snippets: snippets,
		social:   social,
		activity: activity,
		feed:     feed,
		logger:   logger,
		now:      time.Now,
	}
}

// SaveInput is the editor's save payload. ID is empty for a new snippet.
// IsPublic is a pointer so an omitted field can default to true.
type SaveInput struct {
	ID          string
	Title       string
	Description string
	HTMLCode    string
	CSSCode     string
	JSCode      string
	Environment string
	Tags        []string
	IsPublic    *bool
}

// Save creates a snippet (ID empty) or updates one the caller owns.
//
// The slug is allocated only on creation and never changes afterwards, even
// when the title does. Activity is recorded only for a true creation.
func (s *SnippetService) Save(ctx context.Context, userID string, in SaveInput) (*model.Snippet, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("log in to save snippets")
	}
	fields, err := validateSaveInput(in)
	if err != nil {
		return nil, err
	}

	if id := strings.TrimSpace(in.ID); id != "" {
		return s.update(ctx, userID, id, fields)
	}

	snippet := fields
	snippet.ID = xid.New().String()
	snippet.UserID = userID

	if err := s.insertWithSlug(ctx, snippet, func(ctx context.Context) error {
		return s.snippets.Create(ctx, snippet)
	}); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	s.recordActivity(ctx, userID, model.ActivitySnippet)
	s.feed.Invalidate(ctx)
	observability.SnippetEvents.WithLabelValues(observability.EventCreated).Inc()

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("slug", snippet.Slug),
		slog.String("userID", userID),
	)
	return snippet, nil
}

func (s *SnippetService) update(ctx context.Context, userID, id string, fields *model.Snippet) (*model.Snippet, error) {
	snippet, err := s.snippets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if snippet.UserID != userID {
		return nil, apperror.Forbidden("you can only edit your own snippets")
	}

	snippet.Title = fields.Title
	snippet.Description = fields.Description
	snippet.HTMLCode = fields.HTMLCode
	snippet.CSSCode = fields.CSSCode
	snippet.JSCode = fields.JSCode
	snippet.Environment = fields.Environment
	snippet.Tags = fields.Tags
	snippet.IsPublic = fields.IsPublic

	if err := s.snippets.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.feed.Invalidate(ctx)
	observability.SnippetEvents.WithLabelValues(observability.EventUpdated).Inc()
	s.logger.Info("snippet updated", slog.String("id", id), slog.String("slug", snippet.Slug))
	return snippet, nil
}

// Fork copies the snippet at slug into a new public snippet owned by userID.
// The original's forks_count and the forker's daily fork activity both go up.
func (s *SnippetService) Fork(ctx context.Context, userID, slugValue string) (*model.Snippet, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("log in to fork snippets")
	}
	original, err := s.visibleBySlug(ctx, userID, slugValue)
	if err != nil {
		return nil, err
	}

	fork := &model.Snippet{
		ID:          xid.New().String(),
		UserID:      userID,
		Title:       forkTitle(original.Title),
		Description: original.Description,
		HTMLCode:    original.HTMLCode,
		CSSCode:     original.CSSCode,
		JSCode:      original.JSCode,
		Environment: original.Environment,
		Tags:        append([]string{}, original.Tags...),
		IsPublic:    true,
	}

	if err := s.insertWithSlug(ctx, fork, func(ctx context.Context) error {
		return s.snippets.CreateFork(ctx, fork, original.ID)
	}); err != nil {
		s.logger.Error("failed to fork snippet",
			slog.String("original", original.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("forking snippet: %w", err)
	}

	s.recordActivity(ctx, userID, model.ActivityFork)
	s.feed.Invalidate(ctx)
	observability.SnippetEvents.WithLabelValues(observability.EventForked).Inc()

	s.logger.Info("snippet forked",
		slog.String("original", original.Slug),
		slog.String("fork", fork.Slug),
		slog.String("userID", userID),
	)
	return fork, nil
}

// Delete removes a snippet owned by userID. Forks of it survive, detached.
func (s *SnippetService) Delete(ctx context.Context, userID, slugValue string) error {
	snippet, err := s.ownedBySlug(ctx, userID, slugValue)
	if err != nil {
		return err
	}
	if err := s.snippets.Delete(ctx, snippet.ID); err != nil {
		return fmt.Errorf("deleting snippet: %w", err)
	}

	s.feed.Invalidate(ctx)
	observability.SnippetEvents.WithLabelValues(observability.EventDeleted).Inc()
	s.logger.Info("snippet deleted", slog.String("slug", snippet.Slug), slog.String("userID", userID))
	return nil
}

// TogglePin flips whether the snippet is featured on its owner's profile
// and returns the new state.
func (s *SnippetService) TogglePin(ctx context.Context, userID, slugValue string) (bool, error) {
	snippet, err := s.ownedBySlug(ctx, userID, slugValue)
	if err != nil {
		return false, err
	}
	pinned := !snippet.IsPinned
	if err := s.snippets.SetPinned(ctx, snippet.ID, pinned); err != nil {
		return false, fmt.Errorf("pinning snippet: %w", err)
	}
	return pinned, nil
}

// FeedFilter narrows the public feed. Empty fields mean "any".
type FeedFilter struct {
	Environment string
	Tag         string
}

// Feed lists the newest public snippets matching filter, at most FeedPageSize.
// An environment other than "2d" or "3d" is ignored rather than rejected.
func (s *SnippetService) Feed(ctx context.Context, filter FeedFilter) ([]model.Snippet, error) {
	env := model.Environment(strings.TrimSpace(filter.Environment))
	if !env.Valid() {
		env = ""
	}
	tag := strings.TrimSpace(filter.Tag)

	if cached, ok := s.feed.Get(ctx, string(env), tag); ok {
		return cached, nil
	}

	snippets, err := s.snippets.List(ctx, repository.ListOptions{
		Limit:       FeedPageSize,
		PublicOnly:  true,
		Environment: env,
		Tag:         tag,
	})
	if err != nil {
		s.logger.Error("failed to list feed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing feed: %w", err)
	}

	s.feed.Set(ctx, string(env), tag, snippets)
	return snippets, nil
}

// ViewRequest identifies who is looking at a snippet. ViewerID is empty for
// anonymous visitors.
type ViewRequest struct {
	Slug      string
	ViewerID  string
	IPAddress string
	UserAgent string
}

// SnippetDetail is everything the detail page renders.
type SnippetDetail struct {
	Snippet  *model.Snippet
	Liked    bool
	IsOwner  bool
	Comments []model.Comment
}

// Detail loads a snippet for its page and counts the visit.
//
// Every call increments views_count, authenticated or not. A View row is
// logged only for authenticated viewers.
func (s *SnippetService) Detail(ctx context.Context, req ViewRequest) (*SnippetDetail, error) {
	snippet, err := s.visibleBySlug(ctx, req.ViewerID, req.Slug)
	if err != nil {
		return nil, err
	}

	if req.ViewerID != "" {
		view := &model.View{
			SnippetID: snippet.ID,
			UserID:    req.ViewerID,
			IPAddress: req.IPAddress,
			UserAgent: req.UserAgent,
		}
		if err := s.social.LogView(ctx, view); err != nil {
			return nil, fmt.Errorf("logging view: %w", err)
		}
	}

	views, err := s.snippets.IncrementViews(ctx, snippet.ID)
	if err != nil {
		return nil, fmt.Errorf("counting view: %w", err)
	}
	snippet.ViewsCount = views
	observability.SnippetEvents.WithLabelValues(observability.EventViewed).Inc()

	detail := &SnippetDetail{
		Snippet: snippet,
		IsOwner: req.ViewerID != "" && req.ViewerID == snippet.UserID,
	}
	if req.ViewerID != "" {
		if detail.Liked, err = s.social.HasLiked(ctx, req.ViewerID, snippet.ID); err != nil {
			return nil, fmt.Errorf("checking like: %w", err)
		}
	}
	if detail.Comments, err = s.social.ListComments(ctx, snippet.ID); err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return detail, nil
}

// Preview returns the snippet whose code the preview document embeds.
// It does not count a view; the detail page that frames it already did.
func (s *SnippetService) Preview(ctx context.Context, viewerID, slugValue string) (*model.Snippet, error) {
	return s.visibleBySlug(ctx, viewerID, slugValue)
}

// Editor returns the snippet to open in the editor.
//
// With no slug, or with a slug the caller does not own, the result is a blank
// unsaved snippet (empty ID). Opening someone else's snippet never shows
// their code in an editable form and never creates a row.
func (s *SnippetService) Editor(ctx context.Context, userID, slugValue string) (*model.Snippet, error) {
	blank := &model.Snippet{
		Title:       DefaultTitle,
		Environment: model.Environment2D,
		Tags:        []string{},
		IsPublic:    true,
	}
	if strings.TrimSpace(slugValue) == "" {
		return blank, nil
	}

	snippet, err := s.snippets.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	if snippet.UserID != userID {
		return blank, nil
	}
	return snippet, nil
}

func (s *SnippetService) visibleBySlug(ctx context.Context, viewerID, slugValue string) (*model.Snippet, error) {
	return visibleSnippet(ctx, s.snippets, viewerID, slugValue)
}

// visibleSnippet loads a snippet, hiding private snippets from everyone but
// their owner behind NotFound.
func visibleSnippet(ctx context.Context, repo repository.SnippetRepository, viewerID, slugValue string) (*model.Snippet, error) {
	snippet, err := repo.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	if !snippet.IsPublic && snippet.UserID != viewerID {
		return nil, apperror.NotFound("snippet", slugValue)
	}
	return snippet, nil
}

func (s *SnippetService) ownedBySlug(ctx context.Context, userID, slugValue string) (*model.Snippet, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	snippet, err := s.snippets.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	if snippet.UserID != userID {
		return nil, apperror.Forbidden("you can only change your own snippets")
	}
	return snippet, nil
}

// insertWithSlug allocates a slug for snippet and runs insert, retrying with
// a fresh allocation when the INSERT loses a race for the same slug.
// A title with no ASCII letters or digits falls back to the snippet's ID.
func (s *SnippetService) insertWithSlug(ctx context.Context, snippet *model.Snippet, insert func(context.Context) error) error {
	base := slug.Slugify(snippet.Title)
	if base == "" {
		base = snippet.ID
	}

	for attempt := 0; attempt < insertAttempts; attempt++ {
		candidate, err := slug.Allocate(ctx, base, s.snippets.SlugExists)
		if err != nil {
			return err
		}
		snippet.Slug = candidate

		err = insert(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return err
		}
		s.logger.Debug("slug taken concurrently, reallocating", slog.String("slug", candidate))
	}
	return fmt.Errorf("allocating slug for %q: %w", base, slug.ErrExhausted)
}

// recordActivity bumps today's heatmap counter. The snippet already exists
// at this point, so a failure is logged instead of failing the request.
func (s *SnippetService) recordActivity(ctx context.Context, userID string, kind model.ActivityKind) {
	day := model.Today(s.now().UTC())
	if err := s.activity.RecordActivity(ctx, userID, day, kind); err != nil {
		s.logger.Error("failed to record activity",
			slog.String("userID", userID),
			slog.String("day", day),
			slog.String("error", err.Error()),
		)
	}
}

func forkTitle(title string) string {
	limit := MaxTitleLength - utf8.RuneCountInString(forkSuffix)
	if runes := []rune(title); len(runes) > limit {
		title = string(runes[:limit])
	}
	return title + forkSuffix
}

// validateSaveInput normalises the editable fields into a Snippet.
func validateSaveInput(in SaveInput) (*model.Snippet, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = DefaultTitle
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}

	description := strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	for _, c := range []struct{ field, code string }{
		{"html_code", in.HTMLCode},
		{"css_code", in.CSSCode},
		{"js_code", in.JSCode},
	} {
		if len(c.code) > MaxCodeLength {
			return nil, apperror.ValidationFailed(c.field,
				fmt.Sprintf("%s must be %d bytes or less", c.field, MaxCodeLength))
		}
	}

	env := model.Environment(strings.TrimSpace(in.Environment))
	if env == "" {
		env = model.Environment2D
	}
	if !env.Valid() {
		return nil, apperror.ValidationFailed("environment", `environment must be "2d" or "3d"`)
	}

	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	public := true
	if in.IsPublic != nil {
		public = *in.IsPublic
	}

	return &model.Snippet{
		Title:       title,
		Description: description,
		HTMLCode:    in.HTMLCode,
		CSSCode:     in.CSSCode,
		JSCode:      in.JSCode,
		Environment: env,
		Tags:        tags,
		IsPublic:    public,
	}, nil
}

// normalizeTags trims, drops empty and duplicate tags and keeps the order.
func normalizeTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > MaxTagLength {
			return nil, apperror.ValidationFailed("tags",
				fmt.Sprintf("tags must be %d characters or less", MaxTagLength))
		}
		seen[t] = true
		tags = append(tags, t)
	}
	if len(tags) > MaxTags {
		return nil, apperror.ValidationFailed("tags", fmt.Sprintf("at most %d tags are allowed", MaxTags))
	}
	return tags, nil
}
