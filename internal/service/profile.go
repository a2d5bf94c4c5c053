package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/repository"
)

const (
	ProfileRecentLimit = 12
	ProfilePinnedLimit = 3
	HeatmapDays        = 365 // the series covers today-365 .. today

	MaxBioLength   = 500
	MaxURLLength   = 200
	MaxTechTags    = 20
	MaxTechTagSize = 30
)

// ActivityDay is one point of the contribution series.
type ActivityDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
	Level int    `json:"level"` // 0-4 shade on the heatmap
}

// Profile is everything the profile page renders.
type Profile struct {
	User     *model.User
	Snippets []model.Snippet // newest public snippets
	Pinned   []model.Snippet
	// Activity holds only days with a stored row, oldest first.
	Activity []ActivityDay
	// Heatmap holds every day of the window, zero-filled, oldest first.
	Heatmap []ActivityDay
	IsOwner bool
}

// ProfileService serves profile pages and the settings form.
type ProfileService struct {
	users    repository.UserRepository
	snippets repository.SnippetRepository
	activity repository.ActivityRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewProfileService creates a ProfileService.
func NewProfileService(
	users repository.UserRepository,
	snippets repository.SnippetRepository,
	activity repository.ActivityRepository,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		users:    users,
		snippets: snippets,
		activity: activity,
		logger:   logger,
		now:      time.Now,
	}
}

// Profile loads the profile of username as seen by viewerID.
//
// The user's aggregates (total views, total likes, streak) are recomputed
// first. If that fails the page is still served with the stored values.
func (s *ProfileService) Profile(ctx context.Context, username, viewerID string) (*Profile, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.users.RecomputeStats(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to recompute user stats",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
	} else if fresh, err := s.users.GetUserByID(ctx, user.ID); err == nil {
		user = fresh
	}

	recent, err := s.snippets.List(ctx, repository.ListOptions{
		UserID: user.ID, PublicOnly: true, Limit: ProfileRecentLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing profile snippets: %w", err)
	}
	pinned, err := s.snippets.List(ctx, repository.ListOptions{
		UserID: user.ID, PublicOnly: true, PinnedOnly: true, Limit: ProfilePinnedLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("listing pinned snippets: %w", err)
	}

	from := now.AddDate(0, 0, -HeatmapDays)
	rows, err := s.activity.ListActivity(ctx, user.ID, model.Today(from), model.Today(now))
	if err != nil {
		return nil, fmt.Errorf("listing activity: %w", err)
	}

	return &Profile{
		User:     user,
		Snippets: recent,
		Pinned:   pinned,
		Activity: activitySeries(rows),
		Heatmap:  heatmap(rows, from, now),
		IsOwner:  viewerID != "" && viewerID == user.ID,
	}, nil
}

func activitySeries(rows []model.Activity) []ActivityDay {
	series := make([]ActivityDay, 0, len(rows))
	for _, a := range rows {
		series = append(series, ActivityDay{Date: a.Day, Count: a.Total(), Level: heatLevel(a.Total())})
	}
	return series
}

// heatmap expands the sparse rows into one entry per day from..to inclusive.
func heatmap(rows []model.Activity, from, to time.Time) []ActivityDay {
	counts := make(map[string]int, len(rows))
	for _, a := range rows {
		counts[a.Day] = a.Total()
	}

	var days []ActivityDay
	last := model.Today(to)
	for d := from; ; d = d.AddDate(0, 0, 1) {
		day := model.Today(d)
		n := counts[day]
		days = append(days, ActivityDay{Date: day, Count: n, Level: heatLevel(n)})
		if day >= last {
			break
		}
	}
	return days
}

func heatLevel(n int) int {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return 1
	case n <= 3:
		return 2
	case n <= 5:
		return 3
	default:
		return 4
	}
}

// Settings returns the current user's editable profile.
func (s *ProfileService) Settings(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	return s.users.GetUserByID(ctx, userID)
}

// SettingsInput is the settings form. Every field replaces the stored value.
type SettingsInput struct {
	AvatarURL     string
	Bio           string
	GitHubProfile string
	Website       string
	TechTags      []string
}

// UpdateSettings validates and stores the settings form.
func (s *ProfileService) UpdateSettings(ctx context.Context, userID string, in SettingsInput) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}

	bio := strings.TrimSpace(in.Bio)
	if utf8.RuneCountInString(bio) > MaxBioLength {
		return nil, apperror.ValidationFailed("bio",
			fmt.Sprintf("bio must be %d characters or less", MaxBioLength))
	}

	avatar, err := optionalURL("avatar_url", in.AvatarURL)
	if err != nil {
		return nil, err
	}
	github, err := optionalURL("github_profile", in.GitHubProfile)
	if err != nil {
		return nil, err
	}
	website, err := optionalURL("website", in.Website)
	if err != nil {
		return nil, err
	}

	tags, err := normalizeTechTags(in.TechTags)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.AvatarURL = avatar
	user.Bio = bio
	user.GitHubProfile = github
	user.Website = website
	user.TechTags = tags

	if err := s.users.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("updating settings: %w", err)
	}
	s.logger.Info("profile updated", slog.String("userID", userID))
	return user, nil
}

// SplitTags turns a comma-separated form value into a tag list.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return strings.Split(raw, ",")
}

// normalizeTechTags trims and de-duplicates tags case-insensitively,
// keeping the first spelling.
func normalizeTechTags(raw []string) ([]string, error) {
	tags := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, t := range raw {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		if utf8.RuneCountInString(t) > MaxTechTagSize {
			return nil, apperror.ValidationFailed("tech_tags",
				fmt.Sprintf("tech tags must be %d characters or less", MaxTechTagSize))
		}
		seen[key] = true
		tags = append(tags, t)
	}
	if len(tags) > MaxTechTags {
		return nil, apperror.ValidationFailed("tech_tags",
			fmt.Sprintf("at most %d tech tags are allowed", MaxTechTags))
	}
	return tags, nil
}

// optionalURL accepts "" or an absolute http(s) URL.
func optionalURL(field, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if len(raw) > MaxURLLength {
		return "", apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d characters or less", field, MaxURLLength))
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", apperror.ValidationFailed(field, field+" must be an http or https URL")
	}
	return u.String(), nil
}
