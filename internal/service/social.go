package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/observability"
	"github.com/sakif/social-playground/internal/repository"
)

// MaxCommentLength is the comment field cap, in characters.
const MaxCommentLength = 1000

// SocialService handles likes and comments.
type SocialService struct {
	snippets repository.SnippetRepository
	social   repository.SocialRepository
	users    repository.UserRepository
	logger   *slog.Logger
}

// NewSocialService creates a SocialService.
func NewSocialService(
	snippets repository.SnippetRepository,
	social repository.SocialRepository,
	users repository.UserRepository,
	logger *slog.Logger,
) *SocialService {
	return &SocialService{snippets: snippets, social: social, users: users, logger: logger}
}

// LikeResult is the state after a like toggle.
type LikeResult struct {
	Liked bool
	Count int
}

// ToggleLike likes the snippet if userID has not liked it yet, and unlikes it
// otherwise. The check and the counter change happen in one transaction.
func (s *SocialService) ToggleLike(ctx context.Context, userID, slugValue string) (*LikeResult, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("log in to like snippets")
	}
	snippet, err := visibleSnippet(ctx, s.snippets, userID, slugValue)
	if err != nil {
		return nil, err
	}

	liked, count, err := s.social.ToggleLike(ctx, userID, snippet.ID)
	if err != nil {
		return nil, fmt.Errorf("toggling like: %w", err)
	}

	state := "unliked"
	if liked {
		state = "liked"
	}
	observability.LikeToggles.WithLabelValues(state).Inc()
	s.logger.Debug("like toggled",
		slog.String("slug", snippet.Slug),
		slog.String("userID", userID),
		slog.String("state", state),
	)
	return &LikeResult{Liked: liked, Count: count}, nil
}

// AddComment posts a comment as userID. Text is trimmed; empty or overlong
// text is a validation error.
func (s *SocialService) AddComment(ctx context.Context, userID, slugValue, text string) (*model.Comment, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("log in to comment")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperror.ValidationFailed("text", "comment text is required")
	}
	if utf8.RuneCountInString(text) > MaxCommentLength {
		return nil, apperror.ValidationFailed("text",
			fmt.Sprintf("comment must be %d characters or less", MaxCommentLength))
	}

	snippet, err := visibleSnippet(ctx, s.snippets, userID, slugValue)
	if err != nil {
		return nil, err
	}
	author, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading comment author: %w", err)
	}

	comment := &model.Comment{
		SnippetID: snippet.ID,
		UserID:    userID,
		Username:  author.Username,
		Text:      text,
	}
	if err := s.social.AddComment(ctx, comment); err != nil {
		s.logger.Error("failed to add comment",
			slog.String("slug", snippet.Slug),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("adding comment: %w", err)
	}

	observability.CommentsAdded.Inc()
	return comment, nil
}
