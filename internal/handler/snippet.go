package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/auth"
	"github.com/sakif/social-playground/internal/service"
)

// maxBodyBytes caps JSON request bodies. Three code fields at their limit
// plus metadata fit comfortably.
const maxBodyBytes = 1 << 20

// SnippetHandler serves the JSON API behind the editor and the detail page:
// save, fork, like, comment, delete and pin.
//
// Every route is behind auth.RequireAuth, so the user ID is always in the
// request context by the time a method here runs.
type SnippetHandler struct {
	snippets *service.SnippetService
	social   *service.SocialService
	logger   *slog.Logger
}

// NewSnippetHandler creates a SnippetHandler.
func NewSnippetHandler(snippets *service.SnippetService, social *service.SocialService, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, social: social, logger: logger}
}

// tagList accepts tags either as a JSON array or as the raw comma-separated
// text of the editor's tag field.
type tagList []string

func (t *tagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.New("tags must be a string or an array of strings")
	}
	*t = service.SplitTags(raw)
	return nil
}

// saveRequest is the editor's save payload.
type saveRequest struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	HTMLCode    string  `json:"html_code"`
	CSSCode     string  `json:"css_code"`
	JSCode      string  `json:"js_code"`
	Environment string  `json:"environment"`
	Tags        tagList `json:"tags"`
	IsPublic    *bool   `json:"is_public"`
}

// HandleSave creates or updates a snippet.
//
// HTTP: POST /api/save/
// RESPONSE: {"success": true, "slug": "hello-world", "id": "..."}
//
// The editor shows whatever "error" says, so failures the service does not
// classify still come back as 400 with a readable message.
func (h *SnippetHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req saveRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("invalid save payload", slog.String("error", err.Error()))
		writeBadRequest(w, "invalid JSON body")
		return
	}

	snippet, err := h.snippets.Save(r.Context(), userID, service.SaveInput{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		HTMLCode:    req.HTMLCode,
		CSSCode:     req.CSSCode,
		JSCode:      req.JSCode,
		Environment: req.Environment,
		Tags:        req.Tags,
		IsPublic:    req.IsPublic,
	})
	if err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			h.logger.Error("save failed", slog.String("userID", userID), slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to save snippet", Code: "save_failed"})
			return
		}
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"slug":    snippet.Slug,
		"id":      snippet.ID,
	})
}

// HandleFork copies a snippet into the caller's account.
//
// HTTP: POST /api/fork/{slug}/
// RESPONSE: {"success": true, "slug": "hello-world-fork"}
func (h *SnippetHandler) HandleFork(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	fork, err := h.snippets.Fork(r.Context(), userID, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "slug": fork.Slug})
}

// HandleLike toggles the caller's like.
//
// HTTP: POST /api/like/{slug}/
// RESPONSE: {"success": true, "liked": true, "count": 12}
func (h *SnippetHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	res, err := h.social.ToggleLike(r.Context(), userID, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "liked": res.Liked, "count": res.Count})
}

type commentRequest struct {
	Text string `json:"text"`
}

type commentResponse struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	CreatedAt string `json:"created_at"`
}

// HandleComment posts a comment.
//
// HTTP: POST /api/comment/{slug}/
// REQUEST BODY: {"text": "nice!"}
// RESPONSE: {"success": true, "comment": {"username": "...", "text": "...", "created_at": "RFC3339"}}
func (h *SnippetHandler) HandleComment(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req commentRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	comment, err := h.social.AddComment(r.Context(), userID, chi.URLParam(r, "slug"), req.Text)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"comment": commentResponse{
			Username:  comment.Username,
			Text:      comment.Text,
			CreatedAt: comment.CreatedAt.UTC().Format(time.RFC3339),
		},
	})
}

// HandleDelete removes one of the caller's snippets.
//
// HTTP: POST /api/delete/{slug}/
// RESPONSE: {"success": true}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.snippets.Delete(r.Context(), userID, chi.URLParam(r, "slug")); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// HandlePin toggles whether a snippet is pinned on the caller's profile.
//
// HTTP: POST /api/pin/{slug}/
// RESPONSE: {"success": true, "pinned": true}
func (h *SnippetHandler) HandlePin(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	pinned, err := h.snippets.TogglePin(r.Context(), userID, chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "pinned": pinned})
}
