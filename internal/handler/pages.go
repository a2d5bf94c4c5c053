package handler

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/auth"
	"github.com/sakif/social-playground/internal/middleware"
	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/service"
	"github.com/sakif/social-playground/internal/web"
)

// previewCSP gives the preview document an opaque origin even when it is
// opened directly instead of through the sandboxed iframe.
const previewCSP = "sandbox allow-scripts"

// PageHandler renders the server-side HTML pages: feed, snippet detail,
// preview document, editor, profile and settings.
type PageHandler struct {
	snippets *service.SnippetService
	profiles *service.ProfileService
	views    *Views
	renderer *web.Renderer
	logger   *slog.Logger
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(
	snippets *service.SnippetService,
	profiles *service.ProfileService,
	views *Views,
	renderer *web.Renderer,
	logger *slog.Logger,
) *PageHandler {
	return &PageHandler{
		snippets: snippets,
		profiles: profiles,
		views:    views,
		renderer: renderer,
		logger:   logger,
	}
}

type feedPage struct {
	Environment string
	Tag         string
	PopularTags []string
	Snippets    []model.Snippet
}

// HandleFeed renders the public feed.
//
// HTTP: GET /?environment=3d&tag=navbar
func (h *PageHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := service.FeedFilter{Environment: q.Get("environment"), Tag: q.Get("tag")}

	snippets, err := h.snippets.Feed(r.Context(), filter)
	if err != nil {
		h.views.renderError(w, r, err)
		return
	}

	h.views.render(w, r, http.StatusOK, web.PageFeed, "Explore", "", feedPage{
		Environment: filter.Environment,
		Tag:         filter.Tag,
		PopularTags: service.PopularTags,
		Snippets:    snippets,
	})
}

// HandleDetail renders a snippet page and counts the view.
//
// HTTP: GET /snippet/{slug}/
func (h *PageHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	detail, err := h.snippets.Detail(r.Context(), service.ViewRequest{
		Slug:      chi.URLParam(r, "slug"),
		ViewerID:  viewerID,
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.views.renderError(w, r, err)
		return
	}
	h.views.render(w, r, http.StatusOK, web.PageDetail, detail.Snippet.Title, "", detail)
}

// HandlePreview serves the standalone document that runs a snippet's code.
//
// HTTP: GET /snippet/{slug}/preview/
//
// The document contains user code verbatim, so it is only ever served with
// the sandbox CSP and never sniffed as anything but HTML.
func (h *PageHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	snippet, err := h.snippets.Preview(r.Context(), viewerID, chi.URLParam(r, "slug"))
	if err != nil {
		status, _ := errorStatus(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("preview failed", slog.String("error", err.Error()))
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.RenderPreview(&buf, snippet); err != nil {
		h.logger.Error("failed to render preview",
			slog.String("slug", snippet.Slug),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", previewCSP)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// HandleEditor opens the editor, blank or on one of the caller's snippets.
//
// HTTP: GET /editor/ and GET /editor/{slug}/ (login required)
func (h *PageHandler) HandleEditor(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	snippet, err := h.snippets.Editor(r.Context(), userID, chi.URLParam(r, "slug"))
	if err != nil {
		h.views.renderError(w, r, err)
		return
	}

	title := "New snippet"
	if snippet.ID != "" {
		title = "Edit " + snippet.Title
	}
	h.views.render(w, r, http.StatusOK, web.PageEditor, title, "", snippet)
}

// HandleProfile renders a user's public profile.
//
// HTTP: GET /u/{username}/
func (h *PageHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	profile, err := h.profiles.Profile(r.Context(), chi.URLParam(r, "username"), viewerID)
	if err != nil {
		h.views.renderError(w, r, err)
		return
	}
	h.views.render(w, r, http.StatusOK, web.PageProfile, profile.User.Username, "", profile)
}

// settingsForm is the settings page data; TechTags is the comma-separated
// text shown in the input.
type settingsForm struct {
	AvatarURL     string
	Bio           string
	GitHubProfile string
	Website       string
	TechTags      string
}

// HandleSettings shows the settings form.
//
// HTTP: GET /settings/ (login required)
func (h *PageHandler) HandleSettings(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.profiles.Settings(r.Context(), userID)
	if err != nil {
		h.views.renderError(w, r, err)
		return
	}
	h.views.render(w, r, http.StatusOK, web.PageSettings, "Settings", "", settingsForm{
		AvatarURL:     user.AvatarURL,
		Bio:           user.Bio,
		GitHubProfile: user.GitHubProfile,
		Website:       user.Website,
		TechTags:      strings.Join(user.TechTags, ", "),
	})
}

// HandleSettingsSubmit saves the settings form and redirects to the profile.
// A validation error re-renders the form with what the user typed.
//
// HTTP: POST /settings/ (login required)
func (h *PageHandler) HandleSettingsSubmit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		h.views.renderError(w, r, apperror.ValidationFailed("form", "invalid form submission"))
		return
	}
	form := settingsForm{
		AvatarURL:     r.PostFormValue("avatar_url"),
		Bio:           r.PostFormValue("bio"),
		GitHubProfile: r.PostFormValue("github_profile"),
		Website:       r.PostFormValue("website"),
		TechTags:      r.PostFormValue("tech_tags"),
	}

	user, err := h.profiles.UpdateSettings(r.Context(), userID, service.SettingsInput{
		AvatarURL:     form.AvatarURL,
		Bio:           form.Bio,
		GitHubProfile: form.GitHubProfile,
		Website:       form.Website,
		TechTags:      service.SplitTags(form.TechTags),
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.Is(err, apperror.ErrValidation) && errors.As(err, &appErr) {
			h.views.render(w, r, http.StatusBadRequest, web.PageSettings, "Settings", appErr.Message, form)
			return
		}
		h.views.renderError(w, r, err)
		return
	}

	http.Redirect(w, r, "/u/"+url.PathEscape(user.Username)+"/", http.StatusSeeOther)
}

// HandleNotFound renders the 404 page for unknown routes.
func (h *PageHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.views.renderError(w, r, &apperror.AppError{Err: apperror.ErrNotFound, Message: "page not found"})
}
