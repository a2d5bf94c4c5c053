package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/social-playground/internal/auth"
	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/service"
	"github.com/sakif/social-playground/internal/web"
)

// Views renders HTML pages on behalf of the page and auth handlers. It fills
// in the signed-in user for the navigation bar so individual handlers only
// supply their page's data.
type Views struct {
	renderer    *web.Renderer
	users       *service.AuthService
	githubLogin bool
	logger      *slog.Logger
}

// NewViews creates Views. githubLogin shows the GitHub button on the login
// and signup pages.
func NewViews(renderer *web.Renderer, users *service.AuthService, githubLogin bool, logger *slog.Logger) *Views {
	return &Views{renderer: renderer, users: users, githubLogin: githubLogin, logger: logger}
}

// errorPage is the data for the error template.
type errorPage struct {
	Status  int
	Message string
}

// currentUser loads the signed-in user. A token for a user that no longer
// exists is treated as anonymous.
func (v *Views) currentUser(r *http.Request) *model.User {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		return nil
	}
	user, err := v.users.GetUserByID(r.Context(), userID)
	if err != nil {
		v.logger.Debug("session user not loaded",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return user
}

// render writes page name. errMsg, when set, is shown in the alert banner.
func (v *Views) render(w http.ResponseWriter, r *http.Request, status int, name, title, errMsg string, data any) {
	page := web.Page{
		Title:       title,
		User:        v.currentUser(r),
		GitHubLogin: v.githubLogin,
		Error:       errMsg,
		Data:        data,
	}
	err := v.renderer.Render(w, status, name, page)
	if err == nil {
		return
	}
	v.logger.Error("failed to render page",
		slog.String("page", name),
		slog.String("error", err.Error()),
	)
	// The header is already out after a write error.
	if !errors.Is(err, web.ErrWrite) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// renderError shows the error page for err with the matching status.
func (v *Views) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, _ := errorStatus(err)
	if status == http.StatusInternalServerError {
		v.logger.Error("page failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	v.render(w, r, status, web.PageError, strconv.Itoa(status), "",
		errorPage{Status: status, Message: publicMessage(err, status)})
}
