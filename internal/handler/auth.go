package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/social-playground/internal/apperror"
	"github.com/sakif/social-playground/internal/auth"
	"github.com/sakif/social-playground/internal/service"
	"github.com/sakif/social-playground/internal/web"
)

const (
	stateCookie = "oauth_state"
	stateTTL    = 10 * time.Minute
)

// AuthHandler manages signup, password login, the GitHub OAuth flow and the
// session cookie.
//
// HANDLER RESPONSIBILITIES:
//   - HandleSignupPage / HandleSignup → password account creation
//   - HandleLoginPage / HandleLogin   → password login
//   - HandleGitHubLogin               → redirect to GitHub's authorization page
//   - HandleGitHubCallback            → exchange the code, upsert the user, set the cookie
//   - HandleLogout                    → clear the cookie
//   - HandleMe                        → the signed-in user as JSON
//
// Signup and login accept either a browser form post (answered with a
// redirect or the re-rendered form) or JSON (answered with JSON).
type AuthHandler struct {
	auth   *service.AuthService
	github *auth.GitHubProvider // nil when GitHub login is not configured
	views  *Views
	secure bool // Secure flag on cookies; true behind HTTPS
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil.
func NewAuthHandler(
	authService *service.AuthService,
	github *auth.GitHubProvider,
	views *Views,
	secure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:   authService,
		github: github,
		views:  views,
		secure: secure,
		logger: logger,
	}
}

// credentials is the signup/login payload, from JSON or a form.
type credentials struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Next     string `json:"next"`
}

// authForm is the login/signup page data. The password is never echoed back.
type authForm struct {
	Username string
	Email    string
	Next     string
}

func isJSON(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

func readCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if isJSON(r) {
		err := json.NewDecoder(r.Body).Decode(&c)
		return c, err
	}
	if err := r.ParseForm(); err != nil {
		return c, err
	}
	c.Username = r.PostFormValue("username")
	c.Email = r.PostFormValue("email")
	c.Password = r.PostFormValue("password")
	c.Next = r.PostFormValue("next")
	return c, nil
}

// safeNext only allows local absolute paths as a post-login redirect, so
// ?next= cannot send the user to another site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") ||
		strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}

// HandleSignupPage shows the signup form.
//
// HTTP: GET /signup/
func (h *AuthHandler) HandleSignupPage(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, r, http.StatusOK, web.PageSignup, "Sign up", "",
		authForm{Next: safeNext(r.URL.Query().Get("next"))})
}

// HandleSignup creates a password account and signs it in.
//
// HTTP: POST /signup/
// JSON BODY: {"username": "...", "email": "...", "password": "..."}
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(w, r)
	if err != nil {
		h.fail(w, r, web.PageSignup, authForm{}, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	result, err := h.auth.Signup(r.Context(), creds.Username, creds.Email, creds.Password)
	if err != nil {
		h.fail(w, r, web.PageSignup, authForm{Username: creds.Username, Email: creds.Email, Next: creds.Next}, err)
		return
	}
	h.succeed(w, r, result, creds.Next)
}

// HandleLoginPage shows the login form.
//
// HTTP: GET /login/?next=/editor/
func (h *AuthHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	h.views.render(w, r, http.StatusOK, web.PageLogin, "Log in", r.URL.Query().Get("error"),
		authForm{Next: safeNext(r.URL.Query().Get("next"))})
}

// HandleLogin checks a username and password and sets the session cookie.
//
// HTTP: POST /login/
// JSON BODY: {"username": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	creds, err := readCredentials(w, r)
	if err != nil {
		h.fail(w, r, web.PageLogin, authForm{}, apperror.ValidationFailed("", "invalid request body"))
		return
	}

	result, err := h.auth.Login(r.Context(), creds.Username, creds.Password)
	if err != nil {
		h.fail(w, r, web.PageLogin, authForm{Username: creds.Username, Next: creds.Next}, err)
		return
	}
	h.succeed(w, r, result, creds.Next)
}

func (h *AuthHandler) succeed(w http.ResponseWriter, r *http.Request, result *service.AuthResult, next string) {
	auth.SetSessionCookie(w, result.Token, h.auth.TokenTTL(), h.secure)
	if isJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": result.User})
		return
	}
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

// fail answers a failed signup or login. Browser forms get the page back
// with the message; only validation and credential errors are shown inline.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, page string, form authForm, err error) {
	if isJSON(r) {
		writeError(w, r, h.logger, err)
		return
	}
	var appErr *apperror.AppError
	status, _ := errorStatus(err)
	if status == http.StatusInternalServerError || !errors.As(err, &appErr) {
		h.views.renderError(w, r, err)
		return
	}
	title := "Log in"
	if page == web.PageSignup {
		title = "Sign up"
	}
	form.Next = safeNext(form.Next)
	h.views.render(w, r, status, page, title, appErr.Message, form)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /logout/
//
// Logout changes state, so it is POST only; a GET could be triggered by an
// <img> on another site or by a browser prefetch. The JWT stays valid until
// it expires, but without the cookie the browser never sends it again.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secure)
	if isJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleGitHubLogin starts the OAuth dance: GET /auth/github/login.
//
// The state sent to GitHub is also kept in a short-lived cookie; the callback
// refuses any state this browser was not given.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// consumeState checks the callback's state against the cookie and deletes
// the cookie, so a state works once.
func (h *AuthHandler) consumeState(w http.ResponseWriter, r *http.Request) bool {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" {
		h.logger.Warn("github callback without state cookie")
		return false
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

	if r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("github callback state mismatch")
		return false
	}
	return true
}

// HandleGitHubCallback finishes the OAuth login:
// GET /auth/github/callback?code=...&state=...
//
// On success the user (created on first login) gets a session cookie and
// lands on their profile.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	if !h.consumeState(w, r) {
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	if denied := query.Get("error"); denied != "" {
		h.logger.Info("github authorization denied", slog.String("reason", denied))
		http.Redirect(w, r, "/login/?error="+url.QueryEscape("GitHub login was cancelled"), http.StatusSeeOther)
		return
	}
	code := query.Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("github code exchange failed", slog.String("error", err.Error()))
		http.Error(w, "GitHub sign-in failed", http.StatusBadGateway)
		return
	}

	result, err := h.auth.LoginOrRegisterGitHub(r.Context(), ghUser)
	if err != nil {
		h.logger.Error("github sign-in failed",
			slog.Int64("githubID", ghUser.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, "GitHub sign-in failed", http.StatusInternalServerError)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.auth.TokenTTL(), h.secure)
	http.Redirect(w, r, "/u/"+url.PathEscape(result.User.Username)+"/", http.StatusSeeOther)
}

// HandleMe returns the signed-in user.
//
// HTTP: GET /api/me (RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}
