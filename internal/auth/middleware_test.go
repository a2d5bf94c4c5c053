package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoUser writes the user ID found in the context, or "anonymous".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	if id, ok := UserIDFromContext(r.Context()); ok {
		w.Write([]byte(id))
		return
	}
	w.Write([]byte("anonymous"))
})

func requestWithToken(t *testing.T, ts *TokenService, target, userID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if userID != "" {
		token, err := ts.Generate(userID)
		require.NoError(t, err)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: token})
	}
	return req
}

func TestRequireAuth(t *testing.T) {
	ts := testTokens(t)
	h := RequireAuth(ts)(echoUser)

	t.Run("valid session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithToken(t, ts, "/api/save/", "user-1"))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "user-1", rec.Body.String())
	})

	t.Run("missing cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithToken(t, ts, "/api/save/", ""))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), `"success":false`)
	})

	t.Run("garbage cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/save/", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: "garbage"})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireLogin_RedirectsWithNext(t *testing.T) {
	ts := testTokens(t)
	h := RequireLogin(ts)(echoUser)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(t, ts, "/editor/neon-button/", ""))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login/?next=%2Feditor%2Fneon-button%2F", rec.Header().Get("Location"))
}

func TestRequireLogin_PassesAuthenticated(t *testing.T) {
	ts := testTokens(t)
	h := RequireLogin(ts)(echoUser)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(t, ts, "/settings/", "user-7"))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", rec.Body.String())
}

func TestOptionalAuth(t *testing.T) {
	ts := testTokens(t)
	h := OptionalAuth(ts)(echoUser)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(t, ts, "/", "user-3"))
	assert.Equal(t, "user-3", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithToken(t, ts, "/", ""))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestSessionCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetSessionCookie(rec, "jwt-value", DefaultTokenTTL, true)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Secure)
	assert.Equal(t, int(DefaultTokenTTL.Seconds()), cookies[0].MaxAge)

	rec = httptest.NewRecorder()
	ClearSessionCookie(rec, false)
	cookies = rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}
