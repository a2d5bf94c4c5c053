package demosite

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSite(t *testing.T) http.Handler {
	t.Helper()
	site, err := New(DefaultHomeData(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return site.Routes()
}

func TestHome(t *testing.T) {
	rec := httptest.NewRecorder()
	newSite(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<title>Demo Home Page</title>")
	assert.Contains(t, body, "<li>Go</li>")
	assert.Contains(t, body, "<td>Chicago</td>")
	assert.Contains(t, body, "10, 20, 30, 40, 50, 60, 70, 80, 90, 100")
}

func TestTextPages(t *testing.T) {
	h := newSite(t)
	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/about/", http.StatusOK, "About Us"},
		{"/blogs/", http.StatusOK, "Blogs"},
		{"/courses/", http.StatusOK, "Courses"},
		{"/courses/42/", http.StatusOK, "Details of Course ID: 42"},
		{"/courses/abc/", http.StatusNotFound, ""},
		{"/missing/", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}
