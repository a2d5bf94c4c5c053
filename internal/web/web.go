// Package web holds the embedded HTML templates and static assets and knows
// how to render them.
//
// Every page template defines "title" and "content" and is parsed together
// with base.html, so each page gets its own template set and block names
// never collide between pages.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/social-playground/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// ThreeJSURL is loaded into the preview document of 3d snippets.
const ThreeJSURL = "https://cdnjs.cloudflare.com/ajax/libs/three.js/r128/three.min.js"

// Page names accepted by Renderer.Render.
const (
	PageFeed     = "feed"
	PageDetail   = "detail"
	PageEditor   = "editor"
	PageProfile  = "profile"
	PageSettings = "settings"
	PageLogin    = "login"
	PageSignup   = "signup"
	PageError    = "error"
)

var pages = []string{PageFeed, PageDetail, PageEditor, PageProfile, PageSettings, PageLogin, PageSignup, PageError}

// Page is the data every page template receives.
type Page struct {
	Title string
	// User is the signed-in user, nil for anonymous visitors.
	User *model.User
	// GitHubLogin shows the "Sign in with GitHub" button.
	GitHubLogin bool
	Error       string
	Data        any
}

// Renderer renders full pages and the snippet preview document.
type Renderer struct {
	pages   map[string]*template.Template
	preview *template.Template
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"date": func(t time.Time) string {
		return t.UTC().Format("Jan 2, 2006")
	},
	"isoTime": func(t time.Time) string {
		return t.UTC().Format(time.RFC3339)
	},
	"is3D": func(e model.Environment) bool {
		return e == model.Environment3D
	},
	"threeJS": func() string { return ThreeJSURL },
	"plural": func(n int, one, many string) string {
		if n == 1 {
			return one
		}
		return many
	},
}

// NewRenderer parses every embedded template.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New("base.html").Funcs(funcs).ParseFS(templateFS,
			"templates/base.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("web: parsing %s: %w", name, err)
		}
		r.pages[name] = t
	}

	preview, err := template.New("preview.html").Funcs(funcs).ParseFS(templateFS, "templates/preview.html")
	if err != nil {
		return nil, fmt.Errorf("web: parsing preview: %w", err)
	}
	r.preview = preview
	return r, nil
}

// ErrWrite wraps a failure to send an already rendered page. The status line
// is on the wire by then, so the caller can only log it.
var ErrWrite = errors.New("web: writing response")

// Render writes page with the given status. The page is rendered into a
// buffer first so a template error never leaves a half-written response.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("web: unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base.html", page); err != nil {
		return fmt.Errorf("web: rendering %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}
	return nil
}

type previewData struct {
	Title   string
	Is3D    bool
	ThreeJS string
	HTML    template.HTML
	CSS     template.CSS
	JS      template.JS
}

// RenderPreview writes the standalone document that runs a snippet.
//
// The snippet's code is inserted verbatim. The document must only ever be
// served with a "sandbox allow-scripts" CSP and framed by an iframe with the
// same sandbox, which gives it an opaque origin.
func (r *Renderer) RenderPreview(w io.Writer, s *model.Snippet) error {
	return r.preview.Execute(w, previewData{
		Title:   s.Title,
		Is3D:    s.Environment == model.Environment3D,
		ThreeJS: ThreeJSURL,
		HTML:    template.HTML(s.HTMLCode),
		CSS:     template.CSS(s.CSSCode),
		JS:      template.JS(s.JSCode),
	})
}

// Static serves the embedded /static/ assets.
func Static() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err) // the embed directive guarantees the directory exists
	}
	return http.FileServer(http.FS(sub))
}
