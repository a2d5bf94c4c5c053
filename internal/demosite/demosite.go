// Package demosite is a small standalone site with a templated home page and
// a handful of plain-text pages. It shares the playground's middleware but
// nothing else.
package demosite

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/social-playground/internal/middleware"
)

//go:embed templates/index.html
var templateFS embed.FS

// Student is one row of the home page table.
type Student struct {
	ID   int
	Name string
	Age  int
	City string
}

// HomeData is everything index.html renders.
type HomeData struct {
	Title          string
	WelcomeMessage string
	Languages      []string
	Students       []Student
	Numbers        []int
}

// DefaultHomeData is the content of the home page.
func DefaultHomeData() HomeData {
	numbers := make([]int, 0, 10)
	for i := 1; i <= 10; i++ {
		numbers = append(numbers, i*10)
	}
	return HomeData{
		Title:          "Demo Home Page",
		WelcomeMessage: "Welcome to the demo site",
		Languages:      []string{"Go", "HTML", "CSS", "JavaScript", "SQL"},
		Students: []Student{
			{ID: 1, Name: "Alice", Age: 22, City: "Los Angeles"},
			{ID: 2, Name: "Bob", Age: 24, City: "Chicago"},
			{ID: 3, Name: "Nitin", Age: 25, City: "New York"},
		},
		Numbers: numbers,
	}
}

// Site holds the parsed home template and its data.
type Site struct {
	home   *template.Template
	data   HomeData
	logger *slog.Logger
}

// New parses the embedded template.
func New(data HomeData, logger *slog.Logger) (*Site, error) {
	home, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("demosite: parsing template: %w", err)
	}
	return &Site{home: home, data: data, logger: logger}, nil
}

// Routes returns the demo site's router.
//
//	GET /                → templated home page
//	GET /about/          → text
//	GET /blogs/          → text
//	GET /courses/        → text
//	GET /courses/{id}/   → text, id must be an integer
func (s *Site) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.handleHome)
	r.Get("/about/", text("Welcome to the About Us page"))
	r.Get("/blogs/", text("Welcome to the Blogs page"))
	r.Get("/courses/", text("Welcome to the Courses page"))
	r.Get("/courses/{id}/", s.handleCourse)
	return r
}

func (s *Site) handleHome(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.home.Execute(&buf, s.data); err != nil {
		s.logger.Error("failed to render home page", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Site) handleCourse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 0 {
		http.NotFound(w, r)
		return
	}
	writeText(w, fmt.Sprintf("Details of Course ID: %d", id))
}

func text(msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeText(w, msg)
	}
}

func writeText(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(msg))
}
