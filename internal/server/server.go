// Package server is the composition root: it opens the database and the
// optional Redis connection, builds the services and handlers, mounts the
// routes and runs the HTTP server with graceful shutdown.
//
// DEPENDENCY FLOW:
//
//	config.Config → sqlite.DB (+ redis.Client)
//	              → services (take repository interfaces)
//	              → handlers (take services)
//	              → chi routes
//
// Nothing below this package constructs its own dependencies.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/social-playground/internal/auth"
	"github.com/sakif/social-playground/internal/cache"
	"github.com/sakif/social-playground/internal/config"
	"github.com/sakif/social-playground/internal/handler"
	"github.com/sakif/social-playground/internal/middleware"
	sqliteRepo "github.com/sakif/social-playground/internal/repository/sqlite"
	"github.com/sakif/social-playground/internal/service"
	"github.com/sakif/social-playground/internal/web"
)

// Rate limits on the credential endpoints, per client IP.
const (
	loginLimit   = 10
	loginWindow  = time.Minute
	signupLimit  = 5
	signupWindow = 10 * time.Minute

	shutdownTimeout = 30 * time.Second
)

// Server owns the HTTP router and the connections it must close on shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
	redis  *redis.Client // nil when REDIS_URL is unset
}

// New opens the database (and Redis when configured) and wires every route.
// A Redis connection failure is logged and the server runs without a cache.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "." && cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewClient(context.Background(), cfg.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, running without feed cache and rate limits",
				slog.String("error", err.Error()),
			)
		} else {
			s.redis = client
		}
	}

	if err := s.setupRoutes(); err != nil {
		s.close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// Handler returns the root handler, for tests and for embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET  /                         feed
//	GET  /snippet/{slug}/          detail (counts a view)
//	GET  /snippet/{slug}/preview/  sandboxed preview document
//	GET  /u/{username}/            profile
//	GET  /editor/, /editor/{slug}/ editor            (login)
//	GET  /settings/, POST          settings          (login)
//	GET  /signup/, /login/, POST   credentials       (rate limited)
//	POST /logout/
//	GET  /auth/github/*            OAuth             (when configured)
//	POST /api/{save,fork,like,comment,delete,pin}/   (JSON, auth)
//	GET  /api/me                                     (JSON, auth)
//	GET  /healthz, /metrics, /static/*
//
// MIDDLEWARE ORDER MATTERS: RequestID and RealIP run first so the logger
// sees the request id and the real client address (proxy headers are only
// honoured from TRUSTED_PROXIES, which also keeps the rate limiter honest); Recoverer sits inside
// the logger so a panic is still logged as a 500.
func (s *Server) setupRoutes() error {
	proxies, err := s.config.TrustedProxyPrefixes()
	if err != nil {
		return err
	}

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(middleware.RealIP(proxies))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Metrics)

	// === Dependencies ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.TokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	renderer, err := web.NewRenderer()
	if err != nil {
		return fmt.Errorf("parsing templates: %w", err)
	}

	var feed service.FeedCache = cache.Nop{}
	if s.redis != nil {
		feed = cache.NewFeed(s.redis, s.config.FeedCacheTTL, s.logger)
	}

	// s.db implements every repository interface.
	authService := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.logger)
	snippetService := service.NewSnippetService(s.db, s.db, s.db, feed, s.logger)
	socialService := service.NewSocialService(s.db, s.db, s.db, s.logger)
	profileService := service.NewProfileService(s.db, s.db, s.db, s.logger)

	var github *auth.GitHubProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	views := handler.NewViews(renderer, authService, github != nil, s.logger)
	pages := handler.NewPageHandler(snippetService, profileService, views, renderer, s.logger)
	api := handler.NewSnippetHandler(snippetService, socialService, s.logger)
	authHandler := handler.NewAuthHandler(authService, github, views, s.config.IsProduction(), s.logger)
	health := handler.NewHealthHandler(s.db, s.logger)
	limiter := middleware.NewRateLimiter(s.redis, s.logger)

	// === Infrastructure ===
	s.router.Handle("/static/*", http.StripPrefix("/static/", web.Static()))
	s.router.Get("/healthz", health.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	// === Pages (anonymous or signed in) ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.OptionalAuth(tokens))

		r.Get("/", pages.HandleFeed)
		r.Get("/snippet/{slug}/", pages.HandleDetail)
		r.Get("/snippet/{slug}/preview/", pages.HandlePreview)
		r.Get("/u/{username}/", pages.HandleProfile)

		r.Get("/signup/", authHandler.HandleSignupPage)
		r.With(limiter.Limit("signup", signupLimit, signupWindow)).Post("/signup/", authHandler.HandleSignup)
		r.Get("/login/", authHandler.HandleLoginPage)
		r.With(limiter.Limit("login", loginLimit, loginWindow)).Post("/login/", authHandler.HandleLogin)
		r.Post("/logout/", authHandler.HandleLogout)

		if github != nil {
			r.Get("/auth/github/login", authHandler.HandleGitHubLogin)
			r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		}

		r.NotFound(pages.HandleNotFound)
	})

	// === Pages (login required) ===
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireLogin(tokens))

		r.Get("/editor/", pages.HandleEditor)
		r.Get("/editor/{slug}/", pages.HandleEditor)
		r.Get("/settings/", pages.HandleSettings)
		r.Post("/settings/", pages.HandleSettingsSubmit)
	})

	// === JSON API ===
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/me", authHandler.HandleMe)
		r.Post("/save/", api.HandleSave)
		r.Post("/fork/{slug}/", api.HandleFork)
		r.Post("/like/{slug}/", api.HandleLike)
		r.Post("/comment/{slug}/", api.HandleComment)
		r.Post("/delete/{slug}/", api.HandleDelete)
		r.Post("/pin/{slug}/", api.HandlePin)
	})

	return nil
}

// Start runs the server until SIGINT or SIGTERM, then drains in-flight
// requests for up to 30 seconds and closes the database and Redis.
func (s *Server) Start() error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
			slog.Bool("redis", s.redis != nil),
			slog.Bool("githubLogin", s.config.GitHubEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}

func (s *Server) close() {
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("closing redis", slog.String("error", err.Error()))
		}
	}
	if err := s.db.Close(); err != nil {
		s.logger.Warn("closing database", slog.String("error", err.Error()))
	}
}
