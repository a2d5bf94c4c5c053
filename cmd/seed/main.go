// Command seed fills the configured database with demo data.
//
//	go run ./cmd/seed -users 10 -snippets 5
//
// Every seeded account uses the password "password123".
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/social-playground/internal/auth"
	"github.com/sakif/social-playground/internal/cache"
	"github.com/sakif/social-playground/internal/config"
	sqliteRepo "github.com/sakif/social-playground/internal/repository/sqlite"
	"github.com/sakif/social-playground/internal/seed"
	"github.com/sakif/social-playground/internal/service"
)

func main() {
	users := flag.Int("users", 8, "Number of users to create")
	snippets := flag.Int("snippets", 4, "Snippets per user")
	likes := flag.Int("likes", 3, "Likes per public snippet")
	comments := flag.Int("comments", 3, "Comments per user")
	forks := flag.Int("forks", 1, "Forks per user")
	seedValue := flag.Int64("seed", 0, "Random seed (0 = random)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		logger.Error("failed to create database directory", slog.String("error", err.Error()))
		os.Exit(1)
	}
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		logger.Error("failed to create token service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	seeder := seed.New(
		service.NewAuthService(db, tokens, auth.NewPasswordService(), logger),
		service.NewSnippetService(db, db, db, cache.Nop{}, logger),
		service.NewSocialService(db, db, db, logger),
		logger,
	)
	if _, err := seeder.Run(context.Background(), seed.Options{
		Users:           *users,
		SnippetsPerUser: *snippets,
		LikesPerSnippet: *likes,
		CommentsPerUser: *comments,
		ForksPerUser:    *forks,
		Seed:            *seedValue,
	}); err != nil {
		logger.Error("seeding failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
