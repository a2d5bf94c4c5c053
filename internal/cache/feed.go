package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/social-playground/internal/model"
	"github.com/sakif/social-playground/internal/observability"
)

// DefaultFeedTTL bounds how stale a cached feed page can be. View and like
// counters on feed cards change without bumping the version, so the TTL is
// what eventually refreshes them.
const DefaultFeedTTL = 30 * time.Second

const feedVersionKey = "feed:version"

// Feed caches the public feed per (environment, tag) filter.
//
// Invalidation is by generation: every key embeds the current value of
// feed:version, and Invalidate INCRs it. Old pages are never deleted; they
// simply stop being read and expire on their own.
//
// Every Redis failure is logged and treated as a miss, so the feed keeps
// working from SQLite when Redis is down.
type Feed struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewFeed returns a Feed backed by client. A non-positive ttl means DefaultFeedTTL.
func NewFeed(client *redis.Client, ttl time.Duration, logger *slog.Logger) *Feed {
	if ttl <= 0 {
		ttl = DefaultFeedTTL
	}
	return &Feed{client: client, ttl: ttl, logger: logger}
}

func (f *Feed) key(ctx context.Context, environment, tag string) (string, error) {
	version, err := f.client.Get(ctx, feedVersionKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("feed:v%d:env=%s:tag=%s", version, environment, tag), nil
}

// Get returns the cached feed page for the filter, if any.
func (f *Feed) Get(ctx context.Context, environment, tag string) ([]model.Snippet, bool) {
	key, err := f.key(ctx, environment, tag)
	if err != nil {
		f.fail("reading feed version", err)
		return nil, false
	}

	raw, err := f.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		observability.FeedCacheResults.WithLabelValues("miss").Inc()
		return nil, false
	}
	if err != nil {
		f.fail("reading feed page", err)
		return nil, false
	}

	var snippets []model.Snippet
	if err := json.Unmarshal(raw, &snippets); err != nil {
		f.fail("decoding feed page", err)
		return nil, false
	}
	observability.FeedCacheResults.WithLabelValues("hit").Inc()
	return snippets, true
}

// Set stores a feed page for the filter.
func (f *Feed) Set(ctx context.Context, environment, tag string, snippets []model.Snippet) {
	key, err := f.key(ctx, environment, tag)
	if err != nil {
		f.fail("reading feed version", err)
		return
	}
	raw, err := json.Marshal(snippets)
	if err != nil {
		f.fail("encoding feed page", err)
		return
	}
	if err := f.client.Set(ctx, key, raw, f.ttl).Err(); err != nil {
		f.fail("writing feed page", err)
	}
}

// Invalidate makes every cached page unreachable. Called after a snippet is
// created, forked, deleted or has its code or visibility changed.
func (f *Feed) Invalidate(ctx context.Context) {
	if err := f.client.Incr(ctx, feedVersionKey).Err(); err != nil {
		f.fail("bumping feed version", err)
	}
}

func (f *Feed) fail(op string, err error) {
	observability.FeedCacheResults.WithLabelValues("error").Inc()
	f.logger.Warn("feed cache unavailable",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
}

// Nop is the feed cache used when Redis is not configured: every lookup misses.
type Nop struct{}

func (Nop) Get(context.Context, string, string) ([]model.Snippet, bool) { return nil, false }
func (Nop) Set(context.Context, string, string, []model.Snippet)        {}
func (Nop) Invalidate(context.Context)                                  {}
