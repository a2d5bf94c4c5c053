// Package observability declares the Prometheus collectors the playground
// exports on /metrics. Collectors register with the default registry at
// package init through promauto.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "playground"

var (
	// HTTPRequestsTotal counts handled requests by method, chi route pattern and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, route and status code",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration records request latency by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// SnippetEvents counts domain events: created, updated, forked, deleted, viewed.
	SnippetEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snippet_events_total",
		Help:      "Snippet lifecycle events by type",
	}, []string{"event"})

	// LikeToggles counts like toggles by resulting state ("liked" / "unliked").
	LikeToggles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "like_toggles_total",
		Help:      "Like toggles by resulting state",
	}, []string{"state"})

	// CommentsAdded counts new comments.
	CommentsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "comments_added_total",
		Help:      "Comments added to snippets",
	})

	// FeedCacheResults counts feed cache lookups by result: hit, miss, error.
	FeedCacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_cache_results_total",
		Help:      "Feed cache lookups by result",
	}, []string{"result"})

	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "redis_errors_total",
		Help:      "Redis command errors by command",
	}, []string{"command"})

	// RateLimited counts requests rejected by the rate limiter, by resource.
	RateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Requests rejected with 429 by resource",
	}, []string{"resource"})
)

// Snippet event labels.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventForked  = "forked"
	EventDeleted = "deleted"
	EventViewed  = "viewed"
)
