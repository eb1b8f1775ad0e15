// Package gateway defines domain types and interfaces for the ryuka media
// resolution gateway. This package has no project imports -- it is the dependency root.
package gateway

import (
	"context"
	"time"
)

// --- Content kinds ---

// Kind identifies a family of content targets that share a provider list and
// a cache namespace.
type Kind string

const (
	KindYouTube   Kind = "youtube"
	KindTikTok    Kind = "tiktok"
	KindInstagram Kind = "instagram"
	KindFacebook  Kind = "facebook"
)

// Namespace returns the short cache key prefix for the kind.
func (k Kind) Namespace() string {
	switch k {
	case KindYouTube:
		return "yt"
	case KindTikTok:
		return "tt"
	case KindInstagram:
		return "ig"
	case KindFacebook:
		return "fb"
	default:
		return string(k)
	}
}

// Kinds lists every built-in kind in routing order.
var Kinds = []Kind{KindYouTube, KindTikTok, KindInstagram, KindFacebook}

// --- Provider ---

// Provider is an external, untrusted service that resolves a normalized
// target into content metadata or a stream.
type Provider interface {
	// Name returns the provider identifier used in logs and metrics.
	Name() string
	// Fetch issues a single read-only request for target and returns the
	// raw response body. An empty body is reported as an error.
	Fetch(ctx context.Context, target string) ([]byte, error)
}

// Target is a request after normalization.
type Target struct {
	Kind Kind
	URL  string // canonical form, used as the cache identity
}

// CacheKey returns the namespaced cache identity, e.g. "yt:https://youtube.com/watch?v=abc".
func (t Target) CacheKey() string {
	return t.Kind.Namespace() + ":" + t.URL
}

// Resolution is the outcome of a cache-aside lookup.
type Resolution struct {
	Target   Target
	Data     []byte        // shared with the cache; callers must not mutate
	Cached   bool          // true when served from the cache
	Age      time.Duration // time since the entry was stored; zero when fresh
	Provider string        // provider that produced Data; empty on a cache hit
	Attempts int           // provider calls made; zero on a cache hit
}

// --- Fetch log ---

// Fetch outcomes recorded in the fetch log.
const (
	OutcomeHit    = "hit"
	OutcomeFresh  = "fresh"
	OutcomeFailed = "failed"
)

// FetchRecord is a single resolve event, persisted asynchronously.
type FetchRecord struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id"`
	Kind      Kind      `json:"kind"`
	Target    string    `json:"target"`
	Provider  string    `json:"provider,omitempty"`
	Outcome   string    `json:"outcome"`
	Class     Class     `json:"error_class,omitempty"`
	Attempts  int       `json:"attempts"`
	LatencyMs int       `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// FetchFilter narrows a fetch log query. Zero fields match everything.
type FetchFilter struct {
	Kind    Kind
	Outcome string
	Limit   int
	Offset  int
}

// FetchSummary aggregates fetch log records by kind and outcome.
type FetchSummary struct {
	Kind         Kind    `json:"kind"`
	Outcome      string  `json:"outcome"`
	Count        int     `json:"count"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// --- Context keys ---

type contextKey int

const ctxKeyRequestID contextKey = 0

// RequestIDFromContext extracts the request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// ContextWithRequestID returns a context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}
