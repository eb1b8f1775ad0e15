package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	gateway "github.com/ryuka-api/ryuka/internal"
	"github.com/ryuka-api/ryuka/internal/cache"
	"github.com/ryuka-api/ryuka/internal/telemetry"
)

// DefaultTTL applies to kinds without an explicit TTL.
const DefaultTTL = 5 * time.Minute

// ProviderSource yields the ordered provider list for a kind.
// *provider.Registry satisfies it.
type ProviderSource interface {
	Providers(kind gateway.Kind) []gateway.Provider
}

// Recorder receives one record per resolve. *worker.FetchRecorder satisfies it.
type Recorder interface {
	Record(gateway.FetchRecord)
}

// ResolveConfig tunes a ResolveService.
type ResolveConfig struct {
	// TTLs overrides DefaultTTL per kind. A value <= 0 stores without expiry.
	TTLs map[gateway.Kind]time.Duration
	// DefaultTTL applies to kinds missing from TTLs. Zero means DefaultTTL,
	// negative means no expiry.
	DefaultTTL time.Duration
	// Coalesce shares one outbound fetch between concurrent misses on the same key.
	Coalesce bool
}

// ResolveService is the cache-aside layer in front of the FallbackFetcher.
type ResolveService struct {
	cache     cache.Cache
	providers ProviderSource
	fetcher   *FallbackFetcher
	cfg       ResolveConfig

	flight   singleflight.Group
	recorder Recorder           // optional
	metrics  *telemetry.Metrics // optional
	tracer   trace.Tracer
	now      func() time.Time
}

// NewResolveService wires a cache, provider source and fetcher together.
func NewResolveService(c cache.Cache, providers ProviderSource, fetcher *FallbackFetcher, cfg ResolveConfig) *ResolveService {
	if cfg.DefaultTTL == 0 {
		cfg.DefaultTTL = DefaultTTL
	}
	return &ResolveService{
		cache:     c,
		providers: providers,
		fetcher:   fetcher,
		cfg:       cfg,
		tracer:    telemetry.Tracer(),
		now:       time.Now,
	}
}

// WithRecorder attaches a fetch log recorder.
func (s *ResolveService) WithRecorder(r Recorder) *ResolveService {
	s.recorder = r
	return s
}

// WithMetrics attaches cache hit/miss counters.
func (s *ResolveService) WithMetrics(m *telemetry.Metrics) *ResolveService {
	s.metrics = m
	return s
}

// TTL returns the cache lifetime for kind; a value <= 0 means no expiry.
func (s *ResolveService) TTL(kind gateway.Kind) time.Duration {
	if ttl, ok := s.cfg.TTLs[kind]; ok {
		return ttl
	}
	return s.cfg.DefaultTTL
}

// Resolve returns the cached payload for t when present and unexpired;
// otherwise it runs the fallback fetch, caches a success and returns it.
// Failures are never cached.
func (s *ResolveService) Resolve(ctx context.Context, t gateway.Target) (*gateway.Resolution, error) {
	ctx, span := s.tracer.Start(ctx, "resolve", trace.WithAttributes(
		attribute.String("kind", string(t.Kind)),
		attribute.String("target", t.URL),
	))
	defer span.End()

	start := s.now()
	key := t.CacheKey()

	if e, ok := s.cache.Get(ctx, key); ok {
		s.countCache(t.Kind, true)
		span.SetAttributes(attribute.Bool("cached", true))
		res := &gateway.Resolution{
			Target: t,
			Data:   e.Value,
			Cached: true,
			Age:    max(s.now().Sub(e.CreatedAt), 0),
		}
		s.record(ctx, t, gateway.OutcomeHit, FetchResult{}, nil, start)
		return res, nil
	}
	s.countCache(t.Kind, false)

	var (
		fr  FetchResult
		err error
	)
	if s.cfg.Coalesce {
		fr, err = s.fetchShared(ctx, t, key)
	} else {
		fr, err = s.fetchAndStore(ctx, t, key)
	}
	span.SetAttributes(attribute.Bool("cached", false), attribute.Int("attempts", fr.Attempts))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.record(ctx, t, gateway.OutcomeFailed, fr, err, start)
		return nil, err
	}

	res := &gateway.Resolution{
		Target:   t,
		Data:     fr.Body,
		Provider: fr.Provider,
		Attempts: fr.Attempts,
	}
	s.record(ctx, t, gateway.OutcomeFresh, fr, nil, start)
	return res, nil
}

func (s *ResolveService) fetchAndStore(ctx context.Context, t gateway.Target, key string) (FetchResult, error) {
	fr, err := s.fetcher.Fetch(ctx, t.Kind, t.URL, s.providers.Providers(t.Kind))
	if err != nil {
		return fr, err
	}
	s.cache.Set(ctx, key, fr.Body, s.TTL(t.Kind))
	return fr, nil
}

// fetchShared runs fetchAndStore once per key among concurrent callers. The
// shared call is detached from the first caller's cancellation so a client
// hanging up does not fail everyone waiting on the same key.
func (s *ResolveService) fetchShared(ctx context.Context, t gateway.Target, key string) (FetchResult, error) {
	ch := s.flight.DoChan(key, func() (any, error) {
		return s.fetchAndStore(context.WithoutCancel(ctx), t, key)
	})

	select {
	case r := <-ch:
		fr, _ := r.Val.(FetchResult)
		if r.Shared && s.metrics != nil {
			s.metrics.CoalescedFetches.WithLabelValues(string(t.Kind)).Inc()
		}
		return fr, r.Err
	case <-ctx.Done():
		return FetchResult{}, fmt.Errorf("wait for shared fetch of %s: %w", key, ctx.Err())
	}
}

func (s *ResolveService) countCache(kind gateway.Kind, hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.CacheHits.WithLabelValues(string(kind)).Inc()
	} else {
		s.metrics.CacheMisses.WithLabelValues(string(kind)).Inc()
	}
}

// record logs the outcome and hands a fetch log entry to the recorder.
func (s *ResolveService) record(ctx context.Context, t gateway.Target, outcome string, fr FetchResult, err error, start time.Time) {
	now := s.now()
	rec := gateway.FetchRecord{
		RequestID: gateway.RequestIDFromContext(ctx),
		Kind:      t.Kind,
		Target:    t.URL,
		Provider:  fr.Provider,
		Outcome:   outcome,
		Attempts:  fr.Attempts,
		LatencyMs: int(now.Sub(start).Milliseconds()),
		CreatedAt: now,
	}

	switch outcome {
	case gateway.OutcomeFailed:
		if !errors.Is(err, gateway.ErrNoProviders) {
			rec.Class = ClassifyError(err)
		}
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			level = slog.LevelInfo
		}
		slog.LogAttrs(ctx, level, "resolve failed",
			slog.String("request_id", rec.RequestID),
			slog.String("kind", string(t.Kind)),
			slog.String("target", t.URL),
			slog.Int("attempts", rec.Attempts),
			slog.String("error", err.Error()),
		)
	case gateway.OutcomeFresh:
		slog.LogAttrs(ctx, slog.LevelInfo, "resolved",
			slog.String("request_id", rec.RequestID),
			slog.String("kind", string(t.Kind)),
			slog.String("provider", rec.Provider),
			slog.Int("attempts", rec.Attempts),
		)
	}

	if s.recorder != nil {
		s.recorder.Record(rec)
	}
}
