package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	gateway "github.com/ryuka-api/ryuka/internal"
	"github.com/ryuka-api/ryuka/internal/provider"
	"github.com/ryuka-api/ryuka/internal/telemetry"
)

// FetchResult is a successful provider response.
type FetchResult struct {
	Body     []byte
	Provider string // provider that answered
	Attempts int    // providers called, including the successful one
}

// FallbackFetcher tries an ordered provider list and returns the first
// success. It keeps no state between calls: every fetch starts again from
// the head of the list.
type FallbackFetcher struct {
	metrics *telemetry.Metrics // optional
	tracer  trace.Tracer
}

// NewFallbackFetcher returns a FallbackFetcher. metrics may be nil.
func NewFallbackFetcher(metrics *telemetry.Metrics) *FallbackFetcher {
	return &FallbackFetcher{metrics: metrics, tracer: telemetry.Tracer()}
}

// Fetch calls each provider in order until one returns a usable body.
// When every provider fails, the returned error wraps ErrAllProvidersFailed
// and the last attempt's *gateway.ProviderFailure. An empty list yields
// ErrNoProviders. Attempts is populated on failure too.
func (f *FallbackFetcher) Fetch(ctx context.Context, kind gateway.Kind, target string, providers []gateway.Provider) (FetchResult, error) {
	if len(providers) == 0 {
		return FetchResult{}, fmt.Errorf("%s: %w", kind, gateway.ErrNoProviders)
	}

	var last error
	attempts := 0
	for _, p := range providers {
		attempts++
		body, err := f.attempt(ctx, kind, target, p)
		if err == nil {
			return FetchResult{Body: body, Provider: p.Name(), Attempts: attempts}, nil
		}
		last = err

		// The caller is gone; the remaining providers would fail the same way.
		if ctx.Err() != nil {
			break
		}
	}

	if f.metrics != nil {
		f.metrics.FallbackExhausted.WithLabelValues(string(kind)).Inc()
	}
	return FetchResult{Attempts: attempts}, fmt.Errorf("%w: %w", gateway.ErrAllProvidersFailed, last)
}

// attempt issues one provider call and classifies its failure.
func (f *FallbackFetcher) attempt(ctx context.Context, kind gateway.Kind, target string, p gateway.Provider) ([]byte, error) {
	name := p.Name()
	ctx, span := f.tracer.Start(ctx, "provider.fetch", trace.WithAttributes(
		attribute.String("provider", name),
		attribute.String("kind", string(kind)),
	))
	defer span.End()

	start := time.Now()
	body, err := p.Fetch(ctx, target)
	if err == nil && provider.EmptyPayload(body) {
		err = fmt.Errorf("%s: empty response body: %w", name, gateway.ErrProviderError)
	}
	elapsed := time.Since(start)

	if f.metrics != nil {
		f.metrics.UpstreamDuration.WithLabelValues(name, string(kind)).Observe(elapsed.Seconds())
	}

	if err == nil {
		slog.LogAttrs(ctx, slog.LevelDebug, "provider attempt succeeded",
			slog.String("request_id", gateway.RequestIDFromContext(ctx)),
			slog.String("provider", name),
			slog.String("kind", string(kind)),
			slog.Int("bytes", len(body)),
			slog.Duration("duration", elapsed),
		)
		return body, nil
	}

	class := ClassifyError(err)
	failure := &gateway.ProviderFailure{Provider: name, Class: class, Err: err}

	span.RecordError(err)
	span.SetStatus(codes.Error, string(class))
	if f.metrics != nil {
		f.metrics.UpstreamErrors.WithLabelValues(name, string(class)).Inc()
	}
	slog.LogAttrs(ctx, slog.LevelWarn, "provider attempt failed",
		slog.String("request_id", gateway.RequestIDFromContext(ctx)),
		slog.String("provider", name),
		slog.String("kind", string(kind)),
		slog.String("class", string(class)),
		slog.Duration("duration", elapsed),
		slog.String("error", err.Error()),
	)
	return nil, failure
}
