package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	gateway "github.com/ryuka-api/ryuka/internal"
	"github.com/ryuka-api/ryuka/internal/provider"
	"github.com/ryuka-api/ryuka/internal/telemetry"
	"github.com/ryuka-api/ryuka/internal/testutil"
)

func TestFallbackFetcher_FirstSuccessWins(t *testing.T) {
	t.Parallel()

	a := testutil.Failing("a", errors.New("a down"))
	b := testutil.Returning("b", `{"from":"b"}`)
	c := testutil.Returning("c", `{"from":"c"}`)

	f := NewFallbackFetcher(nil)
	res, err := f.Fetch(context.Background(), gateway.KindYouTube, "https://youtube.com/watch?v=x", []gateway.Provider{a, b, c})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(res.Body) != `{"from":"b"}` {
		t.Errorf("body = %s, want b's response", res.Body)
	}
	if res.Provider != "b" || res.Attempts != 2 {
		t.Errorf("provider/attempts = %s/%d, want b/2", res.Provider, res.Attempts)
	}
	if c.Calls() != 0 {
		t.Errorf("c called %d times, want 0", c.Calls())
	}
}

func TestFallbackFetcher_AllFailSurfacesLastError(t *testing.T) {
	t.Parallel()

	errA := errors.New("a down")
	errB := &provider.APIError{Provider: "b", StatusCode: 503, Body: "busy"}
	a := testutil.Failing("a", errA)
	b := testutil.Failing("b", errB)

	f := NewFallbackFetcher(nil)
	res, err := f.Fetch(context.Background(), gateway.KindTikTok, "https://tiktok.com/v/1", []gateway.Provider{a, b})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, gateway.ErrAllProvidersFailed) {
		t.Errorf("expected ErrAllProvidersFailed, got %v", err)
	}
	if !errors.Is(err, errB) {
		t.Errorf("expected b's error to be surfaced, got %v", err)
	}
	if errors.Is(err, errA) {
		t.Error("a's error must not be surfaced")
	}
	if !errors.Is(err, gateway.ErrProviderError) {
		t.Error("503 should classify as upstream")
	}

	var pf *gateway.ProviderFailure
	if !errors.As(err, &pf) || pf.Provider != "b" || pf.Class != gateway.ClassUpstream {
		t.Errorf("failure = %+v", pf)
	}
	if res.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", res.Attempts)
	}
	if a.Calls() != 1 || b.Calls() != 1 {
		t.Errorf("calls = %d/%d, want one each", a.Calls(), b.Calls())
	}
}

func TestFallbackFetcher_EmptyBodyIsFailure(t *testing.T) {
	t.Parallel()

	for _, body := range []string{"  ", "null", "false", "0", `""`} {
		empty := testutil.Returning("empty", body)
		good := testutil.Returning("good", `{"ok":1}`)

		f := NewFallbackFetcher(nil)
		res, err := f.Fetch(context.Background(), gateway.KindInstagram, "https://instagram.com/p/1", []gateway.Provider{empty, good})
		if err != nil {
			t.Fatalf("body %q: Fetch: %v", body, err)
		}
		if res.Provider != "good" {
			t.Errorf("body %q: provider = %q, want good", body, res.Provider)
		}
		if res.Attempts != 2 {
			t.Errorf("body %q: attempts = %d, want 2", body, res.Attempts)
		}
		if good.Calls() != 1 {
			t.Errorf("body %q: good called %d times, want 1", body, good.Calls())
		}
	}
}

func TestFallbackFetcher_FalsyBodiesExhaust(t *testing.T) {
	t.Parallel()

	f := NewFallbackFetcher(nil)
	_, err := f.Fetch(context.Background(), gateway.KindTikTok, "https://tiktok.com/@u/video/1", []gateway.Provider{
		testutil.Returning("a", "null"),
		testutil.Returning("b", "false"),
	})
	if !errors.Is(err, gateway.ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}
	var pf *gateway.ProviderFailure
	if !errors.As(err, &pf) || pf.Provider != "b" || pf.Class != gateway.ClassUpstream {
		t.Errorf("last failure = %+v, want b/upstream", pf)
	}
}

func TestFallbackFetcher_NoProviders(t *testing.T) {
	t.Parallel()

	f := NewFallbackFetcher(nil)
	_, err := f.Fetch(context.Background(), gateway.KindFacebook, "https://facebook.com/x", nil)
	if !errors.Is(err, gateway.ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
	if errors.Is(err, gateway.ErrAllProvidersFailed) {
		t.Error("an empty list is not an exhausted list")
	}
}

func TestFallbackFetcher_TimeoutClass(t *testing.T) {
	t.Parallel()

	slow := &testutil.FakeProvider{
		ProviderName: "slow",
		FetchFn: func(ctx context.Context, _ string) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}

	f := NewFallbackFetcher(nil)
	_, err := f.Fetch(context.Background(), gateway.KindYouTube, "t", []gateway.Provider{slow})
	if !errors.Is(err, gateway.ErrProviderTimeout) {
		t.Errorf("expected ErrProviderTimeout, got %v", err)
	}
	if ClassifyError(err) != gateway.ClassTimeout {
		t.Errorf("class = %q, want timeout", ClassifyError(err))
	}
}

func TestFallbackFetcher_StopsWhenCallerGone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	a := &testutil.FakeProvider{
		ProviderName: "a",
		FetchFn: func(context.Context, string) ([]byte, error) {
			cancel()
			return nil, context.Canceled
		},
	}
	b := testutil.Returning("b", "ok")

	f := NewFallbackFetcher(nil)
	_, err := f.Fetch(ctx, gateway.KindYouTube, "t", []gateway.Provider{a, b})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if b.Calls() != 0 {
		t.Errorf("b called %d times after cancellation", b.Calls())
	}
}

func TestFallbackFetcher_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewPedanticRegistry()
	m := telemetry.NewMetrics(reg)

	f := NewFallbackFetcher(m)
	a := testutil.Failing("a", errors.New("refused"))
	b := testutil.Failing("b", context.DeadlineExceeded)
	f.Fetch(context.Background(), gateway.KindTikTok, "t", []gateway.Provider{a, b})

	if got := promtest.ToFloat64(m.UpstreamErrors.WithLabelValues("a", "unreachable")); got != 1 {
		t.Errorf("a unreachable = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.UpstreamErrors.WithLabelValues("b", "timeout")); got != 1 {
		t.Errorf("b timeout = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.FallbackExhausted.WithLabelValues("tiktok")); got != 1 {
		t.Errorf("exhausted = %v, want 1", got)
	}
}
