package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	gateway "github.com/ryuka-api/ryuka/internal"
	"github.com/ryuka-api/ryuka/internal/app"
	"github.com/ryuka-api/ryuka/internal/cache"
	"github.com/ryuka-api/ryuka/internal/provider"
	"github.com/ryuka-api/ryuka/internal/testutil"
)

const ytURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"

// testEnv bundles a handler with the pieces tests inspect.
type testEnv struct {
	h     http.Handler
	cache cache.Cache
	yt    *testutil.FakeProvider
}

func newTestEnv(t testing.TB, providers map[gateway.Kind][]gateway.Provider, store *testutil.FakeStore) *testEnv {
	t.Helper()

	yt := testutil.Returning("primary", `{"title":"clip"}`)
	reg := provider.NewRegistry()
	if providers == nil {
		providers = map[gateway.Kind][]gateway.Provider{
			gateway.KindYouTube: {yt},
			gateway.KindTikTok:  {testutil.Returning("tiklydown", "<html>video</html>")},
		}
	}
	for kind, ps := range providers {
		reg.Register(kind, ps...)
	}
	reg.Register(gateway.KindFacebook)

	c := cache.NewFIFO(100)
	resolver := app.NewResolveService(c, reg, app.NewFallbackFetcher(nil), app.ResolveConfig{})

	deps := Deps{Resolver: resolver, Cache: c}
	if store != nil {
		deps.FetchLog = store
	}
	return &testEnv{h: New(deps), cache: c, yt: yt}
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func resolvePath(route, target string) string {
	return route + "?url=" + url.QueryEscape(target)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	rec := env.get("/healthz")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestReadyzNotReady(t *testing.T) {
	t.Parallel()

	h := New(Deps{ReadyCheck: func(context.Context) error { return errors.New("db down") }})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestBannerAndHealth(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	body := decode(t, env.get("/"))
	if body["status"] != "ok" || body["name"] != "ryuka-api" {
		t.Errorf("banner = %v", body)
	}

	body = decode(t, env.get("/health"))
	if body["status"] != "healthy" {
		t.Errorf("health status = %v", body["status"])
	}
	if up, _ := body["uptime"].(float64); up < 0 {
		t.Errorf("uptime = %v, want >= 0", up)
	}
	if ts, _ := body["timestamp"].(float64); ts <= 0 {
		t.Errorf("timestamp = %v, want > 0", ts)
	}
}

func TestNotFoundIsJSON(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	rec := env.get("/nope")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != false || body["message"] != "not_found" {
		t.Errorf("body = %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	rec := httptest.NewRecorder()
	env.h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	rec := env.get("/healthz")
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing generated X-Request-Id")
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "req-123")
	rec = httptest.NewRecorder()
	env.h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "req-123" {
		t.Errorf("X-Request-Id = %q, want req-123", got)
	}
}

func TestResolveRoundTrip(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	rec := env.get(resolvePath("/api/yt", ytURL))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	if body["status"] != true || body["cached"] != false {
		t.Errorf("first response = %v", body)
	}
	if _, ok := body["cache_age"]; ok {
		t.Error("cache_age must be absent on a fresh fetch")
	}
	if body["url"] != "https://youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("url = %v, want canonical form", body["url"])
	}
	data, _ := body["data"].(map[string]any)
	if data["title"] != "clip" {
		t.Errorf("data = %v, want provider JSON verbatim", body["data"])
	}

	// Same video in another accepted form hits the same entry.
	body = decode(t, env.get(resolvePath("/api/youtube", "youtu.be/dQw4w9WgXcQ")))
	if body["cached"] != true {
		t.Errorf("second response cached = %v, want true", body["cached"])
	}
	if age, _ := body["cache_age"].(string); !strings.HasSuffix(age, "s") {
		t.Errorf("cache_age = %q, want seconds", age)
	}
	if n := env.yt.Calls(); n != 1 {
		t.Errorf("provider calls = %d, want 1", n)
	}
}

func TestResolveOpaqueBody(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	body := decode(t, env.get(resolvePath("/api/tiktok", "https://www.tiktok.com/@u/video/1")))
	if body["data"] != "<html>video</html>" {
		t.Errorf("data = %v, want body as a string", body["data"])
	}
}

func TestResolveInvalidInput(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name, path, message string
	}{
		{"missing", "/api/yt", "missing_url"},
		{"not_youtube", resolvePath("/api/yt", "https://vimeo.com/1"), "invalid_youtube_url"},
		{"not_absolute", resolvePath("/api/instagram", "instagram.com/p/x"), "invalid_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get(tt.path)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			body := decode(t, rec)
			if body["status"] != false || body["message"] != tt.message {
				t.Errorf("body = %v, want message %q", body, tt.message)
			}
		})
	}
	if n := env.yt.Calls(); n != 0 {
		t.Errorf("provider calls = %d, want 0 for rejected input", n)
	}
}

func TestResolveAllProvidersFail(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, map[gateway.Kind][]gateway.Provider{
		gateway.KindYouTube: {
			testutil.Failing("a", errors.New("connection refused")),
			testutil.Failing("b", &provider.APIError{Provider: "b", StatusCode: 503, Body: "down"}),
		},
	}, nil)

	rec := env.get(resolvePath("/api/yt", ytURL))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := decode(t, rec)
	if body["status"] != false || body["message"] != "fetch_failed" {
		t.Errorf("body = %v", body)
	}
	if body["reason"] != "provider error: 503" {
		t.Errorf("reason = %v, want the last provider's cause", body["reason"])
	}

	if st := env.cache.Stats(context.Background()); st.Size != 0 {
		t.Errorf("cache size = %d, failures must not be cached", st.Size)
	}
}

func TestResolveClientGone(t *testing.T) {
	t.Parallel()

	for _, coalesce := range []bool{false, true} {
		release := make(chan struct{})
		slow := &testutil.FakeProvider{
			ProviderName: "slow",
			FetchFn: func(ctx context.Context, _ string) ([]byte, error) {
				select {
				case <-release:
					return []byte(`{"title":"late"}`), nil
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			},
		}
		reg := provider.NewRegistry()
		reg.Register(gateway.KindYouTube, slow)
		c := cache.NewFIFO(10)
		resolver := app.NewResolveService(c, reg, app.NewFallbackFetcher(nil), app.ResolveConfig{Coalesce: coalesce})
		h := New(Deps{Resolver: resolver, Cache: c})

		ctx, cancel := context.WithCancel(context.Background())
		req := httptest.NewRequest(http.MethodGet, resolvePath("/api/yt", ytURL), nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		done := make(chan struct{})
		go func() {
			h.ServeHTTP(rec, req)
			close(done)
		}()

		time.Sleep(20 * time.Millisecond)
		cancel()
		<-done
		close(release)

		if rec.Code != statusClientClosedRequest {
			t.Errorf("coalesce=%v: status = %d, want %d", coalesce, rec.Code, statusClientClosedRequest)
		}
		if body := decode(t, rec); body["message"] != "client_closed_request" {
			t.Errorf("coalesce=%v: body = %v", coalesce, body)
		}
	}
}

func TestErrorStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"bad request", gateway.ErrBadRequest, http.StatusBadRequest},
		{"not found", gateway.ErrNotFound, http.StatusNotFound},
		{"exhausted", fmt.Errorf("%w: x", gateway.ErrAllProvidersFailed), http.StatusBadGateway},
		{"canceled", context.Canceled, statusClientClosedRequest},
		{"exhausted by cancel", fmt.Errorf("%w: %w", gateway.ErrAllProvidersFailed, context.Canceled), statusClientClosedRequest},
		{"deadline", context.DeadlineExceeded, http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("%s: errorStatus = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestResolveNoProviders(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	rec := env.get(resolvePath("/api/facebook", "https://facebook.com/watch/?v=1"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := decode(t, rec)
	data, _ := body["data"].(map[string]any)
	if data["note"] == "" || data["url"] != "https://facebook.com/watch/?v=1" {
		t.Errorf("data = %v", body["data"])
	}
}

func TestRecoveryReturnsJSON500(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, map[gateway.Kind][]gateway.Provider{
		gateway.KindYouTube: {&testutil.FakeProvider{
			ProviderName: "boom",
			FetchFn:      func(context.Context, string) ([]byte, error) { panic("boom") },
		}},
	}, nil)

	rec := env.get(resolvePath("/api/yt", ytURL))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if body := decode(t, rec); body["status"] != false {
		t.Errorf("body = %v", body)
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	env.get(resolvePath("/api/yt", ytURL))

	body := decode(t, env.get("/api/cache/stats"))
	data, _ := body["data"].(map[string]any)
	if data["size"] != float64(1) || data["max_size"] != float64(100) {
		t.Errorf("stats = %v", data)
	}
	keys, _ := data["keys"].([]any)
	if len(keys) != 1 || keys[0] != "yt:https://youtube.com/watch?v=dQw4w9WgXcQ" {
		t.Errorf("keys = %v", keys)
	}

	for range 2 { // clearing twice is fine
		rec := httptest.NewRecorder()
		env.h.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/cache", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("clear status = %d", rec.Code)
		}
	}
	if st := env.cache.Stats(context.Background()); st.Size != 0 {
		t.Errorf("size after clear = %d", st.Size)
	}

	data, _ = decode(t, env.get("/api/cache/stats"))["data"].(map[string]any)
	if keys, ok := data["keys"].([]any); !ok || len(keys) != 0 {
		t.Errorf("keys after clear = %v, want []", data["keys"])
	}
}

func TestFetchesDisabled(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, nil, nil)

	for _, path := range []string{"/api/fetches", "/api/fetches/summary"} {
		if rec := env.get(path); rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
		}
	}
}

func TestListFetches(t *testing.T) {
	t.Parallel()

	store := testutil.NewFakeStore()
	now := time.Now()
	store.InsertFetches(context.Background(), []gateway.FetchRecord{
		{ID: "1", Kind: gateway.KindYouTube, Outcome: gateway.OutcomeFresh, CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "2", Kind: gateway.KindYouTube, Outcome: gateway.OutcomeHit, CreatedAt: now.Add(-time.Minute)},
		{ID: "3", Kind: gateway.KindTikTok, Outcome: gateway.OutcomeFailed, CreatedAt: now},
	})
	env := newTestEnv(t, nil, store)

	body := decode(t, env.get("/api/fetches?kind=youtube"))
	data, _ := body["data"].(map[string]any)
	records, _ := data["records"].([]any)
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if first, _ := records[0].(map[string]any); first["id"] != "2" {
		t.Errorf("first record = %v, want newest first", first)
	}
	if data["limit"] != float64(50) {
		t.Errorf("limit = %v, want default 50", data["limit"])
	}

	body = decode(t, env.get("/api/fetches?outcome=failed&limit=5"))
	data, _ = body["data"].(map[string]any)
	if records, _ := data["records"].([]any); len(records) != 1 {
		t.Errorf("failed records = %d, want 1", len(records))
	}
}

func TestFetchSummary(t *testing.T) {
	t.Parallel()

	store := testutil.NewFakeStore()
	now := time.Now()
	store.InsertFetches(context.Background(), []gateway.FetchRecord{
		{ID: "old", Kind: gateway.KindYouTube, Outcome: gateway.OutcomeFresh, CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "1", Kind: gateway.KindYouTube, Outcome: gateway.OutcomeFresh, LatencyMs: 100, CreatedAt: now.Add(-time.Hour)},
		{ID: "2", Kind: gateway.KindYouTube, Outcome: gateway.OutcomeFresh, LatencyMs: 300, CreatedAt: now.Add(-time.Minute)},
	})
	env := newTestEnv(t, nil, store)

	body := decode(t, env.get("/api/fetches/summary"))
	rows, _ := body["data"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows = %v, want 1 group inside the default window", body["data"])
	}
	row, _ := rows[0].(map[string]any)
	if row["count"] != float64(2) || row["avg_latency_ms"] != float64(200) {
		t.Errorf("row = %v", row)
	}

	body = decode(t, env.get("/api/fetches/summary?since=72h"))
	if rows, _ := body["data"].([]any); len(rows) != 1 {
		t.Fatalf("rows = %v", body["data"])
	}

	if rec := env.get("/api/fetches/summary?since=yesterday"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad since: status = %d, want 400", rec.Code)
	}
}

func TestParseSince(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"", now.Add(-24 * time.Hour)},
		{"90m", now.Add(-90 * time.Minute)},
		{"2026-01-01T00:00:00Z", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseSince(tt.raw, now)
		if err != nil {
			t.Errorf("parseSince(%q): %v", tt.raw, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseSince(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
	if _, err := parseSince("soon", now); !errors.Is(err, gateway.ErrBadRequest) {
		t.Errorf("expected ErrBadRequest, got %v", err)
	}
}

func TestCacheAge(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{999 * time.Millisecond, "0s"},
		{42*time.Second + 700*time.Millisecond, "42s"},
		{2 * time.Hour, "7200s"},
	}
	for _, tt := range tests {
		if got := cacheAge(tt.d); got != tt.want {
			t.Errorf("cacheAge(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestValidRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   string
		want bool
	}{
		{"req-123", true},
		{"0191d0a4-7c1e-7b3a-9f00-5a1b2c3d4e5f", true},
		{"", false},
		{"has space", false},
		{"line\nbreak", false},
		{strings.Repeat("a", 129), false},
	}
	for _, tt := range tests {
		if got := validRequestID(tt.id); got != tt.want {
			t.Errorf("validRequestID(%q) = %v, want %v", tt.id, got, tt.want)
		}
	}
}
