package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/dnscache"

	"github.com/ryuka-api/ryuka/internal/app"
	"github.com/ryuka-api/ryuka/internal/cache"
	"github.com/ryuka-api/ryuka/internal/config"
	"github.com/ryuka-api/ryuka/internal/provider"
	"github.com/ryuka-api/ryuka/internal/server"
	"github.com/ryuka-api/ryuka/internal/storage"
	"github.com/ryuka-api/ryuka/internal/storage/sqlite"
	"github.com/ryuka-api/ryuka/internal/telemetry"
	"github.com/ryuka-api/ryuka/internal/worker"
)

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		cfg.Sources = config.DefaultSources()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func setupLogger(cfg *config.Config) error {
	level, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Log.Format == "text" {
		h = slog.NewTextHandler(os.Stderr, opts)
	} else {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func run(configPath string) error {
	// Load config
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if err := setupLogger(cfg); err != nil {
		return err
	}

	slog.Info("starting ryuka", "version", version, "addr", cfg.Server.Addr)
	startedAt := time.Now()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Tracing
	if cfg.Telemetry.Tracing.Enabled {
		t := cfg.Telemetry.Tracing
		shutdown, err := telemetry.SetupTracing(ctx, t.Endpoint, t.ServiceName, t.SampleRate)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				slog.Warn("tracing shutdown", "error", err)
			}
		}()
		slog.Info("tracing enabled", "endpoint", t.Endpoint, "sample_rate", t.SampleRate)
	}

	// Metrics
	var (
		metrics        *telemetry.Metrics
		metricsHandler http.Handler
	)
	if cfg.Telemetry.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics = telemetry.NewMetrics(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	runner := worker.NewRunner()

	// Outbound HTTP client shared by every provider endpoint
	var resolver *dnscache.Resolver
	if cfg.Fetch.DNSCache {
		resolver = &dnscache.Resolver{}
		runner.Add(worker.NewDNSRefreshWorker(resolver, cfg.Fetch.DNSRefresh))
	}
	client := &http.Client{Transport: provider.NewTransport(resolver)}
	registry := config.BuildRegistry(cfg, client)

	// Cache
	var cacheOpts []cache.Option
	if metrics != nil {
		evictions := metrics.CacheEvictions
		cacheOpts = append(cacheOpts, cache.WithOnEvict(func(string) { evictions.Inc() }))
	}
	c, err := cache.New(cfg.Cache.Backend, cfg.Cache.MaxEntries, cacheOpts...)
	if err != nil {
		return err
	}

	// Wire services
	resolveSvc := app.NewResolveService(c, registry, app.NewFallbackFetcher(metrics), app.ResolveConfig{
		TTLs:       cfg.TTLs(),
		DefaultTTL: cfg.Cache.TTL,
		Coalesce:   cfg.Cache.Coalesce,
	}).WithMetrics(metrics)

	// Fetch log (optional)
	var (
		fetchLog   storage.FetchLogStore
		readyCheck server.ReadyChecker
	)
	if cfg.Database.DSN != "" {
		store, err := sqlite.New(cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer store.Close()

		recorder := worker.NewFetchRecorder(store)
		if metrics != nil {
			recorder.WithMetrics(metrics.FetchQueueLength, metrics.FetchLogDropped)
		}
		resolveSvc.WithRecorder(recorder)
		runner.Add(recorder)
		if cfg.Database.Retention > 0 {
			runner.Add(worker.NewFetchLogPruner(store, cfg.Database.Retention))
		}
		fetchLog = store
		readyCheck = store.Ping
	}

	// Create HTTP server
	handler := server.New(server.Deps{
		Resolver:       resolveSvc,
		Cache:          c,
		FetchLog:       fetchLog,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		ReadyCheck:     readyCheck,
		StartedAt:      startedAt,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	// Workers get their own context so they outlive the signal until the server drains.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	workersDone := make(chan error, 1)
	go func() { workersDone <- runner.Run(workerCtx) }()

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	slog.Info("ryuka ready", "addr", cfg.Server.Addr, "kinds", len(registry.Kinds()), "workers", runner.Len())

	var serveErr error
	select {
	case <-ctx.Done():
		slog.Info("shutting down", "cause", context.Cause(ctx))
	case serveErr = <-errCh:
	}

	// Shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}

	// Stop workers after the server so in-flight requests can still record.
	cancelWorkers()
	if err := <-workersDone; err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("worker error", "error", err)
	}

	if serveErr != nil {
		return serveErr
	}
	slog.Info("ryuka stopped")
	return nil
}
