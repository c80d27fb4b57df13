package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/movie-discovery/internal/platform/analytics"
	"github.com/example/movie-discovery/internal/platform/config"
	"github.com/example/movie-discovery/internal/platform/httpserver"
	"github.com/example/movie-discovery/internal/platform/logging"
	"github.com/example/movie-discovery/internal/platform/natsconn"
	"github.com/example/movie-discovery/internal/platform/run"
	discoveryconfig "github.com/example/movie-discovery/services/discovery/internal/config"
	"github.com/example/movie-discovery/services/discovery/internal/handlers"
	discoveryhttp "github.com/example/movie-discovery/services/discovery/internal/http"
	"github.com/example/movie-discovery/services/discovery/internal/page"
	"github.com/example/movie-discovery/services/discovery/internal/recommender"
	"github.com/example/movie-discovery/services/discovery/internal/tmdb"
	"github.com/example/movie-discovery/services/discovery/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.LogLevel, cfg.ServiceName)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	dcfg, err := discoveryconfig.LoadDiscovery()
	if err != nil {
		log.Error("load discovery config", zap.Error(err))
		run.Exit(1)
	}

	// Catalog enrichment: breaker -> retry -> rate limit, behind a lookup cache.
	catalog := tmdb.New(dcfg.TMDBBaseURL, dcfg.TMDBAPIKey,
		tmdb.ClientConfig{MaxRetries: dcfg.TMDBMaxRetries},
		tmdb.WithCircuitBreaker(tmdb.NewCircuitBreaker(dcfg.Breaker.MaxRequests, dcfg.Breaker.Interval,
			dcfg.Breaker.Timeout, dcfg.Breaker.FailureThreshold, log)),
		tmdb.WithLimiter(rate.NewLimiter(rate.Limit(dcfg.TMDBRPS), int(dcfg.TMDBRPS)+1)),
		tmdb.WithLogger(log),
	)

	var (
		lookupCache tmdb.Cache = tmdb.NewMemoryCache(dcfg.TMDBCacheTTL)
		readyChecks []func(context.Context) error
	)
	if dcfg.RedisURL != "" {
		rc, err := tmdb.NewRedisCache(dcfg.RedisURL, dcfg.TMDBCacheTTL)
		if err != nil {
			log.Error("init redis cache", zap.Error(err))
			run.Exit(1)
		}
		defer func() { _ = rc.Close() }()
		lookupCache = rc
		readyChecks = append(readyChecks, rc.Ping)
		log.Info("enrichment cache: redis")
	}
	enricher := tmdb.NewEnricher(catalog, lookupCache, dcfg.TMDBFetchRuntime, log)
	backend := recommender.New(dcfg.RecommenderBaseURL)

	// NATS is optional: shelf cache invalidation and analytics events.
	var (
		nc  *nats.Conn
		pub *analytics.Publisher
	)
	natsOpts := natsconn.Options{URL: dcfg.NATSURL, Name: cfg.ServiceName, Logger: log}
	if natsOpts.Enabled() {
		nc, err = natsconn.Connect(natsOpts)
		if err != nil {
			log.Error("connect nats", zap.Error(err))
			run.Exit(1)
		}
		defer nc.Close()
		if js, err := nc.JetStream(); err != nil {
			log.Warn("jetstream unavailable, analytics disabled", zap.Error(err))
		} else {
			analytics.EnsureStream(js, log)
			pub = analytics.New(js, log)
		}
		readyChecks = append(readyChecks, func(context.Context) error {
			if !nc.IsConnected() {
				return errors.New("nats not connected")
			}
			return nil
		})
	}
	shelfCache := handlers.NewTTLCache(dcfg.CacheTTL, nc, handlers.InvalidateSubject, log)
	defer func() { _ = shelfCache.Close() }()

	renderer, err := view.NewRenderer()
	if err != nil {
		log.Error("init templates", zap.Error(err))
		run.Exit(1)
	}

	r := chi.NewRouter()
	httpserver.SetupRouter(r, httpserver.RouterConfig{
		ReadyFunc: func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			for _, check := range readyChecks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
		Middlewares: []func(http.Handler) http.Handler{
			httpserver.AccessLog(log),
			discoveryhttp.Metrics,
		},
	})

	deps := handlers.Deps{
		Backend:     backend,
		Enricher:    enricher,
		Cache:       shelfCache,
		Analytics:   pub,
		Log:         log,
		Concurrency: dcfg.EnrichConcurrency,
		Timeout:     dcfg.PageTimeout,
	}
	builder := page.NewBuilder(backend, enricher, page.Config{
		Timeout:          dcfg.PageTimeout,
		CarouselInterval: dcfg.CarouselInterval,
		Concurrency:      dcfg.EnrichConcurrency,
		WSPath:           handlers.WSPath,
		StaticPrefix:     handlers.StaticPrefix,
	}, log)

	err = handlers.Register(r, handlers.Routes{
		Deps:             deps,
		Builder:          builder,
		Renderer:         renderer,
		RateLimiter:      discoveryhttp.NewRateLimiter(dcfg.RateLimitRPS, dcfg.RateLimitBurst),
		CarouselInterval: dcfg.CarouselInterval,
		AllowedOrigins:   httpserver.AllowedOrigins(),
	})
	if err != nil {
		log.Error("register routes", zap.Error(err))
		run.Exit(1)
	}

	srv := httpserver.New(httpserver.Options{Addr: cfg.HTTP.Addr, ServiceName: cfg.ServiceName, Logger: log, Router: r})

	runner := run.New(log)
	code := runner.WithSignals(func(ctx context.Context) error {
		go runner.Graceful(ctx, run.DefaultShutdownTimeout, srv.Shutdown)
		return srv.Start(log)
	})

	log.Info("exit", zap.Int("code", code))
	run.Exit(code)
}
