package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/onnwee/autolist/internal/account"
	"github.com/onnwee/autolist/internal/api"
	"github.com/onnwee/autolist/internal/auth"
	"github.com/onnwee/autolist/internal/comment"
	"github.com/onnwee/autolist/internal/config"
	"github.com/onnwee/autolist/internal/db"
	"github.com/onnwee/autolist/internal/feed"
	"github.com/onnwee/autolist/internal/health"
	"github.com/onnwee/autolist/internal/listing"
	"github.com/onnwee/autolist/internal/media"
	"github.com/onnwee/autolist/internal/middleware"
	"github.com/onnwee/autolist/internal/ranking"
	"github.com/onnwee/autolist/internal/social"
	"github.com/onnwee/autolist/internal/tracing"
	"github.com/onnwee/autolist/internal/validate"
)

const serviceName = "autolist-api"

// version is overridden at build time with -ldflags "-X main.version=...".
var version = tracing.DefaultServiceVersion

// appOptions carries start-up switches that are not part of Config.
type appOptions struct {
	MigrationsDir string // applied on start when non-empty and a database is configured
}

// stores groups the data sources behind the feed.
type stores struct {
	listings listing.Store
	accounts account.Store
	follows  social.FollowStore
	comments comment.CountStore
}

// app is the assembled server: its HTTP handler plus everything that must be
// released on shutdown.
type app struct {
	handler http.Handler
	closers []func(context.Context) error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *app) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// newApp wires configuration into stores, the feed service and the router.
// Without DATABASE_URL the stores are in memory; without REDIS_URL rate
// limits are kept per process.
func newApp(ctx context.Context, cfg *config.Config, opts appOptions, logger *slog.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close(context.Background())
		}
	}()

	tp, err := tracing.NewProvider(tracing.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Enabled:        cfg.TracingEnabled,
		Environment:    cfg.Env,
		ExporterType:   cfg.TracingExporter,
		OTLPEndpoint:   cfg.TracingEndpoint,
		SamplingRate:   cfg.TracingSampleRate,
		InsecureMode:   cfg.TracingInsecure,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.onClose(tp.Shutdown)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	feedMetrics := feed.NewMetrics()
	if err := feedMetrics.Register(registry); err != nil {
		return nil, fmt.Errorf("register feed metrics: %w", err)
	}

	healthCfg := api.HealthHandlersConfig{}

	var conn *sql.DB
	if cfg.DatabaseURL != "" {
		conn, err = db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{})
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error { return conn.Close() })
		healthCfg.DBChecker = health.NewDBChecker(conn)

		if opts.MigrationsDir != "" {
			if err := db.Migrate(ctx, conn, opts.MigrationsDir); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied", "dir", opts.MigrationsDir)
		}
	} else {
		logger.Warn("DATABASE_URL not set, serving from empty in-memory stores")
	}
	s := newStores(conn)

	var limitStore middleware.RateLimitStore
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(redisOpts)
		a.onClose(func(context.Context) error { return client.Close() })
		healthCfg.RedisChecker = health.NewRedisChecker(client)
		limitStore = middleware.NewRedisRateLimitStore(client).
			WithMetrics(httpMetrics).
			WithLogger(logger)
	} else {
		mem := middleware.NewInMemoryRateLimitStore()
		cleanupCtx, cancel := context.WithCancel(context.Background())
		mem.StartCleanup(cleanupCtx, time.Minute)
		a.onClose(func(context.Context) error { cancel(); return nil })
		limitStore = mem
	}

	weights, err := ranking.LoadCalibration(cfg.RankingCalibrationPath)
	if err != nil {
		logger.Warn("ranking calibration not applied, using default weights",
			"path", cfg.RankingCalibrationPath,
			"error", err)
	}

	aggregator := feed.NewAggregator(s.follows, s.comments, feed.AggregatorConfig{
		SignalTimeout:   cfg.SignalTimeout(),
		BreakerFailures: uint32(cfg.FeedBreakerFailures),
		BreakerCooldown: cfg.BreakerCooldown(),
	}, feedMetrics, logger)
	service := feed.NewService(s.listings, feed.NewPreferenceResolver(s.accounts), aggregator, feed.Config{
		MaxPageSize:      cfg.FeedMaxPageSize,
		MaxCandidates:    cfg.FeedMaxCandidates,
		CandidateTimeout: cfg.CandidateTimeout(),
		Weights:          weights,
		Explain:          cfg.FeedExplain,
	}, feedMetrics, logger)

	var images api.ImageResolver
	if cfg.MediaConfigured() {
		resolver, err := media.NewResolver(media.Config{
			PublicBaseURL:    cfg.MediaPublicBaseURL,
			BucketName:       cfg.MediaBucketName,
			AccessKeyID:      cfg.MediaAccessKeyID,
			SecretAccessKey:  cfg.MediaSecretAccessKey,
			Endpoint:         cfg.MediaEndpoint,
			URLExpiryMinutes: cfg.MediaURLExpiryMinutes,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("media resolver: %w", err)
		}
		logger.Info("media resolver configured", "mode", resolver.Mode())
		images = resolver
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSAllowedOrigins

	proxies, err := validate.Prefixes(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	feedLimit := middleware.DefaultFeedLimit()
	if cfg.RateLimitRequestsPerMinute > 0 {
		feedLimit.RequestsPerWindow = cfg.RateLimitRequestsPerMinute
	}

	a.handler = api.NewRouter(api.RouterConfig{
		Feed:           api.NewFeedHandlers(service, s.accounts, images, logger),
		Health:         api.NewHealthHandlers(healthCfg),
		Tokens:         auth.NewJWTService(cfg.JWTSecret, cfg.JWTPreviousSecret),
		RateLimitStore: limitStore,
		FeedLimit:      feedLimit,
		SearchLimit:    middleware.DefaultSearchLimit(),
		CORS:           cors,
		TrustedProxies: proxies,
		Metrics:        httpMetrics,
		Gatherer:       registry,
		MetricsToken:   cfg.MetricsToken,
		Logger:         logger,
		ServiceName:    serviceName,
	})
	return a, nil
}

// newStores returns Postgres-backed stores for a live connection and empty
// in-memory stores otherwise.
func newStores(conn *sql.DB) stores {
	if conn == nil {
		return stores{
			listings: listing.NewInMemoryRepository(),
			accounts: account.NewInMemoryRepository(),
			follows:  social.NewInMemoryFollowStore(),
			comments: comment.NewInMemoryCountStore(),
		}
	}
	return stores{
		listings: listing.NewPostgresStore(conn),
		accounts: account.NewPostgresStore(conn),
		follows:  social.NewPostgresFollowStore(conn),
		comments: comment.NewPostgresCountStore(conn),
	}
}
