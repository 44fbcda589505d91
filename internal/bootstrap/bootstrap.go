// Package bootstrap wires the infrastructure shared by the server and the
// worker binaries from a loaded config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gestorbrecho/backend/internal/cache"
	"gestorbrecho/backend/internal/config"
	"gestorbrecho/backend/internal/logger"
	"gestorbrecho/backend/internal/metrics"
	"gestorbrecho/backend/internal/objectstore"
	"gestorbrecho/backend/internal/service"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/store/memory"
	pgstore "gestorbrecho/backend/internal/store/postgres"
)

// Runtime holds the wired service and everything that must be closed on
// shutdown.
type Runtime struct {
	Repo    store.Repository
	Service *service.Service
	Metrics *metrics.Recorder
	Log     *logger.Logger

	// Telemetry is nil when the SDK could not be set up.
	Telemetry *metrics.Telemetry

	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ValidateSecurity rejects configs the server must not start with.
func ValidateSecurity(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}

// New opens the repository, summary cache, media store and metrics for cfg.
// A set DATABASE_URL that cannot be reached is fatal; an unreachable Redis
// degrades to the noop cache.
func New(ctx context.Context, cfg config.Config, log *logger.Logger) (*Runtime, error) {
	rt := &Runtime{Log: log}

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		rt.closers = append(rt.closers, pg.Close)
		if cfg.AutoMigrate {
			if err := pgstore.Migrate(ctx, pg.Pool()); err != nil {
				_ = rt.Close()
				return nil, err
			}
		}
		rt.Repo = pg
		log.Infow("repository ready", "kind", "postgres")
	} else {
		rt.Repo = memory.New()
		log.Infow("repository ready", "kind", "memory")
	}

	var summaries cache.SummaryCache = cache.NoopSummaryCache{}
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warnw("redis unavailable, using noop cache", "error", err)
			_ = redisCache.Close()
		} else {
			summaries = redisCache
			rt.closers = append(rt.closers, redisCache.Close)
			log.Infow("summary cache ready", "kind", "redis")
		}
	}

	var objects objectstore.Store
	if cfg.MediaDir != "" {
		local, err := objectstore.NewLocal(cfg.MediaDir, cfg.MediaBaseURL)
		if err != nil {
			_ = rt.Close()
			return nil, err
		}
		objects = local
	}

	rt.Metrics = metrics.Nop()
	var traces io.Writer
	if cfg.TraceStdout {
		traces = os.Stdout
	}
	tel, err := metrics.SetupTelemetry(metrics.TelemetryConfig{ServiceName: cfg.ServiceName, TraceWriter: traces})
	if err != nil {
		log.Warnw("telemetry disabled", "error", err)
	} else {
		rt.Telemetry = tel
		rt.closers = append(rt.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return tel.Shutdown(ctx)
		})
		recorder, err := metrics.New(tel.MeterProvider)
		if err != nil {
			log.Warnw("metrics disabled", "error", err)
		} else {
			rt.Metrics = recorder
		}
	}

	rt.Service = service.New(rt.Repo, service.Options{
		Summaries:       summaries,
		SummaryTTL:      time.Duration(cfg.SummaryCacheTTLSeconds) * time.Second,
		Objects:         objects,
		Metrics:         rt.Metrics,
		Logger:          log,
		BulkConcurrency: cfg.BulkConcurrency,
	})
	return rt, nil
}
