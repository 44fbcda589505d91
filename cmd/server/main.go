package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gestorbrecho/backend/internal/bootstrap"
	"gestorbrecho/backend/internal/config"
	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/httpapi"
	"gestorbrecho/backend/internal/logger"
	"gestorbrecho/backend/internal/service"
)

func main() {
	cfg := config.Load()
	lg, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.LogDevelopment})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	if err := bootstrap.ValidateSecurity(cfg); err != nil {
		lg.Fatalw("invalid security configuration", "error", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	rt, err := bootstrap.New(ctx, cfg, lg)
	cancel()
	if err != nil {
		lg.Fatalw("startup failed", "error", err)
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, rt.Repo, rt.Service.SeedTenant)
	opts := httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		MediaDir:      cfg.MediaDir,
		Metrics:       rt.Metrics,
		Logger:        lg,
	}
	if rt.Telemetry != nil {
		opts.MetricsHandler = rt.Telemetry.Handler()
	}
	api := httpapi.New(rt.Service, auth, opts)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		lg.Infow("gestor brecho backend listening", "addr", cfg.Address())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatalw("server error", "error", err)
		}
	}()

	jobCtx, stopJobs := context.WithCancel(context.Background())
	go runRecurringOnce(jobCtx, rt.Service, lg, time.Duration(cfg.RecurringDelaySeconds)*time.Second)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	stopJobs()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Warnw("shutdown error", "error", err)
	}
	if err := rt.Close(); err != nil {
		lg.Warnw("close error", "error", err)
	}

	lg.Info("server stopped")
}

// runRecurringOnce fires the recurring-income job a single time after delay.
// Failures are logged and never stop the server.
func runRecurringOnce(ctx context.Context, svc *service.Service, lg *logger.Logger, delay time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}
	created, err := svc.GenerateDueRecurringReceivables(ctx, domain.DayOf(time.Now()))
	if err != nil {
		lg.Errorw("recurring receivables failed", "error", err)
		return
	}
	lg.Infow("recurring receivables generated", "created", created)
}
