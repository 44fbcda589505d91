package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"gestorbrecho/backend/internal/bootstrap"
	"gestorbrecho/backend/internal/config"
	"gestorbrecho/backend/internal/domain"
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
	lg = lg.WithComponent("worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	rt, err := bootstrap.New(startCtx, cfg, lg)
	cancel()
	if err != nil {
		lg.Fatalw("startup failed", "error", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			lg.Warnw("close error", "error", err)
		}
	}()

	interval := time.Duration(cfg.RecurringIntervalMin) * time.Minute
	lg.Infow("recurring worker started", "interval", interval.String())
	run(ctx, rt.Service, lg, interval)
	lg.Info("worker stopped")
}

func run(ctx context.Context, svc *service.Service, lg *logger.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		tick(ctx, svc, lg, time.Now())
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func tick(ctx context.Context, svc *service.Service, lg *logger.Logger, now time.Time) {
	created, err := svc.GenerateDueRecurringReceivables(ctx, domain.DayOf(now))
	if err != nil {
		lg.Errorw("recurring receivables failed", "error", err)
		return
	}
	if created > 0 {
		lg.Infow("recurring receivables generated", "created", created)
	}
}
