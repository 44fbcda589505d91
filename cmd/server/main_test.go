package main

import (
	"context"
	"testing"
	"time"

	"gestorbrecho/backend/internal/logger"
	"gestorbrecho/backend/internal/service"
	"gestorbrecho/backend/internal/store/memory"
)

func TestRunRecurringOnceHonoursCancel(t *testing.T) {
	svc := service.New(memory.New(), service.Options{Logger: logger.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		runRecurringOnce(ctx, svc, logger.Nop(), time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("recurring run did not return after cancel")
	}
}
