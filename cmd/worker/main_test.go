package main

import (
	"context"
	"testing"
	"time"

	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/logger"
	"gestorbrecho/backend/internal/service"
	"gestorbrecho/backend/internal/store/memory"
)

func TestTickGeneratesDueOccurrencesOnce(t *testing.T) {
	svc := service.New(memory.New(), service.Options{Logger: logger.Nop()})
	ctx := service.WithActor(context.Background(), domain.Actor{UserID: "u1", OwnerID: "o1", Role: domain.RoleAdmin})

	if _, _, err := svc.CreateReceivable(ctx, domain.ReceivableCreateRequest{
		Type: domain.ReceivableService, Description: "Aluguel de arara", AmountCents: 20000,
		Date: "2026-01-10", Recurring: true, Recurrence: domain.RecurrenceMonthly,
	}); err != nil {
		t.Fatalf("create template: %v", err)
	}

	now := time.Date(2026, 4, 15, 9, 0, 0, 0, time.UTC)
	tick(context.Background(), svc, logger.Nop(), now)
	tick(context.Background(), svc, logger.Nop(), now)

	list, err := svc.ListReceivables(ctx, domain.ReceivableFilter{Type: domain.ReceivableService})
	if err != nil {
		t.Fatalf("list receivables: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected template plus 3 occurrences, got %d", len(list))
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := service.New(memory.New(), service.Options{Logger: logger.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		run(ctx, svc, logger.Nop(), time.Hour)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop after cancel")
	}
}
