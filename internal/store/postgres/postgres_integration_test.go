package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/xid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("GESTOR_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set GESTOR_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL, 8)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := Migrate(ctx, s.Pool()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func cleanupOwner(t *testing.T, s *Store, ownerID string) {
	t.Cleanup(func() {
		ctx := context.Background()
		for _, table := range []string{"cash_entries", "cash_days", "commissions", "receivables", "installments", "sale_items", "sales", "products", "payment_methods"} {
			_, _ = s.pool.Exec(ctx, "DELETE FROM "+table+" WHERE owner_id = $1", ownerID)
		}
	})
}

func TestCashDayUpsertIsIdempotentUnderConcurrency(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ownerID := "it-" + xid.New()
	cleanupOwner(t, s, ownerID)

	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.WithinTx(ctx, func(ctx context.Context) error {
				bucket, err := s.UpsertCashDay(ctx, ownerID, day)
				if err != nil {
					return err
				}
				ids[i] = bucket.ID
				return nil
			})
			if err != nil {
				t.Errorf("upsert %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("expected one bucket, got %v", ids)
		}
	}
}

func TestCashEntriesRebalanceLaterDays(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ownerID := "it-" + xid.New()
	cleanupOwner(t, s, ownerID)

	monday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	wednesday := monday.AddDate(0, 0, 2)
	saleID := xid.New()

	err := s.WithinTx(ctx, func(ctx context.Context) error {
		later, err := s.UpsertCashDay(ctx, ownerID, wednesday)
		if err != nil {
			return err
		}
		if _, err := s.CreateCashEntry(ctx, domain.CashEntry{
			OwnerID: ownerID, DayID: later.ID, Kind: domain.EntryOutflow, AmountCents: 300,
		}); err != nil {
			return err
		}
		earlier, err := s.UpsertCashDay(ctx, ownerID, monday)
		if err != nil {
			return err
		}
		if _, err := s.CreateCashEntry(ctx, domain.CashEntry{
			OwnerID: ownerID, DayID: earlier.ID, Kind: domain.EntryInflow, AmountCents: 1000, SaleID: &saleID,
		}); err != nil {
			return err
		}
		return s.RebalanceCashDays(ctx, ownerID, monday)
	})
	if err != nil {
		t.Fatalf("post entries: %v", err)
	}

	later, err := s.GetCashDay(ctx, ownerID, wednesday)
	if err != nil {
		t.Fatalf("get wednesday: %v", err)
	}
	if later.OpeningCents != 1000 || later.ClosingCents != 700 {
		t.Fatalf("expected opening 1000 closing 700, got %+v", later)
	}

	err = s.WithinTx(ctx, func(ctx context.Context) error {
		removed, err := s.DeleteCashEntries(ctx, ownerID, domain.EntryLink{SaleID: saleID})
		if err != nil {
			return err
		}
		if len(removed) != 1 {
			t.Errorf("expected one removed entry, got %d", len(removed))
		}
		return s.RebalanceCashDays(ctx, ownerID, monday)
	})
	if err != nil {
		t.Fatalf("remove entries: %v", err)
	}

	later, err = s.GetCashDay(ctx, ownerID, wednesday)
	if err != nil {
		t.Fatalf("get wednesday: %v", err)
	}
	if later.OpeningCents != 0 || later.ClosingCents != -300 {
		t.Fatalf("expected opening 0 closing -300, got %+v", later)
	}
}

func TestProductCheckConstraintMapsToInvalidInput(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	ownerID := "it-" + xid.New()
	cleanupOwner(t, s, ownerID)

	created, err := s.CreateProduct(ctx, domain.Product{OwnerID: ownerID, Name: "Vestido", Quantity: 1, Status: domain.ProductAvailable})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	created.ReservedQuantity = 2
	if _, err := s.UpdateProduct(ctx, *created); !errors.Is(err, store.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
