package memory

import (
	"context"
	"slices"
	"strings"
	"time"

	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/xid"
)

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.OwnerID == "" || len(sale.Items) == 0 || sale.TotalCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	now := s.now()
	sale.CreatedAt = now
	sale.UpdatedAt = now
	sale.Items = s.prepareItems(sale.OwnerID, sale.ID, sale.Items)
	s.data.sales[sale.ID] = cloneSale(sale)
	return &sale, nil
}

func (s *Store) prepareItems(ownerID, saleID string, items []domain.SaleItem) []domain.SaleItem {
	prepared := make([]domain.SaleItem, 0, len(items))
	for _, item := range items {
		if item.ID == "" {
			item.ID = xid.New()
		}
		item.SaleID = saleID
		item.OwnerID = ownerID
		item.SubtotalCents = int64(item.Quantity) * item.UnitPriceCents
		prepared = append(prepared, item)
	}
	return prepared
}

func (s *Store) GetSale(_ context.Context, ownerID, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.data.sales[id]
	if !exists || sale.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	found := cloneSale(sale)
	return &found, nil
}

func (s *Store) GetSaleForUpdate(ctx context.Context, ownerID, id string) (*domain.Sale, error) {
	return s.GetSale(ctx, ownerID, id)
}

func (s *Store) ListSales(_ context.Context, ownerID string, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := make([]domain.Sale, 0)
	for _, sale := range s.data.sales {
		if sale.OwnerID != ownerID || !inRange(sale.Date, filter.From, filter.To) {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		if filter.CustomerID != "" && !ptrEq(sale.CustomerID, filter.CustomerID) {
			continue
		}
		sales = append(sales, cloneSale(sale))
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		return newestFirst(a.Date, b.Date, a.CreatedAt, b.CreatedAt)
	})
	return truncate(sales, filter.Limit), nil
}

func (s *Store) UpdateSaleHeader(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data.sales[sale.ID]
	if !exists || existing.OwnerID != sale.OwnerID {
		return nil, store.ErrNotFound
	}
	if sale.TotalCents < 0 {
		return nil, store.ErrInvalidInput
	}
	sale.Items = existing.Items
	sale.CreatedAt = existing.CreatedAt
	sale.CreatedBy = existing.CreatedBy
	sale.UpdatedAt = s.now()
	s.data.sales[sale.ID] = cloneSale(sale)
	updated := cloneSale(sale)
	return &updated, nil
}

func (s *Store) ReplaceSaleItems(_ context.Context, ownerID, saleID string, items []domain.SaleItem) ([]domain.SaleItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.data.sales[saleID]
	if !exists || sale.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	sale.Items = s.prepareItems(ownerID, saleID, items)
	s.data.sales[saleID] = sale
	return slices.Clone(sale.Items), nil
}

func (s *Store) DeleteSale(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.data.sales[id]
	if !exists || sale.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.data.sales, id)
	return nil
}

func (s *Store) CreateInstallments(_ context.Context, installments []domain.Installment) ([]domain.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]domain.Installment, 0, len(installments))
	now := s.now()
	for _, inst := range installments {
		if inst.OwnerID == "" || inst.SaleID == "" || inst.AmountCents < 0 {
			return nil, store.ErrInvalidInput
		}
		if inst.ID == "" {
			inst.ID = xid.New()
		}
		inst.CreatedAt = now
		created = append(created, inst)
	}
	for _, inst := range created {
		s.data.installments[inst.ID] = inst
	}
	return created, nil
}

func (s *Store) GetInstallment(_ context.Context, ownerID, id string) (*domain.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inst, exists := s.data.installments[id]
	if !exists || inst.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &inst, nil
}

func (s *Store) ListInstallments(_ context.Context, ownerID string, filter domain.InstallmentFilter) ([]domain.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Installment, 0)
	for _, inst := range s.data.installments {
		if inst.OwnerID != ownerID {
			continue
		}
		if filter.SaleID != "" && inst.SaleID != filter.SaleID {
			continue
		}
		if filter.Status != "" && inst.Status != filter.Status {
			continue
		}
		if filter.DueBefore != nil && inst.DueDate.After(domain.DayOf(*filter.DueBefore)) {
			continue
		}
		list = append(list, inst)
	}
	slices.SortFunc(list, func(a, b domain.Installment) int {
		if c := a.DueDate.Compare(b.DueDate); c != 0 {
			return c
		}
		if c := strings.Compare(a.SaleID, b.SaleID); c != 0 {
			return c
		}
		return a.Number - b.Number
	})
	return truncate(list, filter.Limit), nil
}

func (s *Store) UpdateInstallment(_ context.Context, installment domain.Installment) (*domain.Installment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data.installments[installment.ID]
	if !exists || existing.OwnerID != installment.OwnerID {
		return nil, store.ErrNotFound
	}
	installment.CreatedAt = existing.CreatedAt
	s.data.installments[installment.ID] = installment
	updated := installment
	return &updated, nil
}

func (s *Store) DeleteInstallmentsBySale(_ context.Context, ownerID, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, inst := range s.data.installments {
		if inst.OwnerID == ownerID && inst.SaleID == saleID {
			delete(s.data.installments, id)
		}
	}
	return nil
}

func (s *Store) CreateReceivable(_ context.Context, receivable domain.Receivable) (*domain.Receivable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if receivable.OwnerID == "" || receivable.AmountCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if receivable.SaleID != nil {
		for _, existing := range s.data.receivables {
			if existing.OwnerID == receivable.OwnerID && ptrEq(existing.SaleID, *receivable.SaleID) {
				return nil, store.ErrConflict
			}
		}
	}
	if receivable.ID == "" {
		receivable.ID = xid.New()
	}
	now := s.now()
	receivable.CreatedAt = now
	receivable.UpdatedAt = now
	s.data.receivables[receivable.ID] = receivable
	created := receivable
	return &created, nil
}

func (s *Store) GetReceivableForUpdate(ctx context.Context, ownerID, id string) (*domain.Receivable, error) {
	return s.GetReceivable(ctx, ownerID, id)
}

func (s *Store) GetReceivable(_ context.Context, ownerID, id string) (*domain.Receivable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data.receivables[id]
	if !exists || r.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &r, nil
}

func (s *Store) GetReceivableBySale(_ context.Context, ownerID, saleID string) (*domain.Receivable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.data.receivables {
		if r.OwnerID == ownerID && ptrEq(r.SaleID, saleID) {
			found := r
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListReceivables(_ context.Context, ownerID string, filter domain.ReceivableFilter) ([]domain.Receivable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Receivable, 0)
	for _, r := range s.data.receivables {
		if r.OwnerID != ownerID || !inRange(r.Date, filter.From, filter.To) {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		list = append(list, r)
	}
	slices.SortFunc(list, func(a, b domain.Receivable) int {
		return newestFirst(a.Date, b.Date, a.CreatedAt, b.CreatedAt)
	})
	return truncate(list, filter.Limit), nil
}

func (s *Store) UpdateReceivable(_ context.Context, receivable domain.Receivable) (*domain.Receivable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data.receivables[receivable.ID]
	if !exists || existing.OwnerID != receivable.OwnerID {
		return nil, store.ErrNotFound
	}
	receivable.CreatedAt = existing.CreatedAt
	receivable.UpdatedAt = s.now()
	s.data.receivables[receivable.ID] = receivable
	updated := receivable
	return &updated, nil
}

func (s *Store) DeleteReceivable(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.data.receivables[id]
	if !exists || r.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.data.receivables, id)
	for childID, child := range s.data.receivables {
		if ptrEq(child.ParentID, id) {
			child.ParentID = nil
			s.data.receivables[childID] = child
		}
	}
	return nil
}

func (s *Store) ListDueRecurring(_ context.Context, asOf time.Time, limit int) ([]domain.Receivable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	asOf = domain.DayOf(asOf)
	due := make([]domain.Receivable, 0)
	for _, r := range s.data.receivables {
		if r.Recurring && r.NextOccurrence != nil && !r.NextOccurrence.After(asOf) {
			due = append(due, r)
		}
	}
	slices.SortFunc(due, func(a, b domain.Receivable) int {
		if c := a.NextOccurrence.Compare(*b.NextOccurrence); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return truncate(due, limit), nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if expense.OwnerID == "" || expense.AmountCents <= 0 {
		return nil, store.ErrInvalidInput
	}
	if expense.ID == "" {
		expense.ID = xid.New()
	}
	now := s.now()
	expense.CreatedAt = now
	expense.UpdatedAt = now
	s.data.expenses[expense.ID] = expense
	created := expense
	return &created, nil
}

func (s *Store) GetExpenseForUpdate(ctx context.Context, ownerID, id string) (*domain.Expense, error) {
	return s.GetExpense(ctx, ownerID, id)
}

func (s *Store) GetExpense(_ context.Context, ownerID, id string) (*domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data.expenses[id]
	if !exists || e.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &e, nil
}

func (s *Store) ListExpenses(_ context.Context, ownerID string, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Expense, 0)
	for _, e := range s.data.expenses {
		if e.OwnerID != ownerID || !inRange(e.Date, filter.From, filter.To) {
			continue
		}
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		list = append(list, e)
	}
	slices.SortFunc(list, func(a, b domain.Expense) int {
		return newestFirst(a.Date, b.Date, a.CreatedAt, b.CreatedAt)
	})
	return truncate(list, filter.Limit), nil
}

func (s *Store) UpdateExpense(_ context.Context, expense domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data.expenses[expense.ID]
	if !exists || existing.OwnerID != expense.OwnerID {
		return nil, store.ErrNotFound
	}
	expense.CreatedAt = existing.CreatedAt
	expense.UpdatedAt = s.now()
	s.data.expenses[expense.ID] = expense
	updated := expense
	return &updated, nil
}

func (s *Store) DeleteExpense(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.data.expenses[id]
	if !exists || e.OwnerID != ownerID {
		return store.ErrNotFound
	}
	delete(s.data.expenses, id)
	return nil
}

func (s *Store) CreateCommission(_ context.Context, commission domain.Commission) (*domain.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if commission.OwnerID == "" || commission.SaleID == "" || commission.AmountCents < 0 {
		return nil, store.ErrInvalidInput
	}
	if commission.ID == "" {
		commission.ID = xid.New()
	}
	commission.CreatedAt = s.now()
	s.data.commissions[commission.ID] = commission
	created := commission
	return &created, nil
}

func (s *Store) GetCommissionForUpdate(ctx context.Context, ownerID, id string) (*domain.Commission, error) {
	return s.GetCommission(ctx, ownerID, id)
}

func (s *Store) GetCommission(_ context.Context, ownerID, id string) (*domain.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, exists := s.data.commissions[id]
	if !exists || c.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (s *Store) ListCommissions(_ context.Context, ownerID string, filter domain.CommissionFilter) ([]domain.Commission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Commission, 0)
	for _, c := range s.data.commissions {
		if c.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.SellerName != "" && !strings.EqualFold(c.SellerName, filter.SellerName) {
			continue
		}
		if filter.SaleID != "" && c.SaleID != filter.SaleID {
			continue
		}
		list = append(list, c)
	}
	slices.SortFunc(list, func(a, b domain.Commission) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return truncate(list, filter.Limit), nil
}

func (s *Store) UpdateCommission(_ context.Context, commission domain.Commission) (*domain.Commission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data.commissions[commission.ID]
	if !exists || existing.OwnerID != commission.OwnerID {
		return nil, store.ErrNotFound
	}
	commission.CreatedAt = existing.CreatedAt
	s.data.commissions[commission.ID] = commission
	updated := commission
	return &updated, nil
}

func (s *Store) DeleteCommissionsBySale(_ context.Context, ownerID, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, c := range s.data.commissions {
		if c.OwnerID == ownerID && c.SaleID == saleID {
			delete(s.data.commissions, id)
		}
	}
	return nil
}
