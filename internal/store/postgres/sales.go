package postgres

import (
	"context"
	"time"

	"github.com/Masterminds/squirrel"

	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/xid"
)

var (
	saleCols = []string{
		"id", "owner_id", "sale_date", "customer_id", "payment_method_id", "payment_method", "category_id",
		"discount_cents", "total_cents", "status", "installment_count", "first_due_date", "seller_name",
		"notes", "created_by", "created_at", "updated_at",
	}
	saleItemCols    = []string{"id", "sale_id", "owner_id", "product_id", "description", "quantity", "unit_price_cents", "subtotal_cents"}
	installmentCols = []string{
		"id", "owner_id", "sale_id", "customer_id", "number", "amount_cents", "due_date", "status",
		"paid_at", "payment_method", "created_at",
	}
	receivableCols = []string{
		"id", "owner_id", "type", "description", "amount_cents", "income_date", "status", "sale_id",
		"category_id", "received_at", "payment_method", "recurring", "recurrence", "next_occurrence",
		"parent_id", "created_at", "updated_at",
	}
	expenseCols = []string{
		"id", "owner_id", "description", "amount_cents", "expense_date", "due_date", "category_id",
		"supplier_id", "status", "paid_at", "payment_method", "created_at", "updated_at",
	}
	commissionCols = []string{
		"id", "owner_id", "sale_id", "rule_id", "seller_name", "base_cents", "percent", "amount_cents",
		"status", "paid_at", "created_at",
	}
)

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.OwnerID == "" || len(sale.Items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New()
	}
	var created domain.Sale
	err := s.get(ctx, &created, s.sb.Insert("sales").
		Columns("id", "owner_id", "sale_date", "customer_id", "payment_method_id", "payment_method", "category_id",
			"discount_cents", "total_cents", "status", "installment_count", "first_due_date", "seller_name",
			"notes", "created_by").
		Values(sale.ID, sale.OwnerID, domain.DayOf(sale.Date), sale.CustomerID, sale.PaymentMethodID, sale.PaymentMethod,
			sale.CategoryID, sale.DiscountCents, sale.TotalCents, sale.Status, sale.InstallmentCount, sale.FirstDueDate,
			sale.SellerName, sale.Notes, sale.CreatedBy).
		Suffix(returning(saleCols)))
	if err != nil {
		return nil, err
	}

	items, err := s.insertItems(ctx, sale.OwnerID, sale.ID, sale.Items)
	if err != nil {
		return nil, err
	}
	created.Items = items
	return &created, nil
}

func (s *Store) insertItems(ctx context.Context, ownerID, saleID string, items []domain.SaleItem) ([]domain.SaleItem, error) {
	q := s.sb.Insert("sale_items").Columns(saleItemCols...)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = xid.New()
		}
		items[i].SaleID = saleID
		items[i].OwnerID = ownerID
		items[i].SubtotalCents = int64(items[i].Quantity) * items[i].UnitPriceCents
		it := items[i]
		q = q.Values(it.ID, it.SaleID, it.OwnerID, it.ProductID, it.Description, it.Quantity, it.UnitPriceCents, it.SubtotalCents)
	}
	inserted := make([]domain.SaleItem, 0, len(items))
	if err := s.selectAll(ctx, &inserted, q.Suffix(returning(saleItemCols))); err != nil {
		return nil, err
	}
	return inserted, nil
}

func (s *Store) loadItems(ctx context.Context, sales []domain.Sale) error {
	if len(sales) == 0 {
		return nil
	}
	ids := make([]string, 0, len(sales))
	for _, sale := range sales {
		ids = append(ids, sale.ID)
	}
	items := make([]domain.SaleItem, 0)
	if err := s.selectAll(ctx, &items, s.sb.Select(saleItemCols...).From("sale_items").
		Where(squirrel.Eq{"sale_id": ids}).
		OrderBy("sale_id", "id")); err != nil {
		return err
	}
	bySale := make(map[string][]domain.SaleItem, len(sales))
	for _, item := range items {
		bySale[item.SaleID] = append(bySale[item.SaleID], item)
	}
	for i := range sales {
		sales[i].Items = bySale[sales[i].ID]
	}
	return nil
}

func (s *Store) GetSale(ctx context.Context, ownerID, id string) (*domain.Sale, error) {
	return s.getSale(ctx, ownerID, id, "")
}

func (s *Store) GetSaleForUpdate(ctx context.Context, ownerID, id string) (*domain.Sale, error) {
	return s.getSale(ctx, ownerID, id, "FOR UPDATE")
}

func (s *Store) getSale(ctx context.Context, ownerID, id, suffix string) (*domain.Sale, error) {
	q := s.sb.Select(saleCols...).From("sales").Where(squirrel.Eq{"id": id, "owner_id": ownerID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	sales := make([]domain.Sale, 0, 1)
	if err := s.selectAll(ctx, &sales, q); err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, store.ErrNotFound
	}
	if err := s.loadItems(ctx, sales); err != nil {
		return nil, err
	}
	return &sales[0], nil
}

func (s *Store) ListSales(ctx context.Context, ownerID string, filter domain.SaleFilter) ([]domain.Sale, error) {
	q := s.sb.Select(saleCols...).From("sales").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("sale_date DESC", "created_at DESC").
		Limit(clampLimit(filter.Limit))
	q = whereDayRange(q, "sale_date", filter.From, filter.To)
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.CustomerID != "" {
		q = q.Where(squirrel.Eq{"customer_id": filter.CustomerID})
	}
	sales := make([]domain.Sale, 0)
	if err := s.selectAll(ctx, &sales, q); err != nil {
		return nil, err
	}
	return sales, s.loadItems(ctx, sales)
}

func (s *Store) UpdateSaleHeader(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	var updated domain.Sale
	err := s.get(ctx, &updated, s.sb.Update("sales").
		SetMap(map[string]any{
			"sale_date":         domain.DayOf(sale.Date),
			"customer_id":       sale.CustomerID,
			"payment_method_id": sale.PaymentMethodID,
			"payment_method":    sale.PaymentMethod,
			"category_id":       sale.CategoryID,
			"discount_cents":    sale.DiscountCents,
			"total_cents":       sale.TotalCents,
			"status":            sale.Status,
			"installment_count": sale.InstallmentCount,
			"first_due_date":    sale.FirstDueDate,
			"seller_name":       sale.SellerName,
			"notes":             sale.Notes,
			"updated_at":        squirrel.Expr("now()"),
		}).
		Where(squirrel.Eq{"id": sale.ID, "owner_id": sale.OwnerID}).
		Suffix(returning(saleCols)))
	if err != nil {
		return nil, err
	}
	updated.Items = sale.Items
	return &updated, nil
}

func (s *Store) ReplaceSaleItems(ctx context.Context, ownerID, saleID string, items []domain.SaleItem) ([]domain.SaleItem, error) {
	if len(items) == 0 {
		return nil, store.ErrInvalidInput
	}
	if _, err := s.exec(ctx, s.sb.Delete("sale_items").Where(squirrel.Eq{"sale_id": saleID, "owner_id": ownerID})); err != nil {
		return nil, err
	}
	return s.insertItems(ctx, ownerID, saleID, items)
}

// DeleteSale relies on ON DELETE CASCADE for items, installments, the
// sale receivable and commissions. Ledger entries are removed by the caller.
func (s *Store) DeleteSale(ctx context.Context, ownerID, id string) error {
	return s.execOne(ctx, s.sb.Delete("sales").Where(squirrel.Eq{"id": id, "owner_id": ownerID}))
}

func (s *Store) CreateInstallments(ctx context.Context, installments []domain.Installment) ([]domain.Installment, error) {
	if len(installments) == 0 {
		return []domain.Installment{}, nil
	}
	q := s.sb.Insert("installments").
		Columns("id", "owner_id", "sale_id", "customer_id", "number", "amount_cents", "due_date", "status", "paid_at", "payment_method")
	for _, inst := range installments {
		if inst.ID == "" {
			inst.ID = xid.New()
		}
		q = q.Values(inst.ID, inst.OwnerID, inst.SaleID, inst.CustomerID, inst.Number, inst.AmountCents,
			domain.DayOf(inst.DueDate), inst.Status, inst.PaidAt, inst.PaymentMethod)
	}
	created := make([]domain.Installment, 0, len(installments))
	if err := s.selectAll(ctx, &created, q.Suffix(returning(installmentCols))); err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) GetInstallment(ctx context.Context, ownerID, id string) (*domain.Installment, error) {
	var inst domain.Installment
	if err := s.get(ctx, &inst, s.sb.Select(installmentCols...).From("installments").
		Where(squirrel.Eq{"id": id, "owner_id": ownerID}).Suffix("FOR UPDATE")); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (s *Store) ListInstallments(ctx context.Context, ownerID string, filter domain.InstallmentFilter) ([]domain.Installment, error) {
	q := s.sb.Select(installmentCols...).From("installments").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("due_date", "sale_id", "number").
		Limit(clampLimit(filter.Limit))
	if filter.SaleID != "" {
		q = q.Where(squirrel.Eq{"sale_id": filter.SaleID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.DueBefore != nil {
		q = q.Where(squirrel.LtOrEq{"due_date": domain.DayOf(*filter.DueBefore)})
	}
	list := make([]domain.Installment, 0)
	return list, s.selectAll(ctx, &list, q)
}

func (s *Store) UpdateInstallment(ctx context.Context, installment domain.Installment) (*domain.Installment, error) {
	var updated domain.Installment
	err := s.get(ctx, &updated, s.sb.Update("installments").
		SetMap(map[string]any{
			"amount_cents":   installment.AmountCents,
			"due_date":       domain.DayOf(installment.DueDate),
			"status":         installment.Status,
			"paid_at":        installment.PaidAt,
			"payment_method": installment.PaymentMethod,
		}).
		Where(squirrel.Eq{"id": installment.ID, "owner_id": installment.OwnerID}).
		Suffix(returning(installmentCols)))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteInstallmentsBySale(ctx context.Context, ownerID, saleID string) error {
	_, err := s.exec(ctx, s.sb.Delete("installments").Where(squirrel.Eq{"sale_id": saleID, "owner_id": ownerID}))
	return err
}

func (s *Store) CreateReceivable(ctx context.Context, r domain.Receivable) (*domain.Receivable, error) {
	if r.ID == "" {
		r.ID = xid.New()
	}
	var created domain.Receivable
	err := s.get(ctx, &created, s.sb.Insert("receivables").
		Columns("id", "owner_id", "type", "description", "amount_cents", "income_date", "status", "sale_id",
			"category_id", "received_at", "payment_method", "recurring", "recurrence", "next_occurrence", "parent_id").
		Values(r.ID, r.OwnerID, r.Type, r.Description, r.AmountCents, domain.DayOf(r.Date), r.Status, r.SaleID,
			r.CategoryID, r.ReceivedAt, r.PaymentMethod, r.Recurring, r.Recurrence, r.NextOccurrence, r.ParentID).
		Suffix(returning(receivableCols)))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetReceivable(ctx context.Context, ownerID, id string) (*domain.Receivable, error) {
	return s.getReceivable(ctx, ownerID, id, "")
}

func (s *Store) GetReceivableForUpdate(ctx context.Context, ownerID, id string) (*domain.Receivable, error) {
	return s.getReceivable(ctx, ownerID, id, "FOR UPDATE")
}

func (s *Store) getReceivable(ctx context.Context, ownerID, id, suffix string) (*domain.Receivable, error) {
	q := s.sb.Select(receivableCols...).From("receivables").Where(squirrel.Eq{"id": id, "owner_id": ownerID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	var r domain.Receivable
	if err := s.get(ctx, &r, q); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) GetReceivableBySale(ctx context.Context, ownerID, saleID string) (*domain.Receivable, error) {
	var r domain.Receivable
	if err := s.get(ctx, &r, s.sb.Select(receivableCols...).From("receivables").
		Where(squirrel.Eq{"sale_id": saleID, "owner_id": ownerID})); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListReceivables(ctx context.Context, ownerID string, filter domain.ReceivableFilter) ([]domain.Receivable, error) {
	q := s.sb.Select(receivableCols...).From("receivables").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("income_date DESC", "created_at DESC").
		Limit(clampLimit(filter.Limit))
	q = whereDayRange(q, "income_date", filter.From, filter.To)
	if filter.Type != "" {
		q = q.Where(squirrel.Eq{"type": filter.Type})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	list := make([]domain.Receivable, 0)
	return list, s.selectAll(ctx, &list, q)
}

func (s *Store) UpdateReceivable(ctx context.Context, r domain.Receivable) (*domain.Receivable, error) {
	var updated domain.Receivable
	err := s.get(ctx, &updated, s.sb.Update("receivables").
		SetMap(map[string]any{
			"description":     r.Description,
			"amount_cents":    r.AmountCents,
			"income_date":     domain.DayOf(r.Date),
			"status":          r.Status,
			"category_id":     r.CategoryID,
			"received_at":     r.ReceivedAt,
			"payment_method":  r.PaymentMethod,
			"recurring":       r.Recurring,
			"recurrence":      r.Recurrence,
			"next_occurrence": r.NextOccurrence,
			"updated_at":      squirrel.Expr("now()"),
		}).
		Where(squirrel.Eq{"id": r.ID, "owner_id": r.OwnerID}).
		Suffix(returning(receivableCols)))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteReceivable(ctx context.Context, ownerID, id string) error {
	return s.execOne(ctx, s.sb.Delete("receivables").Where(squirrel.Eq{"id": id, "owner_id": ownerID}))
}

// ListDueRecurring skips rows another worker already holds.
func (s *Store) ListDueRecurring(ctx context.Context, asOf time.Time, limit int) ([]domain.Receivable, error) {
	list := make([]domain.Receivable, 0)
	return list, s.selectAll(ctx, &list, s.sb.Select(receivableCols...).From("receivables").
		Where(squirrel.Eq{"recurring": true}).
		Where(squirrel.LtOrEq{"next_occurrence": domain.DayOf(asOf)}).
		OrderBy("next_occurrence", "id").
		Limit(clampLimit(limit)).
		Suffix("FOR UPDATE SKIP LOCKED"))
}

func (s *Store) CreateExpense(ctx context.Context, e domain.Expense) (*domain.Expense, error) {
	if e.ID == "" {
		e.ID = xid.New()
	}
	var created domain.Expense
	err := s.get(ctx, &created, s.sb.Insert("expenses").
		Columns("id", "owner_id", "description", "amount_cents", "expense_date", "due_date", "category_id",
			"supplier_id", "status", "paid_at", "payment_method").
		Values(e.ID, e.OwnerID, e.Description, e.AmountCents, domain.DayOf(e.Date), e.DueDate, e.CategoryID,
			e.SupplierID, e.Status, e.PaidAt, e.PaymentMethod).
		Suffix(returning(expenseCols)))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetExpense(ctx context.Context, ownerID, id string) (*domain.Expense, error) {
	return s.getExpense(ctx, ownerID, id, "")
}

func (s *Store) GetExpenseForUpdate(ctx context.Context, ownerID, id string) (*domain.Expense, error) {
	return s.getExpense(ctx, ownerID, id, "FOR UPDATE")
}

func (s *Store) getExpense(ctx context.Context, ownerID, id, suffix string) (*domain.Expense, error) {
	q := s.sb.Select(expenseCols...).From("expenses").Where(squirrel.Eq{"id": id, "owner_id": ownerID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	var e domain.Expense
	if err := s.get(ctx, &e, q); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) ListExpenses(ctx context.Context, ownerID string, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	q := s.sb.Select(expenseCols...).From("expenses").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("expense_date DESC", "created_at DESC").
		Limit(clampLimit(filter.Limit))
	q = whereDayRange(q, "expense_date", filter.From, filter.To)
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	list := make([]domain.Expense, 0)
	return list, s.selectAll(ctx, &list, q)
}

func (s *Store) UpdateExpense(ctx context.Context, e domain.Expense) (*domain.Expense, error) {
	var updated domain.Expense
	err := s.get(ctx, &updated, s.sb.Update("expenses").
		SetMap(map[string]any{
			"description":    e.Description,
			"amount_cents":   e.AmountCents,
			"expense_date":   domain.DayOf(e.Date),
			"due_date":       e.DueDate,
			"category_id":    e.CategoryID,
			"supplier_id":    e.SupplierID,
			"status":         e.Status,
			"paid_at":        e.PaidAt,
			"payment_method": e.PaymentMethod,
			"updated_at":     squirrel.Expr("now()"),
		}).
		Where(squirrel.Eq{"id": e.ID, "owner_id": e.OwnerID}).
		Suffix(returning(expenseCols)))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteExpense(ctx context.Context, ownerID, id string) error {
	return s.execOne(ctx, s.sb.Delete("expenses").Where(squirrel.Eq{"id": id, "owner_id": ownerID}))
}

func (s *Store) CreateCommission(ctx context.Context, c domain.Commission) (*domain.Commission, error) {
	if c.ID == "" {
		c.ID = xid.New()
	}
	var created domain.Commission
	err := s.get(ctx, &created, s.sb.Insert("commissions").
		Columns("id", "owner_id", "sale_id", "rule_id", "seller_name", "base_cents", "percent", "amount_cents", "status", "paid_at").
		Values(c.ID, c.OwnerID, c.SaleID, c.RuleID, c.SellerName, c.BaseCents, c.Percent, c.AmountCents, c.Status, c.PaidAt).
		Suffix(returning(commissionCols)))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetCommission(ctx context.Context, ownerID, id string) (*domain.Commission, error) {
	return s.getCommission(ctx, ownerID, id, "")
}

func (s *Store) GetCommissionForUpdate(ctx context.Context, ownerID, id string) (*domain.Commission, error) {
	return s.getCommission(ctx, ownerID, id, "FOR UPDATE")
}

func (s *Store) getCommission(ctx context.Context, ownerID, id, suffix string) (*domain.Commission, error) {
	q := s.sb.Select(commissionCols...).From("commissions").Where(squirrel.Eq{"id": id, "owner_id": ownerID})
	if suffix != "" {
		q = q.Suffix(suffix)
	}
	var c domain.Commission
	if err := s.get(ctx, &c, q); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) ListCommissions(ctx context.Context, ownerID string, filter domain.CommissionFilter) ([]domain.Commission, error) {
	q := s.sb.Select(commissionCols...).From("commissions").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("created_at DESC").
		Limit(clampLimit(filter.Limit))
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.SellerName != "" {
		q = q.Where("lower(seller_name) = lower(?)", filter.SellerName)
	}
	if filter.SaleID != "" {
		q = q.Where(squirrel.Eq{"sale_id": filter.SaleID})
	}
	list := make([]domain.Commission, 0)
	return list, s.selectAll(ctx, &list, q)
}

func (s *Store) UpdateCommission(ctx context.Context, c domain.Commission) (*domain.Commission, error) {
	var updated domain.Commission
	err := s.get(ctx, &updated, s.sb.Update("commissions").
		Set("status", c.Status).
		Set("paid_at", c.PaidAt).
		Where(squirrel.Eq{"id": c.ID, "owner_id": c.OwnerID}).
		Suffix(returning(commissionCols)))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteCommissionsBySale(ctx context.Context, ownerID, saleID string) error {
	_, err := s.exec(ctx, s.sb.Delete("commissions").Where(squirrel.Eq{"sale_id": saleID, "owner_id": ownerID}))
	return err
}

func whereDayRange(q squirrel.SelectBuilder, column string, from, to *time.Time) squirrel.SelectBuilder {
	if from != nil {
		q = q.Where(squirrel.GtOrEq{column: domain.DayOf(*from)})
	}
	if to != nil {
		q = q.Where(squirrel.LtOrEq{column: domain.DayOf(*to)})
	}
	return q
}
