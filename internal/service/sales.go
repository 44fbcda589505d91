package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/store"
)

var hundred = decimal.NewFromInt(100)

// saleDraft is a validated SaleInput resolved against the catalog.
type saleDraft struct {
	date         time.Time
	method       string
	methodID     string
	customerID   *string
	categoryID   *string
	discount     int64
	status       string
	installments int
	firstDue     *time.Time
	seller       string
	notes        string
	items        []domain.SaleItem
	// priced marks items whose unit price was sent, including an explicit zero.
	priced []bool
}

// demand sums the requested quantity per product.
func (d saleDraft) demand() map[string]int {
	out := make(map[string]int)
	for _, item := range d.items {
		if item.ProductID != nil {
			out[*item.ProductID] += item.Quantity
		}
	}
	return out
}

func (d saleDraft) total() int64 {
	var subtotal int64
	for _, item := range d.items {
		subtotal += int64(item.Quantity) * item.UnitPriceCents
	}
	return subtotal - d.discount
}

func itemDemand(items []domain.SaleItem) map[string]int {
	out := make(map[string]int)
	for _, item := range items {
		if item.ProductID != nil {
			out[*item.ProductID] += item.Quantity
		}
	}
	return out
}

// settlesImmediately reports whether a paid sale carries its own ledger
// inflow. On-credit sales are settled through their installments instead.
func settlesImmediately(sale domain.Sale) bool {
	return sale.Status == domain.SalePaid && !domain.IsOnCredit(sale.PaymentMethod)
}

func receivableStatus(sale domain.Sale) string {
	if sale.Status == domain.SalePaid {
		return domain.ReceivableReceived
	}
	return domain.ReceivablePending
}

// commissionAmount rounds half to even at the cent.
func commissionAmount(totalCents int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(totalCents).Mul(percent).Div(hundred).RoundBank(0).IntPart()
}

// splitInstallments spreads total over count monthly installments. The
// remainder cents go to the last one.
func splitInstallments(total int64, count int, firstDue time.Time) ([]int64, []time.Time) {
	if count < 1 {
		count = 1
	}
	base := total / int64(count)
	amounts := make([]int64, count)
	dues := make([]time.Time, count)
	for i := range count {
		amounts[i] = base
		dues[i] = domain.AddMonthsClamped(firstDue, i)
	}
	amounts[count-1] += total - base*int64(count)
	return amounts, dues
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[len(id)-8:]
	}
	return id
}

// resolveSale validates input and resolves its references. Product lines are
// not checked against stock here; that happens under the row locks.
func (s *Service) resolveSale(ctx context.Context, actor domain.Actor, input domain.SaleInput) (saleDraft, error) {
	if err := validateStruct(input); err != nil {
		return saleDraft{}, err
	}
	date, err := parseDayOr(input.Date, s.today(), "date")
	if err != nil {
		return saleDraft{}, err
	}

	method, err := s.repo.GetPaymentMethod(ctx, actor.OwnerID, input.PaymentMethodID)
	if err != nil {
		return saleDraft{}, translate(err, "payment method", input.PaymentMethodID)
	}
	if !method.Active {
		return saleDraft{}, apperror.NewValidation("payment method is inactive").WithDetail("field", "payment_method_id")
	}

	draft := saleDraft{
		date:       date,
		method:     domain.CanonicalMethod(method.Name),
		methodID:   method.ID,
		customerID: optionalID(input.CustomerID),
		categoryID: optionalID(input.CategoryID),
		discount:   input.DiscountCents,
		seller:     strings.TrimSpace(input.SellerName),
		notes:      strings.TrimSpace(input.Notes),
	}
	if draft.customerID != nil {
		customer, err := s.repo.GetCustomer(ctx, actor.OwnerID, *draft.customerID)
		if err != nil {
			return saleDraft{}, translate(err, "customer", *draft.customerID)
		}
		if !customer.Active {
			return saleDraft{}, apperror.NewValidation("customer is inactive").WithDetail("field", "customer_id")
		}
	}
	if err := s.checkCategory(ctx, actor.OwnerID, draft.categoryID, domain.CategoryIncome); err != nil {
		return saleDraft{}, err
	}

	switch {
	case domain.IsCashEquivalent(draft.method):
		draft.status = domain.SalePaid
	case domain.IsOnCredit(draft.method):
		draft.status = domain.SalePending
		draft.installments = max(input.InstallmentCount, 1)
		firstDue, err := parseDayOr(input.FirstDueDate, domain.AddMonthsClamped(date, 1), "first_due_date")
		if err != nil {
			return saleDraft{}, err
		}
		if firstDue.Before(date) {
			return saleDraft{}, apperror.NewValidation("first_due_date must not be before the sale date").WithDetail("field", "first_due_date")
		}
		draft.firstDue = &firstDue
	default:
		draft.status = input.Status
		if draft.status == "" {
			draft.status = domain.SalePending
		}
	}

	draft.items = make([]domain.SaleItem, 0, len(input.Items))
	draft.priced = make([]bool, 0, len(input.Items))
	for i, in := range input.Items {
		item := domain.SaleItem{
			ProductID:   optionalID(in.ProductID),
			Description: strings.TrimSpace(in.Description),
			Quantity:    in.Quantity,
		}
		if in.UnitPriceCents != nil {
			item.UnitPriceCents = *in.UnitPriceCents
		}
		if item.ProductID == nil && item.Description == "" {
			return saleDraft{}, apperror.NewValidation("item needs a product or a description").
				WithDetail("field", fmt.Sprintf("items[%d]", i))
		}
		draft.items = append(draft.items, item)
		draft.priced = append(draft.priced, in.UnitPriceCents != nil)
	}
	return draft, nil
}

// lockProducts locks every product in ids in a stable order so concurrent
// sales cannot deadlock on each other.
func (s *Service) lockProducts(ctx context.Context, ownerID string, ids []string) (map[string]*domain.Product, error) {
	slices.Sort(ids)
	ids = slices.Compact(ids)
	locked := make(map[string]*domain.Product, len(ids))
	for _, id := range ids {
		product, err := s.repo.GetProductForUpdate(ctx, ownerID, id)
		if err != nil {
			return nil, translate(err, "product", id)
		}
		locked[id] = product
	}
	return locked, nil
}

// fillItemsFromProducts defaults descriptions and prices of product lines and
// checks every product can sell the aggregated quantity.
func fillItemsFromProducts(draft *saleDraft, products map[string]*domain.Product) error {
	for i := range draft.items {
		item := &draft.items[i]
		if item.ProductID == nil {
			continue
		}
		product := products[*item.ProductID]
		if item.Description == "" {
			item.Description = product.Name
		}
		if !draft.priced[i] {
			item.UnitPriceCents = product.PriceCents
		}
	}
	demand := draft.demand()
	ids := make([]string, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		product := products[id]
		if product.Status != domain.ProductAvailable {
			return apperror.NewProductUnavailable(id, product.Status)
		}
		if demand[id] > product.Sellable() {
			return apperror.NewInsufficientStock(id, demand[id], product.Sellable())
		}
	}
	if draft.total() < 0 {
		return apperror.NewValidation("discount exceeds the items subtotal").WithDetail("field", "discount_cents")
	}
	return nil
}

func (s *Service) CreateSale(ctx context.Context, input domain.SaleInput) (domain.SaleResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SaleResult{}, err
	}
	draft, err := s.resolveSale(ctx, actor, input)
	if err != nil {
		return domain.SaleResult{}, err
	}

	var result domain.SaleResult
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		products, err := s.lockProducts(ctx, actor.OwnerID, mapKeys(draft.demand()))
		if err != nil {
			return err
		}
		if err := fillItemsFromProducts(&draft, products); err != nil {
			return err
		}

		created, err := s.repo.CreateSale(ctx, domain.Sale{
			OwnerID:          actor.OwnerID,
			Date:             draft.date,
			CustomerID:       draft.customerID,
			PaymentMethodID:  draft.methodID,
			PaymentMethod:    draft.method,
			CategoryID:       draft.categoryID,
			DiscountCents:    draft.discount,
			TotalCents:       draft.total(),
			Status:           draft.status,
			InstallmentCount: draft.installments,
			FirstDueDate:     draft.firstDue,
			SellerName:       draft.seller,
			Notes:            draft.notes,
			CreatedBy:        actor.Username,
			Items:            draft.items,
		})
		if err != nil {
			return translate(err, "sale", "")
		}
		result.Sale = *created

		if err := s.consumeStock(ctx, actor, products, draft.demand(), created.ID); err != nil {
			return err
		}
		return s.deriveSaleRecords(ctx, actor, &result, nil)
	})
	if err != nil {
		return domain.SaleResult{}, err
	}

	s.metrics.SaleCreated(ctx, result.Sale.PaymentMethod, result.Sale.TotalCents)
	s.log.Infow("sale created", "owner_id", actor.OwnerID, "sale_id", result.Sale.ID,
		"total_cents", result.Sale.TotalCents, "payment_method", result.Sale.PaymentMethod)
	result.Warnings = s.afterCommit(ctx, actor.OwnerID, "create_sale")
	return result, nil
}

// consumeStock lowers each product by the sold quantity.
func (s *Service) consumeStock(ctx context.Context, actor domain.Actor, products map[string]*domain.Product, demand map[string]int, saleID string) error {
	for id, qty := range demand {
		product := products[id]
		reason := fmt.Sprintf("sale %s", shortID(saleID))
		if err := adjustQuantity(product, product.Quantity-qty, reason, actor, s.now); err != nil {
			return err
		}
		updated, err := s.repo.UpdateProduct(ctx, *product)
		if err != nil {
			return translate(err, "product", id)
		}
		*product = *updated
	}
	return nil
}

// restoreStock gives back what a sale took. Products deleted meanwhile are
// skipped.
func (s *Service) restoreStock(ctx context.Context, actor domain.Actor, items []domain.SaleItem, saleID string) error {
	demand := itemDemand(items)
	ids := mapKeys(demand)
	slices.Sort(ids)
	for _, id := range ids {
		product, err := s.repo.GetProductForUpdate(ctx, actor.OwnerID, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		restock(product, demand[id], saleID, actor, s.now)
		if _, err := s.repo.UpdateProduct(ctx, *product); err != nil {
			return translate(err, "product", id)
		}
	}
	return nil
}

func restock(p *domain.Product, qty int, saleID string, actor domain.Actor, at timeSource) {
	previous := p.Quantity
	p.Quantity += qty
	p.AppendNote(at(), actor.Username, "quantity %d -> %d (sale %s reverted)", previous, p.Quantity, shortID(saleID))
	p.RecomputeStatus()
}

// deriveSaleRecords writes the receivable, installments, ledger inflow and
// commission of result.Sale. previous is the sale before an edit, or nil.
func (s *Service) deriveSaleRecords(ctx context.Context, actor domain.Actor, result *domain.SaleResult, previous *domain.Sale) error {
	sale := result.Sale

	receivable, err := s.syncSaleReceivable(ctx, sale)
	if err != nil {
		return err
	}
	result.Receivable = receivable

	if domain.IsOnCredit(sale.PaymentMethod) {
		installments, err := s.createInstallments(ctx, sale)
		if err != nil {
			return err
		}
		result.Installments = installments
	} else {
		result.Installments = []domain.Installment{}
	}

	repost := previous == nil ||
		!previous.Date.Equal(sale.Date) ||
		previous.PaymentMethod != sale.PaymentMethod ||
		previous.TotalCents != sale.TotalCents ||
		previous.Status != sale.Status
	if repost {
		if previous != nil {
			if _, err := s.removeEntries(ctx, actor.OwnerID, domain.EntryLink{SaleID: sale.ID}); err != nil {
				return err
			}
		}
		if settlesImmediately(sale) && sale.TotalCents > 0 {
			entry, err := s.postEntry(ctx, actor, movement{
				kind:        domain.EntryInflow,
				amountCents: sale.TotalCents,
				day:         sale.Date,
				description: "Sale " + shortID(sale.ID),
				method:      sale.PaymentMethod,
				link:        domain.EntryLink{SaleID: sale.ID},
			})
			if err != nil {
				return err
			}
			result.CashEntries = []domain.CashEntry{entry}
		}
	} else {
		entries, err := s.repo.ListLinkedCashEntries(ctx, actor.OwnerID, domain.EntryLink{SaleID: sale.ID})
		if err != nil {
			return translate(err, "cash entry", "")
		}
		result.CashEntries = entries
	}
	if result.CashEntries == nil {
		result.CashEntries = []domain.CashEntry{}
	}

	commission, err := s.syncCommission(ctx, actor, sale)
	if err != nil {
		return err
	}
	result.Commission = commission
	return nil
}

func (s *Service) syncSaleReceivable(ctx context.Context, sale domain.Sale) (*domain.Receivable, error) {
	saleID := sale.ID
	desired := domain.Receivable{
		OwnerID:       sale.OwnerID,
		Type:          domain.ReceivableSale,
		Description:   "Sale " + shortID(sale.ID),
		AmountCents:   sale.TotalCents,
		Date:          sale.Date,
		Status:        receivableStatus(sale),
		SaleID:        &saleID,
		CategoryID:    sale.CategoryID,
		PaymentMethod: sale.PaymentMethod,
	}
	if desired.Status == domain.ReceivableReceived {
		receivedAt := sale.Date
		desired.ReceivedAt = &receivedAt
	}

	existing, err := s.repo.GetReceivableBySale(ctx, sale.OwnerID, sale.ID)
	if errors.Is(err, store.ErrNotFound) {
		created, err := s.repo.CreateReceivable(ctx, desired)
		return created, translate(err, "receivable", "")
	}
	if err != nil {
		return nil, err
	}
	desired.ID = existing.ID
	updated, err := s.repo.UpdateReceivable(ctx, desired)
	return updated, translate(err, "receivable", existing.ID)
}

func (s *Service) createInstallments(ctx context.Context, sale domain.Sale) ([]domain.Installment, error) {
	firstDue := domain.AddMonthsClamped(sale.Date, 1)
	if sale.FirstDueDate != nil {
		firstDue = *sale.FirstDueDate
	}
	amounts, dues := splitInstallments(sale.TotalCents, sale.InstallmentCount, firstDue)
	rows := make([]domain.Installment, len(amounts))
	for i := range amounts {
		rows[i] = domain.Installment{
			OwnerID:     sale.OwnerID,
			SaleID:      sale.ID,
			CustomerID:  sale.CustomerID,
			Number:      i + 1,
			AmountCents: amounts[i],
			DueDate:     dues[i],
			Status:      domain.InstallmentPending,
		}
	}
	created, err := s.repo.CreateInstallments(ctx, rows)
	if err != nil {
		return nil, translate(err, "installment", "")
	}
	return created, nil
}

// syncCommission replaces the pending commission of a sale. A commission
// that was already paid out is left untouched.
func (s *Service) syncCommission(ctx context.Context, actor domain.Actor, sale domain.Sale) (*domain.Commission, error) {
	existing, err := s.repo.ListCommissions(ctx, actor.OwnerID, domain.CommissionFilter{SaleID: sale.ID})
	if err != nil {
		return nil, err
	}
	for _, c := range existing {
		if c.Status == domain.CommissionPaid {
			paid := c
			return &paid, nil
		}
	}
	if len(existing) > 0 {
		if err := s.repo.DeleteCommissionsBySale(ctx, actor.OwnerID, sale.ID); err != nil {
			return nil, err
		}
	}
	if sale.SellerName == "" {
		return nil, nil
	}
	rule, err := s.repo.FindActiveCommissionRule(ctx, actor.OwnerID, sale.SellerName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	created, err := s.repo.CreateCommission(ctx, domain.Commission{
		OwnerID:     actor.OwnerID,
		SaleID:      sale.ID,
		RuleID:      rule.ID,
		SellerName:  rule.SellerName,
		BaseCents:   sale.TotalCents,
		Percent:     rule.Percent,
		AmountCents: commissionAmount(sale.TotalCents, rule.Percent),
		Status:      domain.CommissionPending,
	})
	if err != nil {
		return nil, translate(err, "commission", "")
	}
	return created, nil
}

// UpdateSale replaces every field and item of a sale. Stock taken by the old
// items is returned before the new items are checked and consumed.
func (s *Service) UpdateSale(ctx context.Context, id string, input domain.SaleInput) (domain.SaleResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SaleResult{}, err
	}
	draft, err := s.resolveSale(ctx, actor, input)
	if err != nil {
		return domain.SaleResult{}, err
	}

	var result domain.SaleResult
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		previous, err := s.repo.GetSaleForUpdate(ctx, actor.OwnerID, id)
		if err != nil {
			return translate(err, "sale", id)
		}
		if previous.Status == domain.SaleCancelled {
			return apperror.NewBusinessRule(apperror.CodeInvalidState, "cancelled sales cannot be edited")
		}
		if err := s.ensureNoPaidInstallments(ctx, actor.OwnerID, id); err != nil {
			return err
		}

		// status set by ConfirmSalePaid survives an edit that keeps the method
		if !domain.IsCashEquivalent(draft.method) && !domain.IsOnCredit(draft.method) &&
			input.Status == "" && previous.PaymentMethod == draft.method {
			draft.status = previous.Status
		}

		oldDemand := itemDemand(previous.Items)
		newDemand := draft.demand()
		products, err := s.lockProducts(ctx, actor.OwnerID, append(mapKeys(oldDemand), mapKeys(newDemand)...))
		if err != nil {
			return err
		}
		for pid, qty := range oldDemand {
			restock(products[pid], qty, id, actor, s.now)
		}
		if err := fillItemsFromProducts(&draft, products); err != nil {
			return err
		}
		for pid, qty := range newDemand {
			if err := adjustQuantity(products[pid], products[pid].Quantity-qty, "sale "+shortID(id)+" edited", actor, s.now); err != nil {
				return err
			}
		}
		touched := mapKeys(products)
		slices.Sort(touched)
		for _, pid := range touched {
			if _, err := s.repo.UpdateProduct(ctx, *products[pid]); err != nil {
				return translate(err, "product", pid)
			}
		}

		header := *previous
		header.Date = draft.date
		header.CustomerID = draft.customerID
		header.PaymentMethodID = draft.methodID
		header.PaymentMethod = draft.method
		header.CategoryID = draft.categoryID
		header.DiscountCents = draft.discount
		header.TotalCents = draft.total()
		header.Status = draft.status
		header.InstallmentCount = draft.installments
		header.FirstDueDate = draft.firstDue
		header.SellerName = draft.seller
		header.Notes = draft.notes
		updated, err := s.repo.UpdateSaleHeader(ctx, header)
		if err != nil {
			return translate(err, "sale", id)
		}
		items, err := s.repo.ReplaceSaleItems(ctx, actor.OwnerID, id, draft.items)
		if err != nil {
			return translate(err, "sale", id)
		}
		updated.Items = items
		result.Sale = *updated

		if err := s.repo.DeleteInstallmentsBySale(ctx, actor.OwnerID, id); err != nil {
			return err
		}
		return s.deriveSaleRecords(ctx, actor, &result, previous)
	})
	if err != nil {
		return domain.SaleResult{}, err
	}
	result.Warnings = s.afterCommit(ctx, actor.OwnerID, "update_sale")
	return result, nil
}

func (s *Service) ensureNoPaidInstallments(ctx context.Context, ownerID, saleID string) error {
	installments, err := s.repo.ListInstallments(ctx, ownerID, domain.InstallmentFilter{SaleID: saleID, Status: domain.InstallmentPaid, Limit: 1})
	if err != nil {
		return err
	}
	if len(installments) > 0 {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "sale has paid installments")
	}
	return nil
}

// DeleteSale removes a sale with every derived record and returns its stock.
func (s *Service) DeleteSale(ctx context.Context, id string) ([]string, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		sale, err := s.repo.GetSaleForUpdate(ctx, actor.OwnerID, id)
		if err != nil {
			return translate(err, "sale", id)
		}
		if sale.Status != domain.SaleCancelled {
			if err := s.restoreStock(ctx, actor, sale.Items, sale.ID); err != nil {
				return err
			}
		}
		if _, err := s.removeEntries(ctx, actor.OwnerID, domain.EntryLink{SaleID: id}); err != nil {
			return err
		}
		installments, err := s.repo.ListInstallments(ctx, actor.OwnerID, domain.InstallmentFilter{SaleID: id, Limit: 500})
		if err != nil {
			return err
		}
		for _, inst := range installments {
			if _, err := s.removeEntries(ctx, actor.OwnerID, domain.EntryLink{InstallmentID: inst.ID}); err != nil {
				return err
			}
		}
		if err := s.repo.DeleteInstallmentsBySale(ctx, actor.OwnerID, id); err != nil {
			return err
		}
		receivable, err := s.repo.GetReceivableBySale(ctx, actor.OwnerID, id)
		switch {
		case err == nil:
			if err := s.repo.DeleteReceivable(ctx, actor.OwnerID, receivable.ID); err != nil {
				return err
			}
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		if err := s.repo.DeleteCommissionsBySale(ctx, actor.OwnerID, id); err != nil {
			return err
		}
		return translate(s.repo.DeleteSale(ctx, actor.OwnerID, id), "sale", id)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("sale deleted", "owner_id", actor.OwnerID, "sale_id", id, "by", actor.Username)
	return s.afterCommit(ctx, actor.OwnerID, "delete_sale"), nil
}

// CancelSale moves a pending sale to cancelled and undoes its effects on
// stock, ledger, receivables and commissions.
func (s *Service) CancelSale(ctx context.Context, id string) (domain.SaleResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SaleResult{}, err
	}
	var result domain.SaleResult
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		sale, err := s.repo.GetSaleForUpdate(ctx, actor.OwnerID, id)
		if err != nil {
			return translate(err, "sale", id)
		}
		if sale.Status != domain.SalePending {
			return apperror.NewInvalidState("sale", sale.Status, domain.SaleCancelled)
		}
		if err := s.ensureNoPaidInstallments(ctx, actor.OwnerID, id); err != nil {
			return err
		}
		if err := s.restoreStock(ctx, actor, sale.Items, sale.ID); err != nil {
			return err
		}
		if _, err := s.removeEntries(ctx, actor.OwnerID, domain.EntryLink{SaleID: id}); err != nil {
			return err
		}
		receivable, err := s.repo.GetReceivableBySale(ctx, actor.OwnerID, id)
		switch {
		case err == nil:
			if err := s.repo.DeleteReceivable(ctx, actor.OwnerID, receivable.ID); err != nil {
				return err
			}
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		if err := s.repo.DeleteCommissionsBySale(ctx, actor.OwnerID, id); err != nil {
			return err
		}

		installments, err := s.repo.ListInstallments(ctx, actor.OwnerID, domain.InstallmentFilter{SaleID: id, Limit: 500})
		if err != nil {
			return err
		}
		result.Installments = make([]domain.Installment, 0, len(installments))
		for _, inst := range installments {
			inst.Status = domain.InstallmentCancelled
			updated, err := s.repo.UpdateInstallment(ctx, inst)
			if err != nil {
				return err
			}
			result.Installments = append(result.Installments, *updated)
		}

		sale.Status = domain.SaleCancelled
		updated, err := s.repo.UpdateSaleHeader(ctx, *sale)
		if err != nil {
			return translate(err, "sale", id)
		}
		result.Sale = *updated
		result.CashEntries = []domain.CashEntry{}
		return nil
	})
	if err != nil {
		return domain.SaleResult{}, err
	}
	result.Warnings = s.afterCommit(ctx, actor.OwnerID, "cancel_sale")
	return result, nil
}

// ConfirmSalePaid settles a pending sale paid by a method that does not post
// at sale time.
func (s *Service) ConfirmSalePaid(ctx context.Context, id string) (domain.SaleResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SaleResult{}, err
	}
	var result domain.SaleResult
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		sale, err := s.repo.GetSaleForUpdate(ctx, actor.OwnerID, id)
		if err != nil {
			return translate(err, "sale", id)
		}
		if sale.Status != domain.SalePending {
			return apperror.NewInvalidState("sale", sale.Status, domain.SalePaid)
		}
		if domain.IsOnCredit(sale.PaymentMethod) {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "on-credit sales are settled by paying their installments")
		}
		sale.Status = domain.SalePaid
		updated, err := s.repo.UpdateSaleHeader(ctx, *sale)
		if err != nil {
			return translate(err, "sale", id)
		}
		result.Sale = *updated

		receivable, err := s.syncSaleReceivable(ctx, *updated)
		if err != nil {
			return err
		}
		result.Receivable = receivable
		result.CashEntries = []domain.CashEntry{}
		if updated.TotalCents > 0 {
			entry, err := s.postEntry(ctx, actor, movement{
				kind:        domain.EntryInflow,
				amountCents: updated.TotalCents,
				day:         updated.Date,
				description: "Sale " + shortID(updated.ID),
				method:      updated.PaymentMethod,
				link:        domain.EntryLink{SaleID: updated.ID},
			})
			if err != nil {
				return err
			}
			result.CashEntries = append(result.CashEntries, entry)
		}
		return nil
	})
	if err != nil {
		return domain.SaleResult{}, err
	}
	result.Warnings = s.afterCommit(ctx, actor.OwnerID, "confirm_sale_paid")
	return result, nil
}

// GetSale returns a sale with its derived records.
func (s *Service) GetSale(ctx context.Context, id string) (domain.SaleResult, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.SaleResult{}, err
	}
	sale, err := s.repo.GetSale(ctx, actor.OwnerID, id)
	if err != nil {
		return domain.SaleResult{}, translate(err, "sale", id)
	}
	result := domain.SaleResult{Sale: *sale, CashEntries: []domain.CashEntry{}}

	result.Installments, err = s.repo.ListInstallments(ctx, actor.OwnerID, domain.InstallmentFilter{SaleID: id, Limit: 500})
	if err != nil {
		return domain.SaleResult{}, err
	}
	receivable, err := s.repo.GetReceivableBySale(ctx, actor.OwnerID, id)
	switch {
	case err == nil:
		result.Receivable = receivable
	case !errors.Is(err, store.ErrNotFound):
		return domain.SaleResult{}, err
	}
	commissions, err := s.repo.ListCommissions(ctx, actor.OwnerID, domain.CommissionFilter{SaleID: id, Limit: 1})
	if err != nil {
		return domain.SaleResult{}, err
	}
	if len(commissions) > 0 {
		result.Commission = &commissions[0]
	}
	return result, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	if filter.Status != "" && filter.Status != domain.SalePending && filter.Status != domain.SalePaid && filter.Status != domain.SaleCancelled {
		return nil, apperror.NewValidation("status must be one of [pending paid cancelled]").WithDetail("field", "status")
	}
	return s.repo.ListSales(ctx, actor.OwnerID, filter)
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
