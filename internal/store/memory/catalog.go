package memory

import (
	"context"
	"slices"
	"strings"

	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/xid"
)

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.OwnerID == "" || strings.TrimSpace(product.Name) == "" || product.Quantity < 0 {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New()
	}
	now := s.now()
	product.CreatedAt = now
	product.UpdatedAt = now
	s.data.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, ownerID, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.data.products[id]
	if !exists || product.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

// GetProductForUpdate is a plain read here; WithinTx already excludes other writers.
func (s *Store) GetProductForUpdate(ctx context.Context, ownerID, id string) (*domain.Product, error) {
	return s.GetProduct(ctx, ownerID, id)
}

func (s *Store) ListProducts(_ context.Context, ownerID string, filter domain.ProductFilter) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	products := make([]domain.Product, 0)
	for _, p := range s.data.products {
		if p.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(p.Name), search) && !strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return truncate(products, filter.Limit), nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data.products[product.ID]
	if !exists || existing.OwnerID != product.OwnerID {
		return nil, store.ErrNotFound
	}
	if product.Quantity < 0 || product.ReservedQuantity < 0 {
		return nil, store.ErrInvalidInput
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.now()
	s.data.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.OwnerID == "" || strings.TrimSpace(customer.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if customer.ID == "" {
		customer.ID = xid.New()
	}
	now := s.now()
	customer.CreatedAt = now
	customer.UpdatedAt = now
	s.data.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomer(_ context.Context, ownerID, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.data.customers[id]
	if !exists || customer.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context, ownerID string, includeInactive bool) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]domain.Customer, 0)
	for _, c := range s.data.customers {
		if c.OwnerID == ownerID && (includeInactive || c.Active) {
			customers = append(customers, c)
		}
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int {
		return strings.Compare(a.Name, b.Name)
	})
	return customers, nil
}

func (s *Store) UpdateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data.customers[customer.ID]
	if !exists || existing.OwnerID != customer.OwnerID {
		return nil, store.ErrNotFound
	}
	customer.CreatedAt = existing.CreatedAt
	customer.UpdatedAt = s.now()
	s.data.customers[customer.ID] = customer
	updated := customer
	return &updated, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if supplier.OwnerID == "" || strings.TrimSpace(supplier.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if supplier.ID == "" {
		supplier.ID = xid.New()
	}
	now := s.now()
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	s.data.suppliers[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) GetSupplier(_ context.Context, ownerID, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, exists := s.data.suppliers[id]
	if !exists || supplier.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &supplier, nil
}

func (s *Store) ListSuppliers(_ context.Context, ownerID string, includeInactive bool) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0)
	for _, sup := range s.data.suppliers {
		if sup.OwnerID == ownerID && (includeInactive || sup.Active) {
			suppliers = append(suppliers, sup)
		}
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return strings.Compare(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) UpdateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data.suppliers[supplier.ID]
	if !exists || existing.OwnerID != supplier.OwnerID {
		return nil, store.ErrNotFound
	}
	supplier.CreatedAt = existing.CreatedAt
	supplier.UpdatedAt = s.now()
	s.data.suppliers[supplier.ID] = supplier
	updated := supplier
	return &updated, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category.OwnerID == "" || strings.TrimSpace(category.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.data.categories {
		if existing.OwnerID == category.OwnerID && existing.Kind == category.Kind && strings.EqualFold(existing.Name, category.Name) {
			return nil, store.ErrConflict
		}
	}
	if category.ID == "" {
		category.ID = xid.New()
	}
	category.CreatedAt = s.now()
	s.data.categories[category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) GetCategory(_ context.Context, ownerID, id string) (*domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	category, exists := s.data.categories[id]
	if !exists || category.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &category, nil
}

func (s *Store) ListCategories(_ context.Context, ownerID string, kind string) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categories := make([]domain.Category, 0)
	for _, c := range s.data.categories {
		if c.OwnerID == ownerID && (kind == "" || c.Kind == kind) {
			categories = append(categories, c)
		}
	}
	slices.SortFunc(categories, func(a, b domain.Category) int {
		return strings.Compare(a.Name, b.Name)
	})
	return categories, nil
}

func (s *Store) CreatePaymentMethod(_ context.Context, method domain.PaymentMethod) (*domain.PaymentMethod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if method.OwnerID == "" || strings.TrimSpace(method.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	for _, existing := range s.data.paymentMethods {
		if existing.OwnerID == method.OwnerID && strings.EqualFold(existing.Name, method.Name) {
			return nil, store.ErrConflict
		}
	}
	if method.ID == "" {
		method.ID = xid.New()
	}
	method.CreatedAt = s.now()
	s.data.paymentMethods[method.ID] = method
	created := method
	return &created, nil
}

func (s *Store) GetPaymentMethod(_ context.Context, ownerID, id string) (*domain.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	method, exists := s.data.paymentMethods[id]
	if !exists || method.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &method, nil
}

func (s *Store) ListPaymentMethods(_ context.Context, ownerID string) ([]domain.PaymentMethod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	methods := make([]domain.PaymentMethod, 0)
	for _, m := range s.data.paymentMethods {
		if m.OwnerID == ownerID {
			methods = append(methods, m)
		}
	}
	slices.SortFunc(methods, func(a, b domain.PaymentMethod) int {
		return strings.Compare(a.Name, b.Name)
	})
	return methods, nil
}

func (s *Store) CreateCommissionRule(_ context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rule.OwnerID == "" || strings.TrimSpace(rule.SellerName) == "" {
		return nil, store.ErrInvalidInput
	}
	if rule.ID == "" {
		rule.ID = xid.New()
	}
	rule.CreatedAt = s.now()
	s.data.commissionRules[rule.ID] = rule
	created := rule
	return &created, nil
}

func (s *Store) GetCommissionRule(_ context.Context, ownerID, id string) (*domain.CommissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.data.commissionRules[id]
	if !exists || rule.OwnerID != ownerID {
		return nil, store.ErrNotFound
	}
	return &rule, nil
}

func (s *Store) ListCommissionRules(_ context.Context, ownerID string) ([]domain.CommissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rules := make([]domain.CommissionRule, 0)
	for _, r := range s.data.commissionRules {
		if r.OwnerID == ownerID {
			rules = append(rules, r)
		}
	}
	slices.SortFunc(rules, func(a, b domain.CommissionRule) int {
		return strings.Compare(a.SellerName, b.SellerName)
	})
	return rules, nil
}

func (s *Store) UpdateCommissionRule(_ context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.data.commissionRules[rule.ID]
	if !exists || existing.OwnerID != rule.OwnerID {
		return nil, store.ErrNotFound
	}
	rule.CreatedAt = existing.CreatedAt
	s.data.commissionRules[rule.ID] = rule
	updated := rule
	return &updated, nil
}

func (s *Store) FindActiveCommissionRule(_ context.Context, ownerID, sellerName string) (*domain.CommissionRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sellerName = strings.TrimSpace(sellerName)
	var match *domain.CommissionRule
	for _, r := range s.data.commissionRules {
		if r.OwnerID != ownerID || !r.Active || !strings.EqualFold(strings.TrimSpace(r.SellerName), sellerName) {
			continue
		}
		// newest rule wins when several are active
		if match == nil || r.CreatedAt.After(match.CreatedAt) {
			found := r
			match = &found
		}
	}
	if match == nil {
		return nil, store.ErrNotFound
	}
	return match, nil
}
