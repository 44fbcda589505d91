package postgres

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"

	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/xid"
)

var (
	userCols = []string{"id", "owner_id", "username", "password", "role", "active", "created_at"}

	productCols = []string{
		"id", "owner_id", "name", "description", "category_id", "cost_cents", "price_cents",
		"quantity", "reserved_quantity", "status", "image_url", "notes", "created_at", "updated_at",
	}

	contactCols = []string{"id", "owner_id", "name", "email", "phone", "document", "notes", "active", "created_at", "updated_at"}

	categoryCols      = []string{"id", "owner_id", "name", "kind", "created_at"}
	paymentMethodCols = []string{"id", "owner_id", "name", "active", "created_at"}
	ruleCols          = []string{"id", "owner_id", "seller_name", "percent", "active", "created_at"}
)

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	if user.ID == "" {
		user.ID = xid.New()
	}
	if user.OwnerID == "" {
		user.OwnerID = user.ID
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	_, err := s.exec(ctx, s.sb.Insert("users").
		Columns("id", "owner_id", "username", "password", "role", "active").
		Values(user.ID, user.OwnerID, user.Username, user.Password, user.Role, true))
	return err
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.get(ctx, &user, s.sb.Select(userCols...).From("users").
		Where(squirrel.Eq{"username": strings.ToLower(strings.TrimSpace(username))}))
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, ownerID string) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0)
	err := s.selectAll(ctx, &users, s.sb.Select(userCols...).From("users").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("username"))
	return users, err
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID string, password string) error {
	if strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	return s.execOne(ctx, s.sb.Update("users").Set("password", password).Where(squirrel.Eq{"id": userID}))
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.OwnerID == "" || strings.TrimSpace(product.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if product.ID == "" {
		product.ID = xid.New()
	}
	var created domain.Product
	err := s.get(ctx, &created, s.sb.Insert("products").
		Columns("id", "owner_id", "name", "description", "category_id", "cost_cents", "price_cents",
			"quantity", "reserved_quantity", "status", "image_url", "notes").
		Values(product.ID, product.OwnerID, product.Name, product.Description, product.CategoryID, product.CostCents,
			product.PriceCents, product.Quantity, product.ReservedQuantity, product.Status, product.ImageURL, product.Notes).
		Suffix(returning(productCols)))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, ownerID, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.get(ctx, &product, s.sb.Select(productCols...).From("products").
		Where(squirrel.Eq{"id": id, "owner_id": ownerID}))
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductForUpdate(ctx context.Context, ownerID, id string) (*domain.Product, error) {
	var product domain.Product
	err := s.get(ctx, &product, s.sb.Select(productCols...).From("products").
		Where(squirrel.Eq{"id": id, "owner_id": ownerID}).
		Suffix("FOR UPDATE"))
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *Store) ListProducts(ctx context.Context, ownerID string, filter domain.ProductFilter) ([]domain.Product, error) {
	q := s.sb.Select(productCols...).From("products").
		Where(squirrel.Eq{"owner_id": ownerID}).
		OrderBy("name", "id").
		Limit(clampLimit(filter.Limit))
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + search + "%"
		q = q.Where(squirrel.Or{squirrel.ILike{"name": pattern}, squirrel.ILike{"description": pattern}})
	}
	products := make([]domain.Product, 0)
	return products, s.selectAll(ctx, &products, q)
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	var updated domain.Product
	err := s.get(ctx, &updated, s.sb.Update("products").
		SetMap(map[string]any{
			"name":              product.Name,
			"description":       product.Description,
			"category_id":       product.CategoryID,
			"cost_cents":        product.CostCents,
			"price_cents":       product.PriceCents,
			"quantity":          product.Quantity,
			"reserved_quantity": product.ReservedQuantity,
			"status":            product.Status,
			"image_url":         product.ImageURL,
			"notes":             product.Notes,
			"updated_at":        squirrel.Expr("now()"),
		}).
		Where(squirrel.Eq{"id": product.ID, "owner_id": product.OwnerID}).
		Suffix(returning(productCols)))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New()
	}
	var created domain.Customer
	err := s.get(ctx, &created, s.insertContact("customers", customer.ID, customer.OwnerID, customer.Name,
		customer.Email, customer.Phone, customer.Document, customer.Notes, customer.Active))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetCustomer(ctx context.Context, ownerID, id string) (*domain.Customer, error) {
	var customer domain.Customer
	if err := s.get(ctx, &customer, s.sb.Select(contactCols...).From("customers").
		Where(squirrel.Eq{"id": id, "owner_id": ownerID})); err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, ownerID string, includeInactive bool) ([]domain.Customer, error) {
	customers := make([]domain.Customer, 0)
	return customers, s.selectAll(ctx, &customers, s.listContacts("customers", ownerID, includeInactive))
}

func (s *Store) UpdateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	var updated domain.Customer
	err := s.get(ctx, &updated, s.updateContact("customers", customer.ID, customer.OwnerID, customer.Name,
		customer.Email, customer.Phone, customer.Document, customer.Notes, customer.Active))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" {
		supplier.ID = xid.New()
	}
	var created domain.Supplier
	err := s.get(ctx, &created, s.insertContact("suppliers", supplier.ID, supplier.OwnerID, supplier.Name,
		supplier.Email, supplier.Phone, supplier.Document, supplier.Notes, supplier.Active))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetSupplier(ctx context.Context, ownerID, id string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	if err := s.get(ctx, &supplier, s.sb.Select(contactCols...).From("suppliers").
		Where(squirrel.Eq{"id": id, "owner_id": ownerID})); err != nil {
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context, ownerID string, includeInactive bool) ([]domain.Supplier, error) {
	suppliers := make([]domain.Supplier, 0)
	return suppliers, s.selectAll(ctx, &suppliers, s.listContacts("suppliers", ownerID, includeInactive))
}

func (s *Store) UpdateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	var updated domain.Supplier
	err := s.get(ctx, &updated, s.updateContact("suppliers", supplier.ID, supplier.OwnerID, supplier.Name,
		supplier.Email, supplier.Phone, supplier.Document, supplier.Notes, supplier.Active))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Customers and suppliers share one column layout.
func (s *Store) insertContact(table, id, ownerID, name, email, phone, document, notes string, active bool) squirrel.Sqlizer {
	return s.sb.Insert(table).
		Columns("id", "owner_id", "name", "email", "phone", "document", "notes", "active").
		Values(id, ownerID, name, email, phone, document, notes, active).
		Suffix(returning(contactCols))
}

func (s *Store) updateContact(table, id, ownerID, name, email, phone, document, notes string, active bool) squirrel.Sqlizer {
	return s.sb.Update(table).
		SetMap(map[string]any{
			"name":       name,
			"email":      email,
			"phone":      phone,
			"document":   document,
			"notes":      notes,
			"active":     active,
			"updated_at": squirrel.Expr("now()"),
		}).
		Where(squirrel.Eq{"id": id, "owner_id": ownerID}).
		Suffix(returning(contactCols))
}

func (s *Store) listContacts(table, ownerID string, includeInactive bool) squirrel.Sqlizer {
	q := s.sb.Select(contactCols...).From(table).Where(squirrel.Eq{"owner_id": ownerID}).OrderBy("name")
	if !includeInactive {
		q = q.Where(squirrel.Eq{"active": true})
	}
	return q
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	if category.ID == "" {
		category.ID = xid.New()
	}
	var created domain.Category
	err := s.get(ctx, &created, s.sb.Insert("categories").
		Columns("id", "owner_id", "name", "kind").
		Values(category.ID, category.OwnerID, category.Name, category.Kind).
		Suffix(returning(categoryCols)))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetCategory(ctx context.Context, ownerID, id string) (*domain.Category, error) {
	var category domain.Category
	if err := s.get(ctx, &category, s.sb.Select(categoryCols...).From("categories").
		Where(squirrel.Eq{"id": id, "owner_id": ownerID})); err != nil {
		return nil, err
	}
	return &category, nil
}

func (s *Store) ListCategories(ctx context.Context, ownerID string, kind string) ([]domain.Category, error) {
	q := s.sb.Select(categoryCols...).From("categories").Where(squirrel.Eq{"owner_id": ownerID}).OrderBy("name")
	if kind != "" {
		q = q.Where(squirrel.Eq{"kind": kind})
	}
	categories := make([]domain.Category, 0)
	return categories, s.selectAll(ctx, &categories, q)
}

func (s *Store) CreatePaymentMethod(ctx context.Context, method domain.PaymentMethod) (*domain.PaymentMethod, error) {
	if method.ID == "" {
		method.ID = xid.New()
	}
	var created domain.PaymentMethod
	err := s.get(ctx, &created, s.sb.Insert("payment_methods").
		Columns("id", "owner_id", "name", "active").
		Values(method.ID, method.OwnerID, method.Name, method.Active).
		Suffix(returning(paymentMethodCols)))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetPaymentMethod(ctx context.Context, ownerID, id string) (*domain.PaymentMethod, error) {
	var method domain.PaymentMethod
	if err := s.get(ctx, &method, s.sb.Select(paymentMethodCols...).From("payment_methods").
		Where(squirrel.Eq{"id": id, "owner_id": ownerID})); err != nil {
		return nil, err
	}
	return &method, nil
}

func (s *Store) ListPaymentMethods(ctx context.Context, ownerID string) ([]domain.PaymentMethod, error) {
	methods := make([]domain.PaymentMethod, 0)
	return methods, s.selectAll(ctx, &methods, s.sb.Select(paymentMethodCols...).From("payment_methods").
		Where(squirrel.Eq{"owner_id": ownerID}).OrderBy("name"))
}

func (s *Store) CreateCommissionRule(ctx context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error) {
	if rule.ID == "" {
		rule.ID = xid.New()
	}
	var created domain.CommissionRule
	err := s.get(ctx, &created, s.sb.Insert("commission_rules").
		Columns("id", "owner_id", "seller_name", "percent", "active").
		Values(rule.ID, rule.OwnerID, rule.SellerName, rule.Percent, rule.Active).
		Suffix(returning(ruleCols)))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) GetCommissionRule(ctx context.Context, ownerID, id string) (*domain.CommissionRule, error) {
	var rule domain.CommissionRule
	if err := s.get(ctx, &rule, s.sb.Select(ruleCols...).From("commission_rules").
		Where(squirrel.Eq{"id": id, "owner_id": ownerID})); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (s *Store) ListCommissionRules(ctx context.Context, ownerID string) ([]domain.CommissionRule, error) {
	rules := make([]domain.CommissionRule, 0)
	return rules, s.selectAll(ctx, &rules, s.sb.Select(ruleCols...).From("commission_rules").
		Where(squirrel.Eq{"owner_id": ownerID}).OrderBy("seller_name"))
}

func (s *Store) UpdateCommissionRule(ctx context.Context, rule domain.CommissionRule) (*domain.CommissionRule, error) {
	var updated domain.CommissionRule
	err := s.get(ctx, &updated, s.sb.Update("commission_rules").
		Set("seller_name", rule.SellerName).
		Set("percent", rule.Percent).
		Set("active", rule.Active).
		Where(squirrel.Eq{"id": rule.ID, "owner_id": rule.OwnerID}).
		Suffix(returning(ruleCols)))
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) FindActiveCommissionRule(ctx context.Context, ownerID, sellerName string) (*domain.CommissionRule, error) {
	var rule domain.CommissionRule
	err := s.get(ctx, &rule, s.sb.Select(ruleCols...).From("commission_rules").
		Where(squirrel.Eq{"owner_id": ownerID, "active": true}).
		Where("lower(trim(seller_name)) = lower(trim(?))", sellerName).
		OrderBy("created_at DESC").
		Limit(1))
	if err != nil {
		return nil, err
	}
	return &rule, nil
}
