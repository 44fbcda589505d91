package memory

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/store"
	"gestorbrecho/backend/internal/xid"
)

var _ store.Repository = (*Store)(nil)

// Store keeps every record in process memory. It backs tests and local
// development when DATABASE_URL is empty.
type Store struct {
	// txMu serialises units of work; mu guards the maps themselves.
	txMu sync.Mutex
	mu   sync.RWMutex
	data state
	now  func() time.Time
}

type state struct {
	users           map[string]domain.UserAccount
	products        map[string]domain.Product
	sales           map[string]domain.Sale
	installments    map[string]domain.Installment
	receivables     map[string]domain.Receivable
	expenses        map[string]domain.Expense
	cashDays        map[string]domain.CashDay
	cashEntries     map[string]domain.CashEntry
	customers       map[string]domain.Customer
	suppliers       map[string]domain.Supplier
	categories      map[string]domain.Category
	paymentMethods  map[string]domain.PaymentMethod
	commissionRules map[string]domain.CommissionRule
	commissions     map[string]domain.Commission
}

func New() *Store {
	return &Store{
		data: state{
			users:           make(map[string]domain.UserAccount),
			products:        make(map[string]domain.Product),
			sales:           make(map[string]domain.Sale),
			installments:    make(map[string]domain.Installment),
			receivables:     make(map[string]domain.Receivable),
			expenses:        make(map[string]domain.Expense),
			cashDays:        make(map[string]domain.CashDay),
			cashEntries:     make(map[string]domain.CashEntry),
			customers:       make(map[string]domain.Customer),
			suppliers:       make(map[string]domain.Supplier),
			categories:      make(map[string]domain.Category),
			paymentMethods:  make(map[string]domain.PaymentMethod),
			commissionRules: make(map[string]domain.CommissionRule),
			commissions:     make(map[string]domain.Commission),
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

type txMarker struct{}

// WithinTx runs fn while holding the store-wide transaction lock. When fn
// fails every map is restored to the state it had before fn started.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txMarker{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.data.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (st state) clone() state {
	sales := make(map[string]domain.Sale, len(st.sales))
	for id, sale := range st.sales {
		sales[id] = cloneSale(sale)
	}
	return state{
		users:           maps.Clone(st.users),
		products:        maps.Clone(st.products),
		sales:           sales,
		installments:    maps.Clone(st.installments),
		receivables:     maps.Clone(st.receivables),
		expenses:        maps.Clone(st.expenses),
		cashDays:        maps.Clone(st.cashDays),
		cashEntries:     maps.Clone(st.cashEntries),
		customers:       maps.Clone(st.customers),
		suppliers:       maps.Clone(st.suppliers),
		categories:      maps.Clone(st.categories),
		paymentMethods:  maps.Clone(st.paymentMethods),
		commissionRules: maps.Clone(st.commissionRules),
		commissions:     maps.Clone(st.commissions),
	}
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidInput
	}
	for _, existing := range s.data.users {
		if existing.Username == username {
			return store.ErrConflict
		}
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
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	user.Username = username
	user.Active = true
	s.data.users[user.ID] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	username = strings.ToLower(strings.TrimSpace(username))
	for _, user := range s.data.users {
		if user.Username == username {
			found := user
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, ownerID string) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0)
	for _, user := range s.data.users {
		if user.OwnerID == ownerID {
			users = append(users, user)
		}
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, userID string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}
	user, exists := s.data.users[userID]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.data.users[userID] = user
	return nil
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	dup.Items = slices.Clone(src.Items)
	return dup
}

func inRange(t time.Time, from, to *time.Time) bool {
	t = domain.DayOf(t)
	if from != nil && t.Before(domain.DayOf(*from)) {
		return false
	}
	if to != nil && t.After(domain.DayOf(*to)) {
		return false
	}
	return true
}

// newestFirst orders by a business date, then by creation time, both descending.
func newestFirst(aDate, bDate, aCreated, bCreated time.Time) int {
	if c := bDate.Compare(aDate); c != 0 {
		return c
	}
	return bCreated.Compare(aCreated)
}

func truncate[T any](items []T, limit int) []T {
	limit = store.ClampLimit(limit)
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

func ptrEq(p *string, v string) bool {
	return p != nil && *p == v
}
