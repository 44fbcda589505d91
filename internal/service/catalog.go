package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/store"
)

func (s *Service) CreateCategory(ctx context.Context, req domain.CategoryCreateRequest) (domain.Category, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Category{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return domain.Category{}, err
	}
	created, err := s.repo.CreateCategory(ctx, domain.Category{OwnerID: actor.OwnerID, Name: req.Name, Kind: req.Kind})
	if err != nil {
		return domain.Category{}, translate(err, "category", "")
	}
	return *created, nil
}

func (s *Service) ListCategories(ctx context.Context, kind string) ([]domain.Category, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "", domain.CategoryProduct, domain.CategoryIncome, domain.CategoryExpense:
	default:
		return nil, apperror.NewValidation("kind must be one of [product income expense]").WithDetail("field", "kind")
	}
	return s.repo.ListCategories(ctx, actor.OwnerID, kind)
}

func (s *Service) CreatePaymentMethod(ctx context.Context, req domain.PaymentMethodCreateRequest) (domain.PaymentMethod, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validateStruct(req); err != nil {
		return domain.PaymentMethod{}, err
	}
	created, err := s.repo.CreatePaymentMethod(ctx, domain.PaymentMethod{
		OwnerID: actor.OwnerID,
		Name:    domain.CanonicalMethod(req.Name),
		Active:  true,
	})
	if err != nil {
		return domain.PaymentMethod{}, translate(err, "payment method", "")
	}
	return *created, nil
}

func (s *Service) ListPaymentMethods(ctx context.Context) ([]domain.PaymentMethod, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPaymentMethods(ctx, actor.OwnerID)
}

// SeedTenant creates the default payment methods of a new tenant. Methods
// that already exist are skipped.
func (s *Service) SeedTenant(ctx context.Context, ownerID string) error {
	for _, name := range domain.DefaultPaymentMethods() {
		_, err := s.repo.CreatePaymentMethod(ctx, domain.PaymentMethod{OwnerID: ownerID, Name: name, Active: true})
		if err != nil && !errors.Is(err, store.ErrConflict) {
			return err
		}
	}
	return nil
}

func (s *Service) CreateCommissionRule(ctx context.Context, req domain.CommissionRuleCreateRequest) (domain.CommissionRule, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.CommissionRule{}, err
	}
	req.SellerName = strings.TrimSpace(req.SellerName)
	if err := validateStruct(req); err != nil {
		return domain.CommissionRule{}, err
	}
	if req.Percent.LessThanOrEqual(decimal.Zero) || req.Percent.GreaterThan(hundred) {
		return domain.CommissionRule{}, apperror.NewValidation("percent must be greater than 0 and at most 100").WithDetail("field", "percent")
	}
	if req.Percent.Exponent() < -4 {
		return domain.CommissionRule{}, apperror.NewValidation("percent supports at most 4 decimal places").WithDetail("field", "percent")
	}
	created, err := s.repo.CreateCommissionRule(ctx, domain.CommissionRule{
		OwnerID:    actor.OwnerID,
		SellerName: req.SellerName,
		Percent:    req.Percent,
		Active:     true,
	})
	if err != nil {
		return domain.CommissionRule{}, translate(err, "commission rule", "")
	}
	return *created, nil
}

func (s *Service) ListCommissionRules(ctx context.Context) ([]domain.CommissionRule, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCommissionRules(ctx, actor.OwnerID)
}

func (s *Service) SetCommissionRuleActive(ctx context.Context, id string, active bool) (domain.CommissionRule, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.CommissionRule{}, err
	}
	rule, err := s.repo.GetCommissionRule(ctx, actor.OwnerID, id)
	if err != nil {
		return domain.CommissionRule{}, translate(err, "commission rule", id)
	}
	rule.Active = active
	updated, err := s.repo.UpdateCommissionRule(ctx, *rule)
	if err != nil {
		return domain.CommissionRule{}, translate(err, "commission rule", id)
	}
	return *updated, nil
}

func (s *Service) ListCommissions(ctx context.Context, filter domain.CommissionFilter) ([]domain.Commission, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCommissions(ctx, actor.OwnerID, filter)
}

// PayCommission marks a commission as paid out. The payout is settled outside
// the cash ledger, so no entry is posted.
func (s *Service) PayCommission(ctx context.Context, id string) (domain.Commission, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.Commission{}, err
	}
	var updated *domain.Commission
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		commission, err := s.repo.GetCommissionForUpdate(ctx, actor.OwnerID, id)
		if err != nil {
			return translate(err, "commission", id)
		}
		if commission.Status != domain.CommissionPending {
			return apperror.NewInvalidState("commission", commission.Status, domain.CommissionPaid)
		}
		paidAt := s.now()
		commission.Status = domain.CommissionPaid
		commission.PaidAt = &paidAt
		updated, err = s.repo.UpdateCommission(ctx, *commission)
		return translate(err, "commission", id)
	})
	if err != nil {
		return domain.Commission{}, err
	}
	return *updated, nil
}
