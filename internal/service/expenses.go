package service

import (
	"context"
	"strings"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/domain"
)

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, []string, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Expense{}, nil, err
	}
	if err := validateStruct(req); err != nil {
		return domain.Expense{}, nil, err
	}
	date, err := parseDayOr(req.Date, s.today(), "date")
	if err != nil {
		return domain.Expense{}, nil, err
	}
	expense := domain.Expense{
		OwnerID:       actor.OwnerID,
		Description:   strings.TrimSpace(req.Description),
		AmountCents:   req.AmountCents,
		Date:          date,
		CategoryID:    optionalID(req.CategoryID),
		SupplierID:    optionalID(req.SupplierID),
		Status:        domain.ExpensePending,
		PaymentMethod: domain.CanonicalMethod(req.PaymentMethod),
	}
	if req.DueDate != "" {
		due, err := parseDayOr(req.DueDate, date, "due_date")
		if err != nil {
			return domain.Expense{}, nil, err
		}
		expense.DueDate = &due
	}
	if err := s.checkCategory(ctx, actor.OwnerID, expense.CategoryID, domain.CategoryExpense); err != nil {
		return domain.Expense{}, nil, err
	}
	if expense.SupplierID != nil {
		if _, err := s.repo.GetSupplier(ctx, actor.OwnerID, *expense.SupplierID); err != nil {
			return domain.Expense{}, nil, translate(err, "supplier", *expense.SupplierID)
		}
	}
	if req.Paid {
		expense.Status = domain.ExpensePaid
		expense.PaidAt = &date
	}

	var created *domain.Expense
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repo.CreateExpense(ctx, expense)
		if err != nil {
			return translate(err, "expense", "")
		}
		if !req.Paid {
			return nil
		}
		return s.postExpense(ctx, actor, *created)
	})
	if err != nil {
		return domain.Expense{}, nil, err
	}
	return *created, s.afterCommit(ctx, actor.OwnerID, "create_expense"), nil
}

func (s *Service) postExpense(ctx context.Context, actor domain.Actor, expense domain.Expense) error {
	_, err := s.postEntry(ctx, actor, movement{
		kind:        domain.EntryOutflow,
		amountCents: expense.AmountCents,
		day:         *expense.PaidAt,
		description: expense.Description,
		method:      expense.PaymentMethod,
		link:        domain.EntryLink{ExpenseID: expense.ID},
	})
	return err
}

func (s *Service) PayExpense(ctx context.Context, id string, req domain.PaymentRequest) (domain.Expense, []string, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Expense{}, nil, err
	}
	if err := validateStruct(req); err != nil {
		return domain.Expense{}, nil, err
	}
	paidAt, err := parseDayOr(req.PaidAt, s.today(), "paid_at")
	if err != nil {
		return domain.Expense{}, nil, err
	}

	var updated *domain.Expense
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		expense, err := s.repo.GetExpenseForUpdate(ctx, actor.OwnerID, id)
		if err != nil {
			return translate(err, "expense", id)
		}
		if expense.Status != domain.ExpensePending {
			return apperror.NewInvalidState("expense", expense.Status, domain.ExpensePaid)
		}
		expense.Status = domain.ExpensePaid
		expense.PaidAt = &paidAt
		expense.PaymentMethod = domain.CanonicalMethod(req.PaymentMethod)
		updated, err = s.repo.UpdateExpense(ctx, *expense)
		if err != nil {
			return translate(err, "expense", id)
		}
		return s.postExpense(ctx, actor, *updated)
	})
	if err != nil {
		return domain.Expense{}, nil, err
	}
	return *updated, s.afterCommit(ctx, actor.OwnerID, "pay_expense"), nil
}

func (s *Service) DeleteExpense(ctx context.Context, id string) ([]string, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetExpenseForUpdate(ctx, actor.OwnerID, id); err != nil {
			return translate(err, "expense", id)
		}
		if _, err := s.removeEntries(ctx, actor.OwnerID, domain.EntryLink{ExpenseID: id}); err != nil {
			return err
		}
		return translate(s.repo.DeleteExpense(ctx, actor.OwnerID, id), "expense", id)
	})
	if err != nil {
		return nil, err
	}
	return s.afterCommit(ctx, actor.OwnerID, "delete_expense"), nil
}

func (s *Service) ListExpenses(ctx context.Context, filter domain.ExpenseFilter) ([]domain.Expense, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListExpenses(ctx, actor.OwnerID, filter)
}
