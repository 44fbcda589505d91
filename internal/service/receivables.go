package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/domain"
)

// maxOccurrencesPerRun caps how many missed periods one template catches up
// in a single job run.
const maxOccurrencesPerRun = 24

const recurringBatchSize = 200

func (s *Service) CreateReceivable(ctx context.Context, req domain.ReceivableCreateRequest) (domain.Receivable, []string, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Receivable{}, nil, err
	}
	if err := validateStruct(req); err != nil {
		return domain.Receivable{}, nil, err
	}
	date, err := parseDayOr(req.Date, s.today(), "date")
	if err != nil {
		return domain.Receivable{}, nil, err
	}
	categoryID := optionalID(req.CategoryID)
	if err := s.checkCategory(ctx, actor.OwnerID, categoryID, domain.CategoryIncome); err != nil {
		return domain.Receivable{}, nil, err
	}

	receivable := domain.Receivable{
		OwnerID:       actor.OwnerID,
		Type:          req.Type,
		Description:   strings.TrimSpace(req.Description),
		AmountCents:   req.AmountCents,
		Date:          date,
		Status:        domain.ReceivablePending,
		CategoryID:    categoryID,
		PaymentMethod: domain.CanonicalMethod(req.PaymentMethod),
	}
	if req.Received {
		receivable.Status = domain.ReceivableReceived
		receivable.ReceivedAt = &date
	}
	if req.Recurring {
		next := domain.NextOccurrence(date, date, req.Recurrence)
		receivable.Recurring = true
		receivable.Recurrence = req.Recurrence
		receivable.NextOccurrence = &next
	}

	var created *domain.Receivable
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repo.CreateReceivable(ctx, receivable)
		if err != nil {
			return translate(err, "receivable", "")
		}
		if !req.Received {
			return nil
		}
		_, err = s.postEntry(ctx, actor, movement{
			kind:        domain.EntryInflow,
			amountCents: created.AmountCents,
			day:         date,
			description: created.Description,
			method:      created.PaymentMethod,
			link:        domain.EntryLink{ReceivableID: created.ID},
		})
		return err
	})
	if err != nil {
		return domain.Receivable{}, nil, err
	}
	return *created, s.afterCommit(ctx, actor.OwnerID, "create_receivable"), nil
}

// ReceiveReceivable settles a pending manual receivable.
func (s *Service) ReceiveReceivable(ctx context.Context, id string, req domain.PaymentRequest) (domain.Receivable, []string, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Receivable{}, nil, err
	}
	if err := validateStruct(req); err != nil {
		return domain.Receivable{}, nil, err
	}
	paidAt, err := parseDayOr(req.PaidAt, s.today(), "paid_at")
	if err != nil {
		return domain.Receivable{}, nil, err
	}

	var updated *domain.Receivable
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		receivable, err := s.repo.GetReceivableForUpdate(ctx, actor.OwnerID, id)
		if err != nil {
			return translate(err, "receivable", id)
		}
		if receivable.Type == domain.ReceivableSale {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "sale receivables follow their sale")
		}
		if receivable.Status != domain.ReceivablePending {
			return apperror.NewInvalidState("receivable", receivable.Status, domain.ReceivableReceived)
		}
		receivable.Status = domain.ReceivableReceived
		receivable.ReceivedAt = &paidAt
		receivable.PaymentMethod = domain.CanonicalMethod(req.PaymentMethod)
		updated, err = s.repo.UpdateReceivable(ctx, *receivable)
		if err != nil {
			return translate(err, "receivable", id)
		}
		_, err = s.postEntry(ctx, actor, movement{
			kind:        domain.EntryInflow,
			amountCents: updated.AmountCents,
			day:         paidAt,
			description: updated.Description,
			method:      updated.PaymentMethod,
			link:        domain.EntryLink{ReceivableID: updated.ID},
		})
		return err
	})
	if err != nil {
		return domain.Receivable{}, nil, err
	}
	return *updated, s.afterCommit(ctx, actor.OwnerID, "receive_receivable"), nil
}

func (s *Service) DeleteReceivable(ctx context.Context, id string) ([]string, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		receivable, err := s.repo.GetReceivableForUpdate(ctx, actor.OwnerID, id)
		if err != nil {
			return translate(err, "receivable", id)
		}
		if receivable.Type == domain.ReceivableSale {
			return apperror.NewBusinessRule(apperror.CodeBusinessRule, "sale receivables are removed with their sale")
		}
		if _, err := s.removeEntries(ctx, actor.OwnerID, domain.EntryLink{ReceivableID: id}); err != nil {
			return err
		}
		return translate(s.repo.DeleteReceivable(ctx, actor.OwnerID, id), "receivable", id)
	})
	if err != nil {
		return nil, err
	}
	return s.afterCommit(ctx, actor.OwnerID, "delete_receivable"), nil
}

func (s *Service) ListReceivables(ctx context.Context, filter domain.ReceivableFilter) ([]domain.Receivable, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListReceivables(ctx, actor.OwnerID, filter)
}

// GenerateDueRecurringReceivables creates the pending occurrences of every
// recurring template due by asOf, across all tenants, and returns how many
// were created.
func (s *Service) GenerateDueRecurringReceivables(ctx context.Context, asOf time.Time) (int, error) {
	asOf = domain.DayOf(asOf)
	owners := make(map[string]struct{})
	generated := 0

	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		due, err := s.repo.ListDueRecurring(ctx, asOf, recurringBatchSize)
		if err != nil {
			return err
		}
		for _, template := range due {
			next := *template.NextOccurrence
			templateID := template.ID
			for n := 0; n < maxOccurrencesPerRun && !next.After(asOf); n++ {
				_, err := s.repo.CreateReceivable(ctx, domain.Receivable{
					OwnerID:       template.OwnerID,
					Type:          template.Type,
					Description:   template.Description,
					AmountCents:   template.AmountCents,
					Date:          next,
					Status:        domain.ReceivablePending,
					CategoryID:    template.CategoryID,
					PaymentMethod: template.PaymentMethod,
					ParentID:      &templateID,
				})
				if err != nil {
					return fmt.Errorf("recurring receivable %s: %w", template.ID, err)
				}
				generated++
				next = domain.NextOccurrence(template.Date, next, template.Recurrence)
			}
			template.NextOccurrence = &next
			if _, err := s.repo.UpdateReceivable(ctx, template); err != nil {
				return fmt.Errorf("advance recurring receivable %s: %w", template.ID, err)
			}
			owners[template.OwnerID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.metrics.RecurringGenerated(ctx, generated)
	for ownerID := range owners {
		s.afterCommit(ctx, ownerID, "recurring_receivables")
	}
	if generated > 0 {
		s.log.Infow("recurring receivables generated", "count", generated, "templates", len(owners), "as_of", domain.FormatDay(asOf))
	}
	return generated, nil
}

// PayInstallment settles one installment. Once every installment of the sale
// is paid, the sale becomes paid and its receivable received.
func (s *Service) PayInstallment(ctx context.Context, id string, req domain.PaymentRequest) (domain.Installment, []string, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Installment{}, nil, err
	}
	if err := validateStruct(req); err != nil {
		return domain.Installment{}, nil, err
	}
	paidAt, err := parseDayOr(req.PaidAt, s.today(), "paid_at")
	if err != nil {
		return domain.Installment{}, nil, err
	}

	var paid *domain.Installment
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		inst, err := s.repo.GetInstallment(ctx, actor.OwnerID, id)
		if err != nil {
			return translate(err, "installment", id)
		}
		// the sale row lock serialises payments of sibling installments
		sale, err := s.repo.GetSaleForUpdate(ctx, actor.OwnerID, inst.SaleID)
		if err != nil {
			return translate(err, "sale", inst.SaleID)
		}
		if inst, err = s.repo.GetInstallment(ctx, actor.OwnerID, id); err != nil {
			return translate(err, "installment", id)
		}
		if inst.Status != domain.InstallmentPending {
			return apperror.NewInvalidState("installment", inst.Status, domain.InstallmentPaid)
		}

		inst.Status = domain.InstallmentPaid
		inst.PaidAt = &paidAt
		inst.PaymentMethod = domain.CanonicalMethod(req.PaymentMethod)
		paid, err = s.repo.UpdateInstallment(ctx, *inst)
		if err != nil {
			return translate(err, "installment", id)
		}
		if paid.AmountCents > 0 {
			_, err = s.postEntry(ctx, actor, movement{
				kind:        domain.EntryInflow,
				amountCents: paid.AmountCents,
				day:         paidAt,
				description: fmt.Sprintf("Installment %d/%d of sale %s", paid.Number, sale.InstallmentCount, shortID(sale.ID)),
				method:      paid.PaymentMethod,
				link:        domain.EntryLink{InstallmentID: paid.ID},
			})
			if err != nil {
				return err
			}
		}

		pending, err := s.repo.ListInstallments(ctx, actor.OwnerID, domain.InstallmentFilter{
			SaleID: sale.ID,
			Status: domain.InstallmentPending,
			Limit:  1,
		})
		if err != nil {
			return err
		}
		if len(pending) > 0 || sale.Status != domain.SalePending {
			return nil
		}
		sale.Status = domain.SalePaid
		settled, err := s.repo.UpdateSaleHeader(ctx, *sale)
		if err != nil {
			return translate(err, "sale", sale.ID)
		}
		_, err = s.syncSaleReceivable(ctx, *settled)
		return err
	})
	if err != nil {
		return domain.Installment{}, nil, err
	}
	return *paid, s.afterCommit(ctx, actor.OwnerID, "pay_installment"), nil
}

func (s *Service) ListInstallments(ctx context.Context, filter domain.InstallmentFilter) ([]domain.Installment, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListInstallments(ctx, actor.OwnerID, filter)
}
