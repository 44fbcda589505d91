package service

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/domain"
)

func normalizeContact(req domain.ContactRequest) domain.ContactRequest {
	return domain.ContactRequest{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:    strings.TrimSpace(req.Phone),
		Document: strings.TrimSpace(req.Document),
		Notes:    strings.TrimSpace(req.Notes),
	}
}

func (s *Service) CreateCustomer(ctx context.Context, req domain.ContactRequest) (domain.Customer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	req = normalizeContact(req)
	if err := validateStruct(req); err != nil {
		return domain.Customer{}, err
	}
	created, err := s.repo.CreateCustomer(ctx, domain.Customer{
		OwnerID:  actor.OwnerID,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Document: req.Document,
		Notes:    req.Notes,
		Active:   true,
	})
	if err != nil {
		return domain.Customer{}, translate(err, "customer", "")
	}
	return *created, nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id string, req domain.ContactRequest) (domain.Customer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	req = normalizeContact(req)
	if err := validateStruct(req); err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, actor.OwnerID, id)
	if err != nil {
		return domain.Customer{}, translate(err, "customer", id)
	}
	customer.Name = req.Name
	customer.Email = req.Email
	customer.Phone = req.Phone
	customer.Document = req.Document
	customer.Notes = req.Notes
	updated, err := s.repo.UpdateCustomer(ctx, *customer)
	if err != nil {
		return domain.Customer{}, translate(err, "customer", id)
	}
	return *updated, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, actor.OwnerID, id)
	if err != nil {
		return domain.Customer{}, translate(err, "customer", id)
	}
	return *customer, nil
}

func (s *Service) ListCustomers(ctx context.Context, includeInactive bool) ([]domain.Customer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, actor.OwnerID, includeInactive)
}

func (s *Service) SetCustomerActive(ctx context.Context, id string, active bool) (domain.Customer, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, actor.OwnerID, id)
	if err != nil {
		return domain.Customer{}, translate(err, "customer", id)
	}
	if customer.Active == active {
		return *customer, nil
	}
	customer.Active = active
	updated, err := s.repo.UpdateCustomer(ctx, *customer)
	if err != nil {
		return domain.Customer{}, translate(err, "customer", id)
	}
	return *updated, nil
}

// BulkDeactivateCustomers deactivates each id independently with a bounded
// number of workers. One failing id never fails the batch.
func (s *Service) BulkDeactivateCustomers(ctx context.Context, req domain.BulkDeactivateRequest) (domain.BulkResult, error) {
	if _, err := requireActor(ctx); err != nil {
		return domain.BulkResult{}, err
	}
	if err := validateStruct(req); err != nil {
		return domain.BulkResult{}, err
	}

	results := make([]domain.BulkItemResult, len(req.IDs))
	var g errgroup.Group
	g.SetLimit(s.bulkConcurrency)
	for i, id := range req.IDs {
		g.Go(func() error {
			results[i] = domain.BulkItemResult{ID: id}
			if err := ctx.Err(); err != nil {
				results[i].Error = err.Error()
				return nil
			}
			if _, err := s.SetCustomerActive(ctx, id, false); err != nil {
				results[i].Error = publicMessage(err)
				return nil
			}
			results[i].OK = true
			return nil
		})
	}
	_ = g.Wait()

	out := domain.BulkResult{Results: results}
	for _, r := range results {
		if r.OK {
			out.Succeeded++
		} else {
			out.Failed++
		}
	}
	if out.Failed > 0 {
		s.log.Warnw("bulk customer deactivation partially failed", "succeeded", out.Succeeded, "failed", out.Failed)
	}
	return out, nil
}

// publicMessage hides internal causes the same way the HTTP layer does.
func publicMessage(err error) string {
	if appErr, ok := apperror.AsAppError(err); ok && appErr.HTTPStatus < 500 {
		return appErr.Message
	}
	return "internal error"
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.ContactRequest) (domain.Supplier, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Supplier{}, err
	}
	req = normalizeContact(req)
	if err := validateStruct(req); err != nil {
		return domain.Supplier{}, err
	}
	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		OwnerID:  actor.OwnerID,
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Document: req.Document,
		Notes:    req.Notes,
		Active:   true,
	})
	if err != nil {
		return domain.Supplier{}, translate(err, "supplier", "")
	}
	return *created, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, id string, req domain.ContactRequest) (domain.Supplier, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Supplier{}, err
	}
	req = normalizeContact(req)
	if err := validateStruct(req); err != nil {
		return domain.Supplier{}, err
	}
	supplier, err := s.repo.GetSupplier(ctx, actor.OwnerID, id)
	if err != nil {
		return domain.Supplier{}, translate(err, "supplier", id)
	}
	supplier.Name = req.Name
	supplier.Email = req.Email
	supplier.Phone = req.Phone
	supplier.Document = req.Document
	supplier.Notes = req.Notes
	updated, err := s.repo.UpdateSupplier(ctx, *supplier)
	if err != nil {
		return domain.Supplier{}, translate(err, "supplier", id)
	}
	return *updated, nil
}

func (s *Service) ListSuppliers(ctx context.Context, includeInactive bool) ([]domain.Supplier, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx, actor.OwnerID, includeInactive)
}

func (s *Service) SetSupplierActive(ctx context.Context, id string, active bool) (domain.Supplier, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Supplier{}, err
	}
	supplier, err := s.repo.GetSupplier(ctx, actor.OwnerID, id)
	if err != nil {
		return domain.Supplier{}, translate(err, "supplier", id)
	}
	supplier.Active = active
	updated, err := s.repo.UpdateSupplier(ctx, *supplier)
	if err != nil {
		return domain.Supplier{}, translate(err, "supplier", id)
	}
	return *updated, nil
}
