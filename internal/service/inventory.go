package service

import (
	"context"
	"io"
	"strings"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/objectstore"
)

func reserveProduct(p *domain.Product, qty int, holder string, actor domain.Actor, at timeSource) error {
	if p.Status != domain.ProductAvailable {
		return apperror.NewProductUnavailable(p.ID, p.Status)
	}
	if qty > p.Sellable() {
		return apperror.NewInsufficientStock(p.ID, qty, p.Sellable())
	}
	p.ReservedQuantity += qty
	p.AppendNote(at(), actor.Username, "reserved %d for %s", qty, holder)
	p.RecomputeStatus()
	return nil
}

func cancelReservation(p *domain.Product, qty int, actor domain.Actor, at timeSource) {
	released := min(qty, p.ReservedQuantity)
	p.ReservedQuantity -= released
	p.AppendNote(at(), actor.Username, "released reservation of %d", released)
	p.RecomputeStatus()
}

func adjustQuantity(p *domain.Product, quantity int, reason string, actor domain.Actor, at timeSource) error {
	if quantity < 0 {
		return apperror.NewValidation("quantity must not be negative").WithDetail("field", "quantity")
	}
	if quantity < p.ReservedQuantity {
		return apperror.NewBusinessRule(apperror.CodeInsufficientStock, "quantity cannot drop below the reserved quantity").
			WithDetail("product_id", p.ID).
			WithDetail("reserved", p.ReservedQuantity).
			WithDetail("requested", quantity)
	}
	previous := p.Quantity
	p.Quantity = quantity
	p.AppendNote(at(), actor.Username, "quantity %d -> %d (%s)", previous, quantity, reason)
	p.RecomputeStatus()
	return nil
}

// mutateProduct locks one product, applies fn and persists the result.
func (s *Service) mutateProduct(ctx context.Context, id string, fn func(p *domain.Product, actor domain.Actor) error) (domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	var updated *domain.Product
	err = s.repo.WithinTx(ctx, func(ctx context.Context) error {
		product, err := s.repo.GetProductForUpdate(ctx, actor.OwnerID, id)
		if err != nil {
			return translate(err, "product", id)
		}
		if err := fn(product, actor); err != nil {
			return err
		}
		updated, err = s.repo.UpdateProduct(ctx, *product)
		return translate(err, "product", id)
	})
	if err != nil {
		return domain.Product{}, err
	}
	return *updated, nil
}

func (s *Service) Reserve(ctx context.Context, id string, req domain.ReserveRequest) (domain.Product, error) {
	if err := validateStruct(req); err != nil {
		return domain.Product{}, err
	}
	holder := strings.TrimSpace(req.Holder)
	return s.mutateProduct(ctx, id, func(p *domain.Product, actor domain.Actor) error {
		return reserveProduct(p, req.Quantity, holder, actor, s.now)
	})
}

func (s *Service) CancelReservation(ctx context.Context, id string, req domain.CancelReservationRequest) (domain.Product, error) {
	if err := validateStruct(req); err != nil {
		return domain.Product{}, err
	}
	return s.mutateProduct(ctx, id, func(p *domain.Product, actor domain.Actor) error {
		cancelReservation(p, req.Quantity, actor, s.now)
		return nil
	})
}

func (s *Service) AdjustQuantity(ctx context.Context, id string, req domain.AdjustQuantityRequest) (domain.Product, error) {
	if err := validateStruct(req); err != nil {
		return domain.Product{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	return s.mutateProduct(ctx, id, func(p *domain.Product, actor domain.Actor) error {
		return adjustQuantity(p, req.Quantity, reason, actor, s.now)
	})
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	if err := validateStruct(req); err != nil {
		return domain.Product{}, err
	}
	categoryID := optionalID(req.CategoryID)
	if err := s.checkCategory(ctx, actor.OwnerID, categoryID, domain.CategoryProduct); err != nil {
		return domain.Product{}, err
	}

	product := domain.Product{
		OwnerID:     actor.OwnerID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		CategoryID:  categoryID,
		CostCents:   req.CostCents,
		PriceCents:  req.PriceCents,
		Quantity:    req.Quantity,
		Status:      domain.ProductAvailable,
	}
	product.AppendNote(s.now(), actor.Username, "created with quantity %d", req.Quantity)
	product.RecomputeStatus()

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, translate(err, "product", "")
	}
	return *created, nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.repo.GetProduct(ctx, actor.OwnerID, id)
	if err != nil {
		return domain.Product{}, translate(err, "product", id)
	}
	return *product, nil
}

func (s *Service) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.repo.ListProducts(ctx, actor.OwnerID, filter)
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := validateStruct(req); err != nil {
		return domain.Product{}, err
	}
	return s.mutateProduct(ctx, id, func(p *domain.Product, actor domain.Actor) error {
		changed := make([]string, 0, 5)
		if req.Name != nil {
			p.Name = strings.TrimSpace(*req.Name)
			changed = append(changed, "name")
		}
		if req.Description != nil {
			p.Description = strings.TrimSpace(*req.Description)
			changed = append(changed, "description")
		}
		if req.CategoryID != nil {
			categoryID := optionalID(req.CategoryID)
			if err := s.checkCategory(ctx, actor.OwnerID, categoryID, domain.CategoryProduct); err != nil {
				return err
			}
			p.CategoryID = categoryID
			changed = append(changed, "category")
		}
		if req.CostCents != nil {
			p.CostCents = *req.CostCents
			changed = append(changed, "cost")
		}
		if req.PriceCents != nil {
			p.PriceCents = *req.PriceCents
			changed = append(changed, "price")
		}
		if len(changed) == 0 {
			return apperror.NewValidation("no fields to update")
		}
		p.AppendNote(s.now(), actor.Username, "updated %s", strings.Join(changed, ", "))
		return nil
	})
}

func (s *Service) DeactivateProduct(ctx context.Context, id string) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	return s.mutateProduct(ctx, id, func(p *domain.Product, actor domain.Actor) error {
		if p.Status == domain.ProductInactive {
			return apperror.NewInvalidState("product", p.Status, domain.ProductInactive)
		}
		p.Status = domain.ProductInactive
		p.AppendNote(s.now(), actor.Username, "deactivated")
		return nil
	})
}

func (s *Service) ReactivateProduct(ctx context.Context, id string) (domain.Product, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	return s.mutateProduct(ctx, id, func(p *domain.Product, actor domain.Actor) error {
		if p.Status != domain.ProductInactive {
			return apperror.NewInvalidState("product", p.Status, domain.ProductAvailable)
		}
		p.Status = domain.ProductAvailable
		p.RecomputeStatus()
		p.AppendNote(s.now(), actor.Username, "reactivated")
		return nil
	})
}

// UploadProductImage stores the image and then points the product at it. If
// the product update fails the uploaded object is removed again.
func (s *Service) UploadProductImage(ctx context.Context, id string, filename string, body io.Reader) (domain.ProductImageResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductImageResponse{}, err
	}
	if s.objects == nil {
		return domain.ProductImageResponse{}, apperror.NewBusinessRule(apperror.CodeBusinessRule, "image storage is not configured")
	}
	if _, err := s.repo.GetProduct(ctx, actor.OwnerID, id); err != nil {
		return domain.ProductImageResponse{}, translate(err, "product", id)
	}

	key := objectstore.ProductImageKey(actor.OwnerID, id, filename)
	url, err := s.objects.Put(ctx, key, body)
	if err != nil {
		return domain.ProductImageResponse{}, apperror.NewInternal(err)
	}

	var previous string
	updated, err := s.mutateProduct(ctx, id, func(p *domain.Product, actor domain.Actor) error {
		previous = p.ImageURL
		p.ImageURL = url
		p.AppendNote(s.now(), actor.Username, "image replaced")
		return nil
	})
	if err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.log.Errorw("orphaned product image after failed update", "key", key, "error", delErr)
		}
		return domain.ProductImageResponse{}, err
	}

	resp := domain.ProductImageResponse{Product: updated}
	if previous != "" {
		if warning := s.deleteObjectByURL(ctx, previous, "upload_product_image"); warning != "" {
			resp.Warnings = append(resp.Warnings, warning)
		}
	}
	return resp, nil
}

func (s *Service) DeleteProductImage(ctx context.Context, id string) (domain.ProductImageResponse, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.ProductImageResponse{}, err
	}
	product, err := s.repo.GetProduct(ctx, actor.OwnerID, id)
	if err != nil {
		return domain.ProductImageResponse{}, translate(err, "product", id)
	}
	if product.ImageURL == "" {
		return domain.ProductImageResponse{Product: *product}, nil
	}
	if s.objects != nil {
		if _, err := s.objects.KeyFromURL(product.ImageURL); err != nil {
			return domain.ProductImageResponse{}, apperror.NewValidation("image url is not managed by this store").WithCause(err)
		}
	}

	var previous string
	updated, err := s.mutateProduct(ctx, id, func(p *domain.Product, actor domain.Actor) error {
		previous = p.ImageURL
		p.ImageURL = ""
		p.AppendNote(s.now(), actor.Username, "image removed")
		return nil
	})
	if err != nil {
		return domain.ProductImageResponse{}, err
	}
	resp := domain.ProductImageResponse{Product: updated}
	if previous != "" && s.objects != nil {
		if warning := s.deleteObjectByURL(ctx, previous, "delete_product_image"); warning != "" {
			resp.Warnings = append(resp.Warnings, warning)
		}
	}
	return resp, nil
}

func (s *Service) deleteObjectByURL(ctx context.Context, url string, operation string) string {
	key, err := s.objects.KeyFromURL(url)
	if err == nil {
		err = s.objects.Delete(ctx, key)
	}
	if err != nil {
		s.log.Warnw("previous product image not removed", "url", url, "error", err)
		s.metrics.Warning(ctx, operation)
		return "previous image could not be removed from storage"
	}
	return ""
}

func (s *Service) checkCategory(ctx context.Context, ownerID string, id *string, kind string) error {
	if id == nil {
		return nil
	}
	category, err := s.repo.GetCategory(ctx, ownerID, *id)
	if err != nil {
		return translate(err, "category", *id)
	}
	if category.Kind != kind {
		return apperror.NewValidation("category kind must be "+kind).WithDetail("field", "category_id")
	}
	return nil
}
