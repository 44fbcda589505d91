package httpapi

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/domain"
)

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeTooManyRequests(w, "too many attempts")
		return
	}
	var req domain.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	resp, err := a.auth.Register(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		writeTooManyRequests(w, "too many login attempts")
		return
	}
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless token for the X-CSRF-Token header of
// every mutating request.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"csrf_token": a.generateCSRFToken()})
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.auth.ListUsers(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleCreateStaff(w http.ResponseWriter, r *http.Request) {
	var req domain.StaffCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	user, err := a.auth.CreateStaff(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := a.service.ListProducts(r.Context(), domain.ProductFilter{
		Status: q.Get("status"),
		Search: q.Get("q"),
		Limit:  parsePositiveLimit(q.Get("limit"), 100, 500),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	product, err := a.service.UpdateProduct(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleReserve(w http.ResponseWriter, r *http.Request) {
	var req domain.ReserveRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	product, err := a.service.Reserve(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	var req domain.CancelReservationRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	product, err := a.service.CancelReservation(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleAdjustQuantity(w http.ResponseWriter, r *http.Request) {
	var req domain.AdjustQuantityRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	product, err := a.service.AdjustQuantity(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.DeactivateProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleReactivateProduct(w http.ResponseWriter, r *http.Request) {
	product, err := a.service.ReactivateProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

// handleUploadProductImage expects a multipart form with the file in the
// "image" field.
func (a *API) handleUploadProductImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageBody); err != nil {
		a.writeError(w, r, apperror.NewValidation("invalid multipart body").WithCause(err))
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		a.writeError(w, r, apperror.NewValidation("image is required").WithDetail("field", "image"))
		return
	}
	defer file.Close()

	sniff := make([]byte, 512)
	n, err := io.ReadFull(file, sniff)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		a.writeError(w, r, apperror.NewValidation("unreadable image").WithCause(err))
		return
	}
	sniff = sniff[:n]
	if !strings.HasPrefix(http.DetectContentType(sniff), "image/") {
		a.writeError(w, r, apperror.NewValidation("file is not an image").WithDetail("field", "image"))
		return
	}

	resp, err := a.service.UploadProductImage(r.Context(), r.PathValue("id"), header.Filename, io.MultiReader(bytes.NewReader(sniff), file))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleDeleteProductImage(w http.ResponseWriter, r *http.Request) {
	resp, err := a.service.DeleteProductImage(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListSales(w http.ResponseWriter, r *http.Request) {
	from, err := queryDay(r, "from")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	sales, err := a.service.ListSales(r.Context(), domain.SaleFilter{
		From:       from,
		To:         to,
		Status:     q.Get("status"),
		CustomerID: q.Get("customer_id"),
		Limit:      parsePositiveLimit(q.Get("limit"), 100, 500),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (a *API) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var input domain.SaleInput
	if err := decodeJSON(r, &input); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.service.CreateSale(r.Context(), input)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleGetSale(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.GetSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleUpdateSale(w http.ResponseWriter, r *http.Request) {
	var input domain.SaleInput
	if err := decodeJSON(r, &input); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.service.UpdateSale(r.Context(), r.PathValue("id"), input)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleDeleteSale(w http.ResponseWriter, r *http.Request) {
	warnings, err := a.service.DeleteSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "warnings": warnings})
}

func (a *API) handleCancelSale(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.CancelSale(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleConfirmSalePaid(w http.ResponseWriter, r *http.Request) {
	result, err := a.service.ConfirmSalePaid(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListInstallments(w http.ResponseWriter, r *http.Request) {
	dueBefore, err := queryDay(r, "due_before")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	installments, err := a.service.ListInstallments(r.Context(), domain.InstallmentFilter{
		Status:    q.Get("status"),
		SaleID:    q.Get("sale_id"),
		DueBefore: dueBefore,
		Limit:     parsePositiveLimit(q.Get("limit"), 100, 500),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"installments": installments})
}

func (a *API) handlePayInstallment(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	installment, warnings, err := a.service.PayInstallment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"installment": installment, "warnings": warnings})
}

func (a *API) handleListReceivables(w http.ResponseWriter, r *http.Request) {
	from, err := queryDay(r, "from")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	receivables, err := a.service.ListReceivables(r.Context(), domain.ReceivableFilter{
		From:   from,
		To:     to,
		Type:   q.Get("type"),
		Status: q.Get("status"),
		Limit:  parsePositiveLimit(q.Get("limit"), 100, 500),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receivables": receivables})
}

func (a *API) handleCreateReceivable(w http.ResponseWriter, r *http.Request) {
	var req domain.ReceivableCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	receivable, warnings, err := a.service.CreateReceivable(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"receivable": receivable, "warnings": warnings})
}

func (a *API) handleReceiveReceivable(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	receivable, warnings, err := a.service.ReceiveReceivable(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"receivable": receivable, "warnings": warnings})
}

func (a *API) handleDeleteReceivable(w http.ResponseWriter, r *http.Request) {
	warnings, err := a.service.DeleteReceivable(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "warnings": warnings})
}

// handleRunRecurring triggers the recurring-income job on demand. The job
// itself spans every owner, the same as the scheduled run.
func (a *API) handleRunRecurring(w http.ResponseWriter, r *http.Request) {
	created, err := a.service.GenerateDueRecurringReceivables(r.Context(), domain.DayOf(time.Now()))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"created": created})
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	from, err := queryDay(r, "from")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	expenses, err := a.service.ListExpenses(r.Context(), domain.ExpenseFilter{
		From:   from,
		To:     to,
		Status: q.Get("status"),
		Limit:  parsePositiveLimit(q.Get("limit"), 100, 500),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (a *API) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.ExpenseCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	expense, warnings, err := a.service.CreateExpense(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"expense": expense, "warnings": warnings})
}

func (a *API) handlePayExpense(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	expense, warnings, err := a.service.PayExpense(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": expense, "warnings": warnings})
}

func (a *API) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	warnings, err := a.service.DeleteExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true, "warnings": warnings})
}

func (a *API) handleListCashDays(w http.ResponseWriter, r *http.Request) {
	from, err := queryDay(r, "from")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	days, err := a.service.ListCashDays(r.Context(), dayOrZero(from), dayOrZero(to))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

func (a *API) handleGetCashDay(w http.ResponseWriter, r *http.Request) {
	day, err := domain.ParseDay(r.PathValue("day"))
	if err != nil {
		a.writeError(w, r, apperror.NewValidation("day must be a date (YYYY-MM-DD)").WithDetail("field", "day"))
		return
	}
	detail, err := a.service.GetCashDay(r.Context(), day)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (a *API) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	var req domain.CashMovementRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	entry, warnings, err := a.service.RecordMovement(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry, "warnings": warnings})
}

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := a.service.ListCustomers(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.ContactRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	customer, err := a.service.CreateCustomer(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := a.service.GetCustomer(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req domain.ContactRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	customer, err := a.service.UpdateCustomer(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleSetCustomerActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customer, err := a.service.SetCustomerActive(r.Context(), r.PathValue("id"), active)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"customer": customer})
	}
}

func (a *API) handleBulkDeactivateCustomers(w http.ResponseWriter, r *http.Request) {
	var req domain.BulkDeactivateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	result, err := a.service.BulkDeactivateCustomers(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := a.service.ListSuppliers(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suppliers": suppliers})
}

func (a *API) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.ContactRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	supplier, err := a.service.CreateSupplier(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"supplier": supplier})
}

func (a *API) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	var req domain.ContactRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	supplier, err := a.service.UpdateSupplier(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"supplier": supplier})
}

func (a *API) handleSetSupplierActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		supplier, err := a.service.SetSupplierActive(r.Context(), r.PathValue("id"), active)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"supplier": supplier})
	}
}

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListCategories(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	category, err := a.service.CreateCategory(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": category})
}

func (a *API) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := a.service.ListPaymentMethods(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment_methods": methods})
}

func (a *API) handleCreatePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req domain.PaymentMethodCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	method, err := a.service.CreatePaymentMethod(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"payment_method": method})
}

func (a *API) handleListCommissionRules(w http.ResponseWriter, r *http.Request) {
	rules, err := a.service.ListCommissionRules(r.Context())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commission_rules": rules})
}

func (a *API) handleCreateCommissionRule(w http.ResponseWriter, r *http.Request) {
	var req domain.CommissionRuleCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	rule, err := a.service.CreateCommissionRule(r.Context(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"commission_rule": rule})
}

func (a *API) handleSetCommissionRuleActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, err := a.service.SetCommissionRuleActive(r.Context(), r.PathValue("id"), active)
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"commission_rule": rule})
	}
}

func (a *API) handleListCommissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	commissions, err := a.service.ListCommissions(r.Context(), domain.CommissionFilter{
		Status:     q.Get("status"),
		SellerName: q.Get("seller_name"),
		SaleID:     q.Get("sale_id"),
		Limit:      parsePositiveLimit(q.Get("limit"), 100, 500),
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commissions": commissions})
}

func (a *API) handlePayCommission(w http.ResponseWriter, r *http.Request) {
	commission, err := a.service.PayCommission(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commission": commission})
}

func (a *API) handleFinanceSummary(w http.ResponseWriter, r *http.Request) {
	from, err := queryDay(r, "from")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	to, err := queryDay(r, "to")
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	summary, err := a.service.FinanceSummary(r.Context(), dayOrZero(from), dayOrZero(to))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
