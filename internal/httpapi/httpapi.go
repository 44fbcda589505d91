package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"gestorbrecho/backend/internal/apperror"
	"gestorbrecho/backend/internal/domain"
	"gestorbrecho/backend/internal/logger"
	"gestorbrecho/backend/internal/metrics"
	"gestorbrecho/backend/internal/service"
)

var tracer = otel.Tracer("gestorbrecho/httpapi")

const (
	maxJSONBody  = 1 << 20
	maxImageBody = 8 << 20
)

type Options struct {
	AllowedOrigin string
	// MediaDir is served read-only under /media/ when set.
	MediaDir string
	Metrics  *metrics.Recorder
	// MetricsHandler is mounted at GET /metrics when set.
	MetricsHandler http.Handler
	Logger         *logger.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	mediaDir      string
	scrape        http.Handler
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
	metrics       *metrics.Recorder
	log           *logger.Logger
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		mediaDir:      opts.MediaDir,
		scrape:        opts.MetricsHandler,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
		metrics:       opts.Metrics,
		log:           opts.Logger.WithComponent("http"),
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	authed := func(h http.HandlerFunc) http.HandlerFunc { return a.requireAuth(h) }
	admin := func(h http.HandlerFunc) http.HandlerFunc { return a.requireAuth(h, domain.RoleAdmin) }

	mux.HandleFunc("GET /healthz", a.handleHealth)
	if a.scrape != nil {
		mux.Handle("GET /metrics", a.scrape)
	}
	if a.mediaDir != "" {
		mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(newMediaFS(a.mediaDir))))
	}

	mux.HandleFunc("POST /api/v1/auth/register", a.handleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("GET /api/v1/users", admin(a.handleListUsers))
	mux.HandleFunc("POST /api/v1/users/staff", admin(a.handleCreateStaff))

	mux.HandleFunc("GET /api/v1/products", authed(a.handleListProducts))
	mux.HandleFunc("POST /api/v1/products", authed(a.handleCreateProduct))
	mux.HandleFunc("GET /api/v1/products/{id}", authed(a.handleGetProduct))
	mux.HandleFunc("PATCH /api/v1/products/{id}", authed(a.handleUpdateProduct))
	mux.HandleFunc("POST /api/v1/products/{id}/reserve", authed(a.handleReserve))
	mux.HandleFunc("POST /api/v1/products/{id}/cancel-reservation", authed(a.handleCancelReservation))
	mux.HandleFunc("POST /api/v1/products/{id}/adjust-quantity", authed(a.handleAdjustQuantity))
	mux.HandleFunc("POST /api/v1/products/{id}/deactivate", authed(a.handleDeactivateProduct))
	mux.HandleFunc("POST /api/v1/products/{id}/reactivate", authed(a.handleReactivateProduct))
	mux.HandleFunc("PUT /api/v1/products/{id}/image", authed(a.handleUploadProductImage))
	mux.HandleFunc("DELETE /api/v1/products/{id}/image", authed(a.handleDeleteProductImage))

	mux.HandleFunc("GET /api/v1/sales", authed(a.handleListSales))
	mux.HandleFunc("POST /api/v1/sales", authed(a.handleCreateSale))
	mux.HandleFunc("GET /api/v1/sales/{id}", authed(a.handleGetSale))
	mux.HandleFunc("PUT /api/v1/sales/{id}", authed(a.handleUpdateSale))
	mux.HandleFunc("DELETE /api/v1/sales/{id}", authed(a.handleDeleteSale))
	mux.HandleFunc("POST /api/v1/sales/{id}/cancel", authed(a.handleCancelSale))
	mux.HandleFunc("POST /api/v1/sales/{id}/confirm-payment", authed(a.handleConfirmSalePaid))

	mux.HandleFunc("GET /api/v1/installments", authed(a.handleListInstallments))
	mux.HandleFunc("POST /api/v1/installments/{id}/pay", authed(a.handlePayInstallment))

	mux.HandleFunc("GET /api/v1/receivables", authed(a.handleListReceivables))
	mux.HandleFunc("POST /api/v1/receivables", authed(a.handleCreateReceivable))
	mux.HandleFunc("POST /api/v1/receivables/{id}/receive", authed(a.handleReceiveReceivable))
	mux.HandleFunc("DELETE /api/v1/receivables/{id}", authed(a.handleDeleteReceivable))
	mux.HandleFunc("POST /api/v1/receivables/recurring/run", admin(a.handleRunRecurring))

	mux.HandleFunc("GET /api/v1/expenses", authed(a.handleListExpenses))
	mux.HandleFunc("POST /api/v1/expenses", authed(a.handleCreateExpense))
	mux.HandleFunc("POST /api/v1/expenses/{id}/pay", authed(a.handlePayExpense))
	mux.HandleFunc("DELETE /api/v1/expenses/{id}", authed(a.handleDeleteExpense))

	mux.HandleFunc("GET /api/v1/cash/days", authed(a.handleListCashDays))
	mux.HandleFunc("GET /api/v1/cash/days/{day}", authed(a.handleGetCashDay))
	mux.HandleFunc("POST /api/v1/cash/movements", authed(a.handleRecordMovement))

	mux.HandleFunc("GET /api/v1/customers", authed(a.handleListCustomers))
	mux.HandleFunc("POST /api/v1/customers", authed(a.handleCreateCustomer))
	mux.HandleFunc("POST /api/v1/customers/bulk-deactivate", authed(a.handleBulkDeactivateCustomers))
	mux.HandleFunc("GET /api/v1/customers/{id}", authed(a.handleGetCustomer))
	mux.HandleFunc("PUT /api/v1/customers/{id}", authed(a.handleUpdateCustomer))
	mux.HandleFunc("POST /api/v1/customers/{id}/activate", authed(a.handleSetCustomerActive(true)))
	mux.HandleFunc("POST /api/v1/customers/{id}/deactivate", authed(a.handleSetCustomerActive(false)))

	mux.HandleFunc("GET /api/v1/suppliers", authed(a.handleListSuppliers))
	mux.HandleFunc("POST /api/v1/suppliers", authed(a.handleCreateSupplier))
	mux.HandleFunc("PUT /api/v1/suppliers/{id}", authed(a.handleUpdateSupplier))
	mux.HandleFunc("POST /api/v1/suppliers/{id}/activate", authed(a.handleSetSupplierActive(true)))
	mux.HandleFunc("POST /api/v1/suppliers/{id}/deactivate", authed(a.handleSetSupplierActive(false)))

	mux.HandleFunc("GET /api/v1/categories", authed(a.handleListCategories))
	mux.HandleFunc("POST /api/v1/categories", authed(a.handleCreateCategory))
	mux.HandleFunc("GET /api/v1/payment-methods", authed(a.handleListPaymentMethods))
	mux.HandleFunc("POST /api/v1/payment-methods", authed(a.handleCreatePaymentMethod))

	mux.HandleFunc("GET /api/v1/commission-rules", authed(a.handleListCommissionRules))
	mux.HandleFunc("POST /api/v1/commission-rules", authed(a.handleCreateCommissionRule))
	mux.HandleFunc("POST /api/v1/commission-rules/{id}/activate", authed(a.handleSetCommissionRuleActive(true)))
	mux.HandleFunc("POST /api/v1/commission-rules/{id}/deactivate", authed(a.handleSetCommissionRuleActive(false)))
	mux.HandleFunc("GET /api/v1/commissions", authed(a.handleListCommissions))
	mux.HandleFunc("POST /api/v1/commissions/{id}/pay", authed(a.handlePayCommission))

	mux.HandleFunc("GET /api/v1/reports/finance-summary", authed(a.handleFinanceSummary))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, r, apperror.NewUnauthorized("missing bearer token"))
			return
		}

		actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeError(w, r, apperror.NewForbidden("forbidden role"))
			return
		}

		ctx := service.WithActor(r.Context(), actor)
		ctx = logger.WithLogger(ctx, a.log.With("owner_id", actor.OwnerID, "user_id", actor.UserID))
		next(w, r.WithContext(ctx))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

// csrfExemptPaths are called before the client can hold a token.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/register",
}

func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
		a.writeError(w, r, apperror.NewForbidden("missing or invalid CSRF token"))
		return false
	}
	return true
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			limit := int64(maxJSONBody)
			if strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/") {
				limit = maxImageBody
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx, span := tracer.Start(ctx, r.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()
		r = r.WithContext(ctx)

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(startedAt)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		span.SetName(route)
		span.SetAttributes(
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", rec.status),
		)
		if rec.status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
		a.metrics.Request(r.Context(), r.Method, route, rec.status, elapsed)
		a.log.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds(),
		)
	})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperror.NewValidation("request body too large").WithCause(err)
		}
		return apperror.NewValidation("invalid JSON body").WithCause(err)
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func queryDay(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	day, err := domain.ParseDay(raw)
	if err != nil {
		return nil, apperror.NewValidation(key+" must be a date (YYYY-MM-DD)").WithDetail("field", key)
	}
	return &day, nil
}

func queryBool(r *http.Request, key string) bool {
	parsed, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && parsed
}

func dayOrZero(day *time.Time) time.Time {
	if day == nil {
		return time.Time{}
	}
	return *day
}

// writeError renders an AppError. Anything else is treated as internal and
// its message is never sent to the client.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.AsAppError(err)
	if !ok {
		appErr = apperror.NewInternal(err)
	}
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	body := map[string]any{"code": appErr.Code, "message": appErr.Message}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Errorw("request failed", "path", r.URL.Path, "error", err)
		body["message"] = "internal server error"
	} else if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	writeJSON(w, status, map[string]any{"error": body})
}

func writeTooManyRequests(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusTooManyRequests, map[string]any{
		"error": map[string]any{"code": "RATE_LIMITED", "message": message},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
