package monthlyhandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"bizops/internal/domain/audit"
	"bizops/internal/domain/auth"
	"bizops/internal/domain/monthly"
	"bizops/internal/domain/notifications"
	"bizops/internal/domain/subjects"
	"bizops/internal/transport/http/api"
	"bizops/internal/transport/http/middleware"
	"bizops/internal/transport/http/shared"
)

const (
	endpointLock   = "monthly.lock"
	endpointUnlock = "monthly.unlock"
)

type Handler struct {
	Service     *monthly.Service
	Subjects    *subjects.Service
	Notify      *notifications.Service
	Perms       middleware.PermissionStore
	Audit       *audit.Service
	Idempotency *middleware.IdempotencyStore
}

func NewHandler(service *monthly.Service, subjectSvc *subjects.Service, notify *notifications.Service, perms middleware.PermissionStore, auditSvc *audit.Service, idem *middleware.IdempotencyStore) *Handler {
	return &Handler{Service: service, Subjects: subjectSvc, Notify: notify, Perms: perms, Audit: auditSvc, Idempotency: idem}
}

type unlockRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type lockResponse struct {
	monthly.TransitionResult
	Notified int `json:"notified"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/months/{month}", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermMonthlyRead, h.Perms)).Get("/weeks", h.handleWeeks)
		r.With(middleware.RequirePermission(auth.PermMonthlyRead, h.Perms)).Get("/status", h.handleStatus)
		r.With(middleware.RequirePermission(auth.PermMonthlyCompute, h.Perms)).Post("/compute", h.handleComputeMonth)
		r.With(middleware.RequirePermission(auth.PermMonthlyCompute, h.Perms)).Post("/subjects/{subjectID}/compute", h.handleComputeSubject)
		r.With(middleware.RequirePermission(auth.PermMonthlyRead, h.Perms)).Get("/results", h.handleListResults)
		r.With(middleware.RequirePermission(auth.PermMonthlyRead, h.Perms)).Get("/results/{subjectID}", h.handleGetResult)
		r.With(middleware.RequirePermission(auth.PermMonthlyCompute, h.Perms)).Post("/results/{subjectID}/notify", h.handleNotify)
		r.With(middleware.RequirePermission(auth.PermMonthlyLock, h.Perms)).Post("/lock", h.handleLock)
		r.With(middleware.RequirePermission(auth.PermMonthlyLock, h.Perms)).Post("/unlock", h.handleUnlock)
	})
}

func (h *Handler) handleWeeks(w http.ResponseWriter, r *http.Request) {
	monthKey := chi.URLParam(r, "month")
	weeks, err := h.Service.Weeks(monthKey)
	if err != nil {
		writeError(w, r, err, "weeks_failed", "failed to list weeks")
		return
	}
	api.Success(w, map[string]any{"monthKey": monthKey, "weeks": weeks}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	period, err := h.Service.Period(r.Context(), user.TenantID, chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, r, err, "status_failed", "failed to load month status")
		return
	}
	api.Success(w, period, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleComputeMonth(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	monthKey := chi.URLParam(r, "month")
	summary, err := h.Service.ComputeMonth(r.Context(), user.TenantID, user.UserID, monthKey)
	if err != nil {
		writeError(w, r, err, "compute_failed", "failed to compute month")
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionMonthCompute, "month", summary.MonthKey, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, summary); err != nil {
		slog.Warn("audit monthly.compute failed", "err", err)
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleComputeSubject(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	subjectID := chi.URLParam(r, "subjectID")
	if !shared.ValidID(subjectID) {
		api.Fail(w, http.StatusNotFound, "not_found", "subject not found", middleware.GetRequestID(r.Context()))
		return
	}
	result, err := h.Service.ComputeSubject(r.Context(), user.TenantID, user.UserID, chi.URLParam(r, "month"), subjectID)
	if err != nil {
		writeError(w, r, err, "compute_failed", "failed to compute result")
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionSubjectCompute, "monthly_result", result.MonthKey+"/"+subjectID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, result); err != nil {
		slog.Warn("audit monthly.subject.compute failed", "err", err)
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListResults(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.PageOf(r, 100, 500)
	filter := monthly.ResultFilter{Tier: strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("tier")))}
	if filter.Tier != "" && !monthly.ValidTier(filter.Tier) {
		api.Fail(w, http.StatusBadRequest, "invalid_filter", "unknown tier", middleware.GetRequestID(r.Context()))
		return
	}

	items, total, err := h.Service.ListResults(r.Context(), user.TenantID, chi.URLParam(r, "month"), filter, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "results_list_failed", "failed to list results")
		return
	}
	page.WriteTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	subjectID := chi.URLParam(r, "subjectID")
	if !shared.ValidID(subjectID) {
		api.Fail(w, http.StatusNotFound, "not_found", "result not found", middleware.GetRequestID(r.Context()))
		return
	}
	detail, err := h.Service.Detail(r.Context(), user.TenantID, chi.URLParam(r, "month"), subjectID)
	if err != nil {
		writeError(w, r, err, "result_get_failed", "failed to load result")
		return
	}
	api.Success(w, detail, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleNotify(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	subjectID := chi.URLParam(r, "subjectID")
	if !shared.ValidID(subjectID) {
		api.Fail(w, http.StatusNotFound, "not_found", "result not found", middleware.GetRequestID(r.Context()))
		return
	}
	monthKey := chi.URLParam(r, "month")
	delivery, err := h.notifyResult(r.Context(), user.TenantID, monthKey, subjectID)
	if err != nil {
		writeError(w, r, err, "notify_failed", "failed to send result notification")
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionResultNotify, "monthly_result", monthKey+"/"+subjectID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, delivery); err != nil {
		slog.Warn("audit monthly.notify failed", "err", err)
	}
	api.Success(w, delivery, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleLock(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	monthKey := chi.URLParam(r, "month")
	notify := r.URL.Query().Get("notify") == "true"

	scope, keyed := middleware.ScopeFor(r, user, endpointLock)
	hash := middleware.RequestHash(monthKey, strconv.FormatBool(notify))
	if keyed && h.replayed(w, r, scope, hash) {
		return
	}

	transition, err := h.Service.Lock(r.Context(), user.TenantID, user.UserID, monthKey)
	if err != nil {
		writeError(w, r, err, "lock_failed", "failed to lock month")
		return
	}
	response := lockResponse{TransitionResult: transition}
	if notify {
		response.Notified = h.notifyMonth(r.Context(), user.TenantID, transition.Period.MonthKey)
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionMonthLock, "month", transition.Period.MonthKey, middleware.GetRequestID(r.Context()), shared.ClientIP(r), map[string]string{"status": monthly.StatusOpen}, response); err != nil {
		slog.Warn("audit monthly.lock failed", "err", err)
	}
	if err := h.Notify.MonthTransition(r.Context(), user.TenantID, user.UserID, transition); err != nil {
		slog.Warn("lock notification failed", "month", transition.Period.MonthKey, "err", err)
	}
	if keyed {
		h.remember(r.Context(), scope, hash, response)
	}
	api.Success(w, response, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUnlock(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload unlockRequest
	if !shared.Decode(w, r, &payload) {
		return
	}
	monthKey := chi.URLParam(r, "month")
	scope, keyed := middleware.ScopeFor(r, user, endpointUnlock)
	hash := middleware.RequestHash(monthKey, strings.TrimSpace(payload.Reason))
	if keyed && h.replayed(w, r, scope, hash) {
		return
	}

	transition, err := h.Service.Unlock(r.Context(), user.TenantID, user.UserID, monthKey, payload.Reason)
	if err != nil {
		writeError(w, r, err, "unlock_failed", "failed to unlock month")
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionMonthUnlock, "month", transition.Period.MonthKey, middleware.GetRequestID(r.Context()), shared.ClientIP(r), map[string]string{"status": monthly.StatusLocked}, transition); err != nil {
		slog.Warn("audit monthly.unlock failed", "err", err)
	}
	if err := h.Notify.MonthTransition(r.Context(), user.TenantID, user.UserID, transition); err != nil {
		slog.Warn("unlock notification failed", "month", transition.Period.MonthKey, "err", err)
	}
	if keyed {
		h.remember(r.Context(), scope, hash, transition)
	}
	api.Success(w, transition, middleware.GetRequestID(r.Context()))
}

// replayed answers a retried request from the idempotency store and reports
// whether the response has been written.
func (h *Handler) replayed(w http.ResponseWriter, r *http.Request, scope middleware.IdempotencyScope, hash string) bool {
	stored, found, err := h.Idempotency.Check(r.Context(), scope, hash)
	switch {
	case errors.Is(err, middleware.ErrIdempotencyConflict):
		api.Fail(w, http.StatusConflict, "idempotency_conflict", "idempotency key reused with a different request", middleware.GetRequestID(r.Context()))
		return true
	case err != nil:
		slog.Warn("idempotency check failed", "endpoint", scope.Endpoint, "err", err)
		return false
	case found:
		api.Success(w, stored, middleware.GetRequestID(r.Context()))
		return true
	}
	return false
}

func (h *Handler) remember(ctx context.Context, scope middleware.IdempotencyScope, hash string, response any) {
	if err := h.Idempotency.Save(ctx, scope, hash, response); err != nil {
		slog.Warn("idempotency save failed", "endpoint", scope.Endpoint, "err", err)
	}
}

func (h *Handler) notifyResult(ctx context.Context, tenantID, monthKey, subjectID string) (notifications.Delivery, error) {
	detail, err := h.Service.Detail(ctx, tenantID, monthKey, subjectID)
	if err != nil {
		return notifications.Delivery{}, err
	}
	subject, err := h.Subjects.Get(ctx, tenantID, subjectID)
	if err != nil {
		return notifications.Delivery{}, err
	}
	return h.Notify.NotifyMonthlyResult(ctx, tenantID, subject, detail)
}

// notifyMonth sends every stored result of the month and returns how many
// were delivered. Failures are logged per subject.
func (h *Handler) notifyMonth(ctx context.Context, tenantID, monthKey string) int {
	results, err := h.Service.AllResults(ctx, tenantID, monthKey)
	if err != nil {
		slog.Warn("lock notify list failed", "month", monthKey, "err", err)
		return 0
	}
	sent := 0
	for _, item := range results {
		if _, err := h.notifyResult(ctx, tenantID, monthKey, item.SubjectID); err != nil {
			slog.Warn("lock notify failed", "month", monthKey, "subjectId", item.SubjectID, "err", err)
			continue
		}
		sent++
	}
	return sent
}

func writeError(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, monthly.ErrInvalidMonthKey):
		api.Fail(w, http.StatusBadRequest, "invalid_month_key", "month must be YYYY-MM", requestID)
	case errors.Is(err, monthly.ErrSubjectNotFound), errors.Is(err, subjects.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "subject not found", requestID)
	case errors.Is(err, monthly.ErrResultNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "result not found", requestID)
	case monthly.IsValidation(err):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, monthly.ErrMonthLocked):
		api.Fail(w, http.StatusConflict, "month_locked", "month is locked", requestID)
	case errors.Is(err, monthly.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_state", "month is not in a state that allows this transition", requestID)
	default:
		slog.Error(code, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}
