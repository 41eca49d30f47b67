package fundshandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizops/internal/domain/audit"
	"bizops/internal/domain/auth"
	"bizops/internal/domain/funds"
	"bizops/internal/transport/http/api"
	"bizops/internal/transport/http/middleware"
	"bizops/internal/transport/http/shared"
)

type Handler struct {
	Service *funds.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *funds.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

type adjustmentRequest struct {
	SubjectID string  `json:"subjectId" validate:"required,uuid"`
	Amount    float64 `json:"amount" validate:"required"`
	Note      string  `json:"note" validate:"required,max=500"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/funds", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermFundsRead, h.Perms)).Get("/subjects/{subjectID}/entries", h.handleEntries)
		r.With(middleware.RequirePermission(auth.PermFundsRead, h.Perms)).Get("/subjects/{subjectID}/balance", h.handleBalance)
		r.With(middleware.RequirePermission(auth.PermFundsWrite, h.Perms)).Post("/adjustments", h.handleAdjust)
	})
}

func (h *Handler) handleEntries(w http.ResponseWriter, r *http.Request) {
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
	page := shared.PageOf(r, 100, 500)
	entries, total, err := h.Service.Entries(r.Context(), user.TenantID, subjectID, page.Limit, page.Offset)
	if err != nil {
		writeError(w, r, err, "fund_entries_failed", "failed to list fund entries")
		return
	}
	page.WriteTotal(w, total)
	api.Success(w, entries, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
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
	balance, err := h.Service.Balance(r.Context(), user.TenantID, subjectID)
	if err != nil {
		writeError(w, r, err, "fund_balance_failed", "failed to load balance")
		return
	}
	api.Success(w, balance, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload adjustmentRequest
	if !shared.Decode(w, r, &payload) {
		return
	}
	entry, err := h.Service.Adjust(r.Context(), user.TenantID, user.UserID, funds.Adjustment{
		SubjectID: payload.SubjectID,
		Amount:    payload.Amount,
		Note:      payload.Note,
	})
	if err != nil {
		writeError(w, r, err, "fund_adjust_failed", "failed to record adjustment")
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionFundAdjustment, "fund_entry", entry.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, entry); err != nil {
		slog.Warn("audit funds.adjustment failed", "err", err)
	}
	api.Created(w, entry, middleware.GetRequestID(r.Context()))
}

func writeError(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, funds.ErrSubjectNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "subject not found", requestID)
	case errors.Is(err, funds.ErrInvalidAmount), errors.Is(err, funds.ErrNoteRequired):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	default:
		slog.Error(code, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}
