package kpihandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"bizops/internal/domain/audit"
	"bizops/internal/domain/auth"
	"bizops/internal/domain/kpi"
	"bizops/internal/domain/monthly"
	"bizops/internal/transport/http/api"
	"bizops/internal/transport/http/middleware"
	"bizops/internal/transport/http/shared"
)

type Handler struct {
	Service *kpi.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *kpi.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

type submitRequest struct {
	SubjectID string             `json:"subjectId" validate:"required,uuid"`
	WeekKey   string             `json:"weekKey" validate:"required,datetime=2006-01-02"`
	Marks     map[string]float64 `json:"marks" validate:"required,min=1"`
	Note      string             `json:"note" validate:"max=1000"`
}

type submitResponse struct {
	Submission kpi.MarkSubmission `json:"submission"`
	Weekly     kpi.WeeklyScore    `json:"weekly"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/kpi", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermKPIRead, h.Perms)).Get("/criteria", h.handleCriteria)
		r.With(middleware.RequirePermission(auth.PermKPIWrite, h.Perms)).Post("/marks", h.handleSubmit)
		r.With(middleware.RequirePermission(auth.PermKPIRead, h.Perms)).Get("/marks", h.handleListMarks)
		r.With(middleware.RequirePermission(auth.PermKPIWrite, h.Perms)).Delete("/marks/{submissionID}", h.handleDelete)
		r.With(middleware.RequirePermission(auth.PermKPIRead, h.Perms)).Get("/weekly-scores", h.handleWeeklyScores)
	})
}

func (h *Handler) handleCriteria(w http.ResponseWriter, r *http.Request) {
	api.Success(w, map[string]any{"criteria": h.Service.Criteria()}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload submitRequest
	if !shared.Decode(w, r, &payload) {
		return
	}

	sub, weekly, err := h.Service.SubmitMarks(r.Context(), user.TenantID, user.UserID, kpi.SubmissionInput{
		SubjectID: payload.SubjectID,
		WeekKey:   payload.WeekKey,
		Marks:     payload.Marks,
		Note:      payload.Note,
	})
	if err != nil {
		writeError(w, r, err, "marks_submit_failed", "failed to submit marks")
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionMarksSubmit, "kpi_submission", sub.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, sub); err != nil {
		slog.Warn("audit kpi.marks.submit failed", "err", err)
	}
	api.Created(w, submitResponse{Submission: sub, Weekly: weekly}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleListMarks(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	subjectID := strings.TrimSpace(r.URL.Query().Get("subjectId"))
	weekKey := strings.TrimSpace(r.URL.Query().Get("week"))
	if !shared.ValidID(subjectID) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "subjectId", Reason: "must be a valid id"}})
		return
	}

	items, err := h.Service.ListSubmissions(r.Context(), user.TenantID, subjectID, weekKey)
	if err != nil {
		writeError(w, r, err, "marks_list_failed", "failed to list marks")
		return
	}
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	submissionID := chi.URLParam(r, "submissionID")
	if !shared.ValidID(submissionID) {
		api.Fail(w, http.StatusNotFound, "not_found", "submission not found", middleware.GetRequestID(r.Context()))
		return
	}
	sub, weekly, err := h.Service.DeleteSubmission(r.Context(), user.TenantID, submissionID)
	if err != nil {
		writeError(w, r, err, "marks_delete_failed", "failed to delete marks")
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionMarksDelete, "kpi_submission", submissionID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), sub, nil); err != nil {
		slog.Warn("audit kpi.marks.delete failed", "err", err)
	}
	api.Success(w, map[string]any{"id": submissionID, "weekly": weekly}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleWeeklyScores(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	subjectID := strings.TrimSpace(r.URL.Query().Get("subjectId"))
	if !shared.ValidID(subjectID) {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), []shared.ValidationIssue{{Field: "subjectId", Reason: "must be a valid id"}})
		return
	}
	month, err := monthly.ParseMonthKey(r.URL.Query().Get("month"))
	if err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_month_key", "month must be YYYY-MM", middleware.GetRequestID(r.Context()))
		return
	}

	weeks := month.Weeks()
	scores, err := h.Service.WeeklyScores(r.Context(), user.TenantID, subjectID, weeks)
	if err != nil {
		writeError(w, r, err, "weekly_scores_failed", "failed to load weekly scores")
		return
	}
	api.Success(w, map[string]any{
		"monthKey": month.String(),
		"weeks":    monthly.Breakdown(weeks, scores),
	}, middleware.GetRequestID(r.Context()))
}

func writeError(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, kpi.ErrInvalidWeekKey), errors.Is(err, kpi.ErrInvalidMarks), errors.Is(err, kpi.ErrUnknownCriterion):
		api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), requestID)
	case errors.Is(err, kpi.ErrSubjectNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "subject not found", requestID)
	case errors.Is(err, kpi.ErrSubmissionNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "submission not found", requestID)
	case errors.Is(err, kpi.ErrMonthLocked):
		api.Fail(w, http.StatusConflict, "month_locked", "month is locked", requestID)
	default:
		slog.Error(code, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}
