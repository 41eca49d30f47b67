package reportshandler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizops/internal/domain/auth"
	"bizops/internal/domain/monthly"
	"bizops/internal/domain/reports"
	"bizops/internal/transport/http/api"
	"bizops/internal/transport/http/middleware"
	"bizops/internal/transport/http/shared"
)

type Handler struct {
	Service *reports.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *reports.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/reports", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/months/{month}/summary", h.handleSummary)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/months/{month}/export.csv", h.handleExportCSV)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/months/{month}/subjects/{subjectID}/statement.pdf", h.handleStatement)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/job-runs", h.handleJobRuns)
		r.With(middleware.RequirePermission(auth.PermReportsRead, h.Perms)).Get("/job-runs/{runID}", h.handleJobRun)
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	summary, err := h.Service.MonthSummary(r.Context(), user.TenantID, chi.URLParam(r, "month"))
	if err != nil {
		writeError(w, r, err, "summary_failed", "failed to build month summary")
		return
	}
	api.Success(w, summary, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	monthKey := chi.URLParam(r, "month")
	var buf bytes.Buffer
	if err := h.Service.ExportCSV(r.Context(), user.TenantID, monthKey, &buf); err != nil {
		writeError(w, r, err, "export_failed", "failed to export results")
		return
	}
	api.Download(w, "text/csv; charset=utf-8", fmt.Sprintf("monthly-results-%s.csv", monthKey), buf.Bytes())
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	monthKey := chi.URLParam(r, "month")
	subjectID := chi.URLParam(r, "subjectID")
	if !shared.ValidID(subjectID) {
		api.Fail(w, http.StatusNotFound, "not_found", "result not found", middleware.GetRequestID(r.Context()))
		return
	}
	var buf bytes.Buffer
	if err := h.Service.Statement(r.Context(), user.TenantID, monthKey, subjectID, &buf); err != nil {
		writeError(w, r, err, "statement_failed", "failed to render statement")
		return
	}
	api.Download(w, "application/pdf", fmt.Sprintf("statement-%s-%s.pdf", monthKey, subjectID), buf.Bytes())
}

func (h *Handler) handleJobRuns(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.PageOf(r, 50, 200)
	from, to, issues := shared.DateRange(r.URL.Query(), "startedFrom", "startedTo")
	if month := r.URL.Query().Get("month"); month != "" {
		if _, err := monthly.ParseMonthKey(month); err != nil {
			issues = append(issues, shared.ValidationIssue{Field: "month", Reason: "must be a month key in YYYY-MM format"})
		}
	}
	if len(issues) > 0 {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), issues)
		return
	}

	filter := reports.JobRunFilter{
		JobType:     r.URL.Query().Get("jobType"),
		Status:      r.URL.Query().Get("status"),
		MonthKey:    r.URL.Query().Get("month"),
		StartedFrom: from,
		StartedTo:   to,
	}
	runs, total, err := h.Service.JobRuns(r.Context(), user.TenantID, filter, page.Limit, page.Offset)
	if err != nil {
		slog.Error("job run list failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "job_runs_failed", "failed to list job runs", middleware.GetRequestID(r.Context()))
		return
	}
	page.WriteTotal(w, total)
	api.Success(w, runs, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleJobRun(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	runID := chi.URLParam(r, "runID")
	if !shared.ValidID(runID) {
		api.Fail(w, http.StatusNotFound, "not_found", "job run not found", middleware.GetRequestID(r.Context()))
		return
	}
	run, err := h.Service.JobRun(r.Context(), user.TenantID, runID)
	if err != nil {
		if errors.Is(err, reports.ErrJobRunNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "job run not found", middleware.GetRequestID(r.Context()))
			return
		}
		slog.Error("job run get failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "job_run_failed", "failed to load job run", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, run, middleware.GetRequestID(r.Context()))
}

func writeError(w http.ResponseWriter, r *http.Request, err error, code, message string) {
	requestID := middleware.GetRequestID(r.Context())
	switch {
	case errors.Is(err, monthly.ErrInvalidMonthKey):
		api.Fail(w, http.StatusBadRequest, "invalid_month_key", "month must be YYYY-MM", requestID)
	case errors.Is(err, monthly.ErrResultNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "result not found", requestID)
	default:
		slog.Error(code, "err", err)
		api.Fail(w, http.StatusInternalServerError, code, message, requestID)
	}
}
