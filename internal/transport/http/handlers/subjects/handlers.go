package subjectshandler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizops/internal/domain/audit"
	"bizops/internal/domain/auth"
	"bizops/internal/domain/subjects"
	"bizops/internal/transport/http/api"
	"bizops/internal/transport/http/middleware"
	"bizops/internal/transport/http/shared"
)

type Handler struct {
	Service *subjects.Service
	Perms   middleware.PermissionStore
	Audit   *audit.Service
}

func NewHandler(service *subjects.Service, perms middleware.PermissionStore, auditSvc *audit.Service) *Handler {
	return &Handler{Service: service, Perms: perms, Audit: auditSvc}
}

type createRequest struct {
	FullName string `json:"fullName" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	UserID   string `json:"userId" validate:"omitempty,uuid"`
	Kind     string `json:"kind" validate:"omitempty,oneof=employee admin"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=active inactive"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/subjects", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermSubjectsRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermSubjectsWrite, h.Perms)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermSubjectsRead, h.Perms)).Get("/{subjectID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermSubjectsWrite, h.Perms)).Put("/{subjectID}/status", h.handleUpdateStatus)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.PageOf(r, 100, 500)
	query := r.URL.Query()
	filter := subjects.Filter{Status: query.Get("status"), Kind: query.Get("kind"), Query: query.Get("q")}
	if filter.Status != "" && !subjects.ValidStatus(filter.Status) {
		api.Fail(w, http.StatusBadRequest, "invalid_filter", "invalid status filter", middleware.GetRequestID(r.Context()))
		return
	}
	if filter.Kind != "" && !subjects.ValidKind(filter.Kind) {
		api.Fail(w, http.StatusBadRequest, "invalid_filter", "invalid kind filter", middleware.GetRequestID(r.Context()))
		return
	}

	items, total, err := h.Service.List(r.Context(), user.TenantID, filter, page.Limit, page.Offset)
	if err != nil {
		slog.Error("subject list failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "subject_list_failed", "failed to list subjects", middleware.GetRequestID(r.Context()))
		return
	}
	page.WriteTotal(w, total)
	api.Success(w, items, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	var payload createRequest
	if !shared.Decode(w, r, &payload) {
		return
	}

	created, err := h.Service.Create(r.Context(), user.TenantID, subjects.Subject{
		FullName: payload.FullName,
		Email:    payload.Email,
		UserID:   payload.UserID,
		Kind:     payload.Kind,
	})
	if err != nil {
		switch {
		case errors.Is(err, subjects.ErrDuplicateEmail):
			api.Fail(w, http.StatusConflict, "duplicate_email", "a subject with this email already exists", middleware.GetRequestID(r.Context()))
		case errors.Is(err, subjects.ErrInvalidKind), errors.Is(err, subjects.ErrInvalidStatus):
			api.Fail(w, http.StatusBadRequest, "validation_error", err.Error(), middleware.GetRequestID(r.Context()))
		default:
			slog.Error("subject create failed", "err", err)
			api.Fail(w, http.StatusInternalServerError, "subject_create_failed", "failed to create subject", middleware.GetRequestID(r.Context()))
		}
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionSubjectCreate, "subject", created.ID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), nil, created); err != nil {
		slog.Warn("audit subject.create failed", "err", err)
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
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
	subject, err := h.Service.Get(r.Context(), user.TenantID, subjectID)
	if err != nil {
		if errors.Is(err, subjects.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "subject not found", middleware.GetRequestID(r.Context()))
			return
		}
		slog.Error("subject get failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "subject_get_failed", "failed to load subject", middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, subject, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
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
	var payload statusRequest
	if !shared.Decode(w, r, &payload) {
		return
	}

	before, err := h.Service.Get(r.Context(), user.TenantID, subjectID)
	if err != nil {
		if errors.Is(err, subjects.ErrNotFound) {
			api.Fail(w, http.StatusNotFound, "not_found", "subject not found", middleware.GetRequestID(r.Context()))
			return
		}
		api.Fail(w, http.StatusInternalServerError, "subject_update_failed", "failed to update subject", middleware.GetRequestID(r.Context()))
		return
	}
	if err := h.Service.UpdateStatus(r.Context(), user.TenantID, subjectID, payload.Status); err != nil {
		slog.Error("subject status update failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "subject_update_failed", "failed to update subject", middleware.GetRequestID(r.Context()))
		return
	}

	if err := h.Audit.Record(r.Context(), user.TenantID, user.UserID, audit.ActionSubjectStatus, "subject", subjectID, middleware.GetRequestID(r.Context()), shared.ClientIP(r), map[string]string{"status": before.Status}, payload); err != nil {
		slog.Warn("audit subject.status failed", "err", err)
	}
	api.Success(w, map[string]string{"id": subjectID, "status": payload.Status}, middleware.GetRequestID(r.Context()))
}
