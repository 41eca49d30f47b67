package audithandler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"bizops/internal/domain/audit"
	"bizops/internal/domain/auth"
	"bizops/internal/transport/http/api"
	"bizops/internal/transport/http/middleware"
	"bizops/internal/transport/http/shared"
)

type Handler struct {
	Service *audit.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *audit.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAuditRead, h.Perms)).Get("/events", h.handleListEvents)
	})
}

func (h *Handler) handleListEvents(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", middleware.GetRequestID(r.Context()))
		return
	}

	page := shared.PageOf(r, 100, 500)
	query := r.URL.Query()
	filter := audit.Filter{
		Action:     query.Get("action"),
		EntityType: query.Get("entityType"),
		EntityID:   query.Get("entityId"),
		ActorUser:  query.Get("actorUserId"),
	}
	includeDetails := query.Get("includeDetails") == "true"

	from, to, issues := shared.DateRange(query, "from", "to")
	filter.From, filter.To = from, to
	if filter.Action != "" && !audit.KnownAction(filter.Action) {
		issues = append(issues, shared.ValidationIssue{Field: "action", Reason: "must be a known audit action"})
	}
	if filter.ActorUser != "" && !shared.ValidID(filter.ActorUser) {
		issues = append(issues, shared.ValidationIssue{Field: "actorUserId", Reason: "must be a valid id"})
	}
	if len(issues) > 0 {
		shared.FailValidation(w, middleware.GetRequestID(r.Context()), issues)
		return
	}

	total, err := h.Service.Count(r.Context(), user.TenantID, filter)
	if err != nil {
		slog.Warn("audit count failed", "err", err)
	}

	events, err := h.Service.List(r.Context(), user.TenantID, filter, includeDetails, page.Limit, page.Offset)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "audit_list_failed", "failed to list audit events", middleware.GetRequestID(r.Context()))
		return
	}

	page.WriteTotal(w, total)
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}
