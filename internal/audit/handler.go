package audit

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/internal/httpserver"
	"github.com/frostguard/core/pkg/hierarchy"
)

// Handler exposes the tenant audit trail for the admin UI.
type Handler struct {
	Queries *db.Queries
	Logger  *slog.Logger
}

func NewHandler(queries *db.Queries, logger *slog.Logger) *Handler {
	return &Handler{Queries: queries, Logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	info := hierarchy.FromContext(r.Context())
	if info == nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "missing tenant context")
		return
	}

	params, err := httpserver.ParseOffsetParams(r)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	entries, err := h.Queries.ListAuditLog(r.Context(), db.ListAuditLogParams{
		TenantID: info.ID,
		Limit:    int32(params.PageSize),
		Offset:   int32(params.Offset),
	})
	if err != nil {
		h.Logger.Error("listing audit log", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list audit log")
		return
	}
	if entries == nil {
		entries = []db.AuditLogEntry{}
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}
