package alert

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/frostguard/core/internal/audit"
	"github.com/frostguard/core/internal/authctx"
	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/internal/httpserver"
	"github.com/frostguard/core/pkg/hierarchy"
)

// Handler provides HTTP handlers for alert lifecycle endpoints (spec §4.3,
// §6 "Alert query").
type Handler struct {
	Store  *Store
	Audit  *audit.Writer // optional
	Logger *slog.Logger
}

func NewHandler(store *Store, auditWriter *audit.Writer, logger *slog.Logger) *Handler {
	return &Handler{Store: store, Audit: auditWriter, Logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.With(authctx.RequireMinRole(authctx.RoleEngineer)).Patch("/{id}/acknowledge", h.handleAcknowledge)
	r.With(authctx.RequireMinRole(authctx.RoleEngineer)).Patch("/{id}/resolve", h.handleResolve)
	return r
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	info := hierarchy.FromContext(r.Context())
	if info == nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "missing tenant context")
		return
	}

	f, err := parseListFilter(r, info.ID)
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	alerts, err := h.Store.ListByTenant(r.Context(), f)
	if err != nil {
		h.Logger.Error("listing alerts", "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to list alerts")
		return
	}

	responses := make([]Response, len(alerts))
	for i, a := range alerts {
		responses[i] = alertRowToResponse(a)
	}

	httpserver.Respond(w, http.StatusOK, map[string]any{
		"alerts": responses,
		"count":  len(responses),
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	info := hierarchy.FromContext(r.Context())
	if info == nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "missing tenant context")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid alert id")
		return
	}

	a, err := h.Store.GetByIDScoped(r.Context(), info.ID, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "alert not found")
			return
		}
		h.Logger.Error("getting alert", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to get alert")
		return
	}

	httpserver.Respond(w, http.StatusOK, alertRowToResponse(a))
}

type acknowledgeRequest struct {
	Notes json.RawMessage `json:"notes,omitempty"`
}

func (h *Handler) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	info := hierarchy.FromContext(r.Context())
	identity := authctx.FromContext(r.Context())
	if info == nil || identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid alert id")
		return
	}

	var req acknowledgeRequest
	if r.ContentLength > 0 {
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
	}

	updated, err := h.Store.Acknowledge(r.Context(), info.ID, id, identity.Subject, req.Notes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "alert not found or already acknowledged/resolved")
			return
		}
		h.Logger.Error("acknowledging alert", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to acknowledge alert")
		return
	}

	if h.Audit != nil {
		detail, _ := json.Marshal(map[string]string{"severity": updated.Severity})
		h.Audit.LogFromRequest(r, info.ID, "acknowledge", "alert", updated.ID, detail)
	}

	httpserver.Respond(w, http.StatusOK, alertRowToResponse(updated))
}

type resolveRequest struct {
	ResolutionText   string  `json:"resolutionText"`
	CorrectiveAction *string `json:"correctiveAction,omitempty"`
}

func (h *Handler) handleResolve(w http.ResponseWriter, r *http.Request) {
	info := hierarchy.FromContext(r.Context())
	identity := authctx.FromContext(r.Context())
	if info == nil || identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid alert id")
		return
	}

	var req resolveRequest
	if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.ResolutionText == "" {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "resolutionText is required")
		return
	}

	updated, err := h.Store.Resolve(r.Context(), info.ID, id, identity.Subject, req.ResolutionText, req.CorrectiveAction)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "alert not found or already resolved")
			return
		}
		h.Logger.Error("resolving alert", "error", err, "id", id)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to resolve alert")
		return
	}

	if h.Audit != nil {
		detail, _ := json.Marshal(map[string]string{"resolutionText": req.ResolutionText})
		h.Audit.LogFromRequest(r, info.ID, "resolve", "alert", updated.ID, detail)
	}

	httpserver.Respond(w, http.StatusOK, alertRowToResponse(updated))
}

// --- list filter parsing ---

func parseListFilter(r *http.Request, tenantID uuid.UUID) (db.AlertListFilter, error) {
	f := db.AlertListFilter{TenantID: tenantID, Limit: 50, Offset: 0}

	q := r.URL.Query()
	if v := q.Get("unitId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errors.New("invalid unitId")
		}
		f.UnitID = &id
	}
	if v := q.Get("siteId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errors.New("invalid siteId")
		}
		f.SiteID = &id
	}
	if v := q.Get("status"); v != "" {
		f.Status = &v
	}
	if v := q.Get("severity"); v != "" {
		f.Severity = &v
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("invalid from")
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, errors.New("invalid to")
		}
		f.To = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n > 0 && n <= 200 {
			f.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil && n >= 0 {
			f.Offset = n
		}
	}
	return f, nil
}
