package escalation

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/frostguard/core/internal/authctx"
	"github.com/frostguard/core/internal/httpserver"
	"github.com/frostguard/core/pkg/hierarchy"
)

// Handler exposes the manual escalation HTTP trigger implied by spec §4.6
// "Manual escalate" (spec.md does not define a transport for it; this
// mounts it the way the rest of the API exposes mutations — see
// SPEC_FULL.md's Supplemented Features).
type Handler struct {
	Engine *Engine
	Logger *slog.Logger
}

func NewHandler(engine *Engine, logger *slog.Logger) *Handler {
	return &Handler{Engine: engine, Logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(authctx.RequireMinRole(authctx.RoleEngineer)).Post("/{alertID}/escalate", h.handleManualEscalate)
	return r
}

type manualEscalateRequest struct {
	TargetLevel int32 `json:"targetLevel"`
}

func (h *Handler) handleManualEscalate(w http.ResponseWriter, r *http.Request) {
	info := hierarchy.FromContext(r.Context())
	if info == nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "missing tenant context")
		return
	}
	identity := authctx.FromContext(r.Context())
	if identity == nil {
		httpserver.RespondError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	alertID, err := uuid.Parse(chi.URLParam(r, "alertID"))
	if err != nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid alert id")
		return
	}

	var req manualEscalateRequest
	if r.ContentLength > 0 {
		if decodeErr := json.NewDecoder(r.Body).Decode(&req); decodeErr != nil {
			httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
	}

	result, err := h.Engine.ManualEscalate(r.Context(), info.ID, alertID, req.TargetLevel, identity.Subject)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpserver.RespondError(w, http.StatusNotFound, "not_found", "alert not found")
			return
		}
		h.Logger.Error("manual escalate", "alert_id", alertID, "error", err)
		httpserver.RespondError(w, http.StatusInternalServerError, "internal_error", "failed to escalate alert")
		return
	}

	httpserver.Respond(w, http.StatusOK, result)
}
