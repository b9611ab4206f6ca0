package ingest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/internal/httpserver"
	"github.com/frostguard/core/pkg/hierarchy"
)

// Handler exposes the inbound reading API (spec §6 "Inbound reading API").
type Handler struct {
	Orchestrator *Orchestrator
}

func NewHandler(o *Orchestrator) *Handler {
	return &Handler{Orchestrator: o}
}

func (h *Handler) Routes() http.Handler {
	return http.HandlerFunc(h.handleIngest)
}

// readingDTO is the wire shape for one inbound reading (spec §6). Temperature
// and humidity arrive as tenths-of-a-degree integers already, matching the
// internal representation — no unit conversion happens at this boundary.
type readingDTO struct {
	UnitID         uuid.UUID       `json:"unitId" validate:"required"`
	DeviceID       *string         `json:"deviceId,omitempty"`
	Temperature    int32           `json:"temperature" validate:"required"`
	Humidity       *int32          `json:"humidity,omitempty"`
	Battery        *int32          `json:"battery,omitempty"`
	SignalStrength *int32          `json:"signalStrength,omitempty"`
	RecordedAt     time.Time       `json:"recordedAt" validate:"required"`
	Source         string          `json:"source" validate:"required"`
	RawPayload     json.RawMessage `json:"rawPayload,omitempty"`
}

type ingestRequest struct {
	Readings []readingDTO `json:"readings" validate:"required,dive"`
}

type ingestResponse struct {
	InsertedCount int `json:"insertedCount"`
	DroppedCount  int `json:"droppedCount"`
	UnitsAffected int `json:"unitsAffected"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	info := hierarchy.FromContext(r.Context())
	if info == nil {
		httpserver.RespondError(w, http.StatusBadRequest, "bad_request", "missing tenant context")
		return
	}

	var req ingestRequest
	if !httpserver.DecodeAndValidate(w, r, &req) {
		return
	}

	rows := make([]db.InsertReadingsParams, len(req.Readings))
	for i, d := range req.Readings {
		rows[i] = db.InsertReadingsParams{
			TenantID:       info.ID,
			UnitID:         d.UnitID,
			DeviceID:       d.DeviceID,
			Temperature:    d.Temperature,
			Humidity:       d.Humidity,
			Battery:        d.Battery,
			SignalStrength: d.SignalStrength,
			RecordedAt:     d.RecordedAt,
			Source:         d.Source,
			RawPayload:     []byte(d.RawPayload),
		}
	}

	summary, err := h.Orchestrator.Ingest(r.Context(), info.ID, rows)
	if err != nil {
		httpserver.RespondAppError(w, err)
		return
	}

	httpserver.Respond(w, http.StatusAccepted, ingestResponse{
		InsertedCount: summary.Accepted,
		DroppedCount:  summary.Dropped,
		UnitsAffected: summary.Units,
	})
}
