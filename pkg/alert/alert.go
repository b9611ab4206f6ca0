// Package alert is the Alert Store (spec §4.3): the HTTP-facing surface
// over alert rows created by the Evaluator (pkg/evaluator). It owns the
// acknowledge/resolve lifecycle and tenant-scoped querying; it does not
// create alerts itself — createIfNoOpenAlert and transitionSeverity live on
// the Evaluator, which already holds the open-alert transaction.
package alert

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/frostguard/core/internal/db"
)

// Response is the API representation of an alert.
type Response struct {
	ID              uuid.UUID       `json:"id"`
	UnitID          uuid.UUID       `json:"unitId"`
	AlertType       string          `json:"alertType"`
	Severity        string          `json:"severity"`
	Status          string          `json:"status"`
	TriggeringTemp  int32           `json:"triggeringTemp"`
	TriggeringBound string          `json:"triggeringBound"`
	TriggeredAt     time.Time       `json:"triggeredAt"`
	AcknowledgedAt  *time.Time      `json:"acknowledgedAt,omitempty"`
	AcknowledgedBy  *string         `json:"acknowledgedBy,omitempty"`
	ResolvedAt      *time.Time      `json:"resolvedAt,omitempty"`
	ResolvedBy      *string         `json:"resolvedBy,omitempty"`
	EscalationLevel int32           `json:"escalationLevel"`
	LastEscalatedAt *time.Time      `json:"lastEscalatedAt,omitempty"`
	Metadata        json.RawMessage `json:"metadata,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func alertRowToResponse(a db.Alert) Response {
	return Response{
		ID:              a.ID,
		UnitID:          a.UnitID,
		AlertType:       a.AlertType,
		Severity:        a.Severity,
		Status:          a.Status,
		TriggeringTemp:  a.TriggeringTemp,
		TriggeringBound: a.TriggeringBound,
		TriggeredAt:     a.TriggeredAt,
		AcknowledgedAt:  a.AcknowledgedAt,
		AcknowledgedBy:  a.AcknowledgedBy,
		ResolvedAt:      a.ResolvedAt,
		ResolvedBy:      a.ResolvedBy,
		EscalationLevel: a.EscalationLevel,
		LastEscalatedAt: a.LastEscalatedAt,
		Metadata:        a.Metadata,
		CreatedAt:       a.CreatedAt,
	}
}

// ensureJSON returns raw unchanged unless it is empty or JSON null, in which
// case it returns "{}" — used so an absent/empty notes field never produces a
// NULL jsonb merge.
func ensureJSON(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`)
	}
	return raw
}
