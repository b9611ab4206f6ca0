package alert

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/pkg/stream"
)

// Store wraps the alert query surface with the lifecycle rules spec §4.3
// assigns to the Alert Store. Hub is optional; when set, every mutation
// fans the updated alert out to the unit's live subscribers (spec §4.7).
type Store struct {
	Queries *db.Queries
	Hub     *stream.Hub
}

func NewStore(queries *db.Queries, hub *stream.Hub) *Store {
	return &Store{Queries: queries, Hub: hub}
}

// GetByIDScoped fetches a single alert, scoped to tenant.
func (s *Store) GetByIDScoped(ctx context.Context, tenantID, alertID uuid.UUID) (db.Alert, error) {
	return s.Queries.GetAlertScoped(ctx, tenantID, alertID)
}

// ListByTenant lists alerts filtered and paginated per spec §6.
func (s *Store) ListByTenant(ctx context.Context, f db.AlertListFilter) ([]db.Alert, error) {
	return s.Queries.ListAlertsByTenant(ctx, f)
}

// Acknowledge is a no-op if the alert is already acknowledged or resolved —
// the query's WHERE clause enforces this, so a zero-row update here is
// indistinguishable from "not found" and is returned to the caller as
// pgx.ErrNoRows.
func (s *Store) Acknowledge(ctx context.Context, tenantID, alertID uuid.UUID, actor string, notes json.RawMessage) (db.Alert, error) {
	var detail json.RawMessage
	if len(notes) > 0 {
		detail, _ = json.Marshal(map[string]json.RawMessage{"acknowledgeNotes": ensureJSON(notes)})
	}

	updated, err := s.Queries.AcknowledgeAlert(ctx, db.AcknowledgeAlertParams{
		AlertID: alertID, TenantID: tenantID, Actor: actor, Detail: detail,
	})
	if err != nil {
		return db.Alert{}, err
	}

	s.publish(tenantID, stream.EventTypeAlertAcknowledged, updated)
	return updated, nil
}

// Resolve is permitted from any non-resolved state and, per spec §4.3, also
// returns the unit to `ok` status if it is currently in excursion,
// alarmActive, or restoring — resolving the alert is the other legitimate
// writer of unit status besides the Evaluator and the offline sweep.
func (s *Store) Resolve(ctx context.Context, tenantID, alertID uuid.UUID, actor, resolutionText string, correctiveAction *string) (db.Alert, error) {
	detailFields := map[string]any{"resolutionText": resolutionText}
	if correctiveAction != nil {
		detailFields["correctiveAction"] = *correctiveAction
	}
	detail, _ := json.Marshal(map[string]any{"resolution": detailFields})

	updated, err := s.Queries.ResolveAlert(ctx, db.ResolveAlertParams{
		AlertID: alertID, TenantID: tenantID, Actor: actor, Detail: detail,
	})
	if err != nil {
		return db.Alert{}, err
	}

	if err := s.resetUnitIfExcursing(ctx, tenantID, updated.UnitID); err != nil {
		return updated, err
	}

	s.publish(tenantID, stream.EventTypeAlertResolved, updated)
	return updated, nil
}

func (s *Store) resetUnitIfExcursing(ctx context.Context, tenantID, unitID uuid.UUID) error {
	unit, err := s.Queries.GetUnitScoped(ctx, tenantID, unitID)
	if err != nil {
		return err
	}
	switch unit.Status {
	case db.UnitStatusExcursion, db.UnitStatusAlarmActive, db.UnitStatusRestoring:
	default:
		return nil
	}
	return s.Queries.UpdateUnitStatus(ctx, db.UpdateUnitStatusParams{
		UnitID: unitID, TenantID: tenantID, Status: db.UnitStatusOK, StatusChangedAt: time.Now(),
	})
}

func (s *Store) publish(tenantID uuid.UUID, eventType string, a db.Alert) {
	if s.Hub == nil {
		return
	}
	s.Hub.PublishAlertChange(tenantID, uuid.Nil, a.UnitID, eventType, alertRowToResponse(a))
}
