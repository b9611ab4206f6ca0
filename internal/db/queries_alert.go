package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const alertColumns = `id, tenant_id, unit_id, alert_type, severity, status, triggering_temp, triggering_bound,
	triggered_at, acknowledged_at, acknowledged_by, resolved_at, resolved_by, escalation_level,
	last_escalated_at, metadata, created_at`

func scanAlert(row interface{ Scan(dest ...any) error }) (Alert, error) {
	var a Alert
	err := row.Scan(&a.ID, &a.TenantID, &a.UnitID, &a.AlertType, &a.Severity, &a.Status,
		&a.TriggeringTemp, &a.TriggeringBound, &a.TriggeredAt, &a.AcknowledgedAt, &a.AcknowledgedBy,
		&a.ResolvedAt, &a.ResolvedBy, &a.EscalationLevel, &a.LastEscalatedAt, &a.Metadata, &a.CreatedAt)
	return a, err
}

// GetOpenAlertForUnit finds the open alert (if any) of the given type for a
// unit, used for idempotent alert creation (spec §4.2, §8). Must be called
// within the same transaction as the subsequent insert.
func (q *Queries) GetOpenAlertForUnit(ctx context.Context, tenantID, unitID uuid.UUID, alertType string) (Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE tenant_id = $1 AND unit_id = $2 AND alert_type = $3
		  AND status IN ('` + AlertStatusActive + `', '` + AlertStatusAcknowledged + `', '` + AlertStatusEscalated + `')
		ORDER BY triggered_at DESC
		LIMIT 1`
	row := q.db.QueryRow(ctx, query, tenantID, unitID, alertType)
	return scanAlert(row)
}

type CreateAlertParams struct {
	TenantID        uuid.UUID
	UnitID          uuid.UUID
	AlertType       string
	Severity        string
	TriggeringTemp  int32
	TriggeringBound string
	TriggeredAt     time.Time
	Metadata        json.RawMessage
}

func (q *Queries) CreateAlert(ctx context.Context, p CreateAlertParams) (Alert, error) {
	query := `
		INSERT INTO alerts (id, tenant_id, unit_id, alert_type, severity, status, triggering_temp,
			triggering_bound, triggered_at, escalation_level, metadata, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, '` + AlertStatusActive + `', $5, $6, $7, 0, $8, now())
		RETURNING ` + alertColumns
	row := q.db.QueryRow(ctx, query, p.TenantID, p.UnitID, p.AlertType, p.Severity,
		p.TriggeringTemp, p.TriggeringBound, p.TriggeredAt, p.Metadata)
	return scanAlert(row)
}

// TransitionSeverity escalates an open alert's severity/status/level in place,
// used by the Evaluator's excursion→alarmActive transition (spec §4.2).
type TransitionSeverityParams struct {
	AlertID         uuid.UUID
	TenantID        uuid.UUID
	Severity        string
	Status          string
	EscalationLevel int32
	EscalatedAt     time.Time
}

func (q *Queries) TransitionSeverity(ctx context.Context, p TransitionSeverityParams) (Alert, error) {
	const query = `
		UPDATE alerts
		SET severity = $3, status = $4, escalation_level = $5, last_escalated_at = $6
		WHERE id = $1 AND tenant_id = $2
		RETURNING ` + alertColumns
	row := q.db.QueryRow(ctx, query, p.AlertID, p.TenantID, p.Severity, p.Status, p.EscalationLevel, p.EscalatedAt)
	return scanAlert(row)
}

// BumpEscalationLevel is used by the Escalation Engine (spec §4.6 step 4).
// escalationLevel is monotonically non-decreasing by construction: the
// caller always passes current+1.
type BumpEscalationLevelParams struct {
	AlertID         uuid.UUID
	TenantID        uuid.UUID
	EscalationLevel int32
	EscalatedAt     time.Time
}

func (q *Queries) BumpEscalationLevel(ctx context.Context, p BumpEscalationLevelParams) (Alert, error) {
	const query = `
		UPDATE alerts
		SET escalation_level = $3, last_escalated_at = $4, status = '` + AlertStatusEscalated + `'
		WHERE id = $1 AND tenant_id = $2
		RETURNING ` + alertColumns
	row := q.db.QueryRow(ctx, query, p.AlertID, p.TenantID, p.EscalationLevel, p.EscalatedAt)
	return scanAlert(row)
}

// AcknowledgeAlert is a no-op if the alert is already acknowledged or
// resolved (spec §4.3): no row matches, nothing is updated, and
// pgx.ErrNoRows is returned. Detail, if non-nil, is merged into the existing
// metadata object rather than replacing it.
type AcknowledgeAlertParams struct {
	AlertID  uuid.UUID
	TenantID uuid.UUID
	Actor    string
	Detail   json.RawMessage
}

func (q *Queries) AcknowledgeAlert(ctx context.Context, p AcknowledgeAlertParams) (Alert, error) {
	const query = `
		UPDATE alerts
		SET status = '` + AlertStatusAcknowledged + `', acknowledged_at = now(), acknowledged_by = $3,
			metadata = metadata || COALESCE($4, '{}'::jsonb)
		WHERE id = $1 AND tenant_id = $2 AND status != '` + AlertStatusAcknowledged + `' AND status != '` + AlertStatusResolved + `'
		RETURNING ` + alertColumns
	row := q.db.QueryRow(ctx, query, p.AlertID, p.TenantID, p.Actor, p.Detail)
	return scanAlert(row)
}

type ResolveAlertParams struct {
	AlertID  uuid.UUID
	TenantID uuid.UUID
	Actor    string
	Detail   json.RawMessage
}

// ResolveAlert is permitted from any non-resolved state (spec §4.3).
func (q *Queries) ResolveAlert(ctx context.Context, p ResolveAlertParams) (Alert, error) {
	const query = `
		UPDATE alerts
		SET status = '` + AlertStatusResolved + `', resolved_at = now(), resolved_by = $3,
			metadata = metadata || COALESCE($4, '{}'::jsonb)
		WHERE id = $1 AND tenant_id = $2 AND status != '` + AlertStatusResolved + `'
		RETURNING ` + alertColumns
	row := q.db.QueryRow(ctx, query, p.AlertID, p.TenantID, p.Actor, p.Detail)
	return scanAlert(row)
}

func (q *Queries) GetAlertScoped(ctx context.Context, tenantID, alertID uuid.UUID) (Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1 AND tenant_id = $2`
	row := q.db.QueryRow(ctx, query, alertID, tenantID)
	return scanAlert(row)
}

// AlertListFilter captures the filter set for ListAlertsByTenant (spec §6).
type AlertListFilter struct {
	TenantID  uuid.UUID
	UnitID    *uuid.UUID
	SiteID    *uuid.UUID
	Status    *string
	Severity  *string
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

func (q *Queries) ListAlertsByTenant(ctx context.Context, f AlertListFilter) ([]Alert, error) {
	query := `
		SELECT ` + alertColumnsPrefixed() + `
		FROM alerts a
		JOIN units u ON u.id = a.unit_id AND u.tenant_id = a.tenant_id
		WHERE a.tenant_id = $1
		  AND ($2::uuid IS NULL OR a.unit_id = $2)
		  AND ($3::uuid IS NULL OR u.site_id = $3)
		  AND ($4::text IS NULL OR a.status = $4)
		  AND ($5::text IS NULL OR a.severity = $5)
		  AND ($6::timestamptz IS NULL OR a.triggered_at >= $6)
		  AND ($7::timestamptz IS NULL OR a.triggered_at <= $7)
		ORDER BY a.triggered_at DESC
		LIMIT $8 OFFSET $9`
	rows, err := q.db.Query(ctx, query, f.TenantID, f.UnitID, f.SiteID, f.Status, f.Severity, f.From, f.To, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func alertColumnsPrefixed() string {
	return "a.id, a.tenant_id, a.unit_id, a.alert_type, a.severity, a.status, a.triggering_temp, a.triggering_bound, " +
		"a.triggered_at, a.acknowledged_at, a.acknowledged_by, a.resolved_at, a.resolved_by, a.escalation_level, " +
		"a.last_escalated_at, a.metadata, a.created_at"
}

// ListPendingEscalationAlerts returns every active or acknowledged alert for
// the tenant, oldest first (spec §4.6 step 1). The policy, max-level and
// time-since-last-escalation filters are applied by the caller, since they
// depend on the per-severity policy.
func (q *Queries) ListPendingEscalationAlerts(ctx context.Context, tenantID uuid.UUID) ([]Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE tenant_id = $1
		  AND status IN ('` + AlertStatusActive + `', '` + AlertStatusAcknowledged + `')
		ORDER BY triggered_at`
	rows, err := q.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
