package db

import (
	"context"

	"github.com/google/uuid"
)

// ListEnabledAlertRules loads every enabled rule that could apply to unitID:
// the unit-scoped rule, the site-scoped rule, or the tenant-wide rule
// (spec §4.1). Specificity is resolved by the caller (pkg/threshold).
func (q *Queries) ListEnabledAlertRules(ctx context.Context, tenantID, siteID, unitID uuid.UUID) ([]AlertRule, error) {
	const query = `
		SELECT id, tenant_id, site_id, unit_id, alert_type, enabled, min_temp, max_temp, confirm_minutes, created_at
		FROM alert_rules
		WHERE tenant_id = $1
		  AND enabled
		  AND (
		        unit_id = $3
		     OR (site_id = $2 AND unit_id IS NULL)
		     OR (site_id IS NULL AND unit_id IS NULL)
		      )
		ORDER BY
			CASE
				WHEN unit_id = $3 THEN 0
				WHEN site_id = $2 THEN 1
				ELSE 2
			END,
			id`
	rows, err := q.db.Query(ctx, query, tenantID, siteID, unitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertRule
	for rows.Next() {
		var r AlertRule
		if err := rows.Scan(&r.ID, &r.TenantID, &r.SiteID, &r.UnitID, &r.AlertType, &r.Enabled,
			&r.MinTemp, &r.MaxTemp, &r.ConfirmMinutes, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type CreateAlertRuleParams struct {
	TenantID       uuid.UUID
	SiteID         *uuid.UUID
	UnitID         *uuid.UUID
	AlertType      string
	Enabled        bool
	MinTemp        *int32
	MaxTemp        *int32
	ConfirmMinutes *int32
}

func (q *Queries) CreateAlertRule(ctx context.Context, p CreateAlertRuleParams) (AlertRule, error) {
	const query = `
		INSERT INTO alert_rules (id, tenant_id, site_id, unit_id, alert_type, enabled, min_temp, max_temp, confirm_minutes, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, now())
		RETURNING id, tenant_id, site_id, unit_id, alert_type, enabled, min_temp, max_temp, confirm_minutes, created_at`
	var r AlertRule
	err := q.db.QueryRow(ctx, query, p.TenantID, p.SiteID, p.UnitID, p.AlertType, p.Enabled, p.MinTemp, p.MaxTemp, p.ConfirmMinutes).
		Scan(&r.ID, &r.TenantID, &r.SiteID, &r.UnitID, &r.AlertType, &r.Enabled, &r.MinTemp, &r.MaxTemp, &r.ConfirmMinutes, &r.CreatedAt)
	return r, err
}
