package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// --- Escalation policy ---

func (q *Queries) GetEscalationPolicyBySeverity(ctx context.Context, tenantID uuid.UUID, severity string) (EscalationPolicy, error) {
	const query = `
		SELECT id, tenant_id, severity, max_level, escalate_after_minutes, send_sms, priority_thresholds,
			per_alert_minutes, per_user_minutes, org_window_minutes, max_sms_per_org_window, created_at
		FROM escalation_policies
		WHERE tenant_id = $1 AND severity = $2`
	var p EscalationPolicy
	err := q.db.QueryRow(ctx, query, tenantID, severity).Scan(
		&p.ID, &p.TenantID, &p.Severity, &p.MaxLevel, &p.EscalateAfterMinutes, &p.SendSMS, &p.PriorityThresholds,
		&p.PerAlertMinutes, &p.PerUserMinutes, &p.OrgWindowMinutes, &p.MaxSMSPerOrgWindow, &p.CreatedAt)
	return p, err
}

type UpsertEscalationPolicyParams struct {
	TenantID             uuid.UUID
	Severity             string
	MaxLevel             int32
	EscalateAfterMinutes int32
	SendSMS              bool
	PriorityThresholds   json.RawMessage
	PerAlertMinutes      int32
	PerUserMinutes       int32
	OrgWindowMinutes     int32
	MaxSMSPerOrgWindow   int32
}

func (q *Queries) UpsertEscalationPolicy(ctx context.Context, p UpsertEscalationPolicyParams) (EscalationPolicy, error) {
	const query = `
		INSERT INTO escalation_policies (id, tenant_id, severity, max_level, escalate_after_minutes, send_sms,
			priority_thresholds, per_alert_minutes, per_user_minutes, org_window_minutes, max_sms_per_org_window, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (tenant_id, severity) DO UPDATE SET
			max_level = EXCLUDED.max_level,
			escalate_after_minutes = EXCLUDED.escalate_after_minutes,
			send_sms = EXCLUDED.send_sms,
			priority_thresholds = EXCLUDED.priority_thresholds,
			per_alert_minutes = EXCLUDED.per_alert_minutes,
			per_user_minutes = EXCLUDED.per_user_minutes,
			org_window_minutes = EXCLUDED.org_window_minutes,
			max_sms_per_org_window = EXCLUDED.max_sms_per_org_window
		RETURNING id, tenant_id, severity, max_level, escalate_after_minutes, send_sms, priority_thresholds,
			per_alert_minutes, per_user_minutes, org_window_minutes, max_sms_per_org_window, created_at`
	var out EscalationPolicy
	err := q.db.QueryRow(ctx, query, p.TenantID, p.Severity, p.MaxLevel, p.EscalateAfterMinutes, p.SendSMS,
		p.PriorityThresholds, p.PerAlertMinutes, p.PerUserMinutes, p.OrgWindowMinutes, p.MaxSMSPerOrgWindow).
		Scan(&out.ID, &out.TenantID, &out.Severity, &out.MaxLevel, &out.EscalateAfterMinutes, &out.SendSMS,
			&out.PriorityThresholds, &out.PerAlertMinutes, &out.PerUserMinutes, &out.OrgWindowMinutes,
			&out.MaxSMSPerOrgWindow, &out.CreatedAt)
	return out, err
}

// --- Escalation contacts ---

func (q *Queries) ListActiveContactsByPriority(ctx context.Context, tenantID uuid.UUID, maxPriority int32) ([]EscalationContact, error) {
	const query = `
		SELECT id, tenant_id, name, phone, priority, active, user_id, created_at
		FROM escalation_contacts
		WHERE tenant_id = $1 AND active AND priority <= $2
		ORDER BY priority ASC`
	rows, err := q.db.Query(ctx, query, tenantID, maxPriority)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EscalationContact
	for rows.Next() {
		var c EscalationContact
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Priority, &c.Active, &c.UserID, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type CreateEscalationContactParams struct {
	TenantID uuid.UUID
	Name     string
	Phone    string
	Priority int32
	UserID   *uuid.UUID
}

func (q *Queries) CreateEscalationContact(ctx context.Context, p CreateEscalationContactParams) (EscalationContact, error) {
	const query = `
		INSERT INTO escalation_contacts (id, tenant_id, name, phone, priority, active, user_id, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, true, $5, now())
		RETURNING id, tenant_id, name, phone, priority, active, user_id, created_at`
	var c EscalationContact
	err := q.db.QueryRow(ctx, query, p.TenantID, p.Name, p.Phone, p.Priority, p.UserID).
		Scan(&c.ID, &c.TenantID, &c.Name, &c.Phone, &c.Priority, &c.Active, &c.UserID, &c.CreatedAt)
	return c, err
}

// --- Notification deliveries ---

type CreateNotificationDeliveryParams struct {
	TenantID        uuid.UUID
	AlertID         uuid.UUID
	ContactID       *uuid.UUID
	Phone           string
	UserID          *uuid.UUID
	EscalationLevel int32
}

func (q *Queries) CreateNotificationDelivery(ctx context.Context, p CreateNotificationDeliveryParams) (NotificationDelivery, error) {
	query := `
		INSERT INTO notification_deliveries (id, tenant_id, alert_id, contact_id, phone, user_id, channel,
			status, escalation_level, scheduled_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, '` + ChannelSMS + `', '` + DeliveryPending + `', $6, now())
		RETURNING id, tenant_id, alert_id, contact_id, phone, user_id, channel, status, escalation_level,
			provider_message_id, scheduled_at, sent_at, delivered_at, failed_at, error_text`
	var d NotificationDelivery
	err := q.db.QueryRow(ctx, query, p.TenantID, p.AlertID, p.ContactID, p.Phone, p.UserID, p.EscalationLevel).
		Scan(&d.ID, &d.TenantID, &d.AlertID, &d.ContactID, &d.Phone, &d.UserID, &d.Channel, &d.Status,
			&d.EscalationLevel, &d.ProviderMessageID, &d.ScheduledAt, &d.SentAt, &d.DeliveredAt, &d.FailedAt, &d.ErrorText)
	return d, err
}

func (q *Queries) GetNotificationDeliveryByID(ctx context.Context, id uuid.UUID) (NotificationDelivery, error) {
	const query = `
		SELECT id, tenant_id, alert_id, contact_id, phone, user_id, channel, status, escalation_level,
			provider_message_id, scheduled_at, sent_at, delivered_at, failed_at, error_text
		FROM notification_deliveries
		WHERE id = $1`
	var d NotificationDelivery
	err := q.db.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.TenantID, &d.AlertID, &d.ContactID, &d.Phone, &d.UserID, &d.Channel, &d.Status,
		&d.EscalationLevel, &d.ProviderMessageID, &d.ScheduledAt, &d.SentAt, &d.DeliveredAt, &d.FailedAt, &d.ErrorText)
	return d, err
}

type MarkDeliverySentParams struct {
	DeliveryID        uuid.UUID
	ProviderMessageID string
}

func (q *Queries) MarkDeliverySent(ctx context.Context, p MarkDeliverySentParams) error {
	const query = `
		UPDATE notification_deliveries
		SET status = '` + DeliverySent + `', provider_message_id = $2, sent_at = now()
		WHERE id = $1`
	_, err := q.db.Exec(ctx, query, p.DeliveryID, p.ProviderMessageID)
	return err
}

type MarkDeliveryFailedParams struct {
	DeliveryID uuid.UUID
	ErrorText  string
}

func (q *Queries) MarkDeliveryFailed(ctx context.Context, p MarkDeliveryFailedParams) error {
	const query = `
		UPDATE notification_deliveries
		SET status = '` + DeliveryFailed + `', error_text = $2, failed_at = now()
		WHERE id = $1`
	_, err := q.db.Exec(ctx, query, p.DeliveryID, p.ErrorText)
	return err
}

// MarkDeliveryDelivered is idempotent: a webhook delivered twice leaves the
// row in `delivered` with the original deliveredAt (spec §8 round-trip law).
type MarkDeliveryDeliveredParams struct {
	ProviderMessageID string
	DeliveredAt       time.Time
}

func (q *Queries) MarkDeliveryDelivered(ctx context.Context, p MarkDeliveryDeliveredParams) error {
	const query = `
		UPDATE notification_deliveries
		SET status = '` + DeliveryDelivered + `', delivered_at = COALESCE(delivered_at, $2)
		WHERE provider_message_id = $1`
	_, err := q.db.Exec(ctx, query, p.ProviderMessageID, p.DeliveredAt)
	return err
}

// CountRecentSMSForUser implements the per-user cooldown (spec §4.6, §9 open
// question — resolved here to "suppress if any recent attempt", see
// DESIGN.md): counts deliveries with status in {pending,sent,delivered}
// for the given user within the window.
func (q *Queries) CountRecentSMSForUser(ctx context.Context, tenantID, userID uuid.UUID, since time.Time) (int, error) {
	const query = `
		SELECT count(*) FROM notification_deliveries
		WHERE tenant_id = $1 AND user_id = $2
		  AND status IN ('` + DeliveryPending + `', '` + DeliverySent + `', '` + DeliveryDelivered + `')
		  AND scheduled_at >= $3`
	var n int
	err := q.db.QueryRow(ctx, query, tenantID, userID, since).Scan(&n)
	return n, err
}

// CountRecentSMSForTenant implements the per-tenant rate limit (spec §4.6
// step 2), counted by the delivery row's own tenant_id column.
func (q *Queries) CountRecentSMSForTenant(ctx context.Context, tenantID uuid.UUID, since time.Time) (int, error) {
	const query = `
		SELECT count(*) FROM notification_deliveries
		WHERE tenant_id = $1
		  AND status IN ('` + DeliveryPending + `', '` + DeliverySent + `', '` + DeliveryDelivered + `')
		  AND scheduled_at >= $2`
	var n int
	err := q.db.QueryRow(ctx, query, tenantID, since).Scan(&n)
	return n, err
}
