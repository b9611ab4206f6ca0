package db

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

type CreateAuditLogEntryParams struct {
	TenantID   uuid.UUID
	UserID     *uuid.UUID
	Action     string
	Resource   string
	ResourceID uuid.UUID
	Detail     json.RawMessage
	IPAddress  *string
	UserAgent  *string
}

func (q *Queries) CreateAuditLogEntry(ctx context.Context, p CreateAuditLogEntryParams) error {
	const query = `
		INSERT INTO audit_log (id, tenant_id, user_id, action, resource, resource_id, detail,
			ip_address, user_agent, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, now())`
	_, err := q.db.Exec(ctx, query, p.TenantID, p.UserID, p.Action, p.Resource, p.ResourceID,
		p.Detail, p.IPAddress, p.UserAgent)
	return err
}

type ListAuditLogParams struct {
	TenantID uuid.UUID
	Limit    int32
	Offset   int32
}

func (q *Queries) ListAuditLog(ctx context.Context, p ListAuditLogParams) ([]AuditLogEntry, error) {
	const query = `
		SELECT id, tenant_id, user_id, action, resource, resource_id, detail, ip_address, user_agent, created_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, query, p.TenantID, p.Limit, p.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditLogEntry
	for rows.Next() {
		var e AuditLogEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Action, &e.Resource, &e.ResourceID,
			&e.Detail, &e.IPAddress, &e.UserAgent, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
