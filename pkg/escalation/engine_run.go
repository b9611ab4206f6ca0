package escalation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run starts the escalation sweep loop. It blocks until ctx is cancelled,
// following the same ticker shape as the teacher's original engine loop.
func (e *Engine) Run(ctx context.Context) {
	e.Logger.Info("escalation engine started", "interval", e.Interval)
	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e.Logger.Info("escalation engine stopped")
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick performs a single escalation sweep across every tenant (spec §4.6
// scheduler steps 1-2).
func (e *Engine) tick(ctx context.Context) {
	tenants, err := e.Queries.ListTenants(ctx)
	if err != nil {
		e.Logger.Error("listing tenants for escalation sweep", "error", err)
		return
	}
	for _, t := range tenants {
		e.sweepTenant(ctx, t.ID)
	}
}

// sweepTenant finds candidate alerts and escalates each independently; one
// alert's failure must not abort the sweep of the others (spec §4.6
// "Failure semantics").
func (e *Engine) sweepTenant(ctx context.Context, tenantID uuid.UUID) {
	alerts, err := e.Queries.ListPendingEscalationAlerts(ctx, tenantID)
	if err != nil {
		e.Logger.Error("listing pending escalation alerts", "tenant_id", tenantID, "error", err)
		return
	}

	now := time.Now()
	for _, a := range alerts {
		policy, err := e.Queries.GetEscalationPolicyBySeverity(ctx, tenantID, a.Severity)
		if err != nil {
			if !isNoRows(err) {
				e.Logger.Error("loading escalation policy", "alert_id", a.ID, "error", err)
			}
			continue
		}
		if a.EscalationLevel >= policy.MaxLevel {
			continue
		}

		last := a.TriggeredAt
		if a.LastEscalatedAt != nil {
			last = *a.LastEscalatedAt
		}
		if now.Sub(last) < time.Duration(policy.EscalateAfterMinutes)*time.Minute {
			continue
		}

		result, err := e.Escalate(ctx, tenantID, a.ID, Options{})
		if err != nil {
			e.Logger.Error("escalating alert", "alert_id", a.ID, "error", err)
			continue
		}
		if !result.Success {
			e.Logger.Debug("escalation skipped", "alert_id", a.ID, "reason", result.SkipReason)
		}
	}
}
