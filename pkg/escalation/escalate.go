package escalation

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/internal/telemetry"
	"github.com/frostguard/core/pkg/contact"
	"github.com/frostguard/core/pkg/jobqueue"
)

// Engine owns escalation-level bumps (spec §3 ownership rule). It never
// writes unit status.
type Engine struct {
	Pool     *pgxpool.Pool
	Queries  *db.Queries
	Contacts *contact.Store
	Jobs     *jobqueue.Queue
	Logger   *slog.Logger
	Interval time.Duration
}

func NewEngine(pool *pgxpool.Pool, jobs *jobqueue.Queue, logger *slog.Logger) *Engine {
	q := db.New(pool)
	return &Engine{
		Pool:     pool,
		Queries:  q,
		Contacts: contact.New(q),
		Jobs:     jobs,
		Logger:   logger,
		Interval: 60 * time.Second,
	}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// Escalate runs the ordered checks and effects of spec §4.6 for a single
// alert. A returned error means the lookup itself failed (alert or tenant
// unknown); a Result with Success=false and a SkipReason means the checks
// intentionally declined to escalate.
func (e *Engine) Escalate(ctx context.Context, tenantID, alertID uuid.UUID, opts Options) (Result, error) {
	a, err := e.Queries.GetAlertScoped(ctx, tenantID, alertID)
	if err != nil {
		return Result{}, err
	}
	if !a.IsOpen() {
		return skip("alert is not open"), nil
	}

	policy, err := e.Queries.GetEscalationPolicyBySeverity(ctx, tenantID, a.Severity)
	if err != nil {
		if isNoRows(err) {
			e.recordSkip("no_policy")
			return skip("no escalation policy configured for severity"), nil
		}
		return Result{}, err
	}

	now := time.Now()

	// 1. Per-alert cooldown. Manual escalation is explicitly permitted to
	// override this one (spec §4.6 "Manual escalate").
	if !opts.Manual && a.LastEscalatedAt != nil {
		if now.Sub(*a.LastEscalatedAt) < time.Duration(policy.PerAlertMinutes)*time.Minute {
			e.recordSkip("alert_cooldown")
			return skip("Alert is in cooldown"), nil
		}
	}

	// 2. Tenant SMS rate limit, checked before any level bump (spec §8
	// scenario 6: the 21st escalate must fail before bumping).
	since := now.Add(-time.Duration(policy.OrgWindowMinutes) * time.Minute)
	sentInWindow, err := e.Queries.CountRecentSMSForTenant(ctx, tenantID, since)
	if err != nil {
		return Result{}, err
	}
	if int32(sentInWindow) >= policy.MaxSMSPerOrgWindow {
		e.recordSkip("org_rate_limit")
		return skip("Organization SMS rate limit exceeded"), nil
	}

	// 3. Rule lookup already succeeded above; enforce the level ceiling.
	if a.EscalationLevel >= policy.MaxLevel {
		e.recordSkip("max_level")
		return skip("alert already at max escalation level"), nil
	}

	// 4. Level bump.
	newLevel := a.EscalationLevel + 1
	if opts.Manual {
		if opts.TargetLevel > newLevel {
			newLevel = opts.TargetLevel
		}
		if newLevel > policy.MaxLevel {
			newLevel = policy.MaxLevel
		}
	}
	if _, err := e.Queries.BumpEscalationLevel(ctx, db.BumpEscalationLevelParams{
		AlertID: a.ID, TenantID: tenantID, EscalationLevel: newLevel, EscalatedAt: now,
	}); err != nil {
		return Result{}, err
	}
	telemetry.EscalationsTotal.WithLabelValues(strconv.Itoa(int(newLevel))).Inc()

	result := Result{Success: true, NewLevel: newLevel}
	if !policy.SendSMS {
		return result, nil
	}

	queued, err := e.dispatch(ctx, tenantID, a, policy, newLevel)
	if err != nil {
		// A dispatch-side failure never rolls back the level bump (spec §4.6
		// failure semantics).
		e.Logger.Error("dispatching escalation notifications", "alert_id", a.ID, "error", err)
	}
	result.SMSQueued = queued
	return result, nil
}

// dispatch resolves the recipient tier and enqueues one SMS job per
// eligible contact (spec §4.6 steps 5-6).
func (e *Engine) dispatch(ctx context.Context, tenantID uuid.UUID, a db.Alert, policy db.EscalationPolicy, newLevel int32) (int, error) {
	threshold := priorityThresholdFor(policy, newLevel)
	contacts, err := e.Contacts.TierFor(ctx, tenantID, threshold)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	queued := 0
	for _, c := range contacts {
		if !contact.IsE164(c.Phone) {
			e.Logger.Warn("skipping escalation contact with non-E.164 phone", "contact_id", c.ID)
			continue
		}
		if c.UserID != nil {
			since := now.Add(-time.Duration(policy.PerUserMinutes) * time.Minute)
			recent, err := e.Queries.CountRecentSMSForUser(ctx, tenantID, *c.UserID, since)
			if err != nil {
				e.Logger.Error("checking per-user cooldown", "contact_id", c.ID, "error", err)
				continue
			}
			if recent > 0 {
				continue
			}
		}

		delivery, err := e.Queries.CreateNotificationDelivery(ctx, db.CreateNotificationDeliveryParams{
			TenantID: tenantID, AlertID: a.ID, ContactID: &c.ID, Phone: c.Phone, UserID: c.UserID,
			EscalationLevel: newLevel,
		})
		if err != nil {
			e.Logger.Error("creating notification delivery", "contact_id", c.ID, "error", err)
			continue
		}
		if err := e.Jobs.Enqueue(ctx, jobqueue.SMSJob{DeliveryID: delivery.ID}); err != nil {
			e.Logger.Error("enqueuing sms job", "delivery_id", delivery.ID, "error", err)
			continue
		}
		telemetry.SMSQueuedTotal.Inc()
		queued++
	}
	return queued, nil
}

func (e *Engine) recordSkip(reason string) {
	telemetry.EscalationsSkippedTotal.WithLabelValues(reason).Inc()
}

// ManualEscalate bypasses the time-based candidate filter; all cooldowns
// still apply except the per-alert cooldown (spec §4.6 "Manual escalate").
func (e *Engine) ManualEscalate(ctx context.Context, tenantID, alertID uuid.UUID, targetLevel int32, actor string) (Result, error) {
	return e.Escalate(ctx, tenantID, alertID, Options{Manual: true, TargetLevel: targetLevel, Actor: actor})
}
