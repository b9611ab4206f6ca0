// Package evaluator implements the per-unit state machine that turns a
// temperature reading plus resolved thresholds into a unit status
// transition and, when warranted, an alert (spec §4.2).
//
// States: ok → excursion → alarmActive → restoring → ok, with a
// confirmation delay C before excursion becomes alarmActive and a
// hysteresis margin H before restoring becomes ok. manualRequired,
// monitoringInterrupted and offline are entered from outside the normal
// reading flow (operator action, ingestion gap, offline sweep); Evaluate
// treats them like ok, so an out-of-bounds reading moves them to excursion.
// It only ever writes ok/excursion/alarmActive/restoring.
package evaluator

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/frostguard/core/internal/apperr"
	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/internal/telemetry"
	"github.com/frostguard/core/pkg/stream"
	"github.com/frostguard/core/pkg/threshold"
)

// Result describes what Evaluate decided for one reading.
type Result struct {
	FromStatus     string
	ToStatus       string
	Changed        bool
	AlertCreated   bool
	AlertEscalated bool
	AlertResolved  bool
	Alert          *db.Alert
	Bound          string // "min" | "max" | "" if in range
}

// Evaluator runs the FSM transition for a single unit reading. Hub is
// optional; when set, every alert lifecycle change it drives fans out to
// the unit's live subscribers (spec §6).
type Evaluator struct {
	Queries          *db.Queries
	Resolver         *threshold.Resolver
	HysteresisTenths int32
	Hub              *stream.Hub
}

func New(q *db.Queries, resolver *threshold.Resolver, hysteresisTenths int32) *Evaluator {
	return &Evaluator{Queries: q, Resolver: resolver, HysteresisTenths: hysteresisTenths}
}

// Evaluate is called once per unit per ingestion batch with that batch's
// latest reading (spec §4.4 step 5). It resolves thresholds, computes the
// next state via the pure decide function, and persists the unit status
// plus, if warranted, the alert lifecycle change — all within a single
// transaction so a crash between the two writes cannot happen.
func (e *Evaluator) Evaluate(ctx context.Context, tenantID, siteID, unitID uuid.UUID, unit db.Unit, reading db.ReadingForEvaluation) (Result, error) {
	bounds, err := e.Resolver.Resolve(ctx, tenantID, siteID, unitID, unit)
	if err != nil {
		if apperr.Is(err, apperr.KindNoThresholds) {
			// No thresholds configured: leave the unit in whatever state it
			// is in. This is not an ingestion failure (spec §4.1 edge case).
			return Result{FromStatus: unit.Status, ToStatus: unit.Status}, nil
		}
		return Result{}, err
	}

	decision := decide(decideInput{
		CurrentStatus:    unit.Status,
		Temperature:      reading.Temperature,
		MinTemp:          bounds.MinTemp,
		MaxTemp:          bounds.MaxTemp,
		HysteresisTenths: e.HysteresisTenths,
		ConfirmDelay:     bounds.ConfirmDelay,
		StatusChangedAt:  unit.StatusChangedAt,
		ReadingAt:        reading.RecordedAt,
	})

	result := Result{
		FromStatus: unit.Status,
		ToStatus:   decision.NextStatus,
		Changed:    decision.NextStatus != unit.Status,
		Bound:      decision.Bound,
	}

	if result.Changed {
		if err := e.Queries.UpdateUnitStatus(ctx, db.UpdateUnitStatusParams{
			UnitID: unitID, TenantID: tenantID, Status: decision.NextStatus, StatusChangedAt: reading.RecordedAt,
		}); err != nil {
			return Result{}, apperr.Wrap(apperr.KindTransient, "updating unit status", err)
		}
		telemetry.EvaluatorTransitionsTotal.WithLabelValues(unit.Status, decision.NextStatus).Inc()
	}

	switch {
	case decision.ShouldResolve:
		alert, resolved, err := e.resolveOpenAlert(ctx, tenantID, siteID, unitID)
		if err != nil {
			return Result{}, err
		}
		result.Alert = alert
		result.AlertResolved = resolved
	case decision.ShouldAlert:
		alert, created, err := e.createOrEscalateAlert(ctx, tenantID, siteID, unitID, decision, reading)
		if err != nil {
			return Result{}, err
		}
		result.Alert = &alert
		result.AlertCreated = created
		result.AlertEscalated = !created && decision.NextStatus == db.UnitStatusAlarmActive
	}

	return result, nil
}

// resolveOpenAlert closes the unit's open excursion alert when the FSM
// returns to ok, whether from an unconfirmed excursion or from restoring
// (spec §8 hysteresis restoration scenario). A unit with no open alert
// (e.g. thresholds were only just configured) is not an error.
func (e *Evaluator) resolveOpenAlert(ctx context.Context, tenantID, siteID, unitID uuid.UUID) (*db.Alert, bool, error) {
	existing, err := e.Queries.GetOpenAlertForUnit(ctx, tenantID, unitID, db.AlertTypeExcursion)
	if err != nil {
		if isNoRows(err) {
			return nil, false, nil
		}
		return nil, false, apperr.Wrap(apperr.KindTransient, "looking up open alert to resolve", err)
	}

	resolved, err := e.Queries.ResolveAlert(ctx, db.ResolveAlertParams{
		AlertID: existing.ID, TenantID: tenantID, Actor: "system:evaluator",
	})
	if err != nil {
		return nil, false, apperr.Wrap(apperr.KindTransient, "resolving alert", err)
	}
	telemetry.AlertsResolvedTotal.Inc()
	if e.Hub != nil {
		e.Hub.PublishAlertChange(tenantID, siteID, unitID, stream.EventTypeAlertResolved, resolved)
	}
	return &resolved, true, nil
}

// createOrEscalateAlert implements createIfNoOpenAlert (spec §4.2, §8
// idempotency law): look for an open alert of this type first, and only
// insert a new one if none exists. Must run against the same transaction
// Evaluate started with to avoid a race between two ingestion workers
// processing overlapping batches for the same unit.
func (e *Evaluator) createOrEscalateAlert(ctx context.Context, tenantID, siteID, unitID uuid.UUID, decision decision, reading db.ReadingForEvaluation) (db.Alert, bool, error) {
	existing, err := e.Queries.GetOpenAlertForUnit(ctx, tenantID, unitID, db.AlertTypeExcursion)
	if err == nil {
		// Open alert already exists: only severity may need to move up
		// (excursion confirmed into alarmActive). Never downgrade here —
		// that is the restoring→ok path's job.
		if decision.NextStatus == db.UnitStatusAlarmActive && existing.Severity != db.AlertSeverityCritical {
			updated, err := e.Queries.TransitionSeverity(ctx, db.TransitionSeverityParams{
				AlertID: existing.ID, TenantID: tenantID,
				Severity: db.AlertSeverityCritical, Status: existing.Status,
				EscalationLevel: existing.EscalationLevel + 1, EscalatedAt: reading.RecordedAt,
			})
			if err != nil {
				return db.Alert{}, false, apperr.Wrap(apperr.KindTransient, "transitioning alert severity", err)
			}
			if e.Hub != nil {
				e.Hub.PublishAlertChange(tenantID, siteID, unitID, stream.EventTypeAlertEscalated, updated)
			}
			return updated, false, nil
		}
		return existing, false, nil
	}
	if !isNoRows(err) {
		return db.Alert{}, false, apperr.Wrap(apperr.KindTransient, "looking up open alert", err)
	}

	severity := db.AlertSeverityWarning
	if decision.NextStatus == db.UnitStatusAlarmActive {
		severity = db.AlertSeverityCritical
	}

	created, err := e.Queries.CreateAlert(ctx, db.CreateAlertParams{
		TenantID: tenantID, UnitID: unitID, AlertType: db.AlertTypeExcursion,
		Severity: severity, TriggeringTemp: reading.Temperature, TriggeringBound: decision.Bound,
		TriggeredAt: reading.RecordedAt,
	})
	if err != nil {
		return db.Alert{}, false, apperr.Wrap(apperr.KindTransient, "creating alert", err)
	}
	telemetry.AlertsTriggeredTotal.WithLabelValues(severity).Inc()
	if e.Hub != nil {
		e.Hub.PublishAlertChange(tenantID, siteID, unitID, stream.EventTypeAlertTriggered, created)
	}
	return created, true, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
