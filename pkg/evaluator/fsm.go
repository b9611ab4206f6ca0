package evaluator

import (
	"time"

	"github.com/frostguard/core/internal/db"
)

type decideInput struct {
	CurrentStatus    string
	Temperature      int32
	MinTemp          *int32
	MaxTemp          *int32
	HysteresisTenths int32
	ConfirmDelay     time.Duration
	StatusChangedAt  time.Time
	ReadingAt        time.Time
}

type decision struct {
	NextStatus    string
	Bound         string
	ShouldAlert   bool
	ShouldResolve bool
}

// decide is the pure core of the unit state machine (spec §4.2). It is
// deliberately free of I/O so every transition can be exercised directly
// in tests without a database or clock.
func decide(in decideInput) decision {
	outOfBounds, bound := checkBounds(in.Temperature, in.MinTemp, in.MaxTemp)
	safelyInBounds := checkBoundsWithHysteresis(in.Temperature, in.MinTemp, in.MaxTemp, in.HysteresisTenths)

	switch in.CurrentStatus {
	case db.UnitStatusExcursion:
		if outOfBounds {
			if in.ReadingAt.Sub(in.StatusChangedAt) >= in.ConfirmDelay {
				return decision{NextStatus: db.UnitStatusAlarmActive, Bound: bound, ShouldAlert: true}
			}
			return decision{NextStatus: db.UnitStatusExcursion, Bound: bound}
		}
		// Returned to range before confirmation: the excursion never
		// matured into a confirmed alarm, so the alert (if any) resolves.
		return decision{NextStatus: db.UnitStatusOK, ShouldResolve: true}

	case db.UnitStatusAlarmActive:
		if outOfBounds || !safelyInBounds {
			return decision{NextStatus: db.UnitStatusAlarmActive, Bound: bound}
		}
		return decision{NextStatus: db.UnitStatusRestoring}

	case db.UnitStatusRestoring:
		if outOfBounds {
			return decision{NextStatus: db.UnitStatusAlarmActive, Bound: bound}
		}
		if safelyInBounds {
			return decision{NextStatus: db.UnitStatusOK, ShouldResolve: true}
		}
		return decision{NextStatus: db.UnitStatusRestoring}

	default: // ok, manualRequired, monitoringInterrupted, offline
		if outOfBounds {
			return decision{NextStatus: db.UnitStatusExcursion, Bound: bound, ShouldAlert: true}
		}
		return decision{NextStatus: in.CurrentStatus}
	}
}

// checkBounds reports whether temp lies outside [min, max], and which bound
// it violated. A nil bound never triggers a violation on that side.
func checkBounds(temp int32, min, max *int32) (outOfBounds bool, bound string) {
	if min != nil && temp < *min {
		return true, db.BoundMin
	}
	if max != nil && temp > *max {
		return true, db.BoundMax
	}
	return false, ""
}

// checkBoundsWithHysteresis reports whether temp lies safely inside
// [min+H, max-H], the tighter margin restoring must clear before the unit
// is allowed back to ok. This prevents a reading that just crosses back
// over the raw bound from immediately re-triggering an excursion.
func checkBoundsWithHysteresis(temp int32, min, max *int32, hysteresisTenths int32) bool {
	if min != nil && temp < *min+hysteresisTenths {
		return false
	}
	if max != nil && temp > *max-hysteresisTenths {
		return false
	}
	return true
}
