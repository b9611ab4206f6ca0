package evaluator

import (
	"testing"
	"time"

	"github.com/frostguard/core/internal/db"
)

func p32(v int32) *int32 { return &v }

func TestDecideColdEntry(t *testing.T) {
	now := time.Now()
	d := decide(decideInput{
		CurrentStatus: db.UnitStatusOK,
		Temperature:   -100,
		MinTemp:       p32(-50), MaxTemp: p32(50),
		ConfirmDelay: 5 * time.Minute, StatusChangedAt: now, ReadingAt: now,
	})
	if d.NextStatus != db.UnitStatusExcursion {
		t.Fatalf("NextStatus = %q, want excursion", d.NextStatus)
	}
	if !d.ShouldAlert {
		t.Error("expected ShouldAlert on entering excursion")
	}
	if d.Bound != db.BoundMin {
		t.Errorf("Bound = %q, want min", d.Bound)
	}
}

func TestDecideExcursionHoldsBeforeConfirmDelay(t *testing.T) {
	start := time.Now()
	d := decide(decideInput{
		CurrentStatus: db.UnitStatusExcursion,
		Temperature:   -100,
		MinTemp:       p32(-50), MaxTemp: p32(50),
		ConfirmDelay: 5 * time.Minute, StatusChangedAt: start, ReadingAt: start.Add(2 * time.Minute),
	})
	if d.NextStatus != db.UnitStatusExcursion {
		t.Fatalf("NextStatus = %q, want excursion to hold", d.NextStatus)
	}
	if d.ShouldAlert || d.ShouldResolve {
		t.Error("holding in excursion should not touch the alert")
	}
}

func TestDecideConfirmationEntersAlarmActive(t *testing.T) {
	start := time.Now()
	d := decide(decideInput{
		CurrentStatus: db.UnitStatusExcursion,
		Temperature:   -100,
		MinTemp:       p32(-50), MaxTemp: p32(50),
		ConfirmDelay: 5 * time.Minute, StatusChangedAt: start, ReadingAt: start.Add(5 * time.Minute),
	})
	if d.NextStatus != db.UnitStatusAlarmActive {
		t.Fatalf("NextStatus = %q, want alarmActive", d.NextStatus)
	}
	if !d.ShouldAlert {
		t.Error("expected ShouldAlert on confirming into alarmActive")
	}
}

func TestDecideExcursionReturnsToOkBeforeConfirmation(t *testing.T) {
	start := time.Now()
	d := decide(decideInput{
		CurrentStatus: db.UnitStatusExcursion,
		Temperature:   0,
		MinTemp:       p32(-50), MaxTemp: p32(50),
		ConfirmDelay: 5 * time.Minute, StatusChangedAt: start, ReadingAt: start.Add(1 * time.Minute),
	})
	if d.NextStatus != db.UnitStatusOK {
		t.Fatalf("NextStatus = %q, want ok", d.NextStatus)
	}
	if !d.ShouldResolve {
		t.Error("expected ShouldResolve when excursion never confirmed")
	}
}

func TestDecideAlarmActiveEntersRestoringWhenBackInRange(t *testing.T) {
	d := decide(decideInput{
		CurrentStatus: db.UnitStatusAlarmActive,
		Temperature:   0,
		MinTemp:       p32(-50), MaxTemp: p32(50),
	})
	if d.NextStatus != db.UnitStatusRestoring {
		t.Fatalf("NextStatus = %q, want restoring", d.NextStatus)
	}
	if d.ShouldAlert || d.ShouldResolve {
		t.Error("entering restoring should not touch the alert yet")
	}
}

func TestDecideRestoringStaysWithinHysteresisMargin(t *testing.T) {
	// Temperature is back inside [min, max] but not inside [min+H, max-H]:
	// restoring must hold, not finalize to ok, to avoid flapping.
	d := decide(decideInput{
		CurrentStatus:    db.UnitStatusRestoring,
		Temperature:      48,
		MinTemp:          p32(-50), MaxTemp: p32(50),
		HysteresisTenths: 5,
	})
	if d.NextStatus != db.UnitStatusRestoring {
		t.Fatalf("NextStatus = %q, want restoring to hold inside the hysteresis margin", d.NextStatus)
	}
}

func TestDecideRestoringFinalizesToOkPastHysteresisMargin(t *testing.T) {
	d := decide(decideInput{
		CurrentStatus:    db.UnitStatusRestoring,
		Temperature:      0,
		MinTemp:          p32(-50), MaxTemp: p32(50),
		HysteresisTenths: 5,
	})
	if d.NextStatus != db.UnitStatusOK {
		t.Fatalf("NextStatus = %q, want ok", d.NextStatus)
	}
	if !d.ShouldResolve {
		t.Error("expected ShouldResolve on hysteresis restoration to ok")
	}
}

func TestDecideRestoringReturnsToAlarmActiveOnRelapse(t *testing.T) {
	d := decide(decideInput{
		CurrentStatus: db.UnitStatusRestoring,
		Temperature:   -100,
		MinTemp:       p32(-50), MaxTemp: p32(50),
	})
	if d.NextStatus != db.UnitStatusAlarmActive {
		t.Fatalf("NextStatus = %q, want alarmActive on relapse", d.NextStatus)
	}
}

func TestDecideOkStaysOkInRange(t *testing.T) {
	d := decide(decideInput{
		CurrentStatus: db.UnitStatusOK,
		Temperature:   0,
		MinTemp:       p32(-50), MaxTemp: p32(50),
	})
	if d.NextStatus != db.UnitStatusOK || d.ShouldAlert {
		t.Fatalf("unexpected decision for in-range reading: %+v", d)
	}
}

func TestDecideNilBoundNeverViolated(t *testing.T) {
	// Only a max bound is configured; arbitrarily low readings never excurse.
	d := decide(decideInput{
		CurrentStatus: db.UnitStatusOK,
		Temperature:   -10000,
		MaxTemp:       p32(50),
	})
	if d.NextStatus != db.UnitStatusOK {
		t.Fatalf("NextStatus = %q, want ok when min bound is unset", d.NextStatus)
	}
}
