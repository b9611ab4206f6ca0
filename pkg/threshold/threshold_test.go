package threshold

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/frostguard/core/internal/apperr"
	"github.com/frostguard/core/internal/db"
)

func i32(v int32) *int32 { return &v }

func TestResolveBoundsUnitRuleWinsOverSiteAndTenant(t *testing.T) {
	siteID, unitID := uuid.New(), uuid.New()
	unit := db.Unit{MinTemp: i32(-50), MaxTemp: i32(50)}

	rules := []db.AlertRule{
		{AlertType: db.AlertTypeExcursion, UnitID: &unitID, MinTemp: i32(-20), MaxTemp: i32(20)},
		{AlertType: db.AlertTypeExcursion, SiteID: &siteID, MinTemp: i32(-30), MaxTemp: i32(30)},
		{AlertType: db.AlertTypeExcursion, MinTemp: i32(-40), MaxTemp: i32(40)},
	}

	b, err := resolveBounds(rules, unit, siteID, unitID, DefaultConfirmDelay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *b.MinTemp != -20 || *b.MaxTemp != 20 {
		t.Fatalf("expected unit rule bounds, got min=%d max=%d", *b.MinTemp, *b.MaxTemp)
	}
	if b.Source != "unit" {
		t.Errorf("Source = %q, want unit", b.Source)
	}
}

func TestResolveBoundsFieldsMergeIndependently(t *testing.T) {
	siteID, unitID := uuid.New(), uuid.New()
	unit := db.Unit{}

	// unit rule supplies confirm delay only, site rule supplies min/max.
	confirmMin := int32(10)
	rules := []db.AlertRule{
		{AlertType: db.AlertTypeExcursion, UnitID: &unitID, ConfirmMinutes: &confirmMin},
		{AlertType: db.AlertTypeExcursion, SiteID: &siteID, MinTemp: i32(-30), MaxTemp: i32(30)},
	}

	b, err := resolveBounds(rules, unit, siteID, unitID, DefaultConfirmDelay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *b.MinTemp != -30 || *b.MaxTemp != 30 {
		t.Fatalf("expected site rule bounds, got min=%v max=%v", b.MinTemp, b.MaxTemp)
	}
	if b.ConfirmDelay != 10*time.Minute {
		t.Errorf("ConfirmDelay = %v, want 10m", b.ConfirmDelay)
	}
}

func TestResolveBoundsFallsBackToUnitColumns(t *testing.T) {
	unit := db.Unit{MinTemp: i32(-50), MaxTemp: i32(50)}

	b, err := resolveBounds(nil, unit, uuid.New(), uuid.New(), DefaultConfirmDelay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *b.MinTemp != -50 || *b.MaxTemp != 50 {
		t.Fatalf("expected unit column fallback, got min=%v max=%v", b.MinTemp, b.MaxTemp)
	}
	if b.ConfirmDelay != DefaultConfirmDelay {
		t.Errorf("ConfirmDelay = %v, want default %v", b.ConfirmDelay, DefaultConfirmDelay)
	}
}

func TestResolveBoundsNoThresholdsAnywhere(t *testing.T) {
	_, err := resolveBounds(nil, db.Unit{}, uuid.New(), uuid.New(), DefaultConfirmDelay)
	if !apperr.Is(err, apperr.KindNoThresholds) {
		t.Fatalf("expected KindNoThresholds, got %v", err)
	}
}

func TestResolveBoundsIgnoresOtherAlertTypes(t *testing.T) {
	unitID := uuid.New()
	rules := []db.AlertRule{
		{AlertType: "humidity_excursion", UnitID: &unitID, MinTemp: i32(-1), MaxTemp: i32(1)},
	}
	_, err := resolveBounds(rules, db.Unit{}, uuid.New(), unitID, DefaultConfirmDelay)
	if !apperr.Is(err, apperr.KindNoThresholds) {
		t.Fatalf("expected KindNoThresholds when only a non-excursion rule matches, got %v", err)
	}
}
