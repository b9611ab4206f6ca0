package alert

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestParseListFilterDefaults(t *testing.T) {
	tenantID := uuid.New()
	r := httptest.NewRequest("GET", "/", nil)

	f, err := parseListFilter(r, tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.TenantID != tenantID {
		t.Fatalf("tenantID = %v, want %v", f.TenantID, tenantID)
	}
	if f.Limit != 50 || f.Offset != 0 {
		t.Fatalf("limit/offset = %d/%d, want 50/0", f.Limit, f.Offset)
	}
	if f.UnitID != nil || f.SiteID != nil || f.Status != nil || f.Severity != nil {
		t.Fatalf("expected all optional filters to be nil by default")
	}
}

func TestParseListFilterAppliesQueryParams(t *testing.T) {
	tenantID := uuid.New()
	unitID := uuid.New()
	r := httptest.NewRequest("GET", "/?unitId="+unitID.String()+"&status=active&severity=critical&limit=10&offset=20", nil)

	f, err := parseListFilter(r, tenantID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.UnitID == nil || *f.UnitID != unitID {
		t.Fatalf("unitID not parsed correctly")
	}
	if f.Status == nil || *f.Status != "active" {
		t.Fatalf("status not parsed correctly")
	}
	if f.Severity == nil || *f.Severity != "critical" {
		t.Fatalf("severity not parsed correctly")
	}
	if f.Limit != 10 || f.Offset != 20 {
		t.Fatalf("limit/offset = %d/%d, want 10/20", f.Limit, f.Offset)
	}
}

func TestParseListFilterRejectsInvalidUnitID(t *testing.T) {
	r := httptest.NewRequest("GET", "/?unitId=not-a-uuid", nil)
	if _, err := parseListFilter(r, uuid.New()); err == nil {
		t.Fatal("expected an error for an invalid unitId")
	}
}

func TestParseListFilterClampsOutOfRangeLimit(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=99999", nil)
	f, err := parseListFilter(r, uuid.New())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Limit != 50 {
		t.Fatalf("out-of-range limit should fall back to default 50, got %d", f.Limit)
	}
}

func TestEnsureJSONFallsBackToEmptyObject(t *testing.T) {
	if got := string(ensureJSON(nil)); got != "{}" {
		t.Fatalf("ensureJSON(nil) = %q, want {}", got)
	}
	if got := string(ensureJSON([]byte("null"))); got != "{}" {
		t.Fatalf("ensureJSON(null) = %q, want {}", got)
	}
	if got := string(ensureJSON([]byte(`{"a":1}`))); got != `{"a":1}` {
		t.Fatalf("ensureJSON passthrough = %q", got)
	}
}
