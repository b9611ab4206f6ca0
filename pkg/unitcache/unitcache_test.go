package unitcache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/pkg/stream"
)

func testUnit() db.Unit {
	return db.Unit{
		ID:       uuid.New(),
		TenantID: uuid.New(),
		Name:     "Walk-in 1",
		Status:   db.UnitStatusOK,
	}
}

func TestCachePutGetRoundTrip(t *testing.T) {
	c := New(time.Minute, 10)
	unitID := uuid.New()
	c.Put(DashboardState{UnitID: unitID, Name: "Walk-in 1", Status: "ok"}, "reading")

	got, ok := c.Get(unitID)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got.Name != "Walk-in 1" {
		t.Fatalf("Name = %q, want %q", got.Name, "Walk-in 1")
	}
}

func TestCacheGetMissingReturnsFalse(t *testing.T) {
	c := New(time.Minute, 10)
	if _, ok := c.Get(uuid.New()); ok {
		t.Fatal("expected cache miss for unknown unit")
	}
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := New(10*time.Millisecond, 10)
	unitID := uuid.New()
	c.Put(DashboardState{UnitID: unitID}, "reading")

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get(unitID); ok {
		t.Fatal("expected entry to have expired")
	}
}

func TestCacheEvictsLeastRecentlyUsedPastMaxSize(t *testing.T) {
	c := New(time.Minute, 2)
	a, b, d := uuid.New(), uuid.New(), uuid.New()

	c.Put(DashboardState{UnitID: a}, "reading")
	c.Put(DashboardState{UnitID: b}, "reading")
	c.Get(a) // touch a so it is no longer least-recently-used
	c.Put(DashboardState{UnitID: d}, "reading")

	if _, ok := c.Get(b); ok {
		t.Fatal("expected b to be evicted as least recently used")
	}
	if _, ok := c.Get(a); !ok {
		t.Fatal("expected a to survive eviction, it was touched")
	}
	if _, ok := c.Get(d); !ok {
		t.Fatal("expected d to be present, it was just inserted")
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
}

func TestFromUnitMarksStaleWhenReadingIsOld(t *testing.T) {
	now := time.Now()
	old := now.Add(-2 * time.Hour)

	u := testUnit()
	u.LastReadingAt = &old

	state := FromUnit(u, 30*time.Minute, now)
	if !state.Stale {
		t.Fatal("expected unit with a 2h-old reading and a 30m timeout to be stale")
	}
}

func TestFromUnitNotStaleWithinTimeout(t *testing.T) {
	now := time.Now()
	recent := now.Add(-1 * time.Minute)

	u := testUnit()
	u.LastReadingAt = &recent

	state := FromUnit(u, 30*time.Minute, now)
	if state.Stale {
		t.Fatal("expected unit with a recent reading to not be stale")
	}
}

func TestDeriveState(t *testing.T) {
	cases := []struct {
		status string
		stale  bool
		want   string
	}{
		{db.UnitStatusOK, false, StateNormal},
		{db.UnitStatusRestoring, false, StateNormal},
		{db.UnitStatusExcursion, false, StateWarning},
		{db.UnitStatusManualRequired, false, StateWarning},
		{db.UnitStatusAlarmActive, false, StateCritical},
		{db.UnitStatusMonitoringInterrupted, false, StateOffline},
		{db.UnitStatusOffline, false, StateOffline},
		{db.UnitStatusOK, true, StateOffline}, // staleness wins over raw status
	}
	for _, c := range cases {
		if got := DeriveState(c.status, c.stale); got != c.want {
			t.Errorf("DeriveState(%q, %v) = %q, want %q", c.status, c.stale, got, c.want)
		}
	}
}

func TestPutEmitsUnitStateChangedOnTransition(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := stream.NewHub(logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := New(time.Minute, 10)
	c.Hub = hub

	tenantID, unitID := uuid.New(), uuid.New()
	client := hub.NewClient([]string{"tenant:" + tenantID.String()})
	defer hub.Unregister(client)

	c.Put(DashboardState{UnitID: unitID, TenantID: tenantID, Status: db.UnitStatusOK, State: StateNormal}, "reading")
	c.Put(DashboardState{UnitID: unitID, TenantID: tenantID, Status: db.UnitStatusAlarmActive, State: StateCritical}, "reading")

	select {
	case ev := <-client.Recv():
		if ev.Type != stream.EventTypeUnitStateChanged {
			t.Fatalf("event type = %q, want %q", ev.Type, stream.EventTypeUnitStateChanged)
		}
		change, ok := ev.Data.(stream.UnitStateChange)
		if !ok {
			t.Fatalf("event data is %T, want stream.UnitStateChange", ev.Data)
		}
		if change.PreviousState != StateNormal || change.NewState != StateCritical {
			t.Fatalf("transition = %s->%s, want %s->%s", change.PreviousState, change.NewState, StateNormal, StateCritical)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for unit:state:changed event")
	}
}
