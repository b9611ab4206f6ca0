// Package unitcache maintains an in-memory, size-capped view of recent unit
// state for the dashboard read path, backed by a size cap and TTL eviction,
// plus a background sweep that demotes units which have gone quiet to
// offline (spec §4.8).
package unitcache

import (
	"container/list"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/pkg/stream"
)

// Dashboard states (spec §4.8): the coarse, display-ready projection of a
// unit's raw status plus staleness.
const (
	StateNormal   = "normal"
	StateWarning  = "warning"
	StateCritical = "critical"
	StateOffline  = "offline"
)

// DeriveState maps a unit's raw status and staleness onto one of the four
// dashboard states (spec §4.8: "offline iff now-lastReadingAt > timeout...
// otherwise map status->state").
func DeriveState(status string, stale bool) string {
	if stale {
		return StateOffline
	}
	switch status {
	case db.UnitStatusOK, db.UnitStatusRestoring:
		return StateNormal
	case db.UnitStatusExcursion, db.UnitStatusManualRequired:
		return StateWarning
	case db.UnitStatusAlarmActive:
		return StateCritical
	case db.UnitStatusMonitoringInterrupted, db.UnitStatusOffline:
		return StateOffline
	default:
		return StateNormal
	}
}

// DashboardState is the derived, display-ready projection of a unit.
type DashboardState struct {
	UnitID          uuid.UUID
	TenantID        uuid.UUID
	SiteID          uuid.UUID
	Name            string
	Status          string
	State           string // one of the State* constants, derived via DeriveState
	LastTemperature *int32
	LastReadingAt   *time.Time
	Stale           bool // true once LastReadingAt exceeds the offline timeout but the sweep hasn't run yet
}

type entry struct {
	state     DashboardState
	expiresAt time.Time
	elem      *list.Element
}

// Cache is an LRU-with-TTL cache of unit dashboard state, sized to bound
// memory for tenants with very large fleets (spec §4.8 size cap).
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	entries map[uuid.UUID]*entry
	order   *list.List // front = most recently used

	// Hub, when set, receives unit:state:changed events on every dashboard
	// state transition Put observes. Nil in deployments where this cache's
	// process has no live subscriber hub (spec §4.8's state-change event is
	// then simply not emitted, same as the stream package's own best-effort
	// fan-out contract).
	Hub *stream.Hub
}

func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		ttl:     ttl,
		maxSize: maxSize,
		entries: make(map[uuid.UUID]*entry),
		order:   list.New(),
	}
}

// Put inserts or refreshes a unit's cached state, emitting unit:state:changed
// (spec §4.8) when the dashboard state differs from what was cached before.
// reason is carried in the event payload (e.g. "reading", "offline_sweep").
func (c *Cache) Put(state DashboardState, reason string) {
	c.mu.Lock()
	var prevState string
	hadPrev := false

	if e, ok := c.entries[state.UnitID]; ok {
		prevState, hadPrev = e.state.State, true
		e.state = state
		e.expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(e.elem)
	} else {
		e := &entry{state: state, expiresAt: time.Now().Add(c.ttl)}
		e.elem = c.order.PushFront(state.UnitID)
		c.entries[state.UnitID] = e

		if c.order.Len() > c.maxSize {
			back := c.order.Back()
			if back != nil {
				id := back.Value.(uuid.UUID)
				delete(c.entries, id)
				c.order.Remove(back)
			}
		}
	}
	c.mu.Unlock()

	if hadPrev && prevState != state.State && c.Hub != nil {
		c.Hub.PublishUnitStateChanged(state.TenantID, state.SiteID, state.UnitID, prevState, state.State, reason)
	}
}

// Get returns the cached state for unitID, false if absent or expired.
func (c *Cache) Get(unitID uuid.UUID) (DashboardState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[unitID]
	if !ok {
		return DashboardState{}, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, unitID)
		c.order.Remove(e.elem)
		return DashboardState{}, false
	}
	c.order.MoveToFront(e.elem)
	return e.state, true
}

// Len reports the number of cached entries, for tests and metrics.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// FromUnit builds a DashboardState from a persisted unit row plus the
// offline timeout used to mark it stale.
func FromUnit(u db.Unit, offlineTimeout time.Duration, now time.Time) DashboardState {
	stale := u.LastReadingAt != nil && now.Sub(*u.LastReadingAt) > offlineTimeout
	return DashboardState{
		UnitID: u.ID, TenantID: u.TenantID, SiteID: u.SiteID, Name: u.Name, Status: u.Status,
		State:           DeriveState(u.Status, stale),
		LastTemperature: u.LastTemperature, LastReadingAt: u.LastReadingAt, Stale: stale,
	}
}

// SweepOfflineUnits scans every active unit across all tenants and demotes
// to offline any unit whose last reading is older than offlineTimeout and
// whose status is not already a manual/administrative state (spec §4.8:
// the sweep must never overwrite manualRequired or monitoringInterrupted,
// the unit's operator has taken it out of automatic control).
func SweepOfflineUnits(ctx context.Context, pool *pgxpool.Pool, cache *Cache, offlineTimeout time.Duration, logger *slog.Logger) error {
	q := db.New(pool)
	tenants, err := q.ListTenants(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, t := range tenants {
		units, err := q.ListActiveUnitsByTenant(ctx, t.ID)
		if err != nil {
			logger.Error("listing units for offline sweep", "tenant_id", t.ID, "error", err)
			continue
		}
		for _, u := range units {
			if u.Status == db.UnitStatusManualRequired || u.Status == db.UnitStatusMonitoringInterrupted {
				continue
			}
			if u.LastReadingAt == nil || now.Sub(*u.LastReadingAt) <= offlineTimeout {
				if cache != nil {
					cache.Put(FromUnit(u, offlineTimeout, now), "reading")
				}
				continue
			}
			if u.Status != db.UnitStatusOffline {
				if err := q.UpdateUnitStatus(ctx, db.UpdateUnitStatusParams{
					UnitID: u.ID, TenantID: t.ID, Status: db.UnitStatusOffline, StatusChangedAt: now,
				}); err != nil {
					logger.Error("demoting unit to offline", "unit_id", u.ID, "error", err)
					continue
				}
				u.Status = db.UnitStatusOffline
			}
			if cache != nil {
				cache.Put(FromUnit(u, offlineTimeout, now), "offline_sweep")
			}
		}
	}
	return nil
}

// RunSweepLoop runs SweepOfflineUnits periodically until ctx is cancelled,
// following the same start-once-then-tick shape as the rest of the worker
// mode's background loops.
func RunSweepLoop(ctx context.Context, pool *pgxpool.Pool, cache *Cache, offlineTimeout, interval time.Duration, logger *slog.Logger) {
	logger.Info("unit offline sweep loop started", "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := SweepOfflineUnits(ctx, pool, cache, offlineTimeout, logger); err != nil {
		logger.Error("initial offline sweep", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("unit offline sweep loop stopped")
			return
		case <-ticker.C:
			if err := SweepOfflineUnits(ctx, pool, cache, offlineTimeout, logger); err != nil {
				logger.Error("offline sweep", "error", err)
			}
		}
	}
}
