// Package hierarchy resolves and validates the tenant → site → area → unit
// chain. Frostguard isolates tenants by row (a tenant_id column on every
// table) rather than by schema, so resolution here means loading and
// authorizing against that column, not switching search_path.
package hierarchy

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/frostguard/core/internal/db"
)

// Info holds the resolved tenant for the current request.
type Info struct {
	ID   uuid.UUID
	Name string
	Slug string
}

type contextKey string

const infoKey contextKey = "hierarchy_tenant_info"

// NewContext stores tenant info in the context.
func NewContext(ctx context.Context, info *Info) context.Context {
	return context.WithValue(ctx, infoKey, info)
}

// FromContext extracts the tenant info from the context, nil if unset.
func FromContext(ctx context.Context) *Info {
	v, _ := ctx.Value(infoKey).(*Info)
	return v
}

// Lookup resolves tenant records for the middleware and provisioning flows.
type Lookup struct {
	Queries *db.Queries
}

// ResolveSlug loads the tenant row for slug, or an error if it does not exist.
func (l *Lookup) ResolveSlug(ctx context.Context, slug string) (*Info, error) {
	t, err := l.Queries.GetTenantBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("resolving tenant %q: %w", slug, err)
	}
	return &Info{ID: t.ID, Name: t.Name, Slug: t.Slug}, nil
}

// Unit bundles a unit with the active flags of the area and site it was
// validated against, as returned by ValidatedUnit.
type Unit struct {
	db.Unit
	SiteActive bool
	AreaActive bool
}

// ValidatedUnit loads a unit for tenantID and confirms the full chain
// (unit → area → site) is active. Cross-tenant lookups and soft-deleted
// units, areas or sites resolve to pgx.ErrNoRows — the caller cannot
// distinguish "wrong tenant" from "does not exist", which is the point
// (spec §3 silent filter).
func ValidatedUnit(ctx context.Context, q *db.Queries, tenantID, unitID uuid.UUID) (Unit, error) {
	row, err := q.GetUnitWithHierarchy(ctx, tenantID, unitID)
	if err != nil {
		return Unit{}, err
	}
	if !row.SiteActive || !row.AreaActive {
		return Unit{}, pgx.ErrNoRows
	}
	return Unit{Unit: row.Unit, SiteActive: row.SiteActive, AreaActive: row.AreaActive}, nil
}
