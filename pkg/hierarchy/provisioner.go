package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/frostguard/core/internal/db"
)

// slugPattern restricts tenant slugs to safe identifiers; frostguard does not
// turn the slug into a schema name, but the same charset keeps URLs and log
// lines predictable.
var slugPattern = regexp.MustCompile(`^[a-z][a-z0-9_-]{1,62}$`)

// Provisioner creates tenants and the sites and areas under them.
// Unlike the schema-per-tenant teacher version, there is no DDL to run here:
// provisioning a frostguard tenant is an ordinary set of row inserts.
type Provisioner struct {
	DB     *pgxpool.Pool
	Logger *slog.Logger
}

func (p *Provisioner) Provision(ctx context.Context, name, slug string) (*Info, error) {
	if !slugPattern.MatchString(slug) {
		return nil, fmt.Errorf("invalid tenant slug %q: must match %s", slug, slugPattern.String())
	}

	q := db.New(p.DB)
	t, err := q.CreateTenant(ctx, db.CreateTenantParams{Name: name, Slug: slug})
	if err != nil {
		return nil, fmt.Errorf("inserting tenant record: %w", err)
	}

	p.Logger.Info("tenant provisioned", "tenant_id", t.ID, "slug", slug)
	return &Info{ID: t.ID, Name: t.Name, Slug: t.Slug}, nil
}

// ProvisionSite creates a site under an existing tenant.
func (p *Provisioner) ProvisionSite(ctx context.Context, tenantID uuid.UUID, name string) (db.Site, error) {
	q := db.New(p.DB)
	return q.CreateSite(ctx, db.CreateSiteParams{TenantID: tenantID, Name: name})
}

// ProvisionArea creates an area under an existing site.
func (p *Provisioner) ProvisionArea(ctx context.Context, tenantID, siteID uuid.UUID, name string) (db.Area, error) {
	q := db.New(p.DB)
	return q.CreateArea(ctx, db.CreateAreaParams{TenantID: tenantID, SiteID: siteID, Name: name})
}
