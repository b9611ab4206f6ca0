package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// --- Tenant ---

type CreateTenantParams struct {
	Name string
	Slug string
}

func (q *Queries) CreateTenant(ctx context.Context, p CreateTenantParams) (Tenant, error) {
	const query = `
		INSERT INTO tenants (id, name, slug, created_at)
		VALUES (gen_random_uuid(), $1, $2, now())
		RETURNING id, name, slug, created_at`
	var t Tenant
	err := q.db.QueryRow(ctx, query, p.Name, p.Slug).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	return t, err
}

func (q *Queries) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	const query = `SELECT id, name, slug, created_at FROM tenants WHERE slug = $1`
	var t Tenant
	err := q.db.QueryRow(ctx, query, slug).Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	return t, err
}

func (q *Queries) ListTenants(ctx context.Context) ([]Tenant, error) {
	const query = `SELECT id, name, slug, created_at FROM tenants ORDER BY created_at`
	rows, err := q.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// --- Site ---

type CreateSiteParams struct {
	TenantID uuid.UUID
	Name     string
}

func (q *Queries) CreateSite(ctx context.Context, p CreateSiteParams) (Site, error) {
	const query = `
		INSERT INTO sites (id, tenant_id, name, active, created_at)
		VALUES (gen_random_uuid(), $1, $2, true, now())
		RETURNING id, tenant_id, name, active, created_at`
	var s Site
	err := q.db.QueryRow(ctx, query, p.TenantID, p.Name).Scan(&s.ID, &s.TenantID, &s.Name, &s.Active, &s.CreatedAt)
	return s, err
}

// --- Area ---

type CreateAreaParams struct {
	TenantID uuid.UUID
	SiteID   uuid.UUID
	Name     string
}

func (q *Queries) CreateArea(ctx context.Context, p CreateAreaParams) (Area, error) {
	const query = `
		INSERT INTO areas (id, tenant_id, site_id, name, active, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, true, now())
		RETURNING id, tenant_id, site_id, name, active, created_at`
	var a Area
	err := q.db.QueryRow(ctx, query, p.TenantID, p.SiteID, p.Name).
		Scan(&a.ID, &a.TenantID, &a.SiteID, &a.Name, &a.Active, &a.CreatedAt)
	return a, err
}

// --- Unit ---

type CreateUnitParams struct {
	TenantID uuid.UUID
	AreaID   uuid.UUID
	SiteID   uuid.UUID
	Name     string
	MinTemp  *int32
	MaxTemp  *int32
	TempUnit string
}

const unitColumns = `id, tenant_id, area_id, site_id, name, min_temp, max_temp, temp_unit,
	status, last_reading_at, last_temperature, status_changed_at, active, created_at`

func scanUnit(row interface {
	Scan(dest ...any) error
}) (Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.TenantID, &u.AreaID, &u.SiteID, &u.Name, &u.MinTemp, &u.MaxTemp, &u.TempUnit,
		&u.Status, &u.LastReadingAt, &u.LastTemperature, &u.StatusChangedAt, &u.Active, &u.CreatedAt)
	return u, err
}

func (q *Queries) CreateUnit(ctx context.Context, p CreateUnitParams) (Unit, error) {
	query := `
		INSERT INTO units (id, tenant_id, area_id, site_id, name, min_temp, max_temp, temp_unit,
			status, status_changed_at, active, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, '` + UnitStatusOK + `', now(), true, now())
		RETURNING ` + unitColumns
	row := q.db.QueryRow(ctx, query, p.TenantID, p.AreaID, p.SiteID, p.Name, p.MinTemp, p.MaxTemp, p.TempUnit)
	return scanUnit(row)
}

// GetUnitScoped returns a unit only if it is active and owned by tenantID.
// Cross-tenant or soft-deleted lookups return pgx.ErrNoRows (silent filter).
func (q *Queries) GetUnitScoped(ctx context.Context, tenantID, unitID uuid.UUID) (Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE id = $1 AND tenant_id = $2 AND active`
	row := q.db.QueryRow(ctx, query, unitID, tenantID)
	return scanUnit(row)
}

// GetUnitWithHierarchy joins unit → area → site in one round trip for an
// active unit owned by tenantID, reporting whether the area and site are
// active; hierarchy.ValidatedUnit rejects the row when either is not.
type UnitWithHierarchy struct {
	Unit
	SiteActive bool
	AreaActive bool
}

func (q *Queries) GetUnitWithHierarchy(ctx context.Context, tenantID, unitID uuid.UUID) (UnitWithHierarchy, error) {
	const query = `
		SELECT u.id, u.tenant_id, u.area_id, u.site_id, u.name, u.min_temp, u.max_temp, u.temp_unit,
			u.status, u.last_reading_at, u.last_temperature, u.status_changed_at, u.active, u.created_at,
			s.active, a.active
		FROM units u
		JOIN areas a ON a.id = u.area_id AND a.tenant_id = u.tenant_id
		JOIN sites s ON s.id = u.site_id AND s.tenant_id = u.tenant_id
		WHERE u.id = $1 AND u.tenant_id = $2 AND u.active`
	var r UnitWithHierarchy
	err := q.db.QueryRow(ctx, query, unitID, tenantID).Scan(
		&r.ID, &r.TenantID, &r.AreaID, &r.SiteID, &r.Name, &r.MinTemp, &r.MaxTemp, &r.TempUnit,
		&r.Status, &r.LastReadingAt, &r.LastTemperature, &r.StatusChangedAt, &r.Active, &r.CreatedAt,
		&r.SiteActive, &r.AreaActive,
	)
	return r, err
}

// ListUnitIDsByTenant filters the given unit IDs down to those actually owned
// by tenantID, silently dropping the rest (spec §4.4 step 1).
func (q *Queries) ListUnitIDsByTenant(ctx context.Context, tenantID uuid.UUID, candidateIDs []uuid.UUID) ([]uuid.UUID, error) {
	const query = `SELECT id FROM units WHERE tenant_id = $1 AND active AND id = ANY($2)`
	rows, err := q.db.Query(ctx, query, tenantID, candidateIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

type UpdateUnitLastReadingParams struct {
	UnitID      uuid.UUID
	TenantID    uuid.UUID
	ReadingAt   time.Time
	Temperature int32
}

// UpdateUnitLastReading writes last-seen state unconditionally if the new
// reading is not older than what is already stored (late/out-of-order batches
// must not regress the cached latest value).
func (q *Queries) UpdateUnitLastReading(ctx context.Context, p UpdateUnitLastReadingParams) error {
	const query = `
		UPDATE units
		SET last_reading_at = $3, last_temperature = $4
		WHERE id = $1 AND tenant_id = $2
		  AND (last_reading_at IS NULL OR last_reading_at <= $3)`
	_, err := q.db.Exec(ctx, query, p.UnitID, p.TenantID, p.ReadingAt, p.Temperature)
	return err
}

type UpdateUnitStatusParams struct {
	UnitID          uuid.UUID
	TenantID        uuid.UUID
	Status          string
	StatusChangedAt time.Time
}

// UpdateUnitStatus is the sole write path for the FSM's `status` column. Its
// callers are the Evaluator, the offline sweep, and manual alert resolution
// (which returns an excursing unit to ok).
func (q *Queries) UpdateUnitStatus(ctx context.Context, p UpdateUnitStatusParams) error {
	const query = `
		UPDATE units SET status = $3, status_changed_at = $4
		WHERE id = $1 AND tenant_id = $2`
	_, err := q.db.Exec(ctx, query, p.UnitID, p.TenantID, p.Status, p.StatusChangedAt)
	return err
}

// ListActiveUnitsByTenant is used by the unit-state cache sweep to find
// candidates for offline demotion.
func (q *Queries) ListActiveUnitsByTenant(ctx context.Context, tenantID uuid.UUID) ([]Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM units WHERE tenant_id = $1 AND active`
	rows, err := q.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
