// Package threshold resolves the effective min/max temperature bounds and
// confirmation delay for a unit from the three-level rule hierarchy: a
// unit-scoped rule wins over a site-scoped rule, which wins over a
// tenant-wide rule, which falls back to the unit's own min/max columns
// (spec §4.1).
package threshold

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/frostguard/core/internal/apperr"
	"github.com/frostguard/core/internal/db"
)

// DefaultConfirmDelay is used when no rule in the hierarchy specifies one and
// the Resolver was not given an explicit default.
const DefaultConfirmDelay = 5 * time.Minute

// Bounds is the resolved threshold for one unit, ready for the Evaluator.
type Bounds struct {
	MinTemp      *int32
	MaxTemp      *int32
	ConfirmDelay time.Duration
	Source       string // "unit" | "site" | "tenant" | "unit_default"
}

// Resolver loads alert_rules and picks the most specific enabled one.
type Resolver struct {
	Queries        *db.Queries
	DefaultConfirm time.Duration // falls back to DefaultConfirmDelay if zero
}

func New(q *db.Queries) *Resolver {
	return &Resolver{Queries: q, DefaultConfirm: DefaultConfirmDelay}
}

// Resolve implements the rule-selection described in spec §4.1: rules are
// loaded pre-ordered by specificity (unit, then site, then tenant) and the
// first rule that defines each of min/max/confirm wins independently — a
// site rule can supply min/max while the tenant rule supplies confirmDelay,
// if the site rule left confirmDelay nil. This treats "does not override"
// (a nil field) as distinct from "overrides to unset", since alert_rules
// never carries an explicit unset-marker column.
func (r *Resolver) Resolve(ctx context.Context, tenantID, siteID, unitID uuid.UUID, unit db.Unit) (Bounds, error) {
	rules, err := r.Queries.ListEnabledAlertRules(ctx, tenantID, siteID, unitID)
	if err != nil {
		return Bounds{}, apperr.Wrap(apperr.KindTransient, "loading alert rules", err)
	}
	defaultConfirm := r.DefaultConfirm
	if defaultConfirm == 0 {
		defaultConfirm = DefaultConfirmDelay
	}
	return resolveBounds(rules, unit, siteID, unitID, defaultConfirm)
}

// resolveBounds is the pure rule-selection core of Resolve, split out so it
// can be tested against hand-built rule sets without a database.
func resolveBounds(rules []db.AlertRule, unit db.Unit, siteID, unitID uuid.UUID, defaultConfirm time.Duration) (Bounds, error) {
	b := Bounds{ConfirmDelay: 0, Source: "unit_default"}
	haveMin, haveMax, haveConfirm := false, false, false

	specificity := func(rule db.AlertRule) string {
		switch {
		case rule.UnitID != nil && *rule.UnitID == unitID:
			return "unit"
		case rule.SiteID != nil && *rule.SiteID == siteID:
			return "site"
		default:
			return "tenant"
		}
	}

	for _, rule := range rules {
		if rule.AlertType != db.AlertTypeExcursion {
			continue
		}
		if !haveMin && rule.MinTemp != nil {
			b.MinTemp = rule.MinTemp
			haveMin = true
			b.Source = specificity(rule)
		}
		if !haveMax && rule.MaxTemp != nil {
			b.MaxTemp = rule.MaxTemp
			haveMax = true
			if b.Source == "unit_default" {
				b.Source = specificity(rule)
			}
		}
		if !haveConfirm && rule.ConfirmMinutes != nil {
			b.ConfirmDelay = time.Duration(*rule.ConfirmMinutes) * time.Minute
			haveConfirm = true
		}
	}

	if !haveMin {
		b.MinTemp = unit.MinTemp
	}
	if !haveMax {
		b.MaxTemp = unit.MaxTemp
	}
	if !haveConfirm {
		b.ConfirmDelay = defaultConfirm
	}

	if b.MinTemp == nil || b.MaxTemp == nil {
		return Bounds{}, apperr.NoThresholds("unit has no configured min and max thresholds at any scope")
	}

	return b, nil
}
