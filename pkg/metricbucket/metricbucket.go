// Package metricbucket aggregates readings into hourly (unit, period)
// buckets via a single conflict-aware upsert per reading (spec §4.5).
package metricbucket

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/frostguard/core/internal/apperr"
	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/internal/telemetry"
	"github.com/frostguard/core/pkg/stream"
	"github.com/frostguard/core/pkg/threshold"
)

// GranularityHourly is the only granularity frostguard currently persists;
// day/week rollups are computed on read from the hourly buckets (spec §9
// Open Question — resolved in favor of the simpler single-granularity
// write path, see DESIGN.md).
const GranularityHourly = "hour"

// Aggregator folds one reading at a time into its hourly bucket. Hub is
// optional; when set, every upsert fans the refreshed bucket out to the
// unit's live subscribers as metrics:updated (spec §6).
type Aggregator struct {
	Queries  *db.Queries
	Resolver *threshold.Resolver
	Hub      *stream.Hub
}

func New(q *db.Queries, resolver *threshold.Resolver) *Aggregator {
	return &Aggregator{Queries: q, Resolver: resolver}
}

// Record upserts reading into the bucket covering its recordedAt hour. A
// reading is an anomaly when it falls outside the unit's resolved effective
// thresholds (spec §4.5); if thresholds cannot be resolved at all, the
// anomaly count is zero and aggregation proceeds anyway (spec §4.5 edge
// case), since a unit with no configured thresholds is not itself anomalous.
func (a *Aggregator) Record(ctx context.Context, tenantID, siteID, unitID uuid.UUID, unit db.Unit, reading db.ReadingForEvaluation) error {
	periodStart := reading.RecordedAt.UTC().Truncate(time.Hour)

	isAnomaly := false
	bounds, err := a.Resolver.Resolve(ctx, tenantID, siteID, unitID, unit)
	switch {
	case err == nil:
		isAnomaly = outsideBounds(reading.Temperature, bounds)
	case apperr.Is(err, apperr.KindNoThresholds):
		// fall through with isAnomaly left false
	default:
		return err
	}

	bucket, err := a.Queries.UpsertMetricBucket(ctx, db.UpsertMetricBucketParams{
		TenantID: tenantID, UnitID: unitID, PeriodStart: periodStart, Granularity: GranularityHourly,
		Temperature: reading.Temperature, Humidity: reading.Humidity, IsAnomaly: isAnomaly,
	})
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "upserting metric bucket", err)
	}
	telemetry.MetricBucketUpsertsTotal.Inc()
	if a.Hub != nil {
		a.Hub.PublishMetricsUpdated(tenantID, siteID, unitID, bucket)
	}
	return nil
}

// outsideBounds reports whether temp falls outside the unit's resolved
// effective thresholds (spec §4.5's anomaly definition), split out as a pure
// function so it can be tested against hand-built Bounds without a resolver.
func outsideBounds(temp int32, bounds threshold.Bounds) bool {
	return (bounds.MinTemp != nil && temp < *bounds.MinTemp) ||
		(bounds.MaxTemp != nil && temp > *bounds.MaxTemp)
}

// Range returns the hourly buckets for unitID within [from, to).
func (a *Aggregator) Range(ctx context.Context, tenantID, unitID uuid.UUID, from, to time.Time) ([]db.MetricBucket, error) {
	buckets, err := a.Queries.ListMetricBuckets(ctx, tenantID, unitID, GranularityHourly, from, to)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "listing metric buckets", err)
	}
	return buckets, nil
}
