package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UpsertMetricBucketParams is the increment to fold into a (unit, period,
// granularity) bucket — one reading's contribution (spec §4.5).
type UpsertMetricBucketParams struct {
	TenantID     uuid.UUID
	UnitID       uuid.UUID
	PeriodStart  time.Time
	Granularity  string
	Temperature  int32
	Humidity     *int32
	IsAnomaly    bool
}

// UpsertMetricBucket performs a single round-trip conflict-aware merge: a
// fresh bucket is seeded from the incoming reading, an existing bucket folds
// it in via LEAST/GREATEST/sum, with avgTemp recomputed from the merged sum/count
// so it never drifts from its components (spec §4.5, §8 bucket invariant
// min ≤ avg ≤ max).
func (q *Queries) UpsertMetricBucket(ctx context.Context, p UpsertMetricBucketParams) (MetricBucket, error) {
	const query = `
		INSERT INTO metric_buckets (id, tenant_id, unit_id, period_start, granularity,
			min_temp, max_temp, sum_temp, count, avg_temp, min_humidity, max_humidity, anomaly_count)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $5, $5, 1, $5, $6, $6, $7)
		ON CONFLICT (unit_id, period_start, granularity) DO UPDATE SET
			min_temp = LEAST(metric_buckets.min_temp, EXCLUDED.min_temp),
			max_temp = GREATEST(metric_buckets.max_temp, EXCLUDED.max_temp),
			sum_temp = metric_buckets.sum_temp + $5,
			count = metric_buckets.count + 1,
			avg_temp = (metric_buckets.sum_temp + $5)::float8 / (metric_buckets.count + 1),
			min_humidity = LEAST(metric_buckets.min_humidity, $6),
			max_humidity = GREATEST(metric_buckets.max_humidity, $6),
			anomaly_count = metric_buckets.anomaly_count + $7
		RETURNING id, tenant_id, unit_id, period_start, granularity,
			min_temp, max_temp, sum_temp, count, avg_temp, min_humidity, max_humidity, anomaly_count`

	anomalyDelta := 0
	if p.IsAnomaly {
		anomalyDelta = 1
	}

	var b MetricBucket
	err := q.db.QueryRow(ctx, query, p.TenantID, p.UnitID, p.PeriodStart, p.Granularity,
		p.Temperature, p.Humidity, anomalyDelta).
		Scan(&b.ID, &b.TenantID, &b.UnitID, &b.PeriodStart, &b.Granularity,
			&b.MinTemp, &b.MaxTemp, &b.SumTemp, &b.Count, &b.AvgTemp, &b.MinHumidity, &b.MaxHumidity, &b.AnomalyCount)
	return b, err
}

// GetMetricBucket fetches a single bucket, used by tests and by the
// dashboard read path to avoid re-deriving avgTemp client-side.
func (q *Queries) GetMetricBucket(ctx context.Context, tenantID, unitID uuid.UUID, periodStart time.Time, granularity string) (MetricBucket, error) {
	const query = `
		SELECT id, tenant_id, unit_id, period_start, granularity,
			min_temp, max_temp, sum_temp, count, avg_temp, min_humidity, max_humidity, anomaly_count
		FROM metric_buckets
		WHERE tenant_id = $1 AND unit_id = $2 AND period_start = $3 AND granularity = $4`
	var b MetricBucket
	err := q.db.QueryRow(ctx, query, tenantID, unitID, periodStart, granularity).
		Scan(&b.ID, &b.TenantID, &b.UnitID, &b.PeriodStart, &b.Granularity,
			&b.MinTemp, &b.MaxTemp, &b.SumTemp, &b.Count, &b.AvgTemp, &b.MinHumidity, &b.MaxHumidity, &b.AnomalyCount)
	return b, err
}

// ListMetricBuckets returns buckets for a unit within a half-open range,
// ordered chronologically, for the history/trend read path (spec §6).
func (q *Queries) ListMetricBuckets(ctx context.Context, tenantID, unitID uuid.UUID, granularity string, from, to time.Time) ([]MetricBucket, error) {
	const query = `
		SELECT id, tenant_id, unit_id, period_start, granularity,
			min_temp, max_temp, sum_temp, count, avg_temp, min_humidity, max_humidity, anomaly_count
		FROM metric_buckets
		WHERE tenant_id = $1 AND unit_id = $2 AND granularity = $3
		  AND period_start >= $4 AND period_start < $5
		ORDER BY period_start`
	rows, err := q.db.Query(ctx, query, tenantID, unitID, granularity, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MetricBucket
	for rows.Next() {
		var b MetricBucket
		if err := rows.Scan(&b.ID, &b.TenantID, &b.UnitID, &b.PeriodStart, &b.Granularity,
			&b.MinTemp, &b.MaxTemp, &b.SumTemp, &b.Count, &b.AvgTemp, &b.MinHumidity, &b.MaxHumidity, &b.AnomalyCount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
