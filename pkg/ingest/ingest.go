// Package ingest implements the orchestration of one inbound reading batch:
// validating unit ownership, persisting rows, advancing the per-unit FSM,
// and fanning the result out to the metrics aggregator and the live stream
// (spec §4.4).
package ingest

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/frostguard/core/internal/apperr"
	"github.com/frostguard/core/internal/db"
	"github.com/frostguard/core/internal/telemetry"
	"github.com/frostguard/core/pkg/evaluator"
	"github.com/frostguard/core/pkg/metricbucket"
	"github.com/frostguard/core/pkg/stream"
)

// maxBatchRows is the Postgres bind-parameter ceiling for one multi-row
// INSERT at 10 params/row (spec §4.4 step 2): 500 rows keeps a single batch
// well under the 65535 parameter limit with headroom for future columns.
const maxBatchRows = 500

// Orchestrator wires the ingestion pipeline's collaborators together.
type Orchestrator struct {
	Pool       *pgxpool.Pool
	Evaluator  *evaluator.Evaluator
	Aggregator *metricbucket.Aggregator
	Buffer     *stream.Buffer
	Logger     *slog.Logger
}

// Summary reports what one call to Ingest accomplished, for the HTTP
// response and for tests.
type Summary struct {
	Accepted int
	Dropped  int
	Units    int
}

// Ingest accepts a batch of readings for a single tenant, silently dropping
// any whose unitID does not belong to that tenant (spec §3 silent filter),
// then chunks the rest into ≤500-row inserts. Each chunk runs in its own
// transaction: a failure partway through a large batch does not roll back
// chunks that already committed, trading all-or-nothing atomicity for
// ingestion throughput under spec's explicit Non-goal of exactly-once
// cross-chunk atomicity.
func (o *Orchestrator) Ingest(ctx context.Context, tenantID uuid.UUID, rows []db.InsertReadingsParams) (Summary, error) {
	if len(rows) == 0 {
		return Summary{}, apperr.InvalidInput("empty reading batch", nil)
	}

	q := db.New(o.Pool)

	candidateIDs := uniqueUnitIDs(rows)
	ownedIDs, err := q.ListUnitIDsByTenant(ctx, tenantID, candidateIDs)
	if err != nil {
		return Summary{}, apperr.Wrap(apperr.KindTransient, "validating unit ownership", err)
	}
	owned := toSet(ownedIDs)

	accepted := make([]db.InsertReadingsParams, 0, len(rows))
	dropped := 0
	for _, r := range rows {
		if _, ok := owned[r.UnitID]; ok {
			accepted = append(accepted, r)
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		telemetry.ReadingsDroppedTotal.WithLabelValues(tenantID.String()).Add(float64(dropped))
		o.Logger.Warn("dropped readings for units outside tenant", "tenant_id", tenantID, "dropped", dropped)
	}

	for start := 0; start < len(accepted); start += maxBatchRows {
		end := min(start+maxBatchRows, len(accepted))
		if err := o.ingestChunk(ctx, tenantID, accepted[start:end]); err != nil {
			return Summary{}, err
		}
	}

	telemetry.ReadingsIngestedTotal.WithLabelValues(tenantID.String()).Add(float64(len(accepted)))

	return Summary{Accepted: len(accepted), Dropped: dropped, Units: len(uniqueUnitIDs(accepted))}, nil
}

// ingestChunk persists the chunk's rows and each unit's last-seen reading
// inside one transaction (spec §4.4 steps 2-3), then runs the per-unit FSM
// evaluation and metric aggregation outside that transaction (spec §4.4
// steps 4-6, §7): those steps are best-effort per unit, so a single unit's
// evaluator or aggregator failure is logged and skipped rather than rolling
// back readings that already committed for every other unit in the chunk.
func (o *Orchestrator) ingestChunk(ctx context.Context, tenantID uuid.UUID, chunk []db.InsertReadingsParams) error {
	timer := prometheus.NewTimer(telemetry.IngestBatchDuration)
	defer timer.ObserveDuration()

	latest := db.LatestReadingsByUnit(chunk)

	if err := o.insertChunk(ctx, tenantID, chunk, latest); err != nil {
		return err
	}

	if o.Buffer != nil {
		for _, r := range chunk {
			o.Buffer.Push(tenantID, r.UnitID, stream.Sample{
				Temperature: r.Temperature, Humidity: r.Humidity, RecordedAt: r.RecordedAt,
			})
		}
	}

	q := db.New(o.Pool)
	for unitID, reading := range latest {
		unit, err := q.GetUnitScoped(ctx, tenantID, unitID)
		if err != nil {
			o.Logger.Error("reloading unit for evaluation", "tenant_id", tenantID, "unit_id", unitID, "error", err)
			continue
		}

		if _, err := o.Evaluator.Evaluate(ctx, tenantID, unit.SiteID, unitID, unit, reading); err != nil {
			o.Logger.Error("evaluating unit reading", "tenant_id", tenantID, "unit_id", unitID, "error", err)
		}

		for _, r := range chunk {
			if r.UnitID != unitID {
				continue
			}
			sample := db.ReadingForEvaluation{UnitID: r.UnitID, Temperature: r.Temperature, RecordedAt: r.RecordedAt, Humidity: r.Humidity}
			if err := o.Aggregator.Record(ctx, tenantID, unit.SiteID, unitID, unit, sample); err != nil {
				o.Logger.Error("aggregating unit reading", "tenant_id", tenantID, "unit_id", unitID, "error", err)
			}
		}
	}

	return nil
}

// insertChunk runs the row insert and every unit's last-seen update inside a
// single transaction: a crash between the two would otherwise leave a unit's
// cached last reading pointing past rows that were never actually inserted.
func (o *Orchestrator) insertChunk(ctx context.Context, tenantID uuid.UUID, chunk []db.InsertReadingsParams, latest map[uuid.UUID]db.ReadingForEvaluation) error {
	tx, err := o.Pool.Begin(ctx)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "beginning ingest transaction", err)
	}
	defer tx.Rollback(ctx)

	q := db.New(tx)

	if _, err := q.InsertReadingsBatch(ctx, chunk); err != nil {
		return apperr.Wrap(apperr.KindTransient, "inserting readings", err)
	}

	for unitID, reading := range latest {
		if err := q.UpdateUnitLastReading(ctx, db.UpdateUnitLastReadingParams{
			UnitID: unitID, TenantID: tenantID, ReadingAt: reading.RecordedAt, Temperature: reading.Temperature,
		}); err != nil {
			return apperr.Wrap(apperr.KindTransient, "updating unit last reading", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.KindTransient, "committing ingest chunk", err)
	}
	return nil
}

func uniqueUnitIDs(rows []db.InsertReadingsParams) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(rows))
	out := make([]uuid.UUID, 0, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.UnitID]; !ok {
			seen[r.UnitID] = struct{}{}
			out = append(out, r.UnitID)
		}
	}
	return out
}

func toSet(ids []uuid.UUID) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
