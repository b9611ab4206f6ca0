package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InsertReadingsParams is one row for the batched reading insert.
type InsertReadingsParams struct {
	TenantID       uuid.UUID
	UnitID         uuid.UUID
	DeviceID       *string
	Temperature    int32
	Humidity       *int32
	Battery        *int32
	SignalStrength *int32
	RecordedAt     time.Time
	Source         string
	RawPayload     []byte
}

// InsertReadingsBatch inserts up to len(rows) readings in one multi-row
// INSERT, bounded by the caller at ≤500 rows (spec §4.4 step 2 — the
// database parameter limit). Returns the generated IDs in input order.
func (q *Queries) InsertReadingsBatch(ctx context.Context, rows []InsertReadingsParams) ([]uuid.UUID, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	const paramsPerRow = 10
	var b strings.Builder
	b.WriteString(`INSERT INTO readings (id, tenant_id, unit_id, device_id, temperature, humidity,
		battery, signal_strength, recorded_at, received_at, source, raw_payload) VALUES `)

	args := make([]any, 0, len(rows)*paramsPerRow)
	for i, r := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		base := i * paramsPerRow
		fmt.Fprintf(&b, "(gen_random_uuid(), $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, now(), $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10)
		args = append(args, r.TenantID, r.UnitID, r.DeviceID, r.Temperature, r.Humidity,
			r.Battery, r.SignalStrength, r.RecordedAt, r.Source, r.RawPayload)
	}
	b.WriteString(" RETURNING id")

	pgRows, err := q.db.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer pgRows.Close()

	ids := make([]uuid.UUID, 0, len(rows))
	for pgRows.Next() {
		var id uuid.UUID
		if err := pgRows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, pgRows.Err()
}

// ReadingForEvaluation is the minimal projection the Evaluator needs per unit.
type ReadingForEvaluation struct {
	UnitID      uuid.UUID
	Temperature int32
	RecordedAt  time.Time
	Humidity    *int32
}

// LatestReadingsByUnit computes, for each unit ID in the batch, the reading
// with the greatest recordedAt (ties broken by received order), used to
// drive one Evaluator call per unit per batch (spec §4.4 step 5).
func LatestReadingsByUnit(rows []InsertReadingsParams) map[uuid.UUID]ReadingForEvaluation {
	latest := make(map[uuid.UUID]ReadingForEvaluation, len(rows))
	for _, r := range rows {
		cur, ok := latest[r.UnitID]
		if !ok || r.RecordedAt.After(cur.RecordedAt) || r.RecordedAt.Equal(cur.RecordedAt) {
			latest[r.UnitID] = ReadingForEvaluation{
				UnitID:      r.UnitID,
				Temperature: r.Temperature,
				RecordedAt:  r.RecordedAt,
				Humidity:    r.Humidity,
			}
		}
	}
	return latest
}
