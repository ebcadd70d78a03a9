package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/smartsensor/gateway/internal/dbx"
	"github.com/smartsensor/gateway/internal/model"
)

// SQLAdapter writes readings into SQLite as a batched multi-row INSERT,
// using the gateway's dbx.DB wrapper.
type SQLAdapter struct {
	db *dbx.DB
}

// NewSQLAdapter wraps an open database connection.
func NewSQLAdapter(db *dbx.DB) *SQLAdapter {
	return &SQLAdapter{db: db}
}

const sqlInsertColumns = "device_id, sensor_kind, position, value, raw_value, unit, device_timestamp, ingest_timestamp, quality, seq"

// Append inserts the batch in a single multi-row statement inside a
// transaction, so a partial write never leaves the table half-populated.
func (a *SQLAdapter) Append(ctx context.Context, readings []model.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning readings transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	var b strings.Builder
	b.WriteString("INSERT INTO readings (")
	b.WriteString(sqlInsertColumns)
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(readings)*10)
	for i, r := range readings {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString("(?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			r.DeviceID, string(r.SensorKind), string(r.Position),
			r.Value, r.RawValue, r.Unit,
			r.DeviceTimestamp.UTC(), r.IngestTimestamp.UTC(),
			string(r.Quality), r.Seq,
		)
	}

	if _, err := tx.ExecContext(ctx, b.String(), args...); err != nil {
		return fmt.Errorf("inserting readings batch: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing readings batch: %w", err)
	}
	return nil
}

// Close is a no-op; the underlying *dbx.DB outlives the adapter and is
// closed by whoever opened it.
func (a *SQLAdapter) Close() error { return nil }
