package write

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/neodb/internal/models"
)

const approachesSchema = `
CREATE TABLE approaches (
    id                    INTEGER PRIMARY KEY,
    datetime_utc          TEXT NOT NULL,
    distance_au           REAL NOT NULL,
    velocity_km_s         REAL NOT NULL,
    designation           TEXT NOT NULL,
    name                  TEXT,
    diameter_km           REAL,
    potentially_hazardous INTEGER
);
CREATE INDEX idx_approaches_designation ON approaches(designation);
CREATE INDEX idx_approaches_datetime ON approaches(datetime_utc);
`

const insertApproach = `INSERT INTO approaches
    (datetime_utc, distance_au, velocity_km_s, designation, name, diameter_km, potentially_hazardous)
    VALUES (?, ?, ?, ?, ?, ?, ?)`

// WriteSQLite writes results into the approaches table of the SQLite file at
// path, replacing any previous table, inside a single transaction.
//
// The designation column always holds the approach's designation; the NEO
// columns are NULL for unlinked approaches, and diameter_km is NULL when
// unknown.
func WriteSQLite(ctx context.Context, path string, results iter.Seq[*models.CloseApproach]) (n int, err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, writeFailed(path, err)
		}
	}

	// IMPORTANT: Use modernc.org/sqlite driver (pure Go, no CGO)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return 0, writeFailed(path, err)
	}
	defer func() { _ = db.Close() }()
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return 0, writeFailed(path, fmt.Errorf("failed to set pragma: %w", err))
		}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, writeFailed(path, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DROP TABLE IF EXISTS approaches"); err != nil {
		return 0, writeFailed(path, err)
	}
	if _, err = tx.ExecContext(ctx, approachesSchema); err != nil {
		return 0, writeFailed(path, fmt.Errorf("failed to create schema: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx, insertApproach)
	if err != nil {
		return 0, writeFailed(path, err)
	}
	defer func() { _ = stmt.Close() }()

	for ca := range results {
		var (
			name      sql.NullString
			diameter  sql.NullFloat64
			hazardous sql.NullBool
		)
		if neo := ca.NEO; neo != nil {
			name = sql.NullString{String: neo.Name, Valid: neo.Name != ""}
			diameter = sql.NullFloat64{Float64: neo.Diameter, Valid: !math.IsNaN(neo.Diameter)}
			hazardous = sql.NullBool{Bool: neo.Hazardous, Valid: true}
		}
		if _, err = stmt.ExecContext(ctx,
			ca.TimeString(), ca.Distance, ca.Velocity, ca.Designation,
			name, diameter, hazardous,
		); err != nil {
			return n, writeFailed(path, err)
		}
		n++
	}

	if err = tx.Commit(); err != nil {
		return 0, writeFailed(path, err)
	}

	slog.Info("results_written",
		slog.String("path", path),
		slog.String("format", string(FormatSQLite)),
		slog.Int("rows", n))
	return n, nil
}
