// Package write serializes streams of close approaches to CSV, JSON and SQLite.
//
// Every writer consumes its input sequence exactly once and returns the
// number of approaches written.
package write

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/models"
)

// CSVHeader is the column order of CSV output.
var CSVHeader = []string{
	"datetime_utc",
	"distance_au",
	"velocity_km_s",
	"designation",
	"name",
	"diameter_km",
	"potentially_hazardous",
}

// jsonIndent is the per-level indentation of JSON output.
const jsonIndent = "    "

// Format identifies an output encoding.
type Format string

// Supported output formats.
const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatSQLite Format = "sqlite"
)

// FormatFromPath picks the output format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", neoerrors.New(neoerrors.ErrCodeUnsupportedFormat,
			fmt.Sprintf("cannot infer output format from %q", path), nil).
			WithDetail("path", path).
			WithSuggestion("Use a .csv, .json, .db, .sqlite or .sqlite3 extension")
	}
}

// WriteFile writes results to path in the format implied by its extension.
func WriteFile(ctx context.Context, path string, results iter.Seq[*models.CloseApproach]) (int, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return 0, err
	}
	lock, err := lockOutput(path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = lock.release() }()

	if format == FormatSQLite {
		return WriteSQLite(ctx, path, results)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, writeFailed(path, err)
	}

	var n int
	switch format {
	case FormatCSV:
		n, err = WriteCSV(f, results)
	default:
		n, err = WriteJSON(f, results)
	}
	if cerr := f.Close(); err == nil && cerr != nil {
		err = writeFailed(path, cerr)
	}
	if err != nil {
		return n, err
	}

	slog.Info("results_written",
		slog.String("path", path),
		slog.String("format", string(format)),
		slog.Int("rows", n))
	return n, nil
}

// WriteCSV writes a header row and one row per approach.
//
// An unlinked approach has empty designation, name and diameter and a
// hazardous flag of False. An unknown diameter is written as nan.
func WriteCSV(w io.Writer, results iter.Seq[*models.CloseApproach]) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return 0, writeFailed("csv", err)
	}

	n := 0
	row := make([]string, len(CSVHeader))
	for ca := range results {
		row[0] = ca.TimeString()
		row[1] = formatFloat(ca.Distance)
		row[2] = formatFloat(ca.Velocity)
		if neo := ca.NEO; neo != nil {
			row[3] = neo.Designation
			row[4] = neo.Name
			row[5] = formatFloat(neo.Diameter)
			row[6] = titleBool(neo.Hazardous)
		} else {
			row[3], row[4], row[5] = "", "", ""
			row[6] = titleBool(false)
		}
		if err := cw.Write(row); err != nil {
			return n, writeFailed("csv", err)
		}
		n++
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return n, writeFailed("csv", err)
	}
	return n, nil
}

// WriteJSON streams a JSON array of serialized approaches, indented by four
// spaces. Unlinked approaches carry "neo": null.
func WriteJSON(w io.Writer, results iter.Seq[*models.CloseApproach]) (int, error) {
	n := 0
	for ca := range results {
		sep := ",\n" + jsonIndent
		if n == 0 {
			sep = "[\n" + jsonIndent
		}
		item, err := json.MarshalIndent(ca.Serialize(), jsonIndent, jsonIndent)
		if err != nil {
			return n, neoerrors.InternalError("cannot encode close approach", err)
		}
		if _, err := io.WriteString(w, sep); err != nil {
			return n, writeFailed("json", err)
		}
		if _, err := w.Write(item); err != nil {
			return n, writeFailed("json", err)
		}
		n++
	}

	tail := "\n]\n"
	if n == 0 {
		tail = "[]\n"
	}
	if _, err := io.WriteString(w, tail); err != nil {
		return n, writeFailed("json", err)
	}
	return n, nil
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "nan"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func titleBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func writeFailed(target string, err error) error {
	return neoerrors.New(neoerrors.ErrCodeWriteFailed,
		fmt.Sprintf("failed to write %s", target), err).
		WithDetail("target", target)
}
