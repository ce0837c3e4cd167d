// Package extract reads NEO records from the JPL small-body CSV export and
// close approach records from the CNEOS close-approach JSON feed.
//
// Extraction stops at the first malformed record and reports it as a
// validation error annotated with the source file and row.
package extract

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	neoerrors "github.com/Aman-CERP/neodb/internal/errors"
	"github.com/Aman-CERP/neodb/internal/models"
)

// Header columns required in the NEO CSV.
const (
	colDesignation = "pdes"
	colName        = "name"
	colHazardous   = "pha"
	colDiameter    = "diameter"
)

// Field names required in the CAD JSON.
const (
	fieldDesignation = "des"
	fieldTime        = "cd"
	fieldDistance    = "dist"
	fieldVelocity    = "v_rel"
)

// NEOColumns lists the header columns ReadNEOs requires.
var NEOColumns = []string{colDesignation, colName, colHazardous, colDiameter}

// CADFields lists the field names ReadApproaches requires.
var CADFields = []string{fieldDesignation, fieldTime, fieldDistance, fieldVelocity}

// ctxCheckInterval is how many rows are read between context checks.
const ctxCheckInterval = 1024

// Dataset is the pair of unlinked collections produced by Load.
type Dataset struct {
	NEOs       []*models.NearEarthObject
	Approaches []*models.CloseApproach
}

// ProgressFunc observes how much of a source file has been read. It may be
// called from several goroutines at once.
type ProgressFunc func(path string, read, size int64)

// LoadOption configures Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	progress ProgressFunc
}

// WithProgress reports bytes read from each source file.
func WithProgress(fn ProgressFunc) LoadOption {
	return func(o *loadOptions) {
		o.progress = fn
	}
}

// Load reads both source files concurrently.
func Load(ctx context.Context, neoPath, cadPath string, opts ...LoadOption) (*Dataset, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	ds := &Dataset{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		f, err := openTracked(neoPath, o.progress)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		ds.NEOs, err = ReadNEOs(gctx, f, neoPath)
		return err
	})
	g.Go(func() error {
		f, err := openTracked(cadPath, o.progress)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		ds.Approaches, err = ReadApproaches(gctx, f, cadPath)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Info("sources_read",
		slog.String("neos_path", neoPath),
		slog.String("approaches_path", cadPath),
		slog.Int("neos", len(ds.NEOs)),
		slog.Int("approaches", len(ds.Approaches)),
		slog.Duration("duration", time.Since(start)))
	return ds, nil
}

// ReadNEOs parses the NEO CSV. Columns are located by header name, so
// extra columns and any column order are accepted. source names the input
// in error details.
func ReadNEOs(ctx context.Context, r io.Reader, source string) ([]*models.NearEarthObject, error) {
	reader := csv.NewReader(skipBOM(r))
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return nil, missingField(source, colDesignation, "empty file")
		}
		return nil, corrupt(source, 1, err)
	}
	idx, err := columnIndex(header, source, NEOColumns...)
	if err != nil {
		return nil, err
	}

	var neos []*models.NearEarthObject
	for row := 2; ; row++ {
		if (row-2)%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, corrupt(source, row, err)
		}

		neo, err := models.NewNearEarthObject(models.NEORecord{
			Designation: record[idx[colDesignation]],
			Name:        record[idx[colName]],
			Diameter:    record[idx[colDiameter]],
			Hazardous:   record[idx[colHazardous]] == "Y",
		})
		if err != nil {
			return nil, annotate(err, source, row)
		}
		neos = append(neos, neo)
	}

	slog.Debug("neos_extracted", slog.String("source", source), slog.Int("count", len(neos)))
	return neos, nil
}

// ReadApproaches parses the CAD JSON. Fields are located by name in the
// "fields" array; data cells may be strings, numbers or null.
//
// The document is walked token by token and data rows are decoded one at a
// time. Rows that precede the "fields" key are held until the columns are
// known.
func ReadApproaches(ctx context.Context, r io.Reader, source string) ([]*models.CloseApproach, error) {
	dec := json.NewDecoder(skipBOM(r))
	dec.UseNumber()

	var (
		idx        map[string]int
		width      int
		pending    [][]any
		approaches []*models.CloseApproach
	)
	convert := func(cells []any) error {
		row := len(approaches) + 1
		if len(cells) < width {
			return neoerrors.New(neoerrors.ErrCodeMissingField,
				fmt.Sprintf("%s: data row %d has %d cells, want at least %d", source, row, len(cells), width), nil).
				WithDetail("file", source).
				WithDetail("row", strconv.Itoa(row))
		}
		ca, err := models.NewCloseApproach(models.ApproachRecord{
			Designation: cellString(cells[idx[fieldDesignation]]),
			Time:        cellString(cells[idx[fieldTime]]),
			Distance:    cellString(cells[idx[fieldDistance]]),
			Velocity:    cellString(cells[idx[fieldVelocity]]),
		})
		if err != nil {
			return annotate(err, source, row)
		}
		approaches = append(approaches, ca)
		return nil
	}

	if err := expectDelim(dec, '{'); err != nil {
		return nil, undecodable(source, err)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, undecodable(source, err)
		}
		switch tok {
		case "fields":
			var fields []string
			if err := dec.Decode(&fields); err != nil {
				return nil, undecodable(source, err)
			}
			if idx, err = columnIndex(fields, source, CADFields...); err != nil {
				return nil, err
			}
			for _, i := range idx {
				width = max(width, i+1)
			}
			for _, cells := range pending {
				if err := convert(cells); err != nil {
					return nil, err
				}
			}
			pending = nil
		case "data":
			if err := expectDelim(dec, '['); err != nil {
				return nil, undecodable(source, err)
			}
			for i := 0; dec.More(); i++ {
				if i%ctxCheckInterval == 0 {
					if err := ctx.Err(); err != nil {
						return nil, err
					}
				}
				var cells []any
				if err := dec.Decode(&cells); err != nil {
					return nil, corrupt(source, i+1, err)
				}
				if idx == nil {
					pending = append(pending, cells)
					continue
				}
				if err := convert(cells); err != nil {
					return nil, err
				}
			}
			if err := expectDelim(dec, ']'); err != nil {
				return nil, undecodable(source, err)
			}
		default:
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, undecodable(source, err)
			}
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, undecodable(source, err)
	}
	if idx == nil {
		_, err := columnIndex(nil, source, CADFields...)
		return nil, err
	}

	slog.Debug("approaches_extracted", slog.String("source", source), slog.Int("count", len(approaches)))
	return approaches, nil
}

// expectDelim consumes the next token and checks it is the given delimiter.
func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, found %v", want, tok)
	}
	return nil
}

func undecodable(source string, err error) error {
	return neoerrors.New(neoerrors.ErrCodeFileCorrupt,
		fmt.Sprintf("cannot decode %s", source), err).
		WithDetail("file", source)
}

// cellString renders a decoded JSON cell as the text a record expects.
func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case json.Number:
		return c.String()
	case bool:
		return strconv.FormatBool(c)
	default:
		return fmt.Sprint(c)
	}
}

func columnIndex(header []string, source string, names ...string) (map[string]int, error) {
	idx := make(map[string]int, len(names))
	for i, h := range header {
		idx[h] = i
	}
	out := make(map[string]int, len(names))
	for _, name := range names {
		i, ok := idx[name]
		if !ok {
			return nil, missingField(source, name, "not present in header")
		}
		out[name] = i
	}
	return out, nil
}

func missingField(source, field, reason string) error {
	return neoerrors.New(neoerrors.ErrCodeMissingField,
		fmt.Sprintf("%s: field %q %s", source, field, reason), nil).
		WithDetail("file", source).
		WithDetail("field", field)
}

func corrupt(source string, row int, err error) error {
	return neoerrors.New(neoerrors.ErrCodeFileCorrupt,
		fmt.Sprintf("%s: unreadable row %d", source, row), err).
		WithDetail("file", source).
		WithDetail("row", strconv.Itoa(row))
}

// annotate attaches the source location to a record-level error.
func annotate(err error, source string, row int) error {
	if ne, ok := neoerrors.As(err); ok {
		ne.WithDetail("file", source).WithDetail("row", strconv.Itoa(row))
		return err
	}
	return fmt.Errorf("%s row %d: %w", source, row, err)
}

func openSource(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err == nil {
		return f, nil
	}
	switch {
	case stderrors.Is(err, fs.ErrNotExist):
		return nil, neoerrors.New(neoerrors.ErrCodeFileNotFound,
			fmt.Sprintf("data file %s not found", path), err).
			WithDetail("file", path).
			WithSuggestion("Pass --neofile/--cadfile or set data.neos/data.approaches in .neodb.yaml")
	case stderrors.Is(err, fs.ErrPermission):
		return nil, neoerrors.New(neoerrors.ErrCodeFilePermission,
			fmt.Sprintf("cannot read %s", path), err).
			WithDetail("file", path)
	default:
		return nil, neoerrors.IOError(fmt.Sprintf("cannot open %s", path), err)
	}
}

// trackedFile reports progress after every read.
type trackedFile struct {
	*os.File
	path     string
	size     int64
	read     int64
	progress ProgressFunc
}

func openTracked(path string, progress ProgressFunc) (io.ReadCloser, error) {
	f, err := openSource(path)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		return f, nil
	}
	var size int64
	if info, statErr := f.Stat(); statErr == nil {
		size = info.Size()
	}
	progress(path, 0, size)
	return &trackedFile{File: f, path: path, size: size, progress: progress}, nil
}

func (t *trackedFile) Read(p []byte) (int, error) {
	n, err := t.File.Read(p)
	if n > 0 {
		t.read += int64(n)
		t.progress(t.path, t.read, t.size)
	}
	return n, err
}

// skipBOM drops a leading UTF-8 byte order mark, which spreadsheet exports
// on Windows commonly add.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
		_, _ = br.Discard(3)
	}
	return br
}
