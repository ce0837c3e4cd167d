package preflight

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/Aman-CERP/neodb/internal/extract"
)

// LargeDatasetBytes is the combined source size above which loading is
// flagged. Every record is held in memory after load.
const LargeDatasetBytes = 1 << 30

// CheckNEOFile checks that the NEO CSV exists and its header carries the
// columns the loader needs.
func (c *Checker) CheckNEOFile(path string) CheckResult {
	result := CheckResult{
		Name:     "neo_file",
		Required: true,
	}

	f, info, fail := openData(result, path)
	if f == nil {
		return fail
	}
	defer func() { _ = f.Close() }()

	header, err := csv.NewReader(bufio.NewReader(f)).Read()
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s has no readable CSV header", path)
		result.Details = err.Error()
		return result
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if missing := missingNames(header, extract.NEOColumns); len(missing) > 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is missing columns: %s", path, strings.Join(missing, ", "))
		result.Details = "Export the catalogue from the JPL small-body database with pdes, name, pha and diameter"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%s)", path, humanize.Bytes(uint64(info.Size())))
	return result
}

// CheckCADFile checks that the close-approach JSON exists and lists the
// fields the loader needs. Only the document prefix up to "fields" is
// decoded.
func (c *Checker) CheckCADFile(ctx context.Context, path string) CheckResult {
	result := CheckResult{
		Name:     "cad_file",
		Required: true,
	}

	f, info, fail := openData(result, path)
	if f == nil {
		return fail
	}
	defer func() { _ = f.Close() }()

	fields, err := readCADFields(ctx, json.NewDecoder(bufio.NewReader(f)))
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not a close-approach document", path)
		result.Details = err.Error()
		return result
	}
	if missing := missingNames(fields, extract.CADFields); len(missing) > 0 {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is missing fields: %s", path, strings.Join(missing, ", "))
		result.Details = "Fetch the feed from the CNEOS close-approach API, which lists des, cd, dist and v_rel"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%s)", path, humanize.Bytes(uint64(info.Size())))
	return result
}

// CheckDatasetSize warns when the sources are large enough that holding
// them in memory may strain the machine.
func (c *Checker) CheckDatasetSize(paths ...string) CheckResult {
	result := CheckResult{
		Name: "dataset_size",
	}

	var total int64
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			total += info.Size()
		}
	}

	result.Message = fmt.Sprintf("%s of source data (limit: %s)",
		humanize.Bytes(uint64(total)), humanize.IBytes(LargeDatasetBytes))
	if total > LargeDatasetBytes {
		result.Status = StatusWarn
		result.Details = "Every record is kept in memory; filter the export or use a machine with more RAM"
		return result
	}
	result.Status = StatusPass
	return result
}

// openData opens path for a required data check. On failure it returns a
// nil file and the failed result.
func openData(result CheckResult, path string) (*os.File, fs.FileInfo, CheckResult) {
	result.Status = StatusFail
	if path == "" {
		result.Message = "no path configured"
		result.Details = "Set data.neos and data.approaches in .neodb.yaml"
		return nil, nil, result
	}

	f, err := os.Open(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			result.Message = fmt.Sprintf("%s not found", path)
		case errors.Is(err, fs.ErrPermission):
			result.Message = fmt.Sprintf("%s is not readable", path)
		default:
			result.Message = fmt.Sprintf("cannot open %s", path)
		}
		result.Details = err.Error()
		return nil, nil, result
	}

	info, err := f.Stat()
	if err == nil && info.IsDir() {
		err = fmt.Errorf("%s is a directory", path)
	}
	if err != nil {
		_ = f.Close()
		result.Message = fmt.Sprintf("cannot read %s", path)
		result.Details = err.Error()
		return nil, nil, result
	}
	return f, info, result
}

// readCADFields walks the top-level object until it finds "fields".
func readCADFields(ctx context.Context, dec *json.Decoder) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("top level is not an object")
	}

	for dec.More() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if key, _ := tok.(string); key == "fields" {
			var fields []string
			if err := dec.Decode(&fields); err != nil {
				return nil, fmt.Errorf("fields: %w", err)
			}
			return fields, nil
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, err
		}
	}
	return nil, errors.New(`no "fields" list`)
}

// missingNames returns the entries of want absent from have, in order.
func missingNames(have, want []string) []string {
	var missing []string
	for _, name := range want {
		if !slices.Contains(have, name) {
			missing = append(missing, name)
		}
	}
	return missing
}
