// Package reglist reads vehicle registrations for bulk lookups from CSV and
// XLSX files.
package reglist

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
)

// headerNames are the header cells recognised as the registration column.
var headerNames = []string{"registration", "reg", "vrm", "registration_number", "reg_no"}

// Options selects where registrations are read from.
type Options struct {
	// Column is a header name to read from. Empty means auto-detect a known
	// header, falling back to the first column of a headerless file.
	Column string
	// Sheet names an XLSX sheet. Empty means the first sheet.
	Sheet string
	// Delimiter overrides the CSV field separator.
	Delimiter rune
}

// ReadFile reads registrations from path. Files ending in .xlsx are read as
// spreadsheets; everything else is parsed as CSV.
func ReadFile(ctx context.Context, path string, opts Options) ([]string, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		rows, err := readXLSX(path, opts.Sheet)
		if err != nil {
			return nil, err
		}
		return extract(rows, opts.Column)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reglist: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return ReadCSV(ctx, f, opts)
}

// ReadCSV reads registrations from CSV data.
func ReadCSV(ctx context.Context, r io.Reader, opts Options) ([]string, error) {
	rowCh, errCh := streamCSV(ctx, r, opts.Delimiter)

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return extract(rows, opts.Column)
}

// extract picks the registration column out of rows. Blank cells are
// skipped; order is preserved.
func extract(rows [][]string, column string) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	idx, hasHeader := headerIndex(rows[0], column)
	if idx < 0 {
		return nil, eris.Errorf("reglist: column %q not found in header", column)
	}
	if hasHeader {
		rows = rows[1:]
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		if idx >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[idx]); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

// headerIndex locates the registration column in the first row. An explicit
// column must appear in the header; otherwise a known header name is used,
// and a row without one is treated as data read from column 0.
func headerIndex(first []string, column string) (int, bool) {
	if column != "" {
		for i, cell := range first {
			if strings.EqualFold(strings.TrimSpace(cell), column) {
				return i, true
			}
		}
		return -1, false
	}

	for i, cell := range first {
		if slices.Contains(headerNames, strings.ToLower(strings.TrimSpace(cell))) {
			return i, true
		}
	}
	return 0, false
}
