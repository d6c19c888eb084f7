// Package workbook implements a source.Catalog over a single .xlsx workbook:
// every sheet is one source unit, enumerated in the workbook's own sheet
// order. Cells are read through excelize's streaming row iterator so large
// sheets never need to be fully materialized in memory.
package workbook

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"unionsheets/internal/source"
)

// Catalog enumerates the sheets of one workbook file.
type Catalog struct {
	path string
}

// New returns a catalog for the workbook at path. The file is not touched
// until Units is called.
func New(path string) *Catalog {
	return &Catalog{path: path}
}

// Units lists one unit per sheet, in sheet order. It returns
// source.ErrNotFound when the file does not exist or is not a readable
// workbook, and an empty slice (no error) when the workbook has no sheets.
func (c *Catalog) Units(ctx context.Context) ([]source.Unit, error) {
	if _, err := os.Stat(c.path); err != nil {
		return nil, fmt.Errorf("workbook %s: %w", c.path, source.ErrNotFound)
	}

	f, err := excelize.OpenFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("workbook %s: %v: %w", c.path, err, source.ErrNotFound)
	}
	defer func() {
		_ = f.Close()
	}()

	names := f.GetSheetList()
	units := make([]source.Unit, 0, len(names))
	for _, name := range names {
		units = append(units, &sheetUnit{path: c.path, sheet: name})
	}
	return units, nil
}

// sheetUnit reads one sheet of the workbook. Each unit opens its own handle
// so concurrently running workers never share excelize state.
type sheetUnit struct {
	path  string
	sheet string
}

func (u *sheetUnit) Label() string { return u.sheet }

// Open opens the workbook and positions a row iterator past the header row.
func (u *sheetUnit) Open(ctx context.Context) (source.Rows, error) {
	f, err := excelize.OpenFile(u.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", u.path, err)
	}

	iter, err := f.Rows(u.sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("sheet %s: %w", u.sheet, err)
	}

	r := &sheetRows{ctx: ctx, sheet: u.sheet, file: f, iter: iter, width: -1}
	if err := r.readHeader(); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

type sheetRows struct {
	ctx    context.Context
	sheet  string
	file   *excelize.File
	iter   *excelize.Rows
	header []string
	width  int
}

// readHeader advances past leading empty rows to the header row, matching how
// hand-maintained workbooks tend to start with blank padding rows.
func (r *sheetRows) readHeader() error {
	for r.iter.Next() {
		row, err := r.iter.Columns()
		if err != nil {
			return fmt.Errorf("sheet %s: read header: %w", r.sheet, err)
		}
		if len(row) == 0 {
			continue
		}
		r.header = row
		r.width = len(row)
		return nil
	}
	if err := r.iter.Error(); err != nil {
		return fmt.Errorf("sheet %s: read header: %w", r.sheet, err)
	}
	return fmt.Errorf("sheet %s: %w", r.sheet, source.ErrNoHeader)
}

func (r *sheetRows) Header() []string { return r.header }

// Next returns the following data row. Short rows are padded with empty
// strings to the header width; excelize trims trailing empty cells.
func (r *sheetRows) Next() ([]string, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	if !r.iter.Next() {
		if err := r.iter.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	row, err := r.iter.Columns()
	if err != nil {
		return nil, err
	}
	if len(row) < r.width {
		padded := make([]string, r.width)
		copy(padded, row)
		row = padded
	} else if len(row) > r.width {
		row = row[:r.width]
	}
	return row, nil
}

func (r *sheetRows) Close() error {
	var first error
	if r.iter != nil {
		first = r.iter.Close()
	}
	if err := r.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
