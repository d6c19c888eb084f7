// Package csvdir implements a source.Catalog over a set of same-schema CSV
// files: each file is one source unit. The container is either a directory
// (every *.csv inside it, non-recursive) or an explicit list of paths.
// Enumeration order is lexicographic by path so it is stable across runs.
package csvdir

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"unionsheets/internal/source"
)

// Catalog enumerates CSV files as source units.
type Catalog struct {
	dir   string
	files []string
	comma rune
}

// Option adjusts catalog behavior.
type Option func(*Catalog)

// WithComma sets the field delimiter used when reading every unit.
func WithComma(c rune) Option {
	return func(cat *Catalog) { cat.comma = c }
}

// New returns a catalog over all *.csv files directly inside dir.
func New(dir string, opts ...Option) *Catalog {
	c := &Catalog{dir: dir, comma: ','}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewFromFiles returns a catalog over an explicit list of CSV paths. The
// order of units is still lexicographic, not argument order, so that runs are
// reproducible regardless of how the caller assembled the list.
func NewFromFiles(paths []string, opts ...Option) *Catalog {
	c := &Catalog{files: append([]string(nil), paths...), comma: ','}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Units lists one unit per CSV file. A missing or unreadable directory (or a
// missing explicit file) maps to source.ErrNotFound. A directory with no CSV
// files yields an empty slice and no error.
func (c *Catalog) Units(ctx context.Context) ([]source.Unit, error) {
	paths := append([]string(nil), c.files...)

	if c.dir != "" {
		entries, err := os.ReadDir(c.dir)
		if err != nil {
			return nil, fmt.Errorf("csvdir %s: %v: %w", c.dir, err, source.ErrNotFound)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				continue
			}
			paths = append(paths, filepath.Join(c.dir, e.Name()))
		}
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return nil, fmt.Errorf("csv file %s: %w", p, source.ErrNotFound)
		}
	}

	sort.Strings(paths)
	units := make([]source.Unit, 0, len(paths))
	for _, p := range paths {
		units = append(units, &fileUnit{path: p, comma: c.comma})
	}
	return units, nil
}

type fileUnit struct {
	path  string
	comma rune
}

func (u *fileUnit) Label() string { return u.path }

func (u *fileUnit) Open(ctx context.Context) (source.Rows, error) {
	f, err := os.Open(u.path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", u.path, err)
	}

	r := csv.NewReader(f)
	r.Comma = u.comma
	r.FieldsPerRecord = -1
	r.ReuseRecord = true
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		_ = f.Close()
		if err == io.EOF {
			return nil, fmt.Errorf("%s: %w", u.path, source.ErrNoHeader)
		}
		return nil, fmt.Errorf("%s: read header: %w", u.path, err)
	}
	header = stripHeaderBOM(append([]string(nil), header...))

	return &fileRows{ctx: ctx, f: f, r: r, header: header}, nil
}

const utf8BOM = "\uFEFF"

// stripHeaderBOM removes a UTF-8 BOM from the first header cell if present.
func stripHeaderBOM(headers []string) []string {
	if len(headers) == 0 {
		return headers
	}
	headers[0] = strings.TrimPrefix(headers[0], utf8BOM)
	return headers
}

type fileRows struct {
	ctx    context.Context
	f      *os.File
	r      *csv.Reader
	header []string
}

func (r *fileRows) Header() []string { return r.header }

// Next returns the following data row, padded or truncated to the header
// width so every unit yields a rectangular relation.
func (r *fileRows) Next() ([]string, error) {
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := r.r.Read()
	if err != nil {
		return nil, err // io.EOF at end of file
	}
	if len(rec) != len(r.header) {
		fixed := make([]string, len(r.header))
		copy(fixed, rec)
		return fixed, nil
	}
	return rec, nil
}

func (r *fileRows) Close() error { return r.f.Close() }
