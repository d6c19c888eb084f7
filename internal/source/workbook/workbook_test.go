package workbook

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"unionsheets/internal/source"
)

type sheetData struct {
	name string
	rows [][]any
}

// writeWorkbook builds an .xlsx fixture with the given sheets in order.
func writeWorkbook(t *testing.T, path string, sheets []sheetData) {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
		} else {
			if _, err := f.NewSheet(s.name); err != nil {
				t.Fatalf("new sheet %s: %v", s.name, err)
			}
		}
		for r, row := range s.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			if err := f.SetSheetRow(s.name, cell, &row); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}
}

// drain opens a unit and reads it to the end.
func drain(t *testing.T, u source.Unit) (header []string, rows [][]string) {
	t.Helper()
	r, err := u.Open(context.Background())
	if err != nil {
		t.Fatalf("open %s: %v", u.Label(), err)
	}
	defer r.Close()
	header = r.Header()
	for {
		row, err := r.Next()
		if err == io.EOF {
			return header, rows
		}
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		rows = append(rows, append([]string(nil), row...))
	}
}

// TestUnits_SheetOrder verifies one unit per sheet, in workbook order.
func TestUnits_SheetOrder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.xlsx")
	writeWorkbook(t, path, []sheetData{
		{name: "Jan", rows: [][]any{{"id"}, {"1"}}},
		{name: "Feb", rows: [][]any{{"id"}, {"2"}}},
		{name: "Mar", rows: [][]any{{"id"}, {"3"}}},
	})

	units, err := New(path).Units(context.Background())
	if err != nil {
		t.Fatalf("Units error: %v", err)
	}
	var labels []string
	for _, u := range units {
		labels = append(labels, u.Label())
	}
	if got, want := strings.Join(labels, ","), "Jan,Feb,Mar"; got != want {
		t.Fatalf("sheets = %q, want %q", got, want)
	}
}

func TestUnits_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := New(filepath.Join(t.TempDir(), "gone.xlsx")).Units(context.Background())
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUnits_NotAWorkbook(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "junk.xlsx")
	if err := os.WriteFile(path, []byte("this is not a zip archive"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := New(path).Units(context.Background())
	if !errors.Is(err, source.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

// TestOpen_ReadsSheet verifies header extraction and row padding: the
// spreadsheet row iterator drops trailing empty cells, so short rows must
// come back padded to the header width.
func TestOpen_ReadsSheet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.xlsx")
	writeWorkbook(t, path, []sheetData{{
		name: "Data",
		rows: [][]any{
			{"id", "name", "qty"},
			{"1", "apple", "3"},
			{"2", "pear"}, // qty cell left empty
		},
	}})

	units, err := New(path).Units(context.Background())
	if err != nil {
		t.Fatalf("Units error: %v", err)
	}
	header, rows := drain(t, units[0])

	if got, want := strings.Join(header, ","), "id,name,qty"; got != want {
		t.Fatalf("header = %q, want %q", got, want)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if got, want := strings.Join(rows[1], "|"), "2|pear|"; got != want {
		t.Fatalf("row[1] = %q, want %q", got, want)
	}
}

// TestOpen_SkipsLeadingBlankRows verifies the header is the first non-empty
// row, not literally row 1.
func TestOpen_SkipsLeadingBlankRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.xlsx")
	writeWorkbook(t, path, []sheetData{{
		name: "Padded",
		rows: [][]any{
			{}, // blank padding row above the table
			{"a", "b"},
			{"1", "2"},
		},
	}})

	units, err := New(path).Units(context.Background())
	if err != nil {
		t.Fatalf("Units error: %v", err)
	}
	header, rows := drain(t, units[0])
	if got, want := strings.Join(header, ","), "a,b"; got != want {
		t.Fatalf("header = %q, want %q", got, want)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
}

func TestOpen_EmptySheet(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.xlsx")
	writeWorkbook(t, path, []sheetData{{name: "Empty"}})

	units, err := New(path).Units(context.Background())
	if err != nil {
		t.Fatalf("Units error: %v", err)
	}
	if _, err := units[0].Open(context.Background()); !errors.Is(err, source.ErrNoHeader) {
		t.Fatalf("Open error = %v, want source.ErrNoHeader", err)
	}
}

// TestOpen_ConcurrentSheets verifies that units of the same workbook can be
// read at the same time; each unit holds its own file handle.
func TestOpen_ConcurrentSheets(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "book.xlsx")
	writeWorkbook(t, path, []sheetData{
		{name: "S1", rows: [][]any{{"a"}, {"1"}}},
		{name: "S2", rows: [][]any{{"a"}, {"2"}}},
	})

	units, err := New(path).Units(context.Background())
	if err != nil {
		t.Fatalf("Units error: %v", err)
	}

	r1, err := units[0].Open(context.Background())
	if err != nil {
		t.Fatalf("open S1: %v", err)
	}
	defer r1.Close()
	r2, err := units[1].Open(context.Background())
	if err != nil {
		t.Fatalf("open S2: %v", err)
	}
	defer r2.Close()

	row1, err := r1.Next()
	if err != nil {
		t.Fatalf("S1 next: %v", err)
	}
	row2, err := r2.Next()
	if err != nil {
		t.Fatalf("S2 next: %v", err)
	}
	if row1[0] != "1" || row2[0] != "2" {
		t.Fatalf("rows = %q, %q; want 1, 2", row1[0], row2[0])
	}
}
