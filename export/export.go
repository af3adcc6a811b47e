// Package export renders grouped scans as a spreadsheet or CSV download and
// reads such files back.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"shiftscan/model"
	"shiftscan/parsers"
	"shiftscan/shift"

	"github.com/xuri/excelize/v2"
)

const (
	SheetName = "Scans"
	// TimeLayout keeps milliseconds and the zone offset so a file read back
	// yields the exact stored instant.
	TimeLayout = "2006-01-02 15:04:05.000 -07:00"

	FormatXLSX = "xlsx"
	FormatCSV  = "csv"
)

// Header is the first row of every export.
var Header = []string{"code", "path", "timestamp", "shift"}

// Row is one exported scan.
type Row struct {
	Code      string
	Path      string
	Timestamp time.Time
	Shift     shift.Shift
}

func (r Row) cells() []string {
	return []string{r.Code, r.Path, r.Timestamp.Format(TimeLayout), r.Shift.Label()}
}

// Rows flattens g in report order: morning, evening, night, newest first within each.
func Rows(g model.GroupedScans) []Row {
	rows := make([]Row, 0, g.Len())
	for _, s := range shift.All {
		for _, rec := range *g.Bucket(s) {
			rows = append(rows, Row{Code: rec.Code, Path: rec.Path, Timestamp: rec.Timestamp, Shift: s})
		}
	}
	return rows
}

// Filename is the download name for an export made on day.
func Filename(format string, day time.Time) string {
	return fmt.Sprintf("scanned-items-%s.%s", day.Format("2006-01-02"), format)
}

// WriteXLSX writes g as a single-sheet workbook.
func WriteXLSX(w io.Writer, g model.GroupedScans) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to open sheet writer: %w", err)
	}
	if err := sw.SetColWidth(1, 4, 24); err != nil {
		return err
	}

	writeRow := func(n int, cells []string) error {
		values := make([]interface{}, len(cells))
		for i, c := range cells {
			values[i] = c
		}
		axis, err := excelize.CoordinatesToCellName(1, n)
		if err != nil {
			return err
		}
		return sw.SetRow(axis, values)
	}

	if err := writeRow(1, Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range Rows(g) {
		if err := writeRow(i+2, row.cells()); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush sheet: %w", err)
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// WriteCSV writes g as UTF-8 CSV with a BOM so spreadsheet apps detect the encoding.
func WriteCSV(w io.Writer, g model.GroupedScans) error {
	var buf bytes.Buffer
	buf.Write([]byte{0xEF, 0xBB, 0xBF})

	cw := csv.NewWriter(&buf)
	cw.UseCRLF = true
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, row := range Rows(g) {
		if err := cw.Write(row.cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write csv: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadXLSX parses a workbook produced by WriteXLSX.
func ReadXLSX(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	records, err := f.GetRows(SheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", SheetName, err)
	}
	return parseRecords(records)
}

// ReadCSV parses a file produced by WriteCSV.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(parsers.SkipBOM(r))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return parseRecords(records)
}

func parseRecords(records [][]string) ([]Row, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("export file is empty")
	}
	if !strings.EqualFold(strings.Join(records[0], ","), strings.Join(Header, ",")) {
		return nil, fmt.Errorf("unexpected header %v", records[0])
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		// excelize drops trailing empty cells
		for len(rec) < len(Header) {
			rec = append(rec, "")
		}
		ts, err := time.Parse(TimeLayout, rec[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid timestamp %q: %w", i+1, rec[2], err)
		}
		rows = append(rows, Row{Code: rec[0], Path: rec[1], Timestamp: ts, Shift: shift.Of(ts)})
	}
	return rows, nil
}
