package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"shiftscan/model"

	"github.com/xuri/excelize/v2"
)

var mappingHeaders = []string{"code", "path"}

// ParseMappingFile picks the CSV or XLSX parser from the file extension.
func ParseMappingFile(filename string, r io.Reader, charset string) ([]model.MappingEntry, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ParseMappingXLSX(r)
	case ".csv", ".txt":
		return ParseMappingCSV(r, charset)
	}
	return nil, fmt.Errorf("unsupported mapping file type: %s", filename)
}

// ParseMappingCSV reads a CSV with "code" and "path" header columns.
// Rows are returned as found, empty cells included, so that validation can
// reject the whole upload. Completely blank rows are skipped.
func ParseMappingCSV(r io.Reader, charset string) ([]model.MappingEntry, error) {
	decoded, err := Decode(r, charset)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(SkipBOM(decoded))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("CSV file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex, err := getColIndex(header, mappingHeaders)
	if err != nil {
		return nil, err
	}

	var entries []model.MappingEntry
	line := 1
	for {
		line++
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}
		entries = append(entries, model.MappingEntry{
			Code: cell(rec, colIndex["code"]),
			Path: cell(rec, colIndex["path"]),
		})
	}
	return entries, nil
}

// ParseMappingXLSX reads the first sheet of a workbook with "code" and "path" header cells.
func ParseMappingXLSX(r io.Reader) ([]model.MappingEntry, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %s is empty", sheets[0])
	}

	colIndex, err := getColIndex(rows[0], mappingHeaders)
	if err != nil {
		return nil, err
	}

	var entries []model.MappingEntry
	for _, rec := range rows[1:] {
		if blank(rec) {
			continue
		}
		entries = append(entries, model.MappingEntry{
			Code: cell(rec, colIndex["code"]),
			Path: cell(rec, colIndex["path"]),
		})
	}
	return entries, nil
}
