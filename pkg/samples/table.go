// Package samples loads the measurement table and picks out the rows that
// belong to an image.
package samples

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/probe-labeler/probe-labeler/pkg/types"
)

var (
	// ErrSheetNotFound is returned when the workbook has no sheet with the requested name.
	ErrSheetNotFound = errors.New("sheet not found")

	// ErrColumnNotFound is returned when a configured column is missing from the header row.
	ErrColumnNotFound = errors.New("column not found")

	// ErrInvalidRow is returned when a non-blank row has an unreadable position.
	ErrInvalidRow = errors.New("invalid row")

	// ErrUnsupportedTable is returned for table files that are neither xlsx nor csv.
	ErrUnsupportedTable = errors.New("unsupported table format")
)

// Columns names the table columns holding the sample ID and stage position
type Columns struct {
	SampleID string
	X        string
	Y        string
}

// DefaultColumns returns the column names used by the probe's export
func DefaultColumns() Columns {
	return Columns{SampleID: "SAMPLE", X: "X_POS", Y: "Y_POS"}
}

// Table is a loaded measurement table. It is read once per run and shared
// read-only between images.
type Table struct {
	Source string
	Rows   []types.SampleRow
}

// LoadTable reads an xlsx workbook sheet or a csv file. The first row must hold
// the column headers.
func LoadTable(path, sheet string, cols Columns) (*Table, error) {
	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		records, err = readWorkbook(path, sheet)
	case ".csv":
		records, err = readCSV(path)
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedTable, path)
	}
	if err != nil {
		return nil, err
	}

	rows, err := parseRecords(records, cols)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", path, err)
	}

	return &Table{Source: path, Rows: rows}, nil
}

func readWorkbook(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(sheet)
	if err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q in %v (have %v)", ErrSheetNotFound, sheet, path, strings.Join(f.GetSheetList(), ", "))
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	var rows [][]string
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read table: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

func parseRecords(records [][]string, cols Columns) ([]types.SampleRow, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: table is empty", ErrColumnNotFound)
	}

	header := map[string]int{}
	for i, name := range records[0] {
		name = strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")
		if _, dup := header[name]; !dup {
			header[name] = i
		}
	}

	idx := [3]int{}
	for i, name := range []string{cols.SampleID, cols.X, cols.Y} {
		col, ok := header[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
		}
		idx[i] = col
	}

	rows := []types.SampleRow{}
	for i, record := range records[1:] {
		rowNum := i + 2
		if isBlank(record) {
			continue
		}

		id := strings.TrimSpace(cell(record, idx[0]))
		x, err := parseNumber(cell(record, idx[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d %v: %v", ErrInvalidRow, rowNum, cols.X, err)
		}
		y, err := parseNumber(cell(record, idx[2]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d %v: %v", ErrInvalidRow, rowNum, cols.Y, err)
		}

		rows = append(rows, types.SampleRow{SampleID: id, X: x, Y: y, Row: rowNum})
	}
	return rows, nil
}

func cell(record []string, i int) string {
	if i < len(record) {
		return record[i]
	}
	return ""
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}
