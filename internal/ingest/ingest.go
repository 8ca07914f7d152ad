package ingest

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

	"github.com/invoice-analysis/backend/internal/models"
)

var (
	ErrEmptyInput        = errors.New("no header row")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrDuplicateColumn   = errors.New("duplicate column")
)

// numericColumns are parsed as float64 when the cell looks like a number.
var numericColumns = map[string]bool{
	models.ColAmount:    true,
	models.ColDelayDays: true,
}

// ReadFile picks the reader from the file extension.
func ReadFile(path string) (models.RawTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open file: %w", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, "")
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}

func ReadCSV(r io.Reader) (models.RawTable, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+1, err)
		}
		rows = append(rows, rec)
	}
	return fromRows(header, rows)
}

// ReadXLSX reads one sheet of a workbook. An empty sheet name picks the first sheet.
func ReadXLSX(path, sheet string) (models.RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, ErrEmptyInput
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}
	return fromRows(rows[0], rows[1:])
}

func fromRows(header []string, rows [][]string) (models.RawTable, error) {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		names[i] = normalizeHeader(h)
		if j, ok := seen[names[i]]; ok {
			return nil, fmt.Errorf("%w: %q in columns %d and %d", ErrDuplicateColumn, names[i], j+1, i+1)
		}
		seen[names[i]] = i
	}

	table := make(models.RawTable, len(names))
	for _, n := range names {
		table[n] = make([]any, 0, len(rows))
	}
	for _, rec := range rows {
		for i, n := range names {
			var cell string
			if i < len(rec) {
				cell = rec[i]
			}
			table[n] = append(table[n], convertCell(n, cell))
		}
	}
	return table, nil
}

func convertCell(column, cell string) any {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil
	}
	if numericColumns[column] {
		if f, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64); err == nil {
			return f
		}
	}
	return cell
}

func normalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, " ", "_")
}
