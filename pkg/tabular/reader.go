// Package tabular loads raw exports (CSV or Excel) into an in-memory models.Dataset.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/enrollment-pipeline/internal/models"
)

const utf8BOM = "\ufeff"

// ErrEmptyInput is returned when a source has no header row.
var ErrEmptyInput = errors.New("input has no header row")

// ReadFile loads a dataset, choosing the decoder by file extension. sheet is only used for
// Excel workbooks; empty selects the first sheet.
func ReadFile(path, sheet string) (models.Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return ReadXLSX(path, sheet)
	default:
		f, err := os.Open(path)
		if err != nil {
			return models.Dataset{}, fmt.Errorf("open input %s: %w", path, err)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV(f)
	}
}

// ReadCSV decodes a comma-separated table whose first record is the header.
func ReadCSV(r io.Reader) (models.Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.Dataset{}, ErrEmptyInput
		}
		return models.Dataset{}, fmt.Errorf("read csv header: %w", err)
	}

	rows := make([][]string, 0, 64)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Dataset{}, fmt.Errorf("read csv row %d: %w", len(rows)+2, err)
		}
		rows = append(rows, record)
	}

	return models.Dataset{Headers: normalizeHeaders(header), Rows: rows}, nil
}

// ReadXLSX decodes the given sheet of an Excel workbook.
func ReadXLSX(path, sheet string) (models.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("open workbook %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return models.Dataset{}, ErrEmptyInput
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return models.Dataset{}, ErrEmptyInput
	}

	body := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		body = append(body, row)
	}
	return models.Dataset{Headers: normalizeHeaders(rows[0]), Rows: body}, nil
}

func normalizeHeaders(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
