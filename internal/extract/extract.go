// Package extract reads procurement spreadsheets into raw records.
//
// Only the first worksheet is read. Its first row is the header; every
// following non-blank row becomes one record keyed by header label. Empty
// cells are omitted, numeric cells become float64 and boolean cells bool.
package extract

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vvka-141/comprasetl/pkg/comprasetl"
	"github.com/xuri/excelize/v2"
)

// ReadFile opens the workbook at path and returns the records of its first sheet.
func ReadFile(path string) ([]comprasetl.RawRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	records, err := readFirstSheet(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Read is ReadFile for an already open stream.
func Read(r io.Reader) ([]comprasetl.RawRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	return readFirstSheet(f)
}

func readFirstSheet(f *excelize.File) ([]comprasetl.RawRecord, error) {
	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return []comprasetl.RawRecord{}, nil
	}

	headers := headerLabels(rows[0])
	records := make([]comprasetl.RawRecord, 0, len(rows)-1)
	for r, row := range rows[1:] {
		rec := make(comprasetl.RawRecord, len(row))
		for c, raw := range row {
			if c >= len(headers) || headers[c] == "" || raw == "" {
				continue
			}
			value, err := cellValue(f, sheet, c+1, r+2, raw)
			if err != nil {
				return nil, err
			}
			rec[headers[c]] = value
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records, nil
}

// headerLabels trims the header row; a repeated label gets a "_1", "_2"...
// suffix so no column is silently dropped.
func headerLabels(row []string) []string {
	seen := make(map[string]int, len(row))
	labels := make([]string, len(row))
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if n, dup := seen[h]; dup {
			seen[h] = n + 1
			labels[i] = fmt.Sprintf("%s_%d", h, n+1)
			continue
		}
		seen[h] = 0
		labels[i] = h
	}
	return labels
}

func cellValue(f *excelize.File, sheet string, col, row int, raw string) (any, error) {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return nil, err
	}
	typ, err := f.GetCellType(sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("failed to read cell %s: %w", cell, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeUnset, excelize.CellTypeNumber, excelize.CellTypeDate:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return n, nil
		}
	}
	return raw, nil
}
