package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported price list format")

// Read parses a price list, choosing the decoder from the file extension.
func Read(name string, r io.Reader) (*Catalog, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return ReadCSV(r)
	case ".xlsx":
		return ReadXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

func ReadCSV(r io.Reader) (*Catalog, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrMissingColumns
	}
	return FromTable(records[0], records[1:])
}

// ReadXLSX reads the first sheet of a workbook.
func ReadXLSX(r io.Reader) (*Catalog, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrMissingColumns
	}
	// raw values so number formats like "#,##0.00" do not leak into prices
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, ErrMissingColumns
	}
	return FromTable(rows[0], rows[1:])
}

// FromTable builds a catalog from a header row and data rows. Column names
// are matched case-insensitively after trimming.
func FromTable(header []string, rows [][]string) (*Catalog, error) {
	itemCol, priceCol := -1, -1
	for i, h := range header {
		switch Normalize(h) {
		case "item":
			if itemCol < 0 {
				itemCol = i
			}
		case "price":
			if priceCol < 0 {
				priceCol = i
			}
		}
	}
	if itemCol < 0 || priceCol < 0 {
		return nil, ErrMissingColumns
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		name := cell(row, itemCol)
		if Normalize(name) == "" {
			continue
		}
		raw := strings.TrimSpace(cell(row, priceCol))
		price, err := decimal.NewFromString(raw)
		if err != nil {
			// row numbers are 1-based and count the header
			return nil, fmt.Errorf("row %d: invalid price %q for %q", i+2, raw, name)
		}
		if price.IsNegative() {
			return nil, fmt.Errorf("row %d: negative price for %q", i+2, name)
		}
		entries = append(entries, Entry{Name: name, Price: price})
	}
	return New(entries)
}

func cell(row []string, idx int) string {
	if idx < len(row) {
		return row[idx]
	}
	return ""
}
