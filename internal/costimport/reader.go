package costimport

import (
	"encoding/csv"
	stdErrors "errors"
	"fmt"
	"io"
	"strings"
)

// ErrEmptyFile is returned when the input has no header row.
var ErrEmptyFile = stdErrors.New("cost import file is empty")

// RawRow holds the free-text fields of one data row. RowNumber is the line
// the row starts on, counting the header as line 1.
type RawRow struct {
	RowNumber      int    `json:"row_number"`
	IngredientName string `json:"ingredient_name"`
	PurchaseQty    string `json:"purchase_qty"`
	PurchaseUom    string `json:"purchase_uom"`
	TotalCost      string `json:"total_cost"`
}

// ReadRows parses a CSV stream into raw rows. Rows whose cells are all blank
// are skipped and never numbered into the result.
func ReadRows(r io.Reader) ([]RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if stdErrors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	columns, err := MapHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []RawRow
	for {
		record, err := reader.Read()
		if stdErrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if blank(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, RawRow{
			RowNumber:      line,
			IngredientName: cell(record, columns[ColumnIngredientName]),
			PurchaseQty:    cell(record, columns[ColumnPurchaseQty]),
			PurchaseUom:    cell(record, columns[ColumnPurchaseUom]),
			TotalCost:      cell(record, columns[ColumnTotalCost]),
		})
	}
	return rows, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
