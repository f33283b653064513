package costimport

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Canonical column names of a cost import file.
const (
	ColumnIngredientName = "ingredient_name"
	ColumnPurchaseQty    = "purchase_qty"
	ColumnPurchaseUom    = "purchase_uom"
	ColumnTotalCost      = "total_cost"
)

var requiredColumns = []string{
	ColumnIngredientName,
	ColumnPurchaseQty,
	ColumnPurchaseUom,
	ColumnTotalCost,
}

var headerSynonyms = map[string]string{
	"ingredient":    ColumnIngredientName,
	"name":          ColumnIngredientName,
	"quantity":      ColumnPurchaseQty,
	"qty":           ColumnPurchaseQty,
	"uom":           ColumnPurchaseUom,
	"unit":          ColumnPurchaseUom,
	"cost":          ColumnTotalCost,
	"purchase_cost": ColumnTotalCost,
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeHeader lower-cases a header cell, turns runs of non-alphanumerics
// into a single underscore and applies the known synonyms.
func NormalizeHeader(raw string) string {
	key := strings.Trim(nonAlphanumeric.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), "_"), "_")
	if canonical, ok := headerSynonyms[key]; ok {
		return canonical
	}
	return key
}

// MissingColumnsError lists the required columns absent from a header row.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}

// MapHeader returns the position of every required column. The first
// occurrence of a column wins when a file repeats it.
func MapHeader(header []string) (map[string]int, error) {
	positions := make(map[string]int, len(requiredColumns))
	for i, cell := range header {
		key := NormalizeHeader(cell)
		if _, seen := positions[key]; !seen {
			positions[key] = i
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := positions[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Columns: missing}
	}

	out := make(map[string]int, len(requiredColumns))
	for _, col := range requiredColumns {
		out[col] = positions[col]
	}
	return out, nil
}
