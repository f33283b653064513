package costimport

import (
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	"github.com/angelmondragon/platecost-backend/pkg/money"
	"github.com/google/uuid"
)

// ClassifiedRow is a raw row together with exactly one parse status and, when
// matched, the values a confirm applies.
type ClassifiedRow struct {
	RawRow
	Status                    enums.RowParseStatus `json:"parse_status"`
	IngredientID              *uuid.UUID           `json:"matched_ingredient_id"`
	UomID                     *uuid.UUID           `json:"matched_uom_id"`
	TotalCostMinor            *int64               `json:"total_cost_minor"`
	ComputedCostPerBaseX10000 *int64               `json:"computed_cost_per_base_x10000"`
}

// Summary counts rows per classification.
type Summary struct {
	Total             int `json:"total"`
	MatchedOK         int `json:"matched_ok"`
	MissingIngredient int `json:"missing_ingredient"`
	InvalidUom        int `json:"invalid_uom"`
	InvalidNumber     int `json:"invalid_number"`
}

// SummaryDelta is the contribution of one row to a Summary.
type SummaryDelta Summary

// Add folds a delta into the summary.
func (s Summary) Add(d SummaryDelta) Summary {
	s.Total += d.Total
	s.MatchedOK += d.MatchedOK
	s.MissingIngredient += d.MissingIngredient
	s.InvalidUom += d.InvalidUom
	s.InvalidNumber += d.InvalidNumber
	return s
}

// Count returns the number of rows with status.
func (s Summary) Count(status enums.RowParseStatus) int {
	switch status {
	case enums.RowParseStatusMatchedOK:
		return s.MatchedOK
	case enums.RowParseStatusMissingIngredient:
		return s.MissingIngredient
	case enums.RowParseStatusInvalidUom:
		return s.InvalidUom
	case enums.RowParseStatusInvalidNumber:
		return s.InvalidNumber
	default:
		return 0
	}
}

func deltaFor(status enums.RowParseStatus) SummaryDelta {
	d := SummaryDelta{Total: 1}
	switch status {
	case enums.RowParseStatusMatchedOK:
		d.MatchedOK = 1
	case enums.RowParseStatusMissingIngredient:
		d.MissingIngredient = 1
	case enums.RowParseStatusInvalidUom:
		d.InvalidUom = 1
	case enums.RowParseStatusInvalidNumber:
		d.InvalidNumber = 1
	}
	return d
}

// Classify assigns a single status to row. The checks run in a fixed order
// and the first failing one wins: unknown ingredient, unparsable or
// non-positive numbers, a unit outside the ingredient's set, and finally a
// non-positive base quantity.
func Classify(reg *Registry, row RawRow) (ClassifiedRow, SummaryDelta) {
	out := ClassifiedRow{RawRow: row}
	finish := func(status enums.RowParseStatus) (ClassifiedRow, SummaryDelta) {
		out.Status = status
		return out, deltaFor(status)
	}

	ingredient, ok := reg.Ingredient(row.IngredientName)
	if !ok {
		return finish(enums.RowParseStatusMissingIngredient)
	}
	ingredientID := ingredient.ID
	out.IngredientID = &ingredientID

	qty, err := money.ParseQuantity(row.PurchaseQty, money.MaxQuantityFractionDigits)
	if err != nil || !qty.IsPositive() {
		return finish(enums.RowParseStatusInvalidNumber)
	}
	totalMinor, err := money.ParseMinor(row.TotalCost)
	if err != nil || totalMinor <= 0 {
		return finish(enums.RowParseStatusInvalidNumber)
	}
	out.TotalCostMinor = &totalMinor

	unit, ok := reg.Unit(ingredient.UomSetID, row.PurchaseUom)
	if !ok {
		return finish(enums.RowParseStatusInvalidUom)
	}
	unitID := unit.ID
	out.UomID = &unitID

	baseQty := qty.Mul(money.Factor(unit.FactorToBase))
	perBase, err := money.CostPerBaseX10000(totalMinor, baseQty)
	if err != nil {
		return finish(enums.RowParseStatusInvalidNumber)
	}
	out.ComputedCostPerBaseX10000 = &perBase
	return finish(enums.RowParseStatusMatchedOK)
}

// ClassifyAll folds Classify over rows. It has no side effects, so classifying
// the same rows against the same registry always yields the same result.
func ClassifyAll(reg *Registry, rows []RawRow) ([]ClassifiedRow, Summary) {
	out := make([]ClassifiedRow, 0, len(rows))
	var summary Summary
	for _, row := range rows {
		classified, delta := Classify(reg, row)
		out = append(out, classified)
		summary = summary.Add(delta)
	}
	return out, summary
}
