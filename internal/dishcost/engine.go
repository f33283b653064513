package dishcost

import (
	"time"

	"github.com/angelmondragon/platecost-backend/internal/uom"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	"github.com/angelmondragon/platecost-backend/pkg/money"
	"github.com/google/uuid"
)

// CostRef is the latest known cost of an ingredient.
type CostRef struct {
	ID                int64     `json:"id"`
	CostPerBaseX10000 int64     `json:"cost_per_base_x10000"`
	Currency          string    `json:"currency"`
	EffectiveAt       time.Time `json:"effective_at"`
}

// LineInput is a dish line joined with everything needed to cost it.
type LineInput struct {
	LineID          uuid.UUID
	IngredientID    uuid.UUID
	IngredientName  string
	IngredientSetID uuid.UUID
	BaseUomID       *uuid.UUID
	Quantity        float64
	Unit            uom.Unit
	Cost            *CostRef
}

// LineResult is one row of a dish cost breakdown.
type LineResult struct {
	LineID         uuid.UUID            `json:"line_id"`
	IngredientID   uuid.UUID            `json:"ingredient_id"`
	IngredientName string               `json:"ingredient_name"`
	Quantity       float64              `json:"quantity"`
	UomID          uuid.UUID            `json:"uom_id"`
	UomSymbol      string               `json:"uom_symbol"`
	QtyInBase      *float64             `json:"qty_in_base"`
	BaseUomID      *uuid.UUID           `json:"base_uom_id"`
	Cost           *CostRef             `json:"cost"`
	LineCostMinor  *int64               `json:"line_cost_minor"`
	Status         enums.DishLineStatus `json:"status"`
}

// Summary rolls a breakdown up to dish level.
type Summary struct {
	TotalCostMinor        int64                `json:"total_cost_minor"`
	CostPerServingMinor   *int64               `json:"cost_per_serving_minor"`
	Status                enums.DishCostStatus `json:"status"`
	UnknownCostLinesCount int                  `json:"unknown_cost_lines_count"`
	InvalidUnitsCount     int                  `json:"invalid_units_count"`
	LinesCount            int                  `json:"lines_count"`
}

// Breakdown costs each line. Lines whose unit is outside the ingredient's set
// are invalid and never costed; lines without a known cost have a nil cost.
func Breakdown(lines []LineInput) []LineResult {
	results := make([]LineResult, 0, len(lines))
	for _, in := range lines {
		res := LineResult{
			LineID:         in.LineID,
			IngredientID:   in.IngredientID,
			IngredientName: in.IngredientName,
			Quantity:       in.Quantity,
			UomID:          in.Unit.ID,
			UomSymbol:      in.Unit.Symbol,
			BaseUomID:      in.BaseUomID,
		}

		qtyInBase, err := uom.ToBaseExact(in.Quantity, in.Unit, in.IngredientSetID)
		if err != nil {
			res.Status = enums.DishLineStatusInvalidUnits
			results = append(results, res)
			continue
		}
		qty, _ := qtyInBase.Float64()
		res.QtyInBase = &qty

		if in.Cost == nil {
			res.Status = enums.DishLineStatusMissingCost
			results = append(results, res)
			continue
		}

		cost := *in.Cost
		lineCost := money.LineCost(qtyInBase, cost.CostPerBaseX10000)
		res.Cost = &cost
		res.LineCostMinor = &lineCost
		res.Status = enums.DishLineStatusOK
		results = append(results, res)
	}
	return results
}

// Summarize totals the costed lines of a breakdown. Invalid and unknown lines
// are excluded from the total rather than counted as zero.
func Summarize(yieldServings int, results []LineResult) Summary {
	summary := Summary{LinesCount: len(results)}
	for _, res := range results {
		switch res.Status {
		case enums.DishLineStatusInvalidUnits:
			summary.InvalidUnitsCount++
		case enums.DishLineStatusMissingCost:
			summary.UnknownCostLinesCount++
		default:
			if res.LineCostMinor != nil {
				summary.TotalCostMinor += *res.LineCostMinor
			}
		}
	}

	switch {
	case summary.InvalidUnitsCount > 0:
		summary.Status = enums.DishCostStatusInvalidUnits
	case summary.UnknownCostLinesCount > 0:
		summary.Status = enums.DishCostStatusIncompleteMissingCost
	default:
		summary.Status = enums.DishCostStatusComplete
	}

	if perServing, err := money.DivRound(summary.TotalCostMinor, int64(yieldServings)); err == nil {
		summary.CostPerServingMinor = &perServing
	}
	return summary
}

// MenuCostPerServing is the per-serving cost a menu may rely on: only complete
// dishes with at least one line have one.
func (s Summary) MenuCostPerServing() *int64 {
	if s.Status != enums.DishCostStatusComplete || s.LinesCount == 0 || s.CostPerServingMinor == nil {
		return nil
	}
	v := *s.CostPerServingMinor
	return &v
}
