package enums

// DishCostStatus classifies a dish cost summary.
type DishCostStatus string

const (
	DishCostStatusComplete              DishCostStatus = "complete"
	DishCostStatusIncompleteMissingCost DishCostStatus = "incomplete_missing_ingredient_cost"
	DishCostStatusInvalidUnits          DishCostStatus = "invalid_units"
)

// DishLineStatus classifies a single recipe line in a cost breakdown.
type DishLineStatus string

const (
	DishLineStatusOK           DishLineStatus = "ok"
	DishLineStatusMissingCost  DishLineStatus = "missing_cost"
	DishLineStatusInvalidUnits DishLineStatus = "invalid_units"
)
