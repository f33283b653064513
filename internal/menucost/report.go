package menucost

import (
	"time"

	"github.com/angelmondragon/platecost-backend/pkg/enums"
	"github.com/google/uuid"
)

// Report is the menu cost view returned to clients. Its shape is consumed by
// the UI and must stay stable.
type Report struct {
	MenuID              uuid.UUID      `json:"menu_id"`
	MenuType            enums.MenuType `json:"menu_type"`
	MenuCostPerPaxMinor int64          `json:"menu_cost_per_pax_minor"`
	Currency            string         `json:"currency"`
	CostMode            enums.CostMode `json:"cost_mode"`
	Groups              []GroupCost    `json:"groups"`
	Items               []ItemCost     `json:"items"`
	MissingDishCosts    int            `json:"missing_dish_costs"`
	Totals              Totals         `json:"totals"`
	SnapshotID          *uuid.UUID     `json:"snapshot_id,omitempty"`
	LockedAt            *time.Time     `json:"locked_at,omitempty"`
}

// MenuInput is the menu-level data a report is built from.
type MenuInput struct {
	ID              uuid.UUID
	Currency        string
	CostMode        enums.CostMode
	DefaultWastePct *float64
	Kind            MenuKind
}

// BuildReport attaches the menu's totals to an aggregation.
func BuildReport(menu MenuInput, agg Aggregation, pax *int) (Report, error) {
	totals, err := menu.Kind.ComputeTotals(pax, agg)
	if err != nil {
		return Report{}, err
	}
	return Report{
		MenuID:              menu.ID,
		MenuType:            menu.Kind.Type(),
		MenuCostPerPaxMinor: agg.MenuCostPerPaxMinor,
		Currency:            menu.Currency,
		CostMode:            menu.CostMode,
		Groups:              agg.Groups,
		Items:               agg.Items,
		MissingDishCosts:    agg.MissingDishCosts,
		Totals:              totals,
	}, nil
}
