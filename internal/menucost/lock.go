package menucost

import (
	"fmt"
	"sort"
	"time"

	"github.com/angelmondragon/platecost-backend/internal/dishcost"
	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	"github.com/google/uuid"
)

// Reasons reported by CanLock.
const (
	ReasonMenuLocked       = "menu_locked"
	ReasonNoGroups         = "no_groups"
	ReasonNoItems          = "no_items"
	ReasonMissingDishCosts = "missing_dish_costs"
)

// LockCheck explains whether a menu can be locked right now.
type LockCheck struct {
	CanLock          bool     `json:"can_lock"`
	Reasons          []string `json:"reasons"`
	GroupsCount      int      `json:"groups_count"`
	ItemsCount       int      `json:"items_count"`
	MissingDishCosts int      `json:"missing_dish_costs"`
}

// CanLock requires a live menu with at least one group and one item, and a
// usable dish cost for every item.
func CanLock(mode enums.CostMode, groups []GroupInput, items []ItemInput) LockCheck {
	check := LockCheck{
		Reasons:     []string{},
		GroupsCount: len(groups),
		ItemsCount:  len(items),
	}
	for _, it := range items {
		if it.DishCostPerServingMinor == nil {
			check.MissingDishCosts++
		}
	}

	if mode == enums.CostModeLocked {
		check.Reasons = append(check.Reasons, ReasonMenuLocked)
	}
	if check.GroupsCount == 0 {
		check.Reasons = append(check.Reasons, ReasonNoGroups)
	}
	if check.ItemsCount == 0 {
		check.Reasons = append(check.Reasons, ReasonNoItems)
	}
	if check.MissingDishCosts > 0 {
		check.Reasons = append(check.Reasons, ReasonMissingDishCosts)
	}
	check.CanLock = len(check.Reasons) == 0
	return check
}

// LockPlan is the full set of snapshot rows written by one lock.
type LockPlan struct {
	Snapshot    models.MenuCostSnapshot
	Items       []models.MenuItemCostSnapshot
	Ingredients []models.MenuIngredientCostSnapshot
}

// PlanLock freezes a live aggregation into snapshot rows: one header, one row
// per item and one row per distinct ingredient reachable through the menu's
// dishes.
func PlanLock(orgID, actorID uuid.UUID, menu MenuInput, agg Aggregation, dishes map[uuid.UUID]*dishcost.Result, now time.Time) (*LockPlan, error) {
	snapshotID := uuid.New()
	plan := &LockPlan{
		Snapshot: models.MenuCostSnapshot{
			ID:                  snapshotID,
			OrgID:               orgID,
			MenuID:              menu.ID,
			MenuCostPerPaxMinor: agg.MenuCostPerPaxMinor,
			Currency:            menu.Currency,
			CreatedBy:           actorID,
			CreatedAt:           now,
		},
		Items: make([]models.MenuItemCostSnapshot, 0, len(agg.Items)),
	}

	reachable := make(map[uuid.UUID]dishcost.LineResult)
	for _, it := range agg.Items {
		if it.DishCostPerServingMinor == nil {
			return nil, fmt.Errorf("item %s has no dish cost", it.ID)
		}
		plan.Items = append(plan.Items, models.MenuItemCostSnapshot{
			OrgID:                   orgID,
			MenuCostSnapshotID:      snapshotID,
			MenuID:                  menu.ID,
			MenuItemID:              it.ID,
			MenuGroupID:             it.MenuGroupID,
			DishID:                  it.DishID,
			EffectiveUptakePct:      it.EffectiveUptakePct,
			EffectivePortion:        it.EffectivePortion,
			EffectiveWastePct:       it.EffectiveWastePct,
			DishCostPerServingMinor: *it.DishCostPerServingMinor,
			ItemCostPerPaxMinor:     it.ItemCostPerPaxMinor,
			SellingPriceMinor:       copyInt64(it.SellingPriceMinor),
			CreatedAt:               now,
		})

		if result, ok := dishes[it.DishID]; ok {
			for _, line := range result.Breakdown {
				if _, seen := reachable[line.IngredientID]; !seen {
					reachable[line.IngredientID] = line
				}
			}
		}
	}

	ingredientIDs := make([]uuid.UUID, 0, len(reachable))
	for id := range reachable {
		ingredientIDs = append(ingredientIDs, id)
	}
	sort.Slice(ingredientIDs, func(i, j int) bool {
		return ingredientIDs[i].String() < ingredientIDs[j].String()
	})

	plan.Ingredients = make([]models.MenuIngredientCostSnapshot, 0, len(ingredientIDs))
	for _, id := range ingredientIDs {
		line := reachable[id]
		row := models.MenuIngredientCostSnapshot{
			OrgID:              orgID,
			MenuCostSnapshotID: snapshotID,
			MenuID:             menu.ID,
			IngredientID:       id,
			BaseUomID:          line.BaseUomID,
			CreatedAt:          now,
		}
		if line.Cost != nil {
			costID := line.Cost.ID
			value := line.Cost.CostPerBaseX10000
			currency := line.Cost.Currency
			row.IngredientCostID = &costID
			row.CostPerBaseX10000 = &value
			row.Currency = &currency
		}
		plan.Ingredients = append(plan.Ingredients, row)
	}
	return plan, nil
}

// SnapshotItemsFrom maps persisted item snapshots to engine inputs.
func SnapshotItemsFrom(rows []models.MenuItemCostSnapshot) []SnapshotItem {
	out := make([]SnapshotItem, 0, len(rows))
	for _, row := range rows {
		out = append(out, SnapshotItem{
			MenuItemID:              row.MenuItemID,
			MenuGroupID:             row.MenuGroupID,
			DishID:                  row.DishID,
			UptakePct:               row.EffectiveUptakePct,
			Portion:                 row.EffectivePortion,
			WastePct:                row.EffectiveWastePct,
			DishCostPerServingMinor: row.DishCostPerServingMinor,
			ItemCostPerPaxMinor:     row.ItemCostPerPaxMinor,
			SellingPriceMinor:       row.SellingPriceMinor,
		})
	}
	return out
}
