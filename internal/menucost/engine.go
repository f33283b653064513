package menucost

import (
	"math"
	"sort"

	"github.com/angelmondragon/platecost-backend/pkg/money"
	"github.com/google/uuid"
)

// GroupInput is a menu group with its default overrides.
type GroupInput struct {
	ID        uuid.UUID
	Name      string
	SortOrder int
	UptakePct *float64
	Portion   *float64
	WastePct  *float64
}

// ItemInput is a menu item joined with its dish's usable per-serving cost.
type ItemInput struct {
	ID                      uuid.UUID
	GroupID                 uuid.UUID
	DishID                  uuid.UUID
	SortOrder               int
	UptakePct               *float64
	Portion                 *float64
	WastePct                *float64
	SellingPriceMinor       *int64
	DishCostPerServingMinor *int64
}

// SnapshotItem is the frozen view of one item taken when the menu was locked.
type SnapshotItem struct {
	MenuItemID              uuid.UUID
	MenuGroupID             uuid.UUID
	DishID                  uuid.UUID
	UptakePct               float64
	Portion                 float64
	WastePct                float64
	DishCostPerServingMinor int64
	ItemCostPerPaxMinor     int64
	SellingPriceMinor       *int64
}

// GroupCost is a group line of the menu report.
type GroupCost struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	CostPerPaxMinor int64     `json:"cost_per_pax_minor"`
}

// ItemSources records which level each effective value came from.
type ItemSources struct {
	Uptake  Source `json:"uptake"`
	Portion Source `json:"portion"`
	Waste   Source `json:"waste"`
}

// ItemCost is an item line of the menu report.
type ItemCost struct {
	ID                      uuid.UUID    `json:"id"`
	MenuGroupID             uuid.UUID    `json:"menu_group_id"`
	DishID                  uuid.UUID    `json:"dish_id"`
	EffectiveUptakePct      float64      `json:"effective_uptake_pct"`
	EffectivePortion        float64      `json:"effective_portion"`
	EffectiveWastePct       float64      `json:"effective_waste_pct"`
	DishCostPerServingMinor *int64       `json:"dish_cost_per_serving_minor"`
	ItemCostPerPaxMinor     int64        `json:"item_cost_per_pax_minor"`
	SellingPriceMinor       *int64       `json:"selling_price_minor"`
	Sources                 *ItemSources `json:"sources,omitempty"`
}

// Aggregation is the per-pax rollup of a menu, in display order.
type Aggregation struct {
	MenuCostPerPaxMinor int64
	Groups              []GroupCost
	Items               []ItemCost
	MissingDishCosts    int
}

// ItemCostPerPax returns round(dishCost * uptake * portion * (1 + waste)).
func ItemCostPerPax(dishCostMinor int64, uptake, portion, waste float64) int64 {
	return money.MulRound(dishCostMinor, uptake, portion, money.OnePlus(waste))
}

type orderedItem struct {
	cost      ItemCost
	sortOrder int
}

// AggregateLive recomputes every item from current dish costs. Items whose
// dish has no usable cost contribute zero and are counted as missing.
func AggregateLive(defaultWastePct *float64, groups []GroupInput, items []ItemInput) Aggregation {
	groupByID := make(map[uuid.UUID]GroupInput, len(groups))
	for _, g := range groups {
		groupByID[g.ID] = g
	}

	missing := 0
	ordered := make([]orderedItem, 0, len(items))
	for _, it := range items {
		g := groupByID[it.GroupID]
		uptake := ResolveUptake(it.UptakePct, g.UptakePct)
		portion := ResolvePortion(it.Portion, g.Portion)
		waste := ResolveWaste(it.WastePct, g.WastePct, defaultWastePct)

		var dishCost int64
		if it.DishCostPerServingMinor == nil {
			missing++
		} else {
			dishCost = *it.DishCostPerServingMinor
		}

		ordered = append(ordered, orderedItem{
			sortOrder: it.SortOrder,
			cost: ItemCost{
				ID:                      it.ID,
				MenuGroupID:             it.GroupID,
				DishID:                  it.DishID,
				EffectiveUptakePct:      uptake.Value,
				EffectivePortion:        portion.Value,
				EffectiveWastePct:       waste.Value,
				DishCostPerServingMinor: copyInt64(it.DishCostPerServingMinor),
				ItemCostPerPaxMinor:     ItemCostPerPax(dishCost, uptake.Value, portion.Value, waste.Value),
				SellingPriceMinor:       copyInt64(it.SellingPriceMinor),
				Sources: &ItemSources{
					Uptake:  uptake.Source,
					Portion: portion.Source,
					Waste:   waste.Source,
				},
			},
		})
	}

	agg := rollup(groups, ordered)
	agg.MissingDishCosts = missing
	return agg
}

// AggregateLocked reads effective values and costs from the snapshot instead
// of current data. Current items only contribute their display order.
func AggregateLocked(groups []GroupInput, items []ItemInput, snapshot []SnapshotItem) Aggregation {
	sortByItem := make(map[uuid.UUID]int, len(items))
	for _, it := range items {
		sortByItem[it.ID] = it.SortOrder
	}

	ordered := make([]orderedItem, 0, len(snapshot))
	for _, snap := range snapshot {
		sortOrder, ok := sortByItem[snap.MenuItemID]
		if !ok {
			sortOrder = math.MaxInt32
		}
		dishCost := snap.DishCostPerServingMinor
		ordered = append(ordered, orderedItem{
			sortOrder: sortOrder,
			cost: ItemCost{
				ID:                      snap.MenuItemID,
				MenuGroupID:             snap.MenuGroupID,
				DishID:                  snap.DishID,
				EffectiveUptakePct:      snap.UptakePct,
				EffectivePortion:        snap.Portion,
				EffectiveWastePct:       snap.WastePct,
				DishCostPerServingMinor: &dishCost,
				ItemCostPerPaxMinor:     snap.ItemCostPerPaxMinor,
				SellingPriceMinor:       copyInt64(snap.SellingPriceMinor),
			},
		})
	}
	return rollup(groups, ordered)
}

// rollup orders groups by sort_order then id, items within a group by
// sort_order then id, and sums item costs into groups and the menu total.
func rollup(groups []GroupInput, items []orderedItem) Aggregation {
	sortedGroups := append([]GroupInput(nil), groups...)
	sort.SliceStable(sortedGroups, func(i, j int) bool {
		if sortedGroups[i].SortOrder != sortedGroups[j].SortOrder {
			return sortedGroups[i].SortOrder < sortedGroups[j].SortOrder
		}
		return sortedGroups[i].ID.String() < sortedGroups[j].ID.String()
	})

	sortedItems := append([]orderedItem(nil), items...)
	sort.SliceStable(sortedItems, func(i, j int) bool {
		if sortedItems[i].sortOrder != sortedItems[j].sortOrder {
			return sortedItems[i].sortOrder < sortedItems[j].sortOrder
		}
		return sortedItems[i].cost.ID.String() < sortedItems[j].cost.ID.String()
	})

	agg := Aggregation{
		Groups: make([]GroupCost, 0, len(sortedGroups)),
		Items:  make([]ItemCost, 0, len(sortedItems)),
	}
	index := make(map[uuid.UUID]int, len(sortedGroups))
	for _, g := range sortedGroups {
		index[g.ID] = len(agg.Groups)
		agg.Groups = append(agg.Groups, GroupCost{ID: g.ID, Name: g.Name})
	}

	byGroup := make(map[uuid.UUID][]ItemCost, len(agg.Groups))
	for _, it := range sortedItems {
		groupID := it.cost.MenuGroupID
		if _, ok := index[groupID]; !ok {
			index[groupID] = len(agg.Groups)
			agg.Groups = append(agg.Groups, GroupCost{ID: groupID})
		}
		byGroup[groupID] = append(byGroup[groupID], it.cost)
	}

	for i := range agg.Groups {
		for _, it := range byGroup[agg.Groups[i].ID] {
			agg.Groups[i].CostPerPaxMinor += it.ItemCostPerPaxMinor
			agg.Items = append(agg.Items, it)
		}
		agg.MenuCostPerPaxMinor += agg.Groups[i].CostPerPaxMinor
	}
	return agg
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
