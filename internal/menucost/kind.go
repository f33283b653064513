package menucost

import (
	"fmt"

	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	"github.com/angelmondragon/platecost-backend/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxPax bounds the guest count a report can be scaled to.
const MaxPax = 1_000_000

// MenuKind carries the pricing model of a menu and derives its revenue totals.
// ComputeTotals fails with money.ErrOutOfRange when a total overflows int64.
type MenuKind interface {
	Type() enums.MenuType
	ComputeTotals(pax *int, agg Aggregation) (Totals, error)
}

// Totals is implemented by PackageTotals and PerItemTotals.
type Totals interface {
	MenuType() enums.MenuType
}

// PackageKind prices a menu per guest between a minimum and maximum price.
type PackageKind struct {
	PriceMinMinor *int64
	PriceMaxMinor *int64
	MinPax        *int
}

// PerItemKind prices each item individually.
type PerItemKind struct{}

// KindOf builds the tagged kind of a persisted menu.
func KindOf(menu models.Menu) (MenuKind, error) {
	switch menu.MenuType {
	case enums.MenuTypePackage:
		return PackageKind{
			PriceMinMinor: menu.PriceMinMinor,
			PriceMaxMinor: menu.PriceMaxMinor,
			MinPax:        menu.MinPax,
		}, nil
	case enums.MenuTypePerItem:
		return PerItemKind{}, nil
	default:
		return nil, fmt.Errorf("unknown menu type %q", menu.MenuType)
	}
}

func (PackageKind) Type() enums.MenuType { return enums.MenuTypePackage }

func (PerItemKind) Type() enums.MenuType { return enums.MenuTypePerItem }

// PackageTotals are null across the board when no pax count was supplied.
type PackageTotals struct {
	Pax             *int     `json:"pax"`
	TotalCostMinor  *int64   `json:"total_cost_minor"`
	RevenueMinMinor *int64   `json:"revenue_min_minor"`
	RevenueMaxMinor *int64   `json:"revenue_max_minor"`
	ProfitMinMinor  *int64   `json:"profit_min_minor"`
	ProfitMaxMinor  *int64   `json:"profit_max_minor"`
	FoodCostPctMin  *float64 `json:"food_cost_pct_min"`
	FoodCostPctMax  *float64 `json:"food_cost_pct_max"`
	BelowMinPax     bool     `json:"below_min_pax"`
}

func (PackageTotals) MenuType() enums.MenuType { return enums.MenuTypePackage }

// ComputeTotals multiplies the per-pax cost and the price range by pax. The
// maximum price falls back to the minimum when absent.
func (k PackageKind) ComputeTotals(pax *int, agg Aggregation) (Totals, error) {
	if pax == nil {
		return PackageTotals{}, nil
	}
	n := int64(*pax)
	total, err := money.MulInt(agg.MenuCostPerPaxMinor, n)
	if err != nil {
		return nil, err
	}
	out := PackageTotals{
		Pax:            copyInt(pax),
		TotalCostMinor: &total,
		BelowMinPax:    k.MinPax != nil && *pax < *k.MinPax,
	}

	maxPrice := k.PriceMaxMinor
	if maxPrice == nil {
		maxPrice = k.PriceMinMinor
	}
	if out.RevenueMinMinor, out.ProfitMinMinor, out.FoodCostPctMin, err = packageBound(n, k.PriceMinMinor, total); err != nil {
		return nil, err
	}
	if out.RevenueMaxMinor, out.ProfitMaxMinor, out.FoodCostPctMax, err = packageBound(n, maxPrice, total); err != nil {
		return nil, err
	}
	return out, nil
}

func packageBound(pax int64, price *int64, totalCost int64) (*int64, *int64, *float64, error) {
	if price == nil {
		return nil, nil, nil, nil
	}
	revenue, err := money.MulInt(pax, *price)
	if err != nil {
		return nil, nil, nil, err
	}
	profit, err := money.SubInt(revenue, totalCost)
	if err != nil {
		return nil, nil, nil, err
	}
	return &revenue, &profit, money.Ratio(totalCost, revenue), nil
}

// PerItemLine is the projected demand for one item at the requested pax.
type PerItemLine struct {
	ItemID       uuid.UUID `json:"item_id"`
	ExpectedQty  float64   `json:"expected_qty"`
	RevenueMinor int64     `json:"revenue_minor"`
	CostMinor    int64     `json:"cost_minor"`
}

// PerItemTotals are null across the board when no pax count was supplied.
type PerItemTotals struct {
	Pax            *int          `json:"pax"`
	TotalCostMinor *int64        `json:"total_cost_minor"`
	RevenueMinor   *int64        `json:"revenue_minor"`
	ProfitMinor    *int64        `json:"profit_minor"`
	FoodCostPct    *float64      `json:"food_cost_pct"`
	UnpricedItems  int           `json:"unpriced_items"`
	Lines          []PerItemLine `json:"lines"`
}

func (PerItemTotals) MenuType() enums.MenuType { return enums.MenuTypePerItem }

// ComputeTotals projects expected_qty = pax * uptake * portion per item, then
// revenue = round(expected_qty * price) and
// cost = round(expected_qty * dish_cost * (1 + waste)).
func (PerItemKind) ComputeTotals(pax *int, agg Aggregation) (Totals, error) {
	out := PerItemTotals{Lines: []PerItemLine{}}
	for _, it := range agg.Items {
		if it.SellingPriceMinor == nil {
			out.UnpricedItems++
		}
	}
	if pax == nil {
		return out, nil
	}

	var totalCost, totalRevenue int64
	paxDec := decimal.NewFromInt(int64(*pax))
	for _, it := range agg.Items {
		expected := paxDec.Mul(money.Factor(it.EffectiveUptakePct)).Mul(money.Factor(it.EffectivePortion))

		var revenue int64
		if it.SellingPriceMinor != nil {
			var err error
			if revenue, err = money.RoundChecked(expected.Mul(decimal.NewFromInt(*it.SellingPriceMinor))); err != nil {
				return nil, err
			}
		}
		var dishCost int64
		if it.DishCostPerServingMinor != nil {
			dishCost = *it.DishCostPerServingMinor
		}
		onePlusWaste := decimal.NewFromInt(1).Add(money.Factor(it.EffectiveWastePct))
		cost, err := money.RoundChecked(expected.Mul(decimal.NewFromInt(dishCost)).Mul(onePlusWaste))
		if err != nil {
			return nil, err
		}

		expectedQty, _ := expected.Float64()
		out.Lines = append(out.Lines, PerItemLine{
			ItemID:       it.ID,
			ExpectedQty:  expectedQty,
			RevenueMinor: revenue,
			CostMinor:    cost,
		})
		if totalCost, err = money.AddInt(totalCost, cost); err != nil {
			return nil, err
		}
		if totalRevenue, err = money.AddInt(totalRevenue, revenue); err != nil {
			return nil, err
		}
	}

	profit, err := money.SubInt(totalRevenue, totalCost)
	if err != nil {
		return nil, err
	}
	out.Pax = copyInt(pax)
	out.TotalCostMinor = &totalCost
	out.RevenueMinor = &totalRevenue
	out.ProfitMinor = &profit
	out.FoodCostPct = money.Ratio(totalCost, totalRevenue)
	return out, nil
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
