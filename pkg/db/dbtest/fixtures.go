package dbtest

import (
	"testing"
	"time"

	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// Fixtures seeds costing data for a single organization.
type Fixtures struct {
	t     *testing.T
	db    *gorm.DB
	OrgID uuid.UUID
}

// NewFixtures binds a fixture builder to db under a fresh organization id.
func NewFixtures(t *testing.T, db *gorm.DB) *Fixtures {
	return &Fixtures{t: t, db: db, OrgID: uuid.New()}
}

// UnitSpec describes one unit to seed inside a set.
type UnitSpec struct {
	Symbol string
	Factor float64
	IsBase bool
}

// MassSet is g (base), kg and lb.
var MassSet = []UnitSpec{
	{Symbol: "g", Factor: 1, IsBase: true},
	{Symbol: "kg", Factor: 1000},
	{Symbol: "lb", Factor: 453.592},
}

// VolumeSet is ml (base) and l.
var VolumeSet = []UnitSpec{
	{Symbol: "ml", Factor: 1, IsBase: true},
	{Symbol: "l", Factor: 1000},
}

// UomSet creates a set and returns it with units keyed by symbol.
func (f *Fixtures) UomSet(name string, specs []UnitSpec) (*models.UomSet, map[string]models.Uom) {
	f.t.Helper()
	set := &models.UomSet{OrgID: f.OrgID, Name: name}
	require.NoError(f.t, f.db.Create(set).Error)

	bySymbol := make(map[string]models.Uom, len(specs))
	for _, spec := range specs {
		unit := models.Uom{
			OrgID:        f.OrgID,
			UomSetID:     set.ID,
			Name:         spec.Symbol,
			Symbol:       spec.Symbol,
			FactorToBase: spec.Factor,
			IsBase:       spec.IsBase,
		}
		require.NoError(f.t, f.db.Create(&unit).Error)
		bySymbol[spec.Symbol] = unit
	}
	return set, bySymbol
}

// Ingredient creates an active ingredient in setID.
func (f *Fixtures) Ingredient(name string, setID uuid.UUID) *models.Ingredient {
	f.t.Helper()
	ingredient := &models.Ingredient{OrgID: f.OrgID, Name: name, UomSetID: setID, Active: true}
	require.NoError(f.t, f.db.Create(ingredient).Error)
	return ingredient
}

// Cost appends a cost record for ingredientID.
func (f *Fixtures) Cost(ingredientID uuid.UUID, costX10000 int64, effectiveAt time.Time) *models.IngredientCost {
	f.t.Helper()
	cost := &models.IngredientCost{
		OrgID:             f.OrgID,
		IngredientID:      ingredientID,
		CostPerBaseX10000: costX10000,
		Currency:          "USD",
		EffectiveAt:       effectiveAt.UTC(),
	}
	require.NoError(f.t, f.db.Create(cost).Error)
	return cost
}

// LineSpec describes one dish line.
type LineSpec struct {
	IngredientID uuid.UUID
	UomID        uuid.UUID
	Quantity     float64
}

// Dish creates a dish with ordered lines.
func (f *Fixtures) Dish(name string, yield int, lines ...LineSpec) *models.Dish {
	f.t.Helper()
	dish := &models.Dish{OrgID: f.OrgID, Name: name, YieldServings: yield}
	require.NoError(f.t, f.db.Create(dish).Error)
	for i, spec := range lines {
		line := models.DishLine{
			OrgID:        f.OrgID,
			DishID:       dish.ID,
			IngredientID: spec.IngredientID,
			UomID:        spec.UomID,
			Quantity:     spec.Quantity,
			SortOrder:    i,
		}
		require.NoError(f.t, f.db.Create(&line).Error)
		dish.Lines = append(dish.Lines, line)
	}
	return dish
}

// Menu creates a live menu of the given type.
func (f *Fixtures) Menu(name string, menuType enums.MenuType, mutate func(*models.Menu)) *models.Menu {
	f.t.Helper()
	menu := &models.Menu{
		OrgID:    f.OrgID,
		Name:     name,
		MenuType: menuType,
		CostMode: enums.CostModeLive,
		Currency: "USD",
	}
	if mutate != nil {
		mutate(menu)
	}
	require.NoError(f.t, f.db.Create(menu).Error)
	return menu
}

// Group creates a menu group.
func (f *Fixtures) Group(menuID uuid.UUID, name string, sortOrder int, mutate func(*models.MenuGroup)) *models.MenuGroup {
	f.t.Helper()
	group := &models.MenuGroup{OrgID: f.OrgID, MenuID: menuID, Name: name, SortOrder: sortOrder}
	if mutate != nil {
		mutate(group)
	}
	require.NoError(f.t, f.db.Create(group).Error)
	return group
}

// Item creates a menu item wrapping dishID.
func (f *Fixtures) Item(group *models.MenuGroup, dishID uuid.UUID, sortOrder int, mutate func(*models.MenuItem)) *models.MenuItem {
	f.t.Helper()
	item := &models.MenuItem{
		OrgID:       f.OrgID,
		MenuID:      group.MenuID,
		MenuGroupID: group.ID,
		DishID:      dishID,
		SortOrder:   sortOrder,
	}
	if mutate != nil {
		mutate(item)
	}
	require.NoError(f.t, f.db.Create(item).Error)
	return item
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int64 returns a pointer to v.
func Int64(v int64) *int64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
