package dishcost

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/platecost-backend/pkg/db/dbtest"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceDishCostUsesLatestCost(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, db)
	massSet, mass := fx.UomSet("mass", dbtest.MassSet)
	flour := fx.Ingredient("Flour", massSet.ID)
	sugar := fx.Ingredient("Sugar", massSet.ID)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	fx.Cost(flour.ID, 900, now.Add(-48*time.Hour))
	fx.Cost(flour.ID, 1200, now)
	// same instant: the later id wins
	fx.Cost(sugar.ID, 2000, now)
	latestSugar := fx.Cost(sugar.ID, 2500, now)
	// an older record written afterwards does not win
	fx.Cost(sugar.ID, 100, now.Add(-time.Hour))

	dish := fx.Dish("Cake", 2,
		dbtest.LineSpec{IngredientID: flour.ID, UomID: mass["kg"].ID, Quantity: 1},
		dbtest.LineSpec{IngredientID: sugar.ID, UomID: mass["g"].ID, Quantity: 400},
	)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	result, err := svc.DishCost(context.Background(), fx.OrgID, dish.ID)
	require.NoError(t, err)
	require.Len(t, result.Breakdown, 2)

	assert.Equal(t, int64(120), *result.Breakdown[0].LineCostMinor)
	assert.Equal(t, int64(100), *result.Breakdown[1].LineCostMinor)
	assert.Equal(t, latestSugar.ID, result.Breakdown[1].Cost.ID)
	require.NotNil(t, result.Breakdown[0].BaseUomID)
	assert.Equal(t, mass["g"].ID, *result.Breakdown[0].BaseUomID)

	assert.Equal(t, int64(220), result.Summary.TotalCostMinor)
	assert.Equal(t, int64(110), *result.Summary.CostPerServingMinor)
	assert.Equal(t, enums.DishCostStatusComplete, result.Summary.Status)
	assert.Equal(t, "Cake", result.Dish.Name)
}

func TestServiceDishCostStatuses(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, db)
	massSet, mass := fx.UomSet("mass", dbtest.MassSet)
	_, volume := fx.UomSet("volume", dbtest.VolumeSet)
	flour := fx.Ingredient("Flour", massSet.ID)
	saffron := fx.Ingredient("Saffron", massSet.ID)
	fx.Cost(flour.ID, 1000, time.Now())

	missing := fx.Dish("Paella", 4,
		dbtest.LineSpec{IngredientID: flour.ID, UomID: mass["g"].ID, Quantity: 100},
		dbtest.LineSpec{IngredientID: saffron.ID, UomID: mass["g"].ID, Quantity: 1},
	)
	invalid := fx.Dish("Soup", 4,
		dbtest.LineSpec{IngredientID: flour.ID, UomID: volume["ml"].ID, Quantity: 100},
		dbtest.LineSpec{IngredientID: saffron.ID, UomID: mass["g"].ID, Quantity: 1},
	)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	summaries, err := svc.SummariesFor(context.Background(), fx.OrgID, []uuid.UUID{missing.ID, invalid.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, enums.DishCostStatusIncompleteMissingCost, summaries[missing.ID].Status)
	assert.Equal(t, int64(10), summaries[missing.ID].TotalCostMinor)
	assert.Equal(t, 1, summaries[missing.ID].UnknownCostLinesCount)

	assert.Equal(t, enums.DishCostStatusInvalidUnits, summaries[invalid.ID].Status)
	assert.Equal(t, 1, summaries[invalid.ID].InvalidUnitsCount)
	assert.Equal(t, int64(0), summaries[invalid.ID].TotalCostMinor)
}

func TestServiceDishCostTenantScoped(t *testing.T) {
	db := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, db)
	dish := fx.Dish("Bread", 1)

	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)

	_, err = svc.DishCost(context.Background(), uuid.New(), dish.ID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.DishCost(context.Background(), fx.OrgID, uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
