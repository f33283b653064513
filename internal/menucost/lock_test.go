package menucost

import (
	"testing"
	"time"

	"github.com/angelmondragon/platecost-backend/internal/dishcost"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanLock(t *testing.T) {
	m := newSampleMenu()

	check := CanLock(enums.CostModeLive, []GroupInput{m.mains}, []ItemInput{m.beef, m.fish})
	assert.True(t, check.CanLock)
	assert.Empty(t, check.Reasons)
	assert.Equal(t, 1, check.GroupsCount)
	assert.Equal(t, 2, check.ItemsCount)

	check = CanLock(enums.CostModeLive, []GroupInput{m.mains, m.desserts}, []ItemInput{m.beef, m.cake})
	assert.False(t, check.CanLock)
	assert.Equal(t, []string{ReasonMissingDishCosts}, check.Reasons)
	assert.Equal(t, 1, check.MissingDishCosts)

	check = CanLock(enums.CostModeLocked, nil, nil)
	assert.False(t, check.CanLock)
	assert.Equal(t, []string{ReasonMenuLocked, ReasonNoGroups, ReasonNoItems}, check.Reasons)
}

func TestPlanLock(t *testing.T) {
	m := newSampleMenu()
	orgID, actorID := uuid.New(), uuid.New()
	menu := MenuInput{ID: uuid.New(), Currency: "USD", CostMode: enums.CostModeLive, Kind: PackageKind{}}
	agg := AggregateLive(nil, []GroupInput{m.mains}, []ItemInput{m.beef, m.fish})

	flour, salt, butter := uuid.New(), uuid.New(), uuid.New()
	baseUnit := uuid.New()
	costed := func(ingredient uuid.UUID, id, value int64) dishcost.LineResult {
		return dishcost.LineResult{
			IngredientID: ingredient,
			BaseUomID:    &baseUnit,
			Cost:         &dishcost.CostRef{ID: id, CostPerBaseX10000: value, Currency: "USD"},
		}
	}
	dishes := map[uuid.UUID]*dishcost.Result{
		m.beef.DishID: {Breakdown: []dishcost.LineResult{costed(flour, 1, 100), costed(salt, 2, 5)}},
		m.fish.DishID: {Breakdown: []dishcost.LineResult{costed(salt, 2, 5), costed(butter, 3, 900)}},
	}
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	plan, err := PlanLock(orgID, actorID, menu, agg, dishes, now)
	require.NoError(t, err)

	assert.Equal(t, int64(1245), plan.Snapshot.MenuCostPerPaxMinor)
	assert.Equal(t, actorID, plan.Snapshot.CreatedBy)
	assert.Equal(t, now, plan.Snapshot.CreatedAt)

	require.Len(t, plan.Items, 2)
	for _, row := range plan.Items {
		assert.Equal(t, plan.Snapshot.ID, row.MenuCostSnapshotID)
		assert.Equal(t, menu.ID, row.MenuID)
	}
	assert.Equal(t, int64(840), plan.Items[0].ItemCostPerPaxMinor)
	assert.Equal(t, 0.3, plan.Items[1].EffectiveUptakePct)

	require.Len(t, plan.Ingredients, 3)
	seen := map[uuid.UUID]bool{}
	for i, row := range plan.Ingredients {
		seen[row.IngredientID] = true
		require.NotNil(t, row.CostPerBaseX10000)
		if i > 0 {
			assert.Less(t, plan.Ingredients[i-1].IngredientID.String(), row.IngredientID.String())
		}
	}
	assert.True(t, seen[flour] && seen[salt] && seen[butter])
}

func TestPlanLockRejectsMissingDishCost(t *testing.T) {
	m := newSampleMenu()
	agg := AggregateLive(nil, []GroupInput{m.desserts}, []ItemInput{m.cake})

	_, err := PlanLock(uuid.New(), uuid.New(), MenuInput{ID: uuid.New(), Kind: PerItemKind{}}, agg, nil, time.Now())
	assert.Error(t, err)
}
