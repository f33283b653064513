package dishcost

import (
	"context"
	"fmt"

	"github.com/angelmondragon/platecost-backend/internal/uom"
	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/google/uuid"
)

// DishRef identifies the dish a result belongs to.
type DishRef struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	YieldServings int       `json:"yield_servings"`
}

// Result is the full cost view of one dish.
type Result struct {
	Dish      DishRef      `json:"dish"`
	Breakdown []LineResult `json:"breakdown"`
	Summary   Summary      `json:"summary"`
}

// Load costs every requested dish that exists in the organization. Dishes
// that cannot be found are absent from the result.
func Load(ctx context.Context, repo Repository, orgID uuid.UUID, dishIDs []uuid.UUID) (map[uuid.UUID]*Result, error) {
	dishIDs = uniqueIDs(dishIDs)
	dishes, err := repo.ListDishes(ctx, orgID, dishIDs)
	if err != nil {
		return nil, fmt.Errorf("list dishes: %w", err)
	}
	lines, err := repo.ListLines(ctx, orgID, dishIDs)
	if err != nil {
		return nil, fmt.Errorf("list dish lines: %w", err)
	}

	var ingredientIDs, uomIDs []uuid.UUID
	for _, line := range lines {
		ingredientIDs = append(ingredientIDs, line.IngredientID)
		uomIDs = append(uomIDs, line.UomID)
	}
	ingredientIDs = uniqueIDs(ingredientIDs)
	uomIDs = uniqueIDs(uomIDs)

	ingredients, err := repo.ListIngredients(ctx, orgID, ingredientIDs)
	if err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	ingredientByID := make(map[uuid.UUID]models.Ingredient, len(ingredients))
	var setIDs []uuid.UUID
	for _, ing := range ingredients {
		ingredientByID[ing.ID] = ing
		setIDs = append(setIDs, ing.UomSetID)
	}

	units, err := repo.ListUnits(ctx, orgID, uomIDs)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	unitByID := make(map[uuid.UUID]uom.Unit, len(units))
	for _, u := range units {
		unitByID[u.ID] = uom.FromModel(u)
	}

	bases, err := repo.ListBaseUnits(ctx, orgID, uniqueIDs(setIDs))
	if err != nil {
		return nil, fmt.Errorf("list base units: %w", err)
	}
	baseBySet := make(map[uuid.UUID]uuid.UUID, len(bases))
	for _, b := range bases {
		baseBySet[b.UomSetID] = b.ID
	}

	costs, err := repo.LatestCosts(ctx, orgID, ingredientIDs)
	if err != nil {
		return nil, fmt.Errorf("load latest costs: %w", err)
	}

	inputsByDish := make(map[uuid.UUID][]LineInput, len(dishes))
	for _, line := range lines {
		input := LineInput{
			LineID:       line.ID,
			IngredientID: line.IngredientID,
			Quantity:     line.Quantity,
			Unit:         unitByID[line.UomID],
		}
		if input.Unit.ID == uuid.Nil {
			input.Unit.ID = line.UomID
		}
		if ing, ok := ingredientByID[line.IngredientID]; ok {
			input.IngredientName = ing.Name
			input.IngredientSetID = ing.UomSetID
			if baseID, ok := baseBySet[ing.UomSetID]; ok {
				input.BaseUomID = &baseID
			}
		}
		if cost, ok := costs[line.IngredientID]; ok {
			input.Cost = &CostRef{
				ID:                cost.ID,
				CostPerBaseX10000: cost.CostPerBaseX10000,
				Currency:          cost.Currency,
				EffectiveAt:       cost.EffectiveAt,
			}
		}
		inputsByDish[line.DishID] = append(inputsByDish[line.DishID], input)
	}

	out := make(map[uuid.UUID]*Result, len(dishes))
	for _, dish := range dishes {
		breakdown := Breakdown(inputsByDish[dish.ID])
		out[dish.ID] = &Result{
			Dish: DishRef{
				ID:            dish.ID,
				Name:          dish.Name,
				YieldServings: dish.YieldServings,
			},
			Breakdown: breakdown,
			Summary:   Summarize(dish.YieldServings, breakdown),
		}
	}
	return out, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
