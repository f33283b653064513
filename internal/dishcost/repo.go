package dishcost

import (
	"context"

	"github.com/angelmondragon/platecost-backend/internal/repo"
	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository loads the reference data a dish cost is computed from.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListDishes(ctx context.Context, orgID uuid.UUID, dishIDs []uuid.UUID) ([]models.Dish, error)
	ListLines(ctx context.Context, orgID uuid.UUID, dishIDs []uuid.UUID) ([]models.DishLine, error)
	ListIngredients(ctx context.Context, orgID uuid.UUID, ingredientIDs []uuid.UUID) ([]models.Ingredient, error)
	ListUnits(ctx context.Context, orgID uuid.UUID, uomIDs []uuid.UUID) ([]models.Uom, error)
	ListBaseUnits(ctx context.Context, orgID uuid.UUID, setIDs []uuid.UUID) ([]models.Uom, error)
	LatestCosts(ctx context.Context, orgID uuid.UUID, ingredientIDs []uuid.UUID) (map[uuid.UUID]models.IngredientCost, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a dish cost repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) ListDishes(ctx context.Context, orgID uuid.UUID, dishIDs []uuid.UUID) ([]models.Dish, error) {
	return repo.ListIn[models.Dish](ctx, r.Base, orgID, "id", dishIDs, "")
}

func (r *repository) ListLines(ctx context.Context, orgID uuid.UUID, dishIDs []uuid.UUID) ([]models.DishLine, error) {
	return repo.ListIn[models.DishLine](ctx, r.Base, orgID, "dish_id", dishIDs, "sort_order ASC, id ASC")
}

func (r *repository) ListIngredients(ctx context.Context, orgID uuid.UUID, ingredientIDs []uuid.UUID) ([]models.Ingredient, error) {
	return repo.ListIn[models.Ingredient](ctx, r.Base, orgID, "id", ingredientIDs, "")
}

func (r *repository) ListUnits(ctx context.Context, orgID uuid.UUID, uomIDs []uuid.UUID) ([]models.Uom, error) {
	return repo.ListIn[models.Uom](ctx, r.Base, orgID, "id", uomIDs, "")
}

func (r *repository) ListBaseUnits(ctx context.Context, orgID uuid.UUID, setIDs []uuid.UUID) ([]models.Uom, error) {
	if len(setIDs) == 0 {
		return nil, nil
	}
	var units []models.Uom
	if err := r.Org(ctx, orgID).
		Where("uom_set_id IN ? AND is_base = ?", setIDs, true).
		Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

// LatestCosts returns the current cost per ingredient, ordered by effective_at
// then id. Ingredients with no cost rows are absent from the map.
func (r *repository) LatestCosts(ctx context.Context, orgID uuid.UUID, ingredientIDs []uuid.UUID) (map[uuid.UUID]models.IngredientCost, error) {
	return LatestCostsFor(r.DB(ctx), orgID, ingredientIDs)
}

// LatestCostsFor runs the latest-cost lookup on db. Other repositories that
// need the current cost inside their own transaction share it.
func LatestCostsFor(db *gorm.DB, orgID uuid.UUID, ingredientIDs []uuid.UUID) (map[uuid.UUID]models.IngredientCost, error) {
	out := make(map[uuid.UUID]models.IngredientCost, len(ingredientIDs))
	if len(ingredientIDs) == 0 {
		return out, nil
	}

	latest := db.Session(&gorm.Session{NewDB: true}).
		Table("ingredient_costs AS ic2").
		Select("ic2.id").
		Where("ic2.org_id = ic.org_id AND ic2.ingredient_id = ic.ingredient_id").
		Order("ic2.effective_at DESC, ic2.id DESC").
		Limit(1)

	var rows []models.IngredientCost
	if err := db.
		Table("ingredient_costs AS ic").
		Where("ic.org_id = ? AND ic.ingredient_id IN ?", orgID, ingredientIDs).
		Where("ic.id = (?)", latest).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.IngredientID] = row
	}
	return out, nil
}
