package uom

import (
	"context"

	"github.com/angelmondragon/platecost-backend/internal/repo"
	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads ingredients and units scoped to an organization.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindIngredient(ctx context.Context, orgID, ingredientID uuid.UUID) (*models.Ingredient, error)
	FindUnit(ctx context.Context, orgID, uomID uuid.UUID) (*models.Uom, error)
	ListUnitsBySets(ctx context.Context, orgID uuid.UUID, setIDs []uuid.UUID) ([]models.Uom, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a UoM repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindIngredient(ctx context.Context, orgID, ingredientID uuid.UUID) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := r.FindByID(ctx, orgID, ingredientID, &ingredient); err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func (r *repository) FindUnit(ctx context.Context, orgID, uomID uuid.UUID) (*models.Uom, error) {
	var unit models.Uom
	if err := r.FindByID(ctx, orgID, uomID, &unit); err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *repository) ListUnitsBySets(ctx context.Context, orgID uuid.UUID, setIDs []uuid.UUID) ([]models.Uom, error) {
	return repo.ListIn[models.Uom](ctx, r.Base, orgID, "uom_set_id", setIDs, "uom_set_id ASC, factor_to_base ASC")
}
