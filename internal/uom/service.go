package uom

import (
	"context"
	stdErrors "errors"
	"fmt"

	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversion is the result of converting a dish-line quantity to base units.
type Conversion struct {
	IngredientID   uuid.UUID `json:"ingredient_id"`
	UomID          uuid.UUID `json:"uom_id"`
	Quantity       float64   `json:"quantity"`
	BaseUomID      uuid.UUID `json:"base_uom_id"`
	BaseSymbol     string    `json:"base_symbol"`
	QuantityInBase float64   `json:"quantity_in_base"`
}

// Service exposes explicit unit conversion for an ingredient.
type Service interface {
	Convert(ctx context.Context, orgID, ingredientID uuid.UUID, quantity float64, uomID uuid.UUID) (*Conversion, error)
}

type service struct {
	repo Repository
}

// NewService wires the conversion service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("uom repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Convert(ctx context.Context, orgID, ingredientID uuid.UUID, quantity float64, uomID uuid.UUID) (*Conversion, error) {
	if orgID == uuid.Nil || ingredientID == uuid.Nil || uomID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "org, ingredient and unit ids are required")
	}
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	ingredient, err := s.repo.FindIngredient(ctx, orgID, ingredientID)
	if err != nil {
		return nil, notFoundOr(err, "ingredient not found", "load ingredient")
	}
	unitModel, err := s.repo.FindUnit(ctx, orgID, uomID)
	if err != nil {
		return nil, notFoundOr(err, "unit not found", "load unit")
	}

	setModels, err := s.repo.ListUnitsBySets(ctx, orgID, []uuid.UUID{ingredient.UomSetID})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load uom set")
	}
	set := make([]Unit, 0, len(setModels))
	for _, m := range setModels {
		set = append(set, FromModel(m))
	}
	if err := ValidateSet(set); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeConsistency, err, "ingredient uom set is malformed")
	}
	base, _ := BaseOf(set)

	inBase, err := ToBase(quantity, FromModel(*unitModel), ingredient.UomSetID)
	if err != nil {
		return nil, err
	}

	return &Conversion{
		IngredientID:   ingredient.ID,
		UomID:          unitModel.ID,
		Quantity:       quantity,
		BaseUomID:      base.ID,
		BaseSymbol:     base.Symbol,
		QuantityInBase: inBase,
	}, nil
}

func notFoundOr(err error, notFoundMsg, internalMsg string) error {
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFoundMsg)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, internalMsg)
}
