package uom

import (
	"errors"
	"fmt"

	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/money"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

// ErrInvalidUnit is returned when a unit is used with an ingredient from another UoM set.
var ErrInvalidUnit = errors.New("unit does not belong to the ingredient uom set")

// Unit is the conversion view of a unit of measure.
type Unit struct {
	ID           uuid.UUID
	SetID        uuid.UUID
	Name         string
	Symbol       string
	FactorToBase float64
	IsBase       bool
}

// FromModel maps a persisted unit to its conversion view.
func FromModel(m models.Uom) Unit {
	return Unit{
		ID:           m.ID,
		SetID:        m.UomSetID,
		Name:         m.Name,
		Symbol:       m.Symbol,
		FactorToBase: m.FactorToBase,
		IsBase:       m.IsBase,
	}
}

// ToBase converts quantity expressed in unit into the base unit of ingredientSetID.
func ToBase(quantity float64, unit Unit, ingredientSetID uuid.UUID) (float64, error) {
	exact, err := ToBaseExact(quantity, unit, ingredientSetID)
	if err != nil {
		return 0, err
	}
	v, _ := exact.Float64()
	return v, nil
}

// ToBaseExact is ToBase without the final float conversion, for callers that
// keep multiplying the result.
func ToBaseExact(quantity float64, unit Unit, ingredientSetID uuid.UUID) (decimal.Decimal, error) {
	if unit.SetID != ingredientSetID {
		return decimal.Zero, pkgerrors.Wrap(
			pkgerrors.CodeConsistency,
			ErrInvalidUnit,
			fmt.Sprintf("unit %s is not part of uom set %s", unit.Symbol, ingredientSetID),
		)
	}
	return money.ToBase(quantity, unit.FactorToBase), nil
}

// ValidateSet checks that units form a well-formed set: exactly one base unit
// with factor 1 and strictly positive factors everywhere. Every violation is
// reported.
func ValidateSet(units []Unit) error {
	if len(units) == 0 {
		return fmt.Errorf("uom set has no units")
	}

	var errs error
	bases := 0
	for _, u := range units {
		if u.FactorToBase <= 0 {
			errs = multierr.Append(errs, fmt.Errorf("unit %q has non-positive factor %v", u.Symbol, u.FactorToBase))
		}
		if u.IsBase {
			bases++
			if u.FactorToBase != 1 {
				errs = multierr.Append(errs, fmt.Errorf("base unit %q must have factor 1, got %v", u.Symbol, u.FactorToBase))
			}
		}
		if u.SetID != units[0].SetID {
			errs = multierr.Append(errs, fmt.Errorf("unit %q belongs to a different set", u.Symbol))
		}
	}
	if bases != 1 {
		errs = multierr.Append(errs, fmt.Errorf("uom set must have exactly one base unit, found %d", bases))
	}
	return errs
}

// BaseOf returns the base unit of a validated set.
func BaseOf(units []Unit) (Unit, bool) {
	for _, u := range units {
		if u.IsBase {
			return u, true
		}
	}
	return Unit{}, false
}
