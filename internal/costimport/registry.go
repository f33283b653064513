package costimport

import (
	"strings"

	"github.com/angelmondragon/platecost-backend/internal/uom"
	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/google/uuid"
)

// IngredientRef is what a row name resolves to.
type IngredientRef struct {
	ID       uuid.UUID
	Name     string
	UomSetID uuid.UUID
}

// Registry resolves ingredient names and unit symbols for one organization.
// It is built once per file and never mutated while rows are classified.
type Registry struct {
	ingredients map[string]IngredientRef
	units       map[uuid.UUID]map[string]uom.Unit
}

// NewRegistry indexes active ingredients by normalized name and units by set
// and normalized symbol. When two ingredients share a normalized name the
// first one listed wins.
func NewRegistry(ingredients []models.Ingredient, units []models.Uom) *Registry {
	reg := &Registry{
		ingredients: make(map[string]IngredientRef, len(ingredients)),
		units:       make(map[uuid.UUID]map[string]uom.Unit),
	}
	for _, ing := range ingredients {
		if !ing.Active {
			continue
		}
		key := NormalizeName(ing.Name)
		if _, exists := reg.ingredients[key]; exists {
			continue
		}
		reg.ingredients[key] = IngredientRef{ID: ing.ID, Name: ing.Name, UomSetID: ing.UomSetID}
	}
	for _, u := range units {
		bySymbol, ok := reg.units[u.UomSetID]
		if !ok {
			bySymbol = make(map[string]uom.Unit)
			reg.units[u.UomSetID] = bySymbol
		}
		key := NormalizeSymbol(u.Symbol)
		if _, exists := bySymbol[key]; !exists {
			bySymbol[key] = uom.FromModel(u)
		}
	}
	return reg
}

// Ingredient looks up a row's ingredient name.
func (r *Registry) Ingredient(name string) (IngredientRef, bool) {
	ref, ok := r.ingredients[NormalizeName(name)]
	return ref, ok
}

// Unit looks up a symbol inside one set only.
func (r *Registry) Unit(setID uuid.UUID, symbol string) (uom.Unit, bool) {
	unit, ok := r.units[setID][NormalizeSymbol(symbol)]
	return unit, ok
}

// NormalizeName lower-cases and collapses internal whitespace.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NormalizeSymbol lower-cases and trims a unit symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToLower(strings.TrimSpace(symbol))
}
