package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Dish is a recipe yielding a number of servings.
type Dish struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrgID         uuid.UUID  `gorm:"column:org_id;type:uuid;not null;index"`
	Name          string     `gorm:"column:name;not null"`
	YieldServings int        `gorm:"column:yield_servings;not null"`
	Lines         []DishLine `gorm:"foreignKey:DishID"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Dish) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}

// DishLine is one ingredient quantity in a dish, expressed in any unit.
type DishLine struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrgID        uuid.UUID `gorm:"column:org_id;type:uuid;not null;index"`
	DishID       uuid.UUID `gorm:"column:dish_id;type:uuid;not null;index"`
	IngredientID uuid.UUID `gorm:"column:ingredient_id;type:uuid;not null"`
	Quantity     float64   `gorm:"column:quantity;not null"`
	UomID        uuid.UUID `gorm:"column:uom_id;type:uuid;not null"`
	SortOrder    int       `gorm:"column:sort_order;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *DishLine) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	return nil
}
