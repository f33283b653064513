package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Ingredient is a purchasable input measured in one UoM set.
type Ingredient struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrgID     uuid.UUID `gorm:"column:org_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	UomSetID  uuid.UUID `gorm:"column:uom_set_id;type:uuid;not null"`
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Ingredient) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}

// IngredientCost is an append-only cost record. The current cost is the latest
// row by effective_at then id; the sequential id breaks ties between rows
// written in the same instant.
type IngredientCost struct {
	ID                int64      `gorm:"column:id;primaryKey;autoIncrement"`
	OrgID             uuid.UUID  `gorm:"column:org_id;type:uuid;not null;index"`
	IngredientID      uuid.UUID  `gorm:"column:ingredient_id;type:uuid;not null;index"`
	CostPerBaseX10000 int64      `gorm:"column:cost_per_base_x10000;not null"`
	Currency          string     `gorm:"column:currency;not null"`
	EffectiveAt       time.Time  `gorm:"column:effective_at;not null"`
	CostImportID      *uuid.UUID `gorm:"column:cost_import_id;type:uuid"`
	CreatedBy         *uuid.UUID `gorm:"column:created_by;type:uuid"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
}
