package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MenuCostSnapshot is the header row written when a menu is locked. Sequence
// counts the locks of one menu from 1; the highest is the current snapshot.
type MenuCostSnapshot struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrgID               uuid.UUID `gorm:"column:org_id;type:uuid;not null;index"`
	MenuID              uuid.UUID `gorm:"column:menu_id;type:uuid;not null;uniqueIndex:ux_menu_cost_snapshots_menu_sequence,priority:1"`
	Sequence            int64     `gorm:"column:sequence;not null;uniqueIndex:ux_menu_cost_snapshots_menu_sequence,priority:2"`
	MenuCostPerPaxMinor int64     `gorm:"column:menu_cost_per_pax_minor;not null"`
	Currency            string    `gorm:"column:currency;not null"`
	CreatedBy           uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt           time.Time `gorm:"column:created_at;not null"`
}

func (s *MenuCostSnapshot) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// MenuItemCostSnapshot freezes the resolved overrides and cost of one item.
type MenuItemCostSnapshot struct {
	ID                      uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrgID                   uuid.UUID `gorm:"column:org_id;type:uuid;not null;index"`
	MenuCostSnapshotID      uuid.UUID `gorm:"column:menu_cost_snapshot_id;type:uuid;not null;index"`
	MenuID                  uuid.UUID `gorm:"column:menu_id;type:uuid;not null"`
	MenuItemID              uuid.UUID `gorm:"column:menu_item_id;type:uuid;not null;index"`
	MenuGroupID             uuid.UUID `gorm:"column:menu_group_id;type:uuid;not null"`
	DishID                  uuid.UUID `gorm:"column:dish_id;type:uuid;not null"`
	EffectiveUptakePct      float64   `gorm:"column:effective_uptake_pct;not null"`
	EffectivePortion        float64   `gorm:"column:effective_portion;not null"`
	EffectiveWastePct       float64   `gorm:"column:effective_waste_pct;not null"`
	DishCostPerServingMinor int64     `gorm:"column:dish_cost_per_serving_minor;not null"`
	ItemCostPerPaxMinor     int64     `gorm:"column:item_cost_per_pax_minor;not null"`
	SellingPriceMinor       *int64    `gorm:"column:selling_price_minor"`
	CreatedAt               time.Time `gorm:"column:created_at;not null"`
}

func (s *MenuItemCostSnapshot) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// MenuIngredientCostSnapshot records the ingredient cost in force at lock time.
type MenuIngredientCostSnapshot struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrgID              uuid.UUID  `gorm:"column:org_id;type:uuid;not null;index"`
	MenuCostSnapshotID uuid.UUID  `gorm:"column:menu_cost_snapshot_id;type:uuid;not null;index"`
	MenuID             uuid.UUID  `gorm:"column:menu_id;type:uuid;not null"`
	IngredientID       uuid.UUID  `gorm:"column:ingredient_id;type:uuid;not null"`
	IngredientCostID   *int64     `gorm:"column:ingredient_cost_id"`
	CostPerBaseX10000  *int64     `gorm:"column:cost_per_base_x10000"`
	BaseUomID          *uuid.UUID `gorm:"column:base_uom_id;type:uuid"`
	Currency           *string    `gorm:"column:currency"`
	CreatedAt          time.Time  `gorm:"column:created_at;not null"`
}

func (s *MenuIngredientCostSnapshot) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
