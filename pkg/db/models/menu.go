package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/platecost-backend/pkg/enums"
)

// Menu is a costed offer, sold either as a per-guest package or item by item.
type Menu struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	OrgID           uuid.UUID      `gorm:"column:org_id;type:uuid;not null;index"`
	Name            string         `gorm:"column:name;not null"`
	MenuType        enums.MenuType `gorm:"column:menu_type;type:text;not null"`
	CostMode        enums.CostMode `gorm:"column:cost_mode;type:text;not null;default:live"`
	Currency        string         `gorm:"column:currency;not null"`
	PriceMinMinor   *int64         `gorm:"column:price_min_minor"`
	PriceMaxMinor   *int64         `gorm:"column:price_max_minor"`
	MinPax          *int           `gorm:"column:min_pax"`
	DefaultWastePct *float64       `gorm:"column:default_waste_pct"`
	LockedAt        *time.Time     `gorm:"column:locked_at"`
	LockedBy        *uuid.UUID     `gorm:"column:locked_by;type:uuid"`
	CreatedAt       time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Menu) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	if m.CostMode == "" {
		m.CostMode = enums.CostModeLive
	}
	return nil
}

// MenuGroup carries the default uptake/portion/waste applied to its items.
type MenuGroup struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrgID     uuid.UUID `gorm:"column:org_id;type:uuid;not null;index"`
	MenuID    uuid.UUID `gorm:"column:menu_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	UptakePct *float64  `gorm:"column:uptake_pct"`
	Portion   *float64  `gorm:"column:portion"`
	WastePct  *float64  `gorm:"column:waste_pct"`
	SortOrder int       `gorm:"column:sort_order;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (g *MenuGroup) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}

// MenuItem wraps a dish inside a group; nil overrides fall back to the group.
type MenuItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrgID             uuid.UUID `gorm:"column:org_id;type:uuid;not null;index"`
	MenuID            uuid.UUID `gorm:"column:menu_id;type:uuid;not null;index"`
	MenuGroupID       uuid.UUID `gorm:"column:menu_group_id;type:uuid;not null;index"`
	DishID            uuid.UUID `gorm:"column:dish_id;type:uuid;not null"`
	UptakePct         *float64  `gorm:"column:uptake_pct"`
	Portion           *float64  `gorm:"column:portion"`
	WastePct          *float64  `gorm:"column:waste_pct"`
	SellingPriceMinor *int64    `gorm:"column:selling_price_minor"`
	SortOrder         int       `gorm:"column:sort_order;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *MenuItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
