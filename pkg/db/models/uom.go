package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UomSet groups units that share one canonical base unit.
type UomSet struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrgID     uuid.UUID `gorm:"column:org_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Units     []Uom     `gorm:"foreignKey:UomSetID"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *UomSet) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// Uom is a named unit with a linear factor to its set's base unit.
type Uom struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrgID        uuid.UUID `gorm:"column:org_id;type:uuid;not null;index"`
	UomSetID     uuid.UUID `gorm:"column:uom_set_id;type:uuid;not null;index"`
	Name         string    `gorm:"column:name;not null"`
	Symbol       string    `gorm:"column:symbol;not null"`
	FactorToBase float64   `gorm:"column:factor_to_base;not null"`
	IsBase       bool      `gorm:"column:is_base;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *Uom) BeforeCreate(*gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
