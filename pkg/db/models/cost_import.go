package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/platecost-backend/pkg/enums"
)

// CostImport is one uploaded CSV of purchase costs awaiting confirmation.
type CostImport struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrgID      uuid.UUID              `gorm:"column:org_id;type:uuid;not null;index"`
	Filename   string                 `gorm:"column:filename;not null"`
	Currency   string                 `gorm:"column:currency;not null"`
	Status     enums.CostImportStatus `gorm:"column:status;type:text;not null"`
	RowsTotal  int                    `gorm:"column:rows_total;not null;default:0"`
	UploadedBy uuid.UUID              `gorm:"column:uploaded_by;type:uuid;not null"`
	AppliedBy  *uuid.UUID             `gorm:"column:applied_by;type:uuid"`
	AppliedAt  *time.Time             `gorm:"column:applied_at"`
	Rows       []CostImportRow        `gorm:"foreignKey:CostImportID"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CostImport) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// CostImportRow keeps the raw CSV fields alongside their classification.
type CostImportRow struct {
	ID                        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrgID                     uuid.UUID            `gorm:"column:org_id;type:uuid;not null;index"`
	CostImportID              uuid.UUID            `gorm:"column:cost_import_id;type:uuid;not null;index"`
	RowNumber                 int                  `gorm:"column:row_number;not null"`
	IngredientName            string               `gorm:"column:ingredient_name;not null"`
	PurchaseQty               string               `gorm:"column:purchase_qty;not null"`
	PurchaseUom               string               `gorm:"column:purchase_uom;not null"`
	TotalCost                 string               `gorm:"column:total_cost;not null"`
	ParseStatus               enums.RowParseStatus `gorm:"column:parse_status;type:text;not null"`
	MatchedIngredientID       *uuid.UUID           `gorm:"column:matched_ingredient_id;type:uuid"`
	MatchedUomID              *uuid.UUID           `gorm:"column:matched_uom_id;type:uuid"`
	TotalCostMinor            *int64               `gorm:"column:total_cost_minor"`
	ComputedCostPerBaseX10000 *int64               `gorm:"column:computed_cost_per_base_x10000"`
	CreatedAt                 time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (r *CostImportRow) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
