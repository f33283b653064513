package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/platecost-backend/pkg/enums"
)

// AuditEntry records an immutable before/after pair for a costing state change.
type AuditEntry struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrgID      uuid.UUID             `gorm:"column:org_id;type:uuid;not null;index"`
	ActorID    uuid.UUID             `gorm:"column:actor_id;type:uuid;not null"`
	EntityType enums.AuditEntityType `gorm:"column:entity_type;type:text;not null"`
	EntityID   uuid.UUID             `gorm:"column:entity_id;type:uuid;not null;index"`
	Action     enums.AuditAction     `gorm:"column:action;type:text;not null"`
	Before     json.RawMessage       `gorm:"column:before_state"`
	After      json.RawMessage       `gorm:"column:after_state"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *AuditEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
