package audit

import (
	"context"

	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	"github.com/angelmondragon/platecost-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for audit entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entries []models.AuditEntry) error
	ListByEntity(ctx context.Context, orgID uuid.UUID, entityType enums.AuditEntityType, entityID uuid.UUID) ([]models.AuditEntry, error)
	ListPage(ctx context.Context, orgID uuid.UUID, entityType enums.AuditEntityType, entityID uuid.UUID, after *pagination.Cursor, limit int) ([]models.AuditEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entries []models.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListByEntity(ctx context.Context, orgID uuid.UUID, entityType enums.AuditEntityType, entityID uuid.UUID) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	if err := r.db.WithContext(ctx).
		Where("org_id = ? AND entity_type = ? AND entity_id = ?", orgID, entityType, entityID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// ListPage returns up to limit entries ordered oldest first, starting after
// the given cursor.
func (r *repository) ListPage(ctx context.Context, orgID uuid.UUID, entityType enums.AuditEntityType, entityID uuid.UUID, after *pagination.Cursor, limit int) ([]models.AuditEntry, error) {
	query := r.db.WithContext(ctx).
		Where("org_id = ? AND entity_type = ? AND entity_id = ?", orgID, entityType, entityID)
	if after != nil {
		query = query.Where("((created_at > ?) OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var entries []models.AuditEntry
	if err := query.Order("created_at ASC, id ASC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
