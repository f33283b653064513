package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNoRowsAffected is returned by Guarded when no row matched the write's
// conditions and the caller supplied no sentinel of its own.
var ErrNoRowsAffected = errors.New("no rows affected")

// Base is embedded by every domain repository. All reads and writes go
// through Org so that no query escapes its tenant.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Org scopes a fresh statement to one organization.
func (b Base) Org(ctx context.Context, orgID uuid.UUID) *gorm.DB {
	return b.DB(ctx).Where("org_id = ?", orgID)
}

// FindByID loads a single org-owned row into dest. A missing row surfaces as
// gorm.ErrRecordNotFound.
func (b Base) FindByID(ctx context.Context, orgID, id uuid.UUID, dest any) error {
	return b.Org(ctx, orgID).Where("id = ?", id).First(dest).Error
}

// ListIn loads org-owned rows whose column matches one of ids. An empty id
// list short-circuits without a query.
func ListIn[T any](ctx context.Context, b Base, orgID uuid.UUID, column string, ids []uuid.UUID, order string) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := b.Org(ctx, orgID).Where(column+" IN ?", ids)
	if order != "" {
		q = q.Order(order)
	}
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Guarded turns a conditional write that matched nothing into sentinel.
func Guarded(res *gorm.DB, sentinel error) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if sentinel == nil {
			return ErrNoRowsAffected
		}
		return sentinel
	}
	return nil
}
