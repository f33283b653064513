package costimport

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/angelmondragon/platecost-backend/internal/dishcost"
	"github.com/angelmondragon/platecost-backend/internal/repo"
	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotUploaded is returned when the guarded status flip finds the import
// already applied.
var ErrNotUploaded = stdErrors.New("cost import is not in uploaded status")

// Repository persists cost imports and the cost rows they apply.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListIngredients(ctx context.Context, orgID uuid.UUID) ([]models.Ingredient, error)
	ListUnits(ctx context.Context, orgID uuid.UUID) ([]models.Uom, error)
	CreateImport(ctx context.Context, imp *models.CostImport, rows []models.CostImportRow, chunkSize int) error
	FindImport(ctx context.Context, orgID, importID uuid.UUID) (*models.CostImport, error)
	ListRows(ctx context.Context, orgID, importID uuid.UUID, statuses ...enums.RowParseStatus) ([]models.CostImportRow, error)
	CountCostsSince(ctx context.Context, orgID uuid.UUID, ingredientIDs []uuid.UUID, since time.Time) (int64, error)
	LatestCosts(ctx context.Context, orgID uuid.UUID, ingredientIDs []uuid.UUID) (map[uuid.UUID]models.IngredientCost, error)
	InsertCosts(ctx context.Context, costs []models.IngredientCost, chunkSize int) error
	MarkApplied(ctx context.Context, orgID, importID, actorID uuid.UUID, at time.Time) error
}

type repository struct {
	repo.Base
}

// NewRepository returns a cost import repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) ListIngredients(ctx context.Context, orgID uuid.UUID) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	if err := r.Org(ctx, orgID).
		Where("active = ?", true).
		Order("created_at ASC, id ASC").
		Find(&ingredients).Error; err != nil {
		return nil, err
	}
	return ingredients, nil
}

func (r *repository) ListUnits(ctx context.Context, orgID uuid.UUID) ([]models.Uom, error) {
	var units []models.Uom
	if err := r.Org(ctx, orgID).
		Order("uom_set_id ASC, is_base DESC, id ASC").
		Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *repository) CreateImport(ctx context.Context, imp *models.CostImport, rows []models.CostImportRow, chunkSize int) error {
	db := r.DB(ctx)
	if err := db.Omit("Rows").Create(imp).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].CostImportID = imp.ID
		rows[i].OrgID = imp.OrgID
	}
	return db.CreateInBatches(&rows, normalizeChunk(chunkSize)).Error
}

func (r *repository) FindImport(ctx context.Context, orgID, importID uuid.UUID) (*models.CostImport, error) {
	var imp models.CostImport
	if err := r.FindByID(ctx, orgID, importID, &imp); err != nil {
		return nil, err
	}
	return &imp, nil
}

func (r *repository) ListRows(ctx context.Context, orgID, importID uuid.UUID, statuses ...enums.RowParseStatus) ([]models.CostImportRow, error) {
	q := r.Org(ctx, orgID).Where("cost_import_id = ?", importID)
	if len(statuses) > 0 {
		q = q.Where("parse_status IN ?", statuses)
	}
	var rows []models.CostImportRow
	if err := q.Order("row_number ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CountCostsSince counts cost rows for the given ingredients effective at or
// after since.
func (r *repository) CountCostsSince(ctx context.Context, orgID uuid.UUID, ingredientIDs []uuid.UUID, since time.Time) (int64, error) {
	if len(ingredientIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := r.Org(ctx, orgID).
		Model(&models.IngredientCost{}).
		Where("ingredient_id IN ? AND effective_at >= ?", ingredientIDs, since.UTC()).
		Distinct("ingredient_id").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) LatestCosts(ctx context.Context, orgID uuid.UUID, ingredientIDs []uuid.UUID) (map[uuid.UUID]models.IngredientCost, error) {
	return dishcost.LatestCostsFor(r.DB(ctx), orgID, ingredientIDs)
}

func (r *repository) InsertCosts(ctx context.Context, costs []models.IngredientCost, chunkSize int) error {
	if len(costs) == 0 {
		return nil
	}
	return r.DB(ctx).CreateInBatches(&costs, normalizeChunk(chunkSize)).Error
}

// MarkApplied flips uploaded to applied. It fails with ErrNotUploaded when
// another confirm got there first.
func (r *repository) MarkApplied(ctx context.Context, orgID, importID, actorID uuid.UUID, at time.Time) error {
	res := r.Org(ctx, orgID).
		Model(&models.CostImport{}).
		Where("id = ? AND status = ?", importID, enums.CostImportStatusUploaded).
		Updates(map[string]any{
			"status":     enums.CostImportStatusApplied,
			"applied_by": actorID,
			"applied_at": at,
			"updated_at": at,
		})
	return repo.Guarded(res, ErrNotUploaded)
}

func normalizeChunk(size int) int {
	if size <= 0 {
		return defaultChunkSize
	}
	return size
}
