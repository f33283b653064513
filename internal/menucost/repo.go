package menucost

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/angelmondragon/platecost-backend/internal/repo"
	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotLive is returned by guarded writes when the menu is not live anymore.
var ErrNotLive = stdErrors.New("menu is not live")

// ErrModeChanged is returned when a cost mode transition lost a race.
var ErrModeChanged = stdErrors.New("menu cost mode changed concurrently")

// Repository persists menus, their overrides and lock snapshots.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindMenu(ctx context.Context, orgID, menuID uuid.UUID) (*models.Menu, error)
	ListGroups(ctx context.Context, orgID, menuID uuid.UUID) ([]models.MenuGroup, error)
	ListItems(ctx context.Context, orgID, menuID uuid.UUID) ([]models.MenuItem, error)
	LatestSnapshot(ctx context.Context, orgID, menuID uuid.UUID) (*models.MenuCostSnapshot, error)
	ListItemSnapshots(ctx context.Context, orgID, snapshotID uuid.UUID) ([]models.MenuItemCostSnapshot, error)
	ListIngredientSnapshots(ctx context.Context, orgID, snapshotID uuid.UUID) ([]models.MenuIngredientCostSnapshot, error)
	CreateSnapshot(ctx context.Context, plan *LockPlan) error
	TransitionCostMode(ctx context.Context, orgID, menuID uuid.UUID, from, to enums.CostMode, at time.Time, actorID uuid.UUID) error
	UpdateGroup(ctx context.Context, orgID, menuID, groupID uuid.UUID, updates map[string]any) error
	UpdateItem(ctx context.Context, orgID, menuID, itemID uuid.UUID, updates map[string]any) error
}

type repository struct {
	repo.Base
}

// NewRepository returns a menu repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: repo.NewBase(tx)}
}

func (r *repository) FindMenu(ctx context.Context, orgID, menuID uuid.UUID) (*models.Menu, error) {
	var menu models.Menu
	if err := r.FindByID(ctx, orgID, menuID, &menu); err != nil {
		return nil, err
	}
	return &menu, nil
}

func (r *repository) ListGroups(ctx context.Context, orgID, menuID uuid.UUID) ([]models.MenuGroup, error) {
	var groups []models.MenuGroup
	if err := r.Org(ctx, orgID).
		Where("menu_id = ?", menuID).
		Order("sort_order ASC, id ASC").
		Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

func (r *repository) ListItems(ctx context.Context, orgID, menuID uuid.UUID) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := r.Org(ctx, orgID).
		Where("menu_id = ?", menuID).
		Order("sort_order ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// LatestSnapshot returns nil without error when the menu was never locked.
func (r *repository) LatestSnapshot(ctx context.Context, orgID, menuID uuid.UUID) (*models.MenuCostSnapshot, error) {
	var snapshots []models.MenuCostSnapshot
	if err := r.Org(ctx, orgID).
		Where("menu_id = ?", menuID).
		Order("sequence DESC").
		Limit(1).
		Find(&snapshots).Error; err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return &snapshots[0], nil
}

func (r *repository) ListItemSnapshots(ctx context.Context, orgID, snapshotID uuid.UUID) ([]models.MenuItemCostSnapshot, error) {
	var rows []models.MenuItemCostSnapshot
	if err := r.Org(ctx, orgID).
		Where("menu_cost_snapshot_id = ?", snapshotID).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListIngredientSnapshots(ctx context.Context, orgID, snapshotID uuid.UUID) ([]models.MenuIngredientCostSnapshot, error) {
	var rows []models.MenuIngredientCostSnapshot
	if err := r.Org(ctx, orgID).
		Where("menu_cost_snapshot_id = ?", snapshotID).
		Order("ingredient_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateSnapshot numbers the snapshot after the menu's previous ones. Two
// concurrent locks collide on ux_menu_cost_snapshots_menu_sequence.
func (r *repository) CreateSnapshot(ctx context.Context, plan *LockPlan) error {
	db := r.DB(ctx)
	var last int64
	if err := r.Org(ctx, plan.Snapshot.OrgID).
		Model(&models.MenuCostSnapshot{}).
		Where("menu_id = ?", plan.Snapshot.MenuID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error; err != nil {
		return err
	}
	plan.Snapshot.Sequence = last + 1
	if err := db.Create(&plan.Snapshot).Error; err != nil {
		return err
	}
	if len(plan.Items) > 0 {
		if err := db.Create(&plan.Items).Error; err != nil {
			return err
		}
	}
	if len(plan.Ingredients) > 0 {
		if err := db.Create(&plan.Ingredients).Error; err != nil {
			return err
		}
	}
	return nil
}

// TransitionCostMode flips cost_mode only when it still equals from.
func (r *repository) TransitionCostMode(ctx context.Context, orgID, menuID uuid.UUID, from, to enums.CostMode, at time.Time, actorID uuid.UUID) error {
	updates := map[string]any{
		"cost_mode":  to,
		"updated_at": at,
	}
	if to == enums.CostModeLocked {
		updates["locked_at"] = at
		updates["locked_by"] = actorID
	} else {
		updates["locked_at"] = nil
		updates["locked_by"] = nil
	}

	res := r.Org(ctx, orgID).
		Model(&models.Menu{}).
		Where("id = ? AND cost_mode = ?", menuID, from).
		Updates(updates)
	return repo.Guarded(res, ErrModeChanged)
}

func (r *repository) UpdateGroup(ctx context.Context, orgID, menuID, groupID uuid.UUID, updates map[string]any) error {
	return r.guardedUpdate(ctx, &models.MenuGroup{}, orgID, menuID, groupID, updates)
}

func (r *repository) UpdateItem(ctx context.Context, orgID, menuID, itemID uuid.UUID, updates map[string]any) error {
	return r.guardedUpdate(ctx, &models.MenuItem{}, orgID, menuID, itemID, updates)
}

// guardedUpdate only touches the row while its menu is live, so a lock that
// lands between the caller's check and this write still wins.
func (r *repository) guardedUpdate(ctx context.Context, model any, orgID, menuID, id uuid.UUID, updates map[string]any) error {
	db := r.DB(ctx)
	live := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Menu{}).
		Select("1").
		Where("org_id = ? AND id = ? AND cost_mode = ?", orgID, menuID, enums.CostModeLive)

	res := db.Model(model).
		Where("org_id = ? AND menu_id = ? AND id = ?", orgID, menuID, id).
		Where("EXISTS (?)", live).
		Updates(updates)
	return repo.Guarded(res, ErrNotLive)
}
