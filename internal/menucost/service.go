package menucost

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/angelmondragon/platecost-backend/internal/audit"
	"github.com/angelmondragon/platecost-backend/internal/dishcost"
	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
	"github.com/angelmondragon/platecost-backend/pkg/metrics"
	"github.com/angelmondragon/platecost-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entries ...audit.Entry) error
}

// ReportCache stores the frozen view of locked menus, keyed by snapshot. Any
// error from Get is treated as a miss.
type ReportCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	LockedReportKey(orgID, menuID, snapshotID string) string
}

// GroupPatch updates group-level defaults. Absent fields are left alone and
// explicit nulls clear the override. Ranges are enforced by the validate tags
// when the patch is decoded.
type GroupPatch struct {
	UptakePct types.Nullable[float64] `json:"uptake_pct" validate:"omitempty,gte=0,lte=1"`
	Portion   types.Nullable[float64] `json:"portion" validate:"omitempty,gt=0"`
	WastePct  types.Nullable[float64] `json:"waste_pct" validate:"omitempty,gte=0,lte=1"`
}

// ItemPatch updates item overrides and the selling price.
type ItemPatch struct {
	UptakePct         types.Nullable[float64] `json:"uptake_pct" validate:"omitempty,gte=0,lte=1"`
	Portion           types.Nullable[float64] `json:"portion" validate:"omitempty,gt=0"`
	WastePct          types.Nullable[float64] `json:"waste_pct" validate:"omitempty,gte=0,lte=1"`
	SellingPriceMinor types.Nullable[int64]   `json:"selling_price_minor" validate:"omitempty,gte=0"`
}

// Service exposes menu costing and the live/locked state machine.
type Service interface {
	Report(ctx context.Context, orgID, menuID uuid.UUID, pax *int) (*Report, error)
	LockCheck(ctx context.Context, orgID, menuID uuid.UUID) (*LockCheck, error)
	Lock(ctx context.Context, orgID, actorID, menuID uuid.UUID) (*Report, error)
	Unlock(ctx context.Context, orgID, actorID, menuID uuid.UUID) (*Report, error)
	UpdateGroup(ctx context.Context, orgID, menuID, groupID uuid.UUID, patch GroupPatch) error
	UpdateItem(ctx context.Context, orgID, menuID, itemID uuid.UUID, patch ItemPatch) error
}

// ServiceParams groups the collaborators of the menu cost service.
type ServiceParams struct {
	Repo     Repository
	DishRepo dishcost.Repository
	Tx       txRunner
	Audit    auditRecorder
	Cache    ReportCache
	CacheTTL time.Duration
	Metrics  *metrics.CostingMetrics
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	repo     Repository
	dishRepo dishcost.Repository
	tx       txRunner
	audit    auditRecorder
	cache    ReportCache
	cacheTTL time.Duration
	metrics  *metrics.CostingMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService builds the menu cost service. Cache, metrics and logger are optional.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("menu repository required")
	}
	if p.DishRepo == nil {
		return nil, fmt.Errorf("dish cost repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		repo:     p.Repo,
		dishRepo: p.DishRepo,
		tx:       p.Tx,
		audit:    p.Audit,
		cache:    p.Cache,
		cacheTTL: p.CacheTTL,
		metrics:  p.Metrics,
		logg:     p.Logger,
		now:      p.Now,
	}, nil
}

// menuState is everything loaded for one menu at one point in time.
type menuState struct {
	menu   *models.Menu
	input  MenuInput
	groups []GroupInput
	items  []ItemInput
	dishes map[uuid.UUID]*dishcost.Result
}

// lockedView is the cached frozen aggregation of a locked menu.
type lockedView struct {
	SnapshotID uuid.UUID   `json:"snapshot_id"`
	LockedAt   time.Time   `json:"locked_at"`
	Agg        Aggregation `json:"aggregation"`
}

func (s *service) Report(ctx context.Context, orgID, menuID uuid.UUID, pax *int) (*Report, error) {
	if err := requireIDs(orgID, menuID); err != nil {
		return nil, err
	}
	if pax != nil && (*pax <= 0 || *pax > MaxPax) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pax is out of range").
			WithDetails(map[string]any{"min": 1, "max": MaxPax})
	}

	menu, err := s.findMenu(ctx, s.repo, orgID, menuID)
	if err != nil {
		return nil, err
	}
	input, err := menuInputOf(menu)
	if err != nil {
		return nil, err
	}

	if menu.CostMode == enums.CostModeLocked {
		view, err := s.lockedView(ctx, orgID, menu)
		if err != nil {
			return nil, err
		}
		report, err := BuildReport(input, view.Agg, pax)
		if err != nil {
			return nil, totalsError(err, pax)
		}
		snapshotID, lockedAt := view.SnapshotID, view.LockedAt
		report.SnapshotID = &snapshotID
		report.LockedAt = &lockedAt
		return &report, nil
	}

	state, err := s.loadLive(ctx, s.repo, s.dishRepo, menu)
	if err != nil {
		return nil, err
	}
	report, err := BuildReport(state.input, AggregateLive(state.input.DefaultWastePct, state.groups, state.items), pax)
	if err != nil {
		return nil, totalsError(err, pax)
	}
	return &report, nil
}

func (s *service) LockCheck(ctx context.Context, orgID, menuID uuid.UUID) (*LockCheck, error) {
	if err := requireIDs(orgID, menuID); err != nil {
		return nil, err
	}
	menu, err := s.findMenu(ctx, s.repo, orgID, menuID)
	if err != nil {
		return nil, err
	}
	state, err := s.loadLive(ctx, s.repo, s.dishRepo, menu)
	if err != nil {
		return nil, err
	}
	check := CanLock(menu.CostMode, state.groups, state.items)
	return &check, nil
}

// Lock freezes the live costs into a snapshot and flips the menu to locked.
// Preconditions are re-evaluated inside the transaction and every write is
// rolled back together on failure.
func (s *service) Lock(ctx context.Context, orgID, actorID, menuID uuid.UUID) (*Report, error) {
	if err := requireIDs(orgID, menuID); err != nil {
		return nil, err
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	ctx = s.withLogFields(ctx, orgID, actorID, menuID)

	var (
		report Report
		plan   *LockPlan
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		menu, err := s.findMenu(ctx, repo, orgID, menuID)
		if err != nil {
			return err
		}
		state, err := s.loadLive(ctx, repo, s.dishRepo.WithTx(tx), menu)
		if err != nil {
			return err
		}

		check := CanLock(menu.CostMode, state.groups, state.items)
		if !check.CanLock {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "menu cannot be locked").WithDetails(check)
		}

		agg := AggregateLive(state.input.DefaultWastePct, state.groups, state.items)
		now := s.now().UTC()
		plan, err = PlanLock(orgID, actorID, state.input, agg, state.dishes, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "menu cannot be locked")
		}
		if err := repo.CreateSnapshot(ctx, plan); err != nil {
			return pkgerrors.WrapDB(err, pkgerrors.CodeTransactionFailed, "write menu snapshot")
		}
		if err := repo.TransitionCostMode(ctx, orgID, menuID, enums.CostModeLive, enums.CostModeLocked, now, actorID); err != nil {
			return transitionError(err)
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			OrgID:      orgID,
			ActorID:    actorID,
			EntityType: enums.AuditEntityMenu,
			EntityID:   menuID,
			Action:     enums.AuditActionMenuLocked,
			Before:     map[string]any{"cost_mode": enums.CostModeLive},
			After: map[string]any{
				"cost_mode":               enums.CostModeLocked,
				"snapshot_id":             plan.Snapshot.ID,
				"menu_cost_per_pax_minor": plan.Snapshot.MenuCostPerPaxMinor,
			},
		}); err != nil {
			return pkgerrors.WrapDB(err, pkgerrors.CodeTransactionFailed, "record lock audit entry")
		}

		state.input.CostMode = enums.CostModeLocked
		if report, err = BuildReport(state.input, lockedAggregation(agg), nil); err != nil {
			return totalsError(err, nil)
		}
		snapshotID := plan.Snapshot.ID
		report.SnapshotID = &snapshotID
		report.LockedAt = &now
		return nil
	})
	if err != nil {
		s.metrics.IncLockTransition(string(enums.CostModeLocked), outcomeOf(err))
		s.logWarn(ctx, "menu lock rejected", err)
		return nil, pkgerrors.WrapTx(err, "lock menu")
	}

	s.metrics.IncLockTransition(string(enums.CostModeLocked), metrics.OutcomeApplied)
	s.logInfo(s.logField(ctx, "snapshot_id", plan.Snapshot.ID.String()), "menu locked")
	return &report, nil
}

// Unlock returns the menu to live costing. Snapshots are kept as history.
func (s *service) Unlock(ctx context.Context, orgID, actorID, menuID uuid.UUID) (*Report, error) {
	if err := requireIDs(orgID, menuID); err != nil {
		return nil, err
	}
	if actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	ctx = s.withLogFields(ctx, orgID, actorID, menuID)

	var snapshotID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		menu, err := s.findMenu(ctx, repo, orgID, menuID)
		if err != nil {
			return err
		}
		if menu.CostMode != enums.CostModeLocked {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "menu is not locked")
		}
		snapshot, err := repo.LatestSnapshot(ctx, orgID, menuID)
		if err != nil {
			return pkgerrors.WrapDB(err, pkgerrors.CodeInternal, "load menu snapshot")
		}
		if snapshot != nil {
			snapshotID = snapshot.ID
		}
		now := s.now().UTC()
		if err := repo.TransitionCostMode(ctx, orgID, menuID, enums.CostModeLocked, enums.CostModeLive, now, actorID); err != nil {
			return transitionError(err)
		}
		return s.audit.Record(ctx, tx, audit.Entry{
			OrgID:      orgID,
			ActorID:    actorID,
			EntityType: enums.AuditEntityMenu,
			EntityID:   menuID,
			Action:     enums.AuditActionMenuUnlocked,
			Before:     map[string]any{"cost_mode": enums.CostModeLocked, "locked_at": menu.LockedAt},
			After:      map[string]any{"cost_mode": enums.CostModeLive},
		})
	})
	if err != nil {
		s.metrics.IncLockTransition(string(enums.CostModeLive), outcomeOf(err))
		s.logWarn(ctx, "menu unlock rejected", err)
		return nil, pkgerrors.WrapTx(err, "unlock menu")
	}

	s.invalidate(ctx, orgID, menuID, snapshotID)
	s.metrics.IncLockTransition(string(enums.CostModeLive), metrics.OutcomeApplied)
	s.logInfo(ctx, "menu unlocked")
	return s.Report(ctx, orgID, menuID, nil)
}

func (s *service) UpdateGroup(ctx context.Context, orgID, menuID, groupID uuid.UUID, patch GroupPatch) error {
	if err := requireIDs(orgID, menuID); err != nil {
		return err
	}
	if groupID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "group id is required")
	}
	updates := overrideUpdates(patch.UptakePct, patch.Portion, patch.WastePct)
	if len(updates) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	return s.guardedUpdate(ctx, orgID, menuID, func(repo Repository) error {
		return repo.UpdateGroup(ctx, orgID, menuID, groupID, updates)
	}, "group")
}

func (s *service) UpdateItem(ctx context.Context, orgID, menuID, itemID uuid.UUID, patch ItemPatch) error {
	if err := requireIDs(orgID, menuID); err != nil {
		return err
	}
	if itemID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}
	updates := overrideUpdates(patch.UptakePct, patch.Portion, patch.WastePct)
	if patch.SellingPriceMinor.Valid {
		updates["selling_price_minor"] = patch.SellingPriceMinor.Value
	}
	if len(updates) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	return s.guardedUpdate(ctx, orgID, menuID, func(repo Repository) error {
		return repo.UpdateItem(ctx, orgID, menuID, itemID, updates)
	}, "item")
}

// guardedUpdate rejects mutations of a locked menu as a state conflict. The
// write itself is conditional on the menu being live, so a concurrent lock
// cannot be bypassed.
func (s *service) guardedUpdate(ctx context.Context, orgID, menuID uuid.UUID, write func(Repository) error, entity string) error {
	menu, err := s.findMenu(ctx, s.repo, orgID, menuID)
	if err != nil {
		return err
	}
	if menu.CostMode == enums.CostModeLocked {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "menu is locked; unlock it before changing overrides")
	}
	if err := write(s.repo); err != nil {
		if stdErrors.Is(err, ErrNotLive) {
			// either the row does not exist or the menu was locked meanwhile
			current, findErr := s.findMenu(ctx, s.repo, orgID, menuID)
			if findErr == nil && current.CostMode == enums.CostModeLocked {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "menu is locked; unlock it before changing overrides")
			}
			return pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update "+entity)
	}
	return nil
}

func overrideUpdates(uptake, portion, waste types.Nullable[float64]) map[string]any {
	updates := map[string]any{}
	fields := []struct {
		column string
		value  types.Nullable[float64]
	}{
		{column: "uptake_pct", value: uptake},
		{column: "portion", value: portion},
		{column: "waste_pct", value: waste},
	}
	for _, f := range fields {
		if f.value.Valid {
			updates[f.column] = f.value.Value
		}
	}
	return updates
}

// lockedView resolves the current snapshot first and only then consults the
// cache, so a cached view always belongs to the snapshot being served.
func (s *service) lockedView(ctx context.Context, orgID uuid.UUID, menu *models.Menu) (*lockedView, error) {
	snapshot, err := s.repo.LatestSnapshot(ctx, orgID, menu.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load menu snapshot")
	}
	if snapshot == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConsistency, "locked menu has no snapshot")
	}

	key := ""
	if s.cache != nil {
		key = s.cache.LockedReportKey(orgID.String(), menu.ID.String(), snapshot.ID.String())
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var view lockedView
			if jsonErr := json.Unmarshal([]byte(raw), &view); jsonErr == nil && view.SnapshotID == snapshot.ID {
				s.metrics.IncReportCache(true)
				return &view, nil
			}
		}
		s.metrics.IncReportCache(false)
	}

	rows, err := s.repo.ListItemSnapshots(ctx, orgID, snapshot.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item snapshots")
	}
	groups, err := s.repo.ListGroups(ctx, orgID, menu.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load menu groups")
	}
	items, err := s.repo.ListItems(ctx, orgID, menu.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load menu items")
	}

	lockedAt := snapshot.CreatedAt
	if menu.LockedAt != nil {
		lockedAt = *menu.LockedAt
	}
	view := &lockedView{
		SnapshotID: snapshot.ID,
		LockedAt:   lockedAt.UTC(),
		Agg:        AggregateLocked(groupInputs(groups), itemInputs(items, nil), SnapshotItemsFrom(rows)),
	}

	if s.cache != nil {
		if raw, err := json.Marshal(view); err == nil {
			if err := s.cache.Set(ctx, key, string(raw), s.cacheTTL); err != nil {
				s.logWarn(ctx, "cache locked menu report", err)
			}
		}
	}
	return view, nil
}

func (s *service) loadLive(ctx context.Context, repo Repository, dishRepo dishcost.Repository, menu *models.Menu) (*menuState, error) {
	input, err := menuInputOf(menu)
	if err != nil {
		return nil, err
	}
	groups, err := repo.ListGroups(ctx, menu.OrgID, menu.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load menu groups")
	}
	items, err := repo.ListItems(ctx, menu.OrgID, menu.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load menu items")
	}

	dishIDs := make([]uuid.UUID, 0, len(items))
	for _, it := range items {
		dishIDs = append(dishIDs, it.DishID)
	}
	dishes, err := dishcost.Load(ctx, dishRepo, menu.OrgID, dishIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute dish costs")
	}

	return &menuState{
		menu:   menu,
		input:  input,
		groups: groupInputs(groups),
		items:  itemInputs(items, dishes),
		dishes: dishes,
	}, nil
}

func (s *service) findMenu(ctx context.Context, repo Repository, orgID, menuID uuid.UUID) (*models.Menu, error) {
	menu, err := repo.FindMenu(ctx, orgID, menuID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "menu not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load menu")
	}
	return menu, nil
}

// invalidate frees the cached view of a snapshot that is no longer current.
// A failed delete only leaves an unreachable entry until its TTL.
func (s *service) invalidate(ctx context.Context, orgID, menuID, snapshotID uuid.UUID) {
	if s.cache == nil || snapshotID == uuid.Nil {
		return
	}
	if err := s.cache.Del(ctx, s.cache.LockedReportKey(orgID.String(), menuID.String(), snapshotID.String())); err != nil {
		s.logWarn(ctx, "invalidate locked menu report", err)
	}
}

func menuInputOf(menu *models.Menu) (MenuInput, error) {
	kind, err := KindOf(*menu)
	if err != nil {
		return MenuInput{}, pkgerrors.Wrap(pkgerrors.CodeConsistency, err, "menu type is not supported")
	}
	return MenuInput{
		ID:              menu.ID,
		Currency:        menu.Currency,
		CostMode:        menu.CostMode,
		DefaultWastePct: menu.DefaultWastePct,
		Kind:            kind,
	}, nil
}

func groupInputs(groups []models.MenuGroup) []GroupInput {
	out := make([]GroupInput, 0, len(groups))
	for _, g := range groups {
		out = append(out, GroupInput{
			ID:        g.ID,
			Name:      g.Name,
			SortOrder: g.SortOrder,
			UptakePct: g.UptakePct,
			Portion:   g.Portion,
			WastePct:  g.WastePct,
		})
	}
	return out
}

func itemInputs(items []models.MenuItem, dishes map[uuid.UUID]*dishcost.Result) []ItemInput {
	out := make([]ItemInput, 0, len(items))
	for _, it := range items {
		input := ItemInput{
			ID:                it.ID,
			GroupID:           it.MenuGroupID,
			DishID:            it.DishID,
			SortOrder:         it.SortOrder,
			UptakePct:         it.UptakePct,
			Portion:           it.Portion,
			WastePct:          it.WastePct,
			SellingPriceMinor: it.SellingPriceMinor,
		}
		if result, ok := dishes[it.DishID]; ok {
			input.DishCostPerServingMinor = result.Summary.MenuCostPerServing()
		}
		out = append(out, input)
	}
	return out
}

// lockedAggregation drops live-only annotations so the lock response matches
// what later reads of the locked menu return.
func lockedAggregation(agg Aggregation) Aggregation {
	out := agg
	out.MissingDishCosts = 0
	out.Items = make([]ItemCost, len(agg.Items))
	for i, it := range agg.Items {
		it.Sources = nil
		out.Items[i] = it
	}
	return out
}

// totalsError reports totals that do not fit in minor units as a request the
// caller can fix by asking for fewer guests.
func totalsError(err error, pax *int) error {
	details := map[string]any{}
	if pax != nil {
		details["pax"] = *pax
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "menu totals exceed the supported range").WithDetails(details)
}

func transitionError(err error) error {
	if stdErrors.Is(err, ErrModeChanged) {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "menu cost mode changed concurrently")
	}
	return pkgerrors.WrapDB(err, pkgerrors.CodeTransactionFailed, "update menu cost mode")
}

func outcomeOf(err error) string {
	if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) || pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return metrics.OutcomeRejected
	}
	return metrics.OutcomeFailed
}

func requireIDs(orgID, menuID uuid.UUID) error {
	if orgID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "org id is required")
	}
	if menuID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "menu id is required")
	}
	return nil
}

func (s *service) withLogFields(ctx context.Context, orgID, actorID, menuID uuid.UUID) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, map[string]any{
		"org_id":   orgID.String(),
		"actor_id": actorID.String(),
		"menu_id":  menuID.String(),
	})
}

func (s *service) logField(ctx context.Context, key string, value any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithField(ctx, key, value)
}

func (s *service) logInfo(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Info(ctx, msg)
	}
}

func (s *service) logWarn(ctx context.Context, msg string, err error) {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
	}
}
