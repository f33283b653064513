package costimport

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/angelmondragon/platecost-backend/internal/audit"
	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/instance"
	"github.com/angelmondragon/platecost-backend/pkg/logger"
	"github.com/angelmondragon/platecost-backend/pkg/metrics"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultChunkSize       = 500
	defaultConfirmGuardTTL = 2 * time.Minute
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entries ...audit.Entry) error
}

// ConfirmGuard serializes confirms of the same import across instances.
type ConfirmGuard interface {
	AcquireGuard(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
	ReleaseGuard(ctx context.Context, key, owner string) error
	ImportConfirmKey(orgID, importID string) string
}

// Preview is the classification of a file that was not persisted.
type Preview struct {
	Summary Summary         `json:"summary"`
	Rows    []ClassifiedRow `json:"rows"`
}

// UploadInput describes one uploaded file.
type UploadInput struct {
	Filename string
	Currency string
	Body     io.Reader
}

// ImportView is a persisted import with its classified rows.
type ImportView struct {
	ID         uuid.UUID              `json:"id"`
	Filename   string                 `json:"filename"`
	Currency   string                 `json:"currency"`
	Status     enums.CostImportStatus `json:"status"`
	UploadedBy uuid.UUID              `json:"uploaded_by"`
	AppliedBy  *uuid.UUID             `json:"applied_by"`
	AppliedAt  *time.Time             `json:"applied_at"`
	CreatedAt  time.Time              `json:"created_at"`
	Summary    Summary                `json:"summary"`
	Rows       []ClassifiedRow        `json:"rows"`
}

// ConfirmResult reports what a confirm applied.
type ConfirmResult struct {
	ImportID           uuid.UUID              `json:"import_id"`
	Status             enums.CostImportStatus `json:"status"`
	AppliedRows        int                    `json:"applied_rows"`
	IngredientsUpdated int                    `json:"ingredients_updated"`
	AppliedAt          time.Time              `json:"applied_at"`
}

// Service classifies cost files and applies matched rows as new ingredient costs.
type Service interface {
	Preview(ctx context.Context, orgID uuid.UUID, body io.Reader) (*Preview, error)
	Upload(ctx context.Context, orgID, actorID uuid.UUID, input UploadInput) (*ImportView, error)
	Get(ctx context.Context, orgID, importID uuid.UUID) (*ImportView, error)
	Confirm(ctx context.Context, orgID, actorID, importID uuid.UUID, force bool) (*ConfirmResult, error)
}

// ServiceParams groups the collaborators of the import service.
type ServiceParams struct {
	Repo      Repository
	Tx        txRunner
	Audit     auditRecorder
	Guard     ConfirmGuard
	GuardTTL  time.Duration
	ChunkSize int
	Location  *time.Location
	Metrics   *metrics.CostingMetrics
	Logger    *logger.Logger
	Now       func() time.Time
}

type service struct {
	repo      Repository
	tx        txRunner
	audit     auditRecorder
	guard     ConfirmGuard
	guardTTL  time.Duration
	chunkSize int
	loc       *time.Location
	metrics   *metrics.CostingMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the import service. Guard, metrics and logger are optional.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("cost import repository required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if p.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if p.ChunkSize <= 0 {
		p.ChunkSize = defaultChunkSize
	}
	if p.GuardTTL <= 0 {
		p.GuardTTL = defaultConfirmGuardTTL
	}
	if p.Location == nil {
		p.Location = time.UTC
	}
	if p.Now == nil {
		p.Now = time.Now
	}
	return &service{
		repo:      p.Repo,
		tx:        p.Tx,
		audit:     p.Audit,
		guard:     p.Guard,
		guardTTL:  p.GuardTTL,
		chunkSize: p.ChunkSize,
		loc:       p.Location,
		metrics:   p.Metrics,
		logg:      p.Logger,
		now:       p.Now,
	}, nil
}

func (s *service) Preview(ctx context.Context, orgID uuid.UUID, body io.Reader) (*Preview, error) {
	if orgID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "org id is required")
	}
	rows, summary, err := s.classify(ctx, orgID, body)
	if err != nil {
		return nil, err
	}
	return &Preview{Summary: summary, Rows: rows}, nil
}

func (s *service) Upload(ctx context.Context, orgID, actorID uuid.UUID, input UploadInput) (*ImportView, error) {
	if orgID == uuid.Nil || actorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "org id and actor id are required")
	}
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "filename is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))

	rows, summary, err := s.classify(ctx, orgID, input.Body)
	if err != nil {
		return nil, err
	}

	imp := &models.CostImport{
		OrgID:      orgID,
		Filename:   filename,
		Currency:   currency,
		Status:     enums.CostImportStatusUploaded,
		RowsTotal:  summary.Total,
		UploadedBy: actorID,
	}
	records := make([]models.CostImportRow, 0, len(rows))
	for _, row := range rows {
		records = append(records, rowModel(row))
	}

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).CreateImport(ctx, imp, records, s.chunkSize)
	}); err != nil {
		return nil, pkgerrors.WrapDB(err, pkgerrors.CodeTransactionFailed, "store cost import")
	}

	for _, status := range []enums.RowParseStatus{
		enums.RowParseStatusMatchedOK,
		enums.RowParseStatusMissingIngredient,
		enums.RowParseStatusInvalidUom,
		enums.RowParseStatusInvalidNumber,
	} {
		s.metrics.AddImportRows(string(status), summary.Count(status))
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"org_id":     orgID.String(),
			"actor_id":   actorID.String(),
			"import_id":  imp.ID.String(),
			"rows_total": summary.Total,
			"matched_ok": summary.MatchedOK,
		})
		s.logg.Info(logCtx, "cost import uploaded")
	}

	return &ImportView{
		ID:         imp.ID,
		Filename:   imp.Filename,
		Currency:   imp.Currency,
		Status:     imp.Status,
		UploadedBy: imp.UploadedBy,
		CreatedAt:  imp.CreatedAt,
		Summary:    summary,
		Rows:       rows,
	}, nil
}

func (s *service) Get(ctx context.Context, orgID, importID uuid.UUID) (*ImportView, error) {
	imp, err := s.findImport(ctx, s.repo, orgID, importID)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListRows(ctx, orgID, importID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cost import rows")
	}

	view := &ImportView{
		ID:         imp.ID,
		Filename:   imp.Filename,
		Currency:   imp.Currency,
		Status:     imp.Status,
		UploadedBy: imp.UploadedBy,
		AppliedBy:  imp.AppliedBy,
		AppliedAt:  imp.AppliedAt,
		CreatedAt:  imp.CreatedAt,
		Rows:       make([]ClassifiedRow, 0, len(records)),
	}
	for _, record := range records {
		row := classifiedFromModel(record)
		view.Rows = append(view.Rows, row)
		view.Summary = view.Summary.Add(deltaFor(row.Status))
	}
	return view, nil
}

// Confirm applies every matched row as a new ingredient cost effective now.
// Unless force is set it first refuses when any matched ingredient already
// has a cost effective today. The check is advisory; the inserts, the status
// flip and the audit entries share one transaction.
func (s *service) Confirm(ctx context.Context, orgID, actorID, importID uuid.UUID, force bool) (*ConfirmResult, error) {
	if orgID == uuid.Nil || actorID == uuid.Nil || importID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "org id, actor id and import id are required")
	}
	started := s.now()
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"org_id":    orgID.String(),
			"actor_id":  actorID.String(),
			"import_id": importID.String(),
		})
	}

	result, err := s.confirm(ctx, orgID, actorID, importID, force)
	s.metrics.ObserveConfirm(confirmOutcome(err), s.now().Sub(started))
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "cost import confirm rejected")
		}
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithField(ctx, "applied_rows", result.AppliedRows), "cost import applied")
	}
	return result, nil
}

func (s *service) confirm(ctx context.Context, orgID, actorID, importID uuid.UUID, force bool) (*ConfirmResult, error) {
	if s.guard != nil {
		key := s.guard.ImportConfirmKey(orgID.String(), importID.String())
		owner := instance.GetID() + ":" + uuid.NewString()
		acquired, err := s.guard.AcquireGuard(ctx, key, owner, s.guardTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire confirm guard")
		}
		if !acquired {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "cost import confirmation already in progress")
		}
		defer func() {
			if err := s.guard.ReleaseGuard(context.WithoutCancel(ctx), key, owner); err != nil && s.logg != nil {
				s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "release confirm guard")
			}
		}()
	}

	imp, err := s.findImport(ctx, s.repo, orgID, importID)
	if err != nil {
		return nil, err
	}
	if imp.Status != enums.CostImportStatusUploaded {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cost import was already applied")
	}

	matched, err := s.repo.ListRows(ctx, orgID, importID, enums.RowParseStatusMatchedOK)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load matched rows")
	}
	if len(matched) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cost import has no matched rows")
	}
	ingredientIDs := distinctIngredients(matched)

	now := s.now()
	if !force {
		recent, err := s.repo.CountCostsSince(ctx, orgID, ingredientIDs, startOfDay(now, s.loc))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check recent cost updates")
		}
		if recent > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "some ingredients already have a cost effective today").
				WithDetails(map[string]any{"recent_updates": recent})
		}
	}

	appliedAt := now.UTC()
	costs := make([]models.IngredientCost, 0, len(matched))
	for _, row := range matched {
		costs = append(costs, models.IngredientCost{
			OrgID:             orgID,
			IngredientID:      *row.MatchedIngredientID,
			CostPerBaseX10000: *row.ComputedCostPerBaseX10000,
			Currency:          imp.Currency,
			EffectiveAt:       appliedAt,
			CostImportID:      &imp.ID,
			CreatedBy:         &actorID,
		})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		before, err := repo.LatestCosts(ctx, orgID, ingredientIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load prior costs")
		}
		if err := repo.InsertCosts(ctx, costs, s.chunkSize); err != nil {
			return pkgerrors.WrapDB(err, pkgerrors.CodeTransactionFailed, "insert ingredient costs")
		}
		if err := repo.MarkApplied(ctx, orgID, importID, actorID, appliedAt); err != nil {
			if stdErrors.Is(err, ErrNotUploaded) {
				return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "cost import was already applied")
			}
			return pkgerrors.WrapDB(err, pkgerrors.CodeTransactionFailed, "mark cost import applied")
		}
		return s.audit.Record(ctx, tx, auditEntries(orgID, actorID, imp.ID, ingredientIDs, before, costs)...)
	})
	if err != nil {
		return nil, pkgerrors.WrapTx(err, "confirm cost import")
	}

	return &ConfirmResult{
		ImportID:           imp.ID,
		Status:             enums.CostImportStatusApplied,
		AppliedRows:        len(costs),
		IngredientsUpdated: len(ingredientIDs),
		AppliedAt:          appliedAt,
	}, nil
}

func (s *service) classify(ctx context.Context, orgID uuid.UUID, body io.Reader) ([]ClassifiedRow, Summary, error) {
	if body == nil {
		return nil, Summary{}, pkgerrors.New(pkgerrors.CodeValidation, "file is required")
	}
	raw, err := ReadRows(body)
	if err != nil {
		var missing *MissingColumnsError
		if stdErrors.As(err, &missing) {
			return nil, Summary{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cost import header").
				WithDetails(map[string]any{"missing_columns": missing.Columns})
		}
		return nil, Summary{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cost import file")
	}

	reg, err := s.registry(ctx, orgID)
	if err != nil {
		return nil, Summary{}, err
	}
	rows, summary := ClassifyAll(reg, raw)
	return rows, summary, nil
}

func (s *service) registry(ctx context.Context, orgID uuid.UUID) (*Registry, error) {
	ingredients, err := s.repo.ListIngredients(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load ingredients")
	}
	units, err := s.repo.ListUnits(ctx, orgID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load units")
	}
	return NewRegistry(ingredients, units), nil
}

func (s *service) findImport(ctx context.Context, repo Repository, orgID, importID uuid.UUID) (*models.CostImport, error) {
	imp, err := repo.FindImport(ctx, orgID, importID)
	if err != nil {
		if stdErrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "cost import not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cost import")
	}
	return imp, nil
}

// auditEntries emits one entry per ingredient. When an import carries several
// rows for the same ingredient the last one is the effective cost afterwards.
func auditEntries(orgID, actorID, importID uuid.UUID, ingredientIDs []uuid.UUID, before map[uuid.UUID]models.IngredientCost, costs []models.IngredientCost) []audit.Entry {
	after := make(map[uuid.UUID]models.IngredientCost, len(ingredientIDs))
	for _, c := range costs {
		after[c.IngredientID] = c
	}

	entries := make([]audit.Entry, 0, len(ingredientIDs))
	for _, id := range ingredientIDs {
		entry := audit.Entry{
			OrgID:      orgID,
			ActorID:    actorID,
			EntityType: enums.AuditEntityIngredient,
			EntityID:   id,
			Action:     enums.AuditActionIngredientCostImported,
			After:      costState(after[id], &importID),
		}
		if prior, ok := before[id]; ok {
			entry.Before = costState(prior, prior.CostImportID)
		}
		entries = append(entries, entry)
	}
	return entries
}

func costState(c models.IngredientCost, importID *uuid.UUID) map[string]any {
	state := map[string]any{
		"cost_per_base_x10000": c.CostPerBaseX10000,
		"currency":             c.Currency,
		"effective_at":         c.EffectiveAt.UTC(),
	}
	if c.ID != 0 {
		state["ingredient_cost_id"] = c.ID
	}
	if importID != nil {
		state["cost_import_id"] = importID.String()
	}
	return state
}

func distinctIngredients(rows []models.CostImportRow) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(rows))
	out := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if row.MatchedIngredientID == nil {
			continue
		}
		id := *row.MatchedIngredientID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func startOfDay(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func confirmOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeApplied
	case pkgerrors.IsCode(err, pkgerrors.CodeConflict):
		return metrics.OutcomeConflict
	case pkgerrors.IsCode(err, pkgerrors.CodeValidation),
		pkgerrors.IsCode(err, pkgerrors.CodeStateConflict),
		pkgerrors.IsCode(err, pkgerrors.CodeNotFound):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}

func rowModel(row ClassifiedRow) models.CostImportRow {
	return models.CostImportRow{
		RowNumber:                 row.RowNumber,
		IngredientName:            row.IngredientName,
		PurchaseQty:               row.PurchaseQty,
		PurchaseUom:               row.PurchaseUom,
		TotalCost:                 row.TotalCost,
		ParseStatus:               row.Status,
		MatchedIngredientID:       row.IngredientID,
		MatchedUomID:              row.UomID,
		TotalCostMinor:            row.TotalCostMinor,
		ComputedCostPerBaseX10000: row.ComputedCostPerBaseX10000,
	}
}

func classifiedFromModel(record models.CostImportRow) ClassifiedRow {
	return ClassifiedRow{
		RawRow: RawRow{
			RowNumber:      record.RowNumber,
			IngredientName: record.IngredientName,
			PurchaseQty:    record.PurchaseQty,
			PurchaseUom:    record.PurchaseUom,
			TotalCost:      record.TotalCost,
		},
		Status:                    record.ParseStatus,
		IngredientID:              record.MatchedIngredientID,
		UomID:                     record.MatchedUomID,
		TotalCostMinor:            record.TotalCostMinor,
		ComputedCostPerBaseX10000: record.ComputedCostPerBaseX10000,
	}
}
