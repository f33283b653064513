package costimport

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/platecost-backend/internal/audit"
	pkgdb "github.com/angelmondragon/platecost-backend/pkg/db"
	"github.com/angelmondragon/platecost-backend/pkg/db/dbtest"
	"github.com/angelmondragon/platecost-backend/pkg/db/models"
	"github.com/angelmondragon/platecost-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/platecost-backend/pkg/errors"
	"github.com/angelmondragon/platecost-backend/pkg/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const sampleCSV = `Ingredient,Qty,Unit,Cost
Flour,2,kg,25.00
Butter,500,g,4.10
Saffron,1,g,12.00
Milk,1,kg,1.00
Butter,abc,g,3.00
`

type importFixture struct {
	db            *gorm.DB
	fx            *dbtest.Fixtures
	flour, butter *models.Ingredient
	now           time.Time
}

func seedImport(t *testing.T) importFixture {
	db := dbtest.Open(t)
	fx := dbtest.NewFixtures(t, db)
	massSet, _ := fx.UomSet("mass", dbtest.MassSet)
	volumeSet, _ := fx.UomSet("volume", dbtest.VolumeSet)
	flour := fx.Ingredient("Flour", massSet.ID)
	butter := fx.Ingredient("Butter", massSet.ID)
	fx.Ingredient("Milk", volumeSet.ID)
	return importFixture{
		db:     db,
		fx:     fx,
		flour:  flour,
		butter: butter,
		now:    time.Date(2026, 6, 10, 15, 0, 0, 0, time.UTC),
	}
}

type busyGuard struct{}

func (busyGuard) AcquireGuard(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	return false, nil
}

func (busyGuard) ReleaseGuard(ctx context.Context, key, owner string) error { return nil }

func (busyGuard) ImportConfirmKey(orgID, importID string) string { return orgID + ":" + importID }

type recordingGuard struct {
	acquired, released []string
}

func (g *recordingGuard) AcquireGuard(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	g.acquired = append(g.acquired, key)
	return true, nil
}

func (g *recordingGuard) ReleaseGuard(ctx context.Context, key, owner string) error {
	g.released = append(g.released, key)
	return nil
}

func (g *recordingGuard) ImportConfirmKey(orgID, importID string) string {
	return "import:" + orgID + ":" + importID
}

// failingInsertRepo writes the first cost row and then fails, like a driver
// rejecting a later chunk.
type failingInsertRepo struct {
	Repository
}

func (f failingInsertRepo) WithTx(tx *gorm.DB) Repository {
	return failingInsertRepo{Repository: f.Repository.WithTx(tx)}
}

func (f failingInsertRepo) InsertCosts(ctx context.Context, costs []models.IngredientCost, chunkSize int) error {
	if err := f.Repository.InsertCosts(ctx, costs[:1], chunkSize); err != nil {
		return err
	}
	return fmt.Errorf("too many bind parameters")
}

func newImportService(t *testing.T, db *gorm.DB, repo Repository, guard ConfirmGuard, m *metrics.CostingMetrics, now time.Time) Service {
	t.Helper()
	auditSvc, err := audit.NewService(audit.NewRepository(db))
	require.NoError(t, err)
	if repo == nil {
		repo = NewRepository(db)
	}
	svc, err := NewService(ServiceParams{
		Repo:      repo,
		Tx:        pkgdb.NewFromConn(db),
		Audit:     auditSvc,
		Guard:     guard,
		ChunkSize: 1,
		Metrics:   m,
		Now:       func() time.Time { return now },
	})
	require.NoError(t, err)
	return svc
}

func TestServicePreviewHasNoSideEffects(t *testing.T) {
	f := seedImport(t)
	svc := newImportService(t, f.db, nil, nil, nil, f.now)
	ctx := context.Background()

	first, err := svc.Preview(ctx, f.fx.OrgID, strings.NewReader(sampleCSV))
	require.NoError(t, err)
	second, err := svc.Preview(ctx, f.fx.OrgID, strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Summary{Total: 5, MatchedOK: 2, MissingIngredient: 1, InvalidUom: 1, InvalidNumber: 1}, first.Summary)

	var imports, rows int64
	require.NoError(t, f.db.Model(&models.CostImport{}).Count(&imports).Error)
	require.NoError(t, f.db.Model(&models.CostImportRow{}).Count(&rows).Error)
	assert.Zero(t, imports)
	assert.Zero(t, rows)
}

func TestServicePreviewRejectsBadHeader(t *testing.T) {
	f := seedImport(t)
	svc := newImportService(t, f.db, nil, nil, nil, f.now)

	_, err := svc.Preview(context.Background(), f.fx.OrgID, strings.NewReader("name,qty\nFlour,1\n"))
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	details := appErr.Details().(map[string]any)
	assert.Equal(t, []string{ColumnPurchaseUom, ColumnTotalCost}, details["missing_columns"])
}

func TestServiceUploadAndConfirm(t *testing.T) {
	f := seedImport(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewCostingMetrics(reg)
	guard := &recordingGuard{}
	svc := newImportService(t, f.db, nil, guard, m, f.now)
	ctx := context.Background()
	actor := uuid.New()

	prior := f.fx.Cost(f.flour.ID, 9000, f.now.Add(-72*time.Hour))

	uploaded, err := svc.Upload(ctx, f.fx.OrgID, actor, UploadInput{Filename: "june.csv", Currency: "usd", Body: strings.NewReader(sampleCSV)})
	require.NoError(t, err)
	assert.Equal(t, enums.CostImportStatusUploaded, uploaded.Status)
	assert.Equal(t, "USD", uploaded.Currency)
	assert.Equal(t, 2, uploaded.Summary.MatchedOK)
	assert.Equal(t, float64(2), counterValue(t, reg, "cost_import_rows_total", "status", string(enums.RowParseStatusMatchedOK)))

	fetched, err := svc.Get(ctx, f.fx.OrgID, uploaded.ID)
	require.NoError(t, err)
	assert.Equal(t, uploaded.Summary, fetched.Summary)
	require.Len(t, fetched.Rows, 5)
	assert.Equal(t, 2, fetched.Rows[0].RowNumber)

	result, err := svc.Confirm(ctx, f.fx.OrgID, actor, uploaded.ID, false)
	require.NoError(t, err)
	assert.Equal(t, enums.CostImportStatusApplied, result.Status)
	assert.Equal(t, 2, result.AppliedRows)
	assert.Equal(t, 2, result.IngredientsUpdated)
	assert.Len(t, guard.acquired, 1)
	assert.Equal(t, guard.acquired, guard.released)
	assert.Equal(t, float64(1), counterValue(t, reg, "cost_import_confirms_total", "outcome", metrics.OutcomeApplied))

	var costs []models.IngredientCost
	require.NoError(t, f.db.Where("cost_import_id = ?", uploaded.ID).Order("id ASC").Find(&costs).Error)
	require.Len(t, costs, 2)
	assert.Equal(t, f.flour.ID, costs[0].IngredientID)
	assert.Equal(t, int64(12500), costs[0].CostPerBaseX10000)
	assert.Equal(t, f.butter.ID, costs[1].IngredientID)
	assert.Equal(t, int64(8200), costs[1].CostPerBaseX10000)
	assert.Equal(t, "USD", costs[1].Currency)

	entries, err := audit.NewRepository(f.db).ListByEntity(ctx, f.fx.OrgID, enums.AuditEntityIngredient, f.flour.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, enums.AuditActionIngredientCostImported, entries[0].Action)
	assert.Contains(t, string(entries[0].Before), fmt.Sprintf(`"ingredient_cost_id":%d`, prior.ID))
	assert.Contains(t, string(entries[0].After), `"cost_per_base_x10000":12500`)

	butterEntries, err := audit.NewRepository(f.db).ListByEntity(ctx, f.fx.OrgID, enums.AuditEntityIngredient, f.butter.ID)
	require.NoError(t, err)
	require.Len(t, butterEntries, 1)
	assert.Nil(t, butterEntries[0].Before)

	_, err = svc.Confirm(ctx, f.fx.OrgID, actor, uploaded.ID, true)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	applied, err := svc.Get(ctx, f.fx.OrgID, uploaded.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CostImportStatusApplied, applied.Status)
	require.NotNil(t, applied.AppliedBy)
	assert.Equal(t, actor, *applied.AppliedBy)
}

func TestServiceConfirmRecentUpdateConflict(t *testing.T) {
	f := seedImport(t)
	svc := newImportService(t, f.db, nil, nil, nil, f.now)
	ctx := context.Background()
	actor := uuid.New()

	// already priced this morning
	f.fx.Cost(f.flour.ID, 9000, time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC))

	uploaded, err := svc.Upload(ctx, f.fx.OrgID, actor, UploadInput{Filename: "june.csv", Currency: "USD", Body: strings.NewReader(sampleCSV)})
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, f.fx.OrgID, actor, uploaded.ID, false)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeConflict, appErr.Code())
	assert.Equal(t, int64(1), appErr.Details().(map[string]any)["recent_updates"])

	var count int64
	require.NoError(t, f.db.Model(&models.IngredientCost{}).Where("cost_import_id = ?", uploaded.ID).Count(&count).Error)
	assert.Zero(t, count)

	result, err := svc.Confirm(ctx, f.fx.OrgID, actor, uploaded.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.AppliedRows)
}

func TestServiceConfirmIsAtomic(t *testing.T) {
	f := seedImport(t)
	svc := newImportService(t, f.db, failingInsertRepo{Repository: NewRepository(f.db)}, nil, nil, f.now)
	ctx := context.Background()
	actor := uuid.New()

	uploaded, err := svc.Upload(ctx, f.fx.OrgID, actor, UploadInput{Filename: "june.csv", Currency: "USD", Body: strings.NewReader(sampleCSV)})
	require.NoError(t, err)

	_, err = svc.Confirm(ctx, f.fx.OrgID, actor, uploaded.ID, false)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeTransactionFailed))

	var costs, entries int64
	require.NoError(t, f.db.Model(&models.IngredientCost{}).Count(&costs).Error)
	require.NoError(t, f.db.Model(&models.AuditEntry{}).Count(&entries).Error)
	assert.Zero(t, costs)
	assert.Zero(t, entries)

	imp, err := svc.Get(ctx, f.fx.OrgID, uploaded.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.CostImportStatusUploaded, imp.Status)
	assert.Nil(t, imp.AppliedAt)
}

func TestServiceConfirmRejections(t *testing.T) {
	f := seedImport(t)
	ctx := context.Background()
	actor := uuid.New()

	busy := newImportService(t, f.db, nil, busyGuard{}, nil, f.now)
	_, err := busy.Confirm(ctx, f.fx.OrgID, actor, uuid.New(), false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	svc := newImportService(t, f.db, nil, nil, nil, f.now)
	_, err = svc.Confirm(ctx, f.fx.OrgID, actor, uuid.New(), false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	unmatched, err := svc.Upload(ctx, f.fx.OrgID, actor, UploadInput{
		Filename: "bad.csv",
		Currency: "USD",
		Body:     strings.NewReader("name,qty,uom,cost\nSaffron,1,g,3\n"),
	})
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, f.fx.OrgID, actor, unmatched.ID, false)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Get(ctx, uuid.New(), unmatched.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestStartOfDayUsesLocation(t *testing.T) {
	now := time.Date(2026, 6, 10, 2, 30, 0, 0, time.UTC)
	west := time.FixedZone("UTC-5", -5*60*60)

	assert.Equal(t, time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC), startOfDay(now, time.UTC).UTC())
	assert.Equal(t, time.Date(2026, 6, 9, 5, 0, 0, 0, time.UTC), startOfDay(now, west).UTC())
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if hasLabel(metric, label, value) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func hasLabel(metric *dto.Metric, name, value string) bool {
	for _, pair := range metric.GetLabel() {
		if pair.GetName() == name && pair.GetValue() == value {
			return true
		}
	}
	return false
}
