package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type scopedRow struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrgID  uuid.UUID `gorm:"type:uuid"`
	Name   string
	Active bool
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&scopedRow{}))
	return conn
}

func seed(t *testing.T, db *gorm.DB, orgID uuid.UUID, name string) scopedRow {
	t.Helper()
	row := scopedRow{ID: uuid.New(), OrgID: orgID, Name: name, Active: true}
	require.NoError(t, db.Create(&row).Error)
	return row
}

func TestBaseDB_BindsContext(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)

	ctx := context.WithValue(context.Background(), struct{}{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	assert.Same(t, db, base.DB(nil))
}

func TestFindByID_IsOrgScoped(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	orgA, orgB := uuid.New(), uuid.New()
	row := seed(t, db, orgA, "flour")

	var found scopedRow
	require.NoError(t, base.FindByID(context.Background(), orgA, row.ID, &found))
	assert.Equal(t, "flour", found.Name)

	var other scopedRow
	err := base.FindByID(context.Background(), orgB, row.ID, &other)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestListIn(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	orgA, orgB := uuid.New(), uuid.New()
	a := seed(t, db, orgA, "b-sugar")
	b := seed(t, db, orgA, "a-salt")
	foreign := seed(t, db, orgB, "pepper")

	rows, err := ListIn[scopedRow](context.Background(), base, orgA, "id", []uuid.UUID{a.ID, b.ID, foreign.ID}, "name ASC")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a-salt", rows[0].Name)
	assert.Equal(t, "b-sugar", rows[1].Name)

	empty, err := ListIn[scopedRow](context.Background(), base, orgA, "id", nil, "")
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestGuarded(t *testing.T) {
	db := newTestDB(t)
	base := NewBase(db)
	orgID := uuid.New()
	row := seed(t, db, orgID, "butter")
	errInactive := errors.New("row inactive")

	res := base.Org(context.Background(), orgID).
		Model(&scopedRow{}).
		Where("id = ? AND active = ?", row.ID, true).
		Update("active", false)
	require.NoError(t, Guarded(res, errInactive))

	res = base.Org(context.Background(), orgID).
		Model(&scopedRow{}).
		Where("id = ? AND active = ?", row.ID, true).
		Update("active", false)
	assert.ErrorIs(t, Guarded(res, errInactive), errInactive)

	res = base.Org(context.Background(), uuid.New()).
		Model(&scopedRow{}).
		Where("id = ?", row.ID).
		Update("name", "ghee")
	assert.ErrorIs(t, Guarded(res, nil), ErrNoRowsAffected)
}
