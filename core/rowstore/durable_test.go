package rowstore

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDurable(t *testing.T) (Durable, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewGormDurable(db), mock
}

func TestNewGormDurable_NilDB(t *testing.T) {
	assert.Nil(t, NewGormDurable(nil))
}

func TestGormDurable_UpsertRows(t *testing.T) {
	durable, mock := newMockDurable(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "external_rows" (.+) ON CONFLICT \("project_id","model_version","identity_key"\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := durable.UpsertRows(context.Background(), testScope("v1"), []ExternalRow{
		{GlobalID: "G1", Category: "Walls"},
		{GlobalID: "G2", LegacyElementID: elementID(101)},
	}, UpsertMeta{SourceFile: "a.xlsx", SourceMode: "upload"})

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDurable_UpsertRows_EmptyBatch(t *testing.T) {
	durable, mock := newMockDurable(t)

	assert.NoError(t, durable.UpsertRows(context.Background(), testScope("v1"), nil, UpsertMeta{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDurable_SelectByGlobalIDs(t *testing.T) {
	durable, mock := newMockDurable(t)

	mock.ExpectQuery(`SELECT (.+) FROM "external_rows" WHERE project_id = (.+) AND model_version = (.+) AND global_id IN`).
		WillReturnRows(sqlmock.NewRows([]string{"global_id", "legacy_element_id", "unique_row_id", "category", "element_name"}).
			AddRow("G1", int64(101), "u-1", "Walls", "Basic Wall"))

	rows, err := durable.SelectByGlobalIDs(context.Background(), testScope("v1"), []string{"G1", "G2"})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "G1", rows[0].GlobalID)
	require.NotNil(t, rows[0].LegacyElementID)
	assert.Equal(t, int64(101), *rows[0].LegacyElementID)
	assert.Equal(t, "Walls", rows[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDurable_SelectByElementIDs(t *testing.T) {
	durable, mock := newMockDurable(t)

	mock.ExpectQuery(`SELECT (.+) FROM "external_rows" WHERE project_id = (.+) AND legacy_element_id IN`).
		WillReturnRows(sqlmock.NewRows([]string{"global_id", "legacy_element_id"}).
			AddRow("G1", int64(101)))

	// Empty model version drops the version predicate.
	rows, err := durable.SelectByElementIDs(context.Background(), testScope(""), []int64{101})

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDurable_SelectEmptyIDs(t *testing.T) {
	durable, mock := newMockDurable(t)

	rows, err := durable.SelectByGlobalIDs(context.Background(), testScope("v1"), nil)
	assert.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = durable.SelectByElementIDs(context.Background(), testScope("v1"), nil)
	assert.NoError(t, err)
	assert.Empty(t, rows)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDurable_SelectAll(t *testing.T) {
	durable, mock := newMockDurable(t)

	mock.ExpectQuery(`SELECT (.+) FROM "external_rows" WHERE project_id = (.+) ORDER BY identity_key LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"global_id"}).AddRow("G1").AddRow("G2"))

	rows, err := durable.SelectAll(context.Background(), testScope("v1"), 100)

	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDurable_SelectAll_Error(t *testing.T) {
	durable, mock := newMockDurable(t)

	mock.ExpectQuery(`SELECT (.+) FROM "external_rows"`).
		WillReturnError(errors.New(`relation "external_rows" does not exist`))

	rows, err := durable.SelectAll(context.Background(), testScope("v1"), 0)

	assert.Error(t, err)
	assert.Nil(t, rows)
	assert.True(t, IsMissingRelation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsMissingRelation(t *testing.T) {
	assert.False(t, IsMissingRelation(nil))
	assert.False(t, IsMissingRelation(errors.New("connection refused")))
	assert.True(t, IsMissingRelation(errors.New("ERROR: relation \"external_rows\" does not exist (SQLSTATE 42P01)")))
	assert.True(t, IsMissingRelation(errors.New("SQLSTATE 42P01")))
}
