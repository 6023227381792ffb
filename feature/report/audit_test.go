package report

import (
	"testing"
	"time"

	"bim-reconciler/core/match"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestPersistSummary(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "match_reports"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	persistSummary(db, zap.NewNop(), "proj-1", "v1", match.Summary{
		TotalElements: 10,
		TotalRows:     12,
		TotalMatched:  9,
		MatchRate:     0.9,
		MatchedByKey:  map[string]int{"globalId": 9},
	})

	// The write is fire-and-forget; wait for the goroutine to land.
	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 10*time.Millisecond)
}

func TestPersistSummary_NilDB(t *testing.T) {
	// Audit persistence is optional; a nil connection means skip.
	persistSummary(nil, zap.NewNop(), "proj-1", "v1", match.Summary{})
}

func TestPersistSummary_FailureOnlyWarns(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "match_reports"`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	persistSummary(db, zap.NewNop(), "proj-1", "v1", match.Summary{})

	assert.Eventually(t, func() bool {
		return mock.ExpectationsWereMet() == nil
	}, time.Second, 10*time.Millisecond)
}
