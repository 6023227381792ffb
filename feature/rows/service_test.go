package rows

import (
	"context"
	"errors"
	"testing"
	"time"

	"bim-reconciler/core/rowstore"
	"bim-reconciler/core/storage"
	storagemocks "bim-reconciler/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(archive storage.Client) *Service {
	store := rowstore.New(rowstore.Config{}, nil, zap.NewNop())
	return NewService(store, archive, "archive", zap.NewNop())
}

func testScope() rowstore.Scope {
	return rowstore.Scope{ProjectID: "proj-1", ModelVersion: "v1"}
}

func TestServiceUpsertRaw_SyntheticGlobalIDs(t *testing.T) {
	svc := newTestService(nil)

	// No GlobalId column discovered: every row gets a synthetic stand-in.
	raw := []map[string]any{
		{"Id": "101", "Category": "Walls"},
		{"Id": "102", "Category": "Doors"},
	}
	cols := rowstore.ColumnMap{ElementID: "Id", Category: "Category"}

	receipt := svc.UpsertRaw(context.Background(), raw, cols, testScope(), rowstore.UpsertMeta{})
	assert.Equal(t, 2, receipt.InsertedCount)

	res := svc.Fetch(context.Background(), rowstore.FetchQuery{Scope: testScope()})
	require.Len(t, res.Rows, 2)
	for _, row := range res.Rows {
		assert.True(t, row.HasSyntheticGlobalID())
		assert.Equal(t, "", row.MatchableGlobalID())
	}
}

func TestServiceUpsertRaw_RealGlobalIDsKept(t *testing.T) {
	svc := newTestService(nil)

	// A discovered GlobalId column means blank cells stay blank; synthetic
	// IDs are only minted when the column itself is missing.
	raw := []map[string]any{
		{"IfcGUID": "G1", "Id": "101"},
		{"IfcGUID": "", "Id": "102"},
	}
	cols := rowstore.ColumnMap{GlobalID: "IfcGUID", ElementID: "Id"}

	svc.UpsertRaw(context.Background(), raw, cols, testScope(), rowstore.UpsertMeta{})

	res := svc.Fetch(context.Background(), rowstore.FetchQuery{Scope: testScope()})
	require.Len(t, res.Rows, 2)
	byElement := map[int64]rowstore.ExternalRow{}
	for _, row := range res.Rows {
		require.NotNil(t, row.LegacyElementID)
		byElement[*row.LegacyElementID] = row
	}
	assert.Equal(t, "G1", byElement[101].GlobalID)
	assert.Equal(t, "", byElement[102].GlobalID)
}

func TestServiceUploadWorkbook(t *testing.T) {
	archive := &storagemocks.Client{}
	archived := make(chan string, 1)
	archive.On("PutObject", mock.Anything, "archive", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { archived <- args.String(2) }).
		Return(minio.UploadInfo{}, nil)

	svc := newTestService(archive)

	content := buildWorkbook(t,
		[]string{"Id", "IfcGUID", "Category"},
		[][]any{
			{"101", "G1", "Walls"},
			{"102", "G2", "Doors"},
		},
	)

	receipt, err := svc.UploadWorkbook(context.Background(), "schedule.xlsx", content, testScope(), rowstore.UpsertMeta{SourceFile: "schedule.xlsx"})

	require.NoError(t, err)
	assert.Equal(t, 2, receipt.InsertedCount)
	assert.Equal(t, rowstore.PersistenceRuntime, receipt.Persistence)

	select {
	case object := <-archived:
		assert.Equal(t, "uploads/proj-1/v1/schedule.xlsx", object)
	case <-time.After(time.Second):
		t.Fatal("workbook was not archived")
	}

	res := svc.Fetch(context.Background(), rowstore.FetchQuery{Scope: testScope(), GlobalIDs: []string{"G1"}})
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Walls", res.Rows[0].Category)
}

func TestServiceUploadWorkbook_ArchiveFailureIgnored(t *testing.T) {
	archive := &storagemocks.Client{}
	attempted := make(chan struct{}, 1)
	archive.On("PutObject", mock.Anything, "archive", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { attempted <- struct{}{} }).
		Return(minio.UploadInfo{}, errors.New("bucket unreachable"))

	svc := newTestService(archive)
	content := buildWorkbook(t, []string{"Id"}, [][]any{{"101"}})

	receipt, err := svc.UploadWorkbook(context.Background(), "a.xlsx", content, testScope(), rowstore.UpsertMeta{})

	require.NoError(t, err)
	assert.Equal(t, 1, receipt.InsertedCount)

	select {
	case <-attempted:
	case <-time.After(time.Second):
		t.Fatal("archive was never attempted")
	}
}

func TestServiceUploadWorkbook_NoArchiveConfigured(t *testing.T) {
	svc := newTestService(nil)
	content := buildWorkbook(t, []string{"Id"}, [][]any{{"101"}})

	receipt, err := svc.UploadWorkbook(context.Background(), "a.xlsx", content, testScope(), rowstore.UpsertMeta{})

	require.NoError(t, err)
	assert.Equal(t, 1, receipt.InsertedCount)
}

func TestServiceUploadWorkbook_InvalidContent(t *testing.T) {
	svc := newTestService(nil)

	_, err := svc.UploadWorkbook(context.Background(), "a.xlsx", []byte("junk"), testScope(), rowstore.UpsertMeta{})
	assert.Error(t, err)
}

func TestValidateScope(t *testing.T) {
	assert.Error(t, validateScope(rowstore.Scope{}))
	assert.NoError(t, validateScope(rowstore.Scope{ProjectID: "proj-1"}))
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList("a,b"))
	assert.Equal(t, []string{"a", "b"}, splitList(" a , , b "))
}
