package rows

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http/httptest"
	"testing"

	"bim-reconciler/core/rowstore"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(svc *Service) *fiber.App {
	app := fiber.New()
	NewHandler(svc).RegisterRoutes(app)
	return app
}

func TestHandleUpsertRaw(t *testing.T) {
	app := newTestApp(newTestService(nil))

	body, err := json.Marshal(upsertRawRequest{
		Scope: testScope(),
		Rows: []map[string]any{
			{"IfcGUID": "G1", "Id": "101", "Category": "Walls"},
		},
		ColumnMap: rowstore.ColumnMap{GlobalID: "IfcGUID", ElementID: "Id", Category: "Category"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/rows/upsert", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var receipt rowstore.UpsertReceipt
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipt))
	assert.Equal(t, 1, receipt.InsertedCount)
	assert.Equal(t, rowstore.PersistenceRuntime, receipt.Persistence)
}

func TestHandleUpsertRaw_MissingProject(t *testing.T) {
	app := newTestApp(newTestService(nil))

	req := httptest.NewRequest("POST", "/rows/upsert", bytes.NewReader([]byte(`{"rows":[]}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleFetch(t *testing.T) {
	svc := newTestService(nil)
	svc.UpsertRaw(context.Background(), []map[string]any{
		{"IfcGUID": "G1", "Id": "101"},
		{"IfcGUID": "G2", "Id": "102"},
	}, rowstore.ColumnMap{GlobalID: "IfcGUID", ElementID: "Id"}, testScope(), rowstore.UpsertMeta{})

	app := newTestApp(svc)

	resp, err := app.Test(httptest.NewRequest("GET", "/rows/?project_id=proj-1&model_version=v1&global_ids=G1,G9", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var res rowstore.FetchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "G1", res.Rows[0].GlobalID)
	assert.Equal(t, []string{"G9"}, res.Unresolved.GlobalIDs)
	assert.Equal(t, rowstore.SourceRuntime, res.Source)
}

func TestHandleFetch_BadElementIDs(t *testing.T) {
	app := newTestApp(newTestService(nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/rows/?project_id=proj-1&element_ids=abc", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleFetch_MissingProject(t *testing.T) {
	app := newTestApp(newTestService(nil))

	resp, err := app.Test(httptest.NewRequest("GET", "/rows/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestHandleUploadWorkbook(t *testing.T) {
	app := newTestApp(newTestService(nil))

	content := buildWorkbook(t,
		[]string{"Id", "IfcGUID", "Category"},
		[][]any{{"101", "G1", "Walls"}},
	)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "schedule.xlsx")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("project_id", "proj-1"))
	require.NoError(t, writer.WriteField("model_version", "v1"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/rows/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var receipt rowstore.UpsertReceipt
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&receipt))
	assert.Equal(t, 1, receipt.InsertedCount)
}

func TestHandleUploadWorkbook_NoFile(t *testing.T) {
	app := newTestApp(newTestService(nil))

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("project_id", "proj-1"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest("POST", "/rows/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
