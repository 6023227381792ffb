package rows

import (
	"io"
	"strconv"
	"strings"

	"bim-reconciler/core/logger"
	"bim-reconciler/core/rowstore"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for schedule row ingest and lookup.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the rows routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/rows")
	group.Post("/upload", h.HandleUploadWorkbook)
	group.Post("/upsert", h.HandleUpsertRaw)
	group.Get("/", h.HandleFetch)
}

// upsertRawRequest is the body for pre-parsed row ingest.
type upsertRawRequest struct {
	Scope     rowstore.Scope      `json:"scope"`
	Meta      rowstore.UpsertMeta `json:"meta"`
	Rows      []map[string]any    `json:"rows"`
	ColumnMap rowstore.ColumnMap  `json:"columnMap"`
}

// HandleUploadWorkbook ingests an uploaded xlsx schedule export.
// @Summary Upload schedule workbook
// @Description Parse, normalize and upsert rows from an xlsx schedule export.
// @Tags rows
// @Accept mpfd
// @Produce json
// @Param file formData file true "xlsx workbook"
// @Param project_id formData string true "Project ID"
// @Param model_version formData string false "Model version label"
// @Param source_mode formData string false "Import path label, retained for audit"
// @Param allow_durable formData boolean false "Write through to the durable store"
// @Success 200 {object} rowstore.UpsertReceipt "Upsert receipt"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /rows/upload [post]
func (h *Handler) HandleUploadWorkbook(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "file is required")
	}

	scope := rowstore.Scope{
		ProjectID:    c.FormValue("project_id"),
		ModelVersion: c.FormValue("model_version"),
	}
	if err := validateScope(scope); err != nil {
		return badRequest(c, err.Error())
	}

	allowDurable, _ := strconv.ParseBool(c.FormValue("allow_durable", "true"))
	meta := rowstore.UpsertMeta{
		SourceFile:   fileHeader.Filename,
		SourceMode:   c.FormValue("source_mode", "upload"),
		AllowDurable: allowDurable,
	}

	f, err := fileHeader.Open()
	if err != nil {
		l.Error("Workbook open failed", zap.Error(err))
		return badRequest(c, "could not read uploaded file")
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		l.Error("Workbook read failed", zap.Error(err))
		return badRequest(c, "could not read uploaded file")
	}

	receipt, err := h.service.UploadWorkbook(c.Context(), fileHeader.Filename, content, scope, meta)
	if err != nil {
		l.Error("Workbook ingest failed", zap.Error(err))
		return badRequest(c, err.Error())
	}

	return c.JSON(receipt)
}

// HandleUpsertRaw ingests rows parsed by an external collaborator.
// @Summary Upsert pre-parsed rows
// @Description Normalize and upsert raw rows with a discovered column mapping.
// @Tags rows
// @Accept json
// @Produce json
// @Success 200 {object} rowstore.UpsertReceipt "Upsert receipt"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /rows/upsert [post]
func (h *Handler) HandleUpsertRaw(c *fiber.Ctx) error {
	var req upsertRawRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := validateScope(req.Scope); err != nil {
		return badRequest(c, err.Error())
	}

	receipt := h.service.UpsertRaw(c.Context(), req.Rows, req.ColumnMap, req.Scope, req.Meta)
	return c.JSON(receipt)
}

// HandleFetch answers merged point and bulk row lookups.
// @Summary Fetch merged rows
// @Description Merged durable+runtime row lookup with provenance metadata.
// @Tags rows
// @Produce json
// @Param project_id query string true "Project ID"
// @Param model_version query string false "Model version label"
// @Param global_ids query string false "Comma-separated global IDs"
// @Param element_ids query string false "Comma-separated legacy element IDs"
// @Param limit query int false "Row limit"
// @Success 200 {object} rowstore.FetchResult "Merged rows"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /rows [get]
func (h *Handler) HandleFetch(c *fiber.Ctx) error {
	scope := rowstore.Scope{
		ProjectID:    c.Query("project_id"),
		ModelVersion: c.Query("model_version"),
	}
	if err := validateScope(scope); err != nil {
		return badRequest(c, err.Error())
	}

	q := rowstore.FetchQuery{
		Scope:     scope,
		GlobalIDs: splitList(c.Query("global_ids")),
		Limit:     c.QueryInt("limit", 0),
	}
	for _, raw := range splitList(c.Query("element_ids")) {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return badRequest(c, "element_ids must be integers")
		}
		q.ElementIDs = append(q.ElementIDs, id)
	}

	return c.JSON(h.service.Fetch(c.Context(), q))
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
