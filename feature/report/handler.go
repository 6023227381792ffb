package report

import (
	"bim-reconciler/core/logger"
	"bim-reconciler/core/match"
	"bim-reconciler/core/rowstore"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for match reports.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the report routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/report")
	group.Post("/match", h.HandleBuildMatchReport)
}

// matchReportRequest is the body for a report run: the geometry-side
// elements plus optional threshold overrides.
type matchReportRequest struct {
	ProjectID          string               `json:"projectId"`
	ModelVersion       string               `json:"modelVersion,omitempty"`
	Elements           []match.ModelElement `json:"elements"`
	MatchThreshold     float64              `json:"matchThreshold,omitempty"`
	AmbiguousThreshold float64              `json:"ambiguousThreshold,omitempty"`
}

// HandleBuildMatchReport reconciles geometry elements against the stored rows.
// @Summary Build match report
// @Description Reconcile geometry elements against the merged schedule rows.
// @Tags report
// @Accept json
// @Produce json
// @Success 200 {object} ReportOutcome "Match report with row provenance"
// @Failure 400 {object} map[string]string "Bad Request"
// @Router /report/match [post]
func (h *Handler) HandleBuildMatchReport(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req matchReportRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.ProjectID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "projectId is required"})
	}

	scope := rowstore.Scope{ProjectID: req.ProjectID, ModelVersion: req.ModelVersion}
	opts := match.Options{
		MatchThreshold:     req.MatchThreshold,
		AmbiguousThreshold: req.AmbiguousThreshold,
	}

	outcome := h.service.BuildReport(c.Context(), scope, req.Elements, opts)
	if outcome.DurableError != "" {
		l.Warn("report computed from degraded row view", zap.String("durable_error", outcome.DurableError))
	}

	return c.JSON(outcome)
}
