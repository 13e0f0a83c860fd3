package handler

import (
	"context"
	"net/http"

	"github.com/feedsync/backend/internal/domain/ingestion"
	"github.com/feedsync/backend/internal/interfaces/http/dto"
	"github.com/feedsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// TriggerAPI is recorded on runs started over HTTP
const TriggerAPI = "api"

const defaultRunListLimit = 10

// IngestionRunner starts runs and serves their reports
type IngestionRunner interface {
	StartRun(ctx context.Context, trigger, supplierID string) (string, error)
	Report(id string) (ingestion.RunSummary, error)
	RecentReports(limit int) []ingestion.RunSummary
}

// IngestionHandler exposes batch ingestion runs
type IngestionHandler struct {
	BaseHandler
	runner IngestionRunner
}

// NewIngestionHandler creates a new IngestionHandler
func NewIngestionHandler(runner IngestionRunner) *IngestionHandler {
	return &IngestionHandler{runner: runner}
}

// StartRun starts an asynchronous run and answers 202 with its id. A run
// already in progress answers 409.
func (h *IngestionHandler) StartRun(c *gin.Context) {
	var req dto.StartRunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	id, err := h.runner.StartRun(c.Request.Context(), TriggerAPI, req.SupplierID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	statusURL := "/api/v1/ingestion/runs/" + id
	h.Accepted(c, statusURL, dto.StartRunResponse{RunID: id, StatusURL: statusURL})
}

// GetRun returns the report of one run
func (h *IngestionHandler) GetRun(c *gin.Context) {
	summary, err := h.runner.Report(c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// ListRuns returns the most recent run reports, newest first
func (h *IngestionHandler) ListRuns(c *gin.Context) {
	req := dto.ListRunsRequest{Limit: defaultRunListLimit}
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(h.runner.RecentReports(req.Limit)))
}
