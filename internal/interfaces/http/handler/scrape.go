package handler

import (
	"context"
	"net/http"

	"github.com/feedsync/backend/internal/domain/scrape"
	"github.com/feedsync/backend/internal/interfaces/http/dto"
	"github.com/feedsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// ScrapeRunner runs the storefront scrape job
type ScrapeRunner interface {
	Run(ctx context.Context, req scrape.Request) (scrape.Result, error)
}

// ScrapeHandler exposes the scrape job
type ScrapeHandler struct {
	BaseHandler
	runner ScrapeRunner
}

// NewScrapeHandler creates a new ScrapeHandler
func NewScrapeHandler(runner ScrapeRunner) *ScrapeHandler {
	return &ScrapeHandler{runner: runner}
}

// RunJob runs a scrape job synchronously and returns
// {success, products_found, output}. A failed session is still a 200 with
// success=false; the output carries the job log.
func (h *ScrapeHandler) RunJob(c *gin.Context) {
	var req dto.ScrapeJobRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	res, err := h.runner.Run(c.Request.Context(), scrape.Request{
		Username: req.Username,
		Password: req.Password,
		TestMode: req.TestMode,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}
