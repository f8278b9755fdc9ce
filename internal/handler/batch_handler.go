package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/service"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
	"github.com/noah-isme/sma-gradebook-api/pkg/response"
)

// BatchHandler exposes class wide recalculation and statistics endpoints.
type BatchHandler struct {
	batches *service.BatchRecalculationService
}

// NewBatchHandler constructs handler.
func NewBatchHandler(batches *service.BatchRecalculationService) *BatchHandler {
	return &BatchHandler{batches: batches}
}

// Recalculate godoc
// @Summary Recalculate every grade cell of a class for a term
// @Tags Batch
// @Produce json
// @Param id path string true "Class ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/recalculate [post]
func (h *BatchHandler) Recalculate(c *gin.Context) {
	termID := c.Query("termId")
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId required"))
		return
	}
	result, err := h.batches.ProcessBatchGradeCalculation(c.Request.Context(), c.Param("id"), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Statistics godoc
// @Summary Class average and pass rate for one term
// @Tags Batch
// @Produce json
// @Param id path string true "Class ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/statistics [get]
func (h *BatchHandler) Statistics(c *gin.Context) {
	termID := c.Query("termId")
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId required"))
		return
	}
	stats, err := h.batches.CalculateClassStatistics(c.Request.Context(), c.Param("id"), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
