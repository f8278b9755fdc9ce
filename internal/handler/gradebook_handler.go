package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/service"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
	"github.com/noah-isme/sma-gradebook-api/pkg/response"
)

// GradebookHandler exposes gradebook lifecycle and grade entry endpoints.
type GradebookHandler struct {
	gradebooks *service.GradeBookService
}

// NewGradebookHandler constructs handler.
func NewGradebookHandler(gradebooks *service.GradeBookService) *GradebookHandler {
	return &GradebookHandler{gradebooks: gradebooks}
}

// Initialize godoc
// @Summary Initialize the gradebook of a class
// @Tags Gradebooks
// @Produce json
// @Param id path string true "Class ID"
// @Success 201 {object} response.Envelope
// @Router /gradebooks/classes/{id} [post]
func (h *GradebookHandler) Initialize(c *gin.Context) {
	gradebook, err := h.gradebooks.InitializeGradeBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, gradebook)
}

// UpdateGrade godoc
// @Summary Record or overwrite one activity grade
// @Tags Gradebooks
// @Accept json
// @Produce json
// @Param payload body service.UpdateActivityGradeRequest true "Grade payload"
// @Success 200 {object} response.Envelope
// @Router /gradebooks/grades [post]
func (h *GradebookHandler) UpdateGrade(c *gin.Context) {
	var req service.UpdateActivityGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.ModifiedBy == "" {
		req.ModifiedBy = actorID(c)
	}
	if err := h.gradebooks.UpdateActivityGrade(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"status": "recorded"}, nil)
}

// SubjectSummary godoc
// @Summary Class wide subject grade summary
// @Tags Gradebooks
// @Produce json
// @Param id path string true "Class ID"
// @Param subjectId path string true "Subject ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /gradebooks/classes/{id}/subjects/{subjectId}/summary [get]
func (h *GradebookHandler) SubjectSummary(c *gin.Context) {
	termID := c.Query("termId")
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId required"))
		return
	}
	summary, err := h.gradebooks.CalculateSubjectGrade(c.Request.Context(), c.Param("id"), c.Param("subjectId"), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
