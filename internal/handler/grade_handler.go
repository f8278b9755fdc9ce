package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
	"github.com/noah-isme/sma-gradebook-api/pkg/response"
)

// GradeHandler exposes calculated grade views and the change history.
type GradeHandler struct {
	gradebooks *service.GradeBookService
}

// NewGradeHandler constructs handler.
func NewGradeHandler(gradebooks *service.GradeBookService) *GradeHandler {
	return &GradeHandler{gradebooks: gradebooks}
}

// TermGrade godoc
// @Summary Weighted subject-term grade of one student
// @Tags Grades
// @Produce json
// @Param classId path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Param subjectId path string true "Subject ID"
// @Param termId query string true "Term ID"
// @Success 200 {object} response.Envelope
// @Router /grades/classes/{classId}/students/{studentId}/subjects/{subjectId} [get]
func (h *GradeHandler) TermGrade(c *gin.Context) {
	termID := c.Query("termId")
	if termID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "termId required"))
		return
	}
	grade, err := h.gradebooks.CalculateTermGrade(c.Request.Context(), c.Param("classId"), c.Param("subjectId"), c.Param("studentId"), termID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// History godoc
// @Summary List grade change history
// @Tags Grades
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param subjectId query string false "Filter by subject"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grades/history [get]
func (h *GradeHandler) History(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "50"))
	filter := models.GradeHistoryFilter{
		StudentID: c.Query("studentId"),
		SubjectID: c.Query("subjectId"),
		Page:      page,
		PageSize:  pageSize,
	}
	entries, pagination, err := h.gradebooks.ListGradeHistory(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, pagination)
}
