package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/service"
	"github.com/noah-isme/sma-gradebook-api/pkg/response"
)

// ConfigHandler exposes assessment configuration lookups.
type ConfigHandler struct {
	configs   *service.AssessmentConfigService
	validator *service.GradeValidatorService
}

// NewConfigHandler constructs handler.
func NewConfigHandler(configs *service.AssessmentConfigService, validator *service.GradeValidatorService) *ConfigHandler {
	return &ConfigHandler{configs: configs, validator: validator}
}

// SubjectConfig godoc
// @Summary Assessment configuration of a subject
// @Tags Configuration
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/config [get]
func (h *ConfigHandler) SubjectConfig(c *gin.Context) {
	cfg, err := h.configs.SubjectConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// ValidateWeights godoc
// @Summary Validate the category weight table of a subject
// @Tags Configuration
// @Produce json
// @Param id path string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id}/config/validate [get]
func (h *ConfigHandler) ValidateWeights(c *gin.Context) {
	cfg, err := h.configs.SubjectConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	verdict, err := h.validator.ValidateBatchOperation(c.Request.Context(), cfg)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, verdict, nil)
}
