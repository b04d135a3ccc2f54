package risk

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/craftora/backoffice/pkg/common"
	"github.com/craftora/backoffice/pkg/middleware"
)

// Handler handles HTTP requests for risk scoring
type Handler struct {
	service *Service
}

// NewHandler creates a new risk handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the risk endpoints on an admin route group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/:id/risk-score", h.GetRiskScore)
	rg.POST("/users/:id/risk-score/recalculate", h.RecalculateRiskScore)
	rg.POST("/risk-scores/recalculate", h.RecalculateAll)
}

// GetRiskScore computes the current risk score for a user without persisting
// GET /api/v1/admin/users/:id/risk-score
func (h *Handler) GetRiskScore(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	result, err := h.service.CalculateUserRiskScore(c.Request.Context(), userID)
	if err != nil {
		common.HandleServiceError(c, err, "failed to calculate risk score")
		return
	}

	common.SuccessResponse(c, result)
}

// RecalculateRiskScore recomputes and persists the score for one user
// POST /api/v1/admin/users/:id/risk-score/recalculate
func (h *Handler) RecalculateRiskScore(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	if err := h.service.UpdateUserRiskScore(c.Request.Context(), userID); err != nil {
		common.HandleServiceError(c, err, "failed to update risk score")
		return
	}

	result, err := h.service.CalculateUserRiskScore(c.Request.Context(), userID)
	if err != nil {
		common.HandleServiceError(c, err, "failed to calculate risk score")
		return
	}

	common.SuccessResponse(c, result)
}

// RecalculateAllRequest is the bulk recalculation request body
type RecalculateAllRequest struct {
	MinScore *int `json:"min_score" binding:"omitempty,gte=0,lte=100"`
}

// RecalculateAll recomputes scores for all (or filtered) users
// POST /api/v1/admin/risk-scores/recalculate
func (h *Handler) RecalculateAll(c *gin.Context) {
	var req RecalculateAllRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	adminID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var filter *RecalculateFilter
	if req.MinScore != nil {
		filter = &RecalculateFilter{MinScore: req.MinScore}
	}

	updated, err := h.service.RecalculateAllRiskScores(c.Request.Context(), adminID, filter)
	if err != nil {
		common.HandleServiceError(c, err, "failed to recalculate risk scores")
		return
	}

	common.SuccessResponse(c, gin.H{"updated": updated})
}
