package duplicates

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/craftora/backoffice/pkg/common"
	"github.com/craftora/backoffice/pkg/middleware"
)

// Handler handles HTTP requests for duplicate detection and merging
type Handler struct {
	service *Service
}

// NewHandler creates a new duplicates handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the duplicates endpoints on an admin route group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/users/:id/duplicates", h.FindDuplicates)
	rg.POST("/users/:id/merge-preview", h.PreviewMerge)
	rg.POST("/users/:id/merge", h.ExecuteMerge)
}

// FindDuplicates returns ranked duplicate candidates for a user
// GET /api/v1/admin/users/:id/duplicates
func (h *Handler) FindDuplicates(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	matches, err := h.service.FindDuplicates(c.Request.Context(), userID)
	if err != nil {
		common.HandleServiceError(c, err, "failed to find duplicates")
		return
	}

	common.SuccessResponse(c, gin.H{"duplicates": matches})
}

// MergeRequest is the body for merge preview and execution
type MergeRequest struct {
	DuplicateID uuid.UUID `json:"duplicate_id" binding:"required"`
}

// PreviewMerge reports what merging the duplicate into this user would move
// POST /api/v1/admin/users/:id/merge-preview
func (h *Handler) PreviewMerge(c *gin.Context) {
	primaryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	preview, err := h.service.PreviewMerge(c.Request.Context(), primaryID, req.DuplicateID)
	if err != nil {
		common.HandleServiceError(c, err, "failed to preview merge")
		return
	}

	common.SuccessResponse(c, preview)
}

// ExecuteMerge merges the duplicate account into this user
// POST /api/v1/admin/users/:id/merge
func (h *Handler) ExecuteMerge(c *gin.Context) {
	primaryID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid user ID")
		return
	}

	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	adminID, err := middleware.GetUserID(c)
	if err != nil {
		common.ErrorResponse(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.service.ExecuteMerge(c.Request.Context(), primaryID, req.DuplicateID, adminID); err != nil {
		common.HandleServiceError(c, err, "failed to merge users")
		return
	}

	common.SuccessResponse(c, gin.H{"message": "Users merged successfully"})
}
