package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the standard API response envelope
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Code    string `json:"code,omitempty"`
}

// SuccessResponse sends a successful response with data
func SuccessResponse(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// ErrorResponse sends an error response with the given status and message
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, Response{
		Success: false,
		Message: message,
	})
}

// AppErrorResponse sends an error response derived from an AppError
func AppErrorResponse(c *gin.Context, err *AppError) {
	c.JSON(err.Status, Response{
		Success: false,
		Message: err.Message,
		Code:    err.Code,
	})
}

// HandleServiceError maps a service error to the right HTTP response
func HandleServiceError(c *gin.Context, err error, fallback string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		AppErrorResponse(c, appErr)
		return
	}
	ErrorResponse(c, http.StatusInternalServerError, fallback)
}
