package common

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across services
const (
	CodeNotFound   = "NOT_FOUND"
	CodeBadRequest = "BAD_REQUEST"
	CodeConflict   = "CONFLICT"
	CodeStoreError = "STORE_ERROR"
	CodeInternal   = "INTERNAL"
)

// AppError is the error type services return to handlers
type AppError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFound creates a not-found AppError
func NewNotFound(format string, args ...any) *AppError {
	return &AppError{
		Status:  http.StatusNotFound,
		Code:    CodeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewBadRequest creates a bad-request AppError
func NewBadRequest(format string, args ...any) *AppError {
	return &AppError{
		Status:  http.StatusBadRequest,
		Code:    CodeBadRequest,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewConflict creates a conflict AppError
func NewConflict(format string, args ...any) *AppError {
	return &AppError{
		Status:  http.StatusConflict,
		Code:    CodeConflict,
		Message: fmt.Sprintf(format, args...),
	}
}

// NewStoreError wraps a store failure
func NewStoreError(err error, format string, args ...any) *AppError {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Code:    CodeStoreError,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// NewInternal wraps an internal failure
func NewInternal(err error, format string, args ...any) *AppError {
	return &AppError{
		Status:  http.StatusInternalServerError,
		Code:    CodeInternal,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// IsNotFound reports whether err is a not-found AppError
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == CodeNotFound
}
