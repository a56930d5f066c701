package app

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/s4cindia/ninja-backend-sub007/internal/auth"
	"github.com/s4cindia/ninja-backend-sub007/internal/changes"
	"github.com/s4cindia/ninja-backend-sub007/internal/export"
	"github.com/s4cindia/ninja-backend-sub007/internal/report"
	"github.com/s4cindia/ninja-backend-sub007/internal/storage"
	"github.com/s4cindia/ninja-backend-sub007/internal/store"
)

// Error codes returned in the JSON error envelope.
const (
	codeValidation        = "VALIDATION_ERROR"
	codeAppendOnly        = "APPEND_ONLY"
	codeNotFound          = "NOT_FOUND"
	codeReportNotFound    = "REPORT_NOT_FOUND"
	codeOriginalNotFound  = "ORIGINAL_NOT_FOUND"
	codeContainerTooLarge = "CONTAINER_TOO_LARGE"
	codeUnauthorized      = "UNAUTHORIZED"
	codeServerError       = "SERVER_ERROR"
)

// DomainError carries the HTTP status and code a request failure maps to.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func validationError(message string, details any) *DomainError {
	return &DomainError{
		Status:  http.StatusUnprocessableEntity,
		Code:    codeValidation,
		Message: message,
		Details: details,
	}
}

// errorMapping pairs a sentinel with the response it produces. An empty
// message means the wrapped error text is shown.
type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{changes.ErrInvalidRecord, http.StatusUnprocessableEntity, codeValidation, ""},
	{changes.ErrUnknownType, http.StatusUnprocessableEntity, codeValidation, ""},
	{export.ErrInvalidMode, http.StatusUnprocessableEntity, codeValidation, "mode must be 'clean' or 'tracked'"},
	{store.ErrAppendOnly, http.StatusConflict, codeAppendOnly, "Change records cannot be modified"},
	{store.ErrNotFound, http.StatusNotFound, codeNotFound, "Not found"},
	{report.ErrNotFound, http.StatusNotFound, codeReportNotFound, "No export report for this document"},
	{storage.ErrNotFound, http.StatusNotFound, codeOriginalNotFound, "Original document file not found"},
	{storage.ErrTooLarge, http.StatusRequestEntityTooLarge, codeContainerTooLarge, "Original document file is too large"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, codeUnauthorized, "Unauthorized"},
	{auth.ErrMissingToken, http.StatusUnauthorized, codeUnauthorized, "Unauthorized"},
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		if m.message == "" {
			return m.status, m.code, err.Error(), nil
		}
		return m.status, m.code, m.message, nil
	}
	return http.StatusInternalServerError, codeServerError, "Server error", nil
}
