// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them. Generic
// codes mirror HTTP status semantics, domain codes name helpdesk failures
// that a status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "report_locked",
//	  "message": "report is being edited by another user"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-helpdesk-backend/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeValidation       = "validation_failed"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeEmailTaken         = "email_taken"
	ErrCodeVersionConflict    = "version_conflict"
	ErrCodeReportLocked       = "report_locked"
	ErrCodeInvalidStatus      = "invalid_status"
	ErrCodeEmptyMessage       = "empty_message"
	ErrCodeInvalidChannel     = "invalid_channel"
	ErrCodeListFailed         = "list_failed"
)

// serviceErrors maps service sentinels to status, code and a client-safe
// message.
var serviceErrors = []struct {
	err    error
	status int
	code   string
	msg    string
}{
	{services.ErrInvalidCredentials, http.StatusUnauthorized, ErrCodeInvalidCredentials, "invalid email or password"},
	{services.ErrUnauthenticated, http.StatusUnauthorized, ErrCodeUnauthorized, "invalid or expired session"},
	{services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden, "insufficient permissions"},
	{services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound, "user not found"},
	{services.ErrReportNotFound, http.StatusNotFound, ErrCodeNotFound, "report not found"},
	{services.ErrNotificationNotFound, http.StatusNotFound, ErrCodeNotFound, "notification not found"},
	{services.ErrFAQNotFound, http.StatusNotFound, ErrCodeNotFound, "FAQ not found"},
	{services.ErrMessageNotFound, http.StatusNotFound, ErrCodeNotFound, "message not found"},
	{services.ErrEmailTaken, http.StatusConflict, ErrCodeEmailTaken, "email already registered"},
	{services.ErrVersionConflict, http.StatusConflict, ErrCodeVersionConflict, "report was modified by someone else"},
	{services.ErrInvalidStatus, http.StatusBadRequest, ErrCodeInvalidStatus, "invalid report status"},
	{services.ErrInvalidRole, http.StatusBadRequest, ErrCodeValidation, "invalid role"},
	{services.ErrInvalidPassword, http.StatusBadRequest, ErrCodeValidation, "password must be 1-72 bytes"},
	{services.ErrInvalidNotificationType, http.StatusBadRequest, ErrCodeValidation, "invalid notification type"},
	{services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeEmptyMessage, "message must not be empty"},
	{services.ErrInvalidChannel, http.StatusBadRequest, ErrCodeInvalidChannel, "chat channel does not match the participants"},
}

// failErr renders err through the service error table. Unknown errors become
// 500 with fallbackCode; their text is logged, not returned.
func failErr(c *gin.Context, err error, fallbackCode string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			fail(c, m.status, m.code, m.msg)
			return
		}
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, fallbackCode, "internal server error")
}
