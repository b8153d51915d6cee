package dto

import (
	"net/http"
	"strings"
)

// Generic error codes. Domain errors keep their own codes (for example
// INVOICE_ALREADY_PAID) and are mapped by DomainErrorStatus.
const (
	ErrCodeInternal            = "ERR_INTERNAL"
	ErrCodeValidation          = "ERR_VALIDATION"
	ErrCodeUnauthorized        = "ERR_UNAUTHORIZED"
	ErrCodeForbidden           = "ERR_FORBIDDEN"
	ErrCodeTokenExpired        = "ERR_TOKEN_EXPIRED"
	ErrCodeTokenInvalid        = "ERR_TOKEN_INVALID"
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
	ErrCodeBadRequest          = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput        = "ERR_INVALID_INPUT"
	ErrCodeRateLimited         = "ERR_RATE_LIMITED"
	ErrCodeRequestTooLarge     = "ERR_REQUEST_TOO_LARGE"
	ErrCodeTimeout             = "ERR_TIMEOUT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:            http.StatusInternalServerError,
	ErrCodeValidation:          http.StatusBadRequest,
	ErrCodeUnauthorized:        http.StatusUnauthorized,
	ErrCodeForbidden:           http.StatusForbidden,
	ErrCodeTokenExpired:        http.StatusUnauthorized,
	ErrCodeTokenInvalid:        http.StatusUnauthorized,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,
	ErrCodeBadRequest:          http.StatusBadRequest,
	ErrCodeInvalidInput:        http.StatusBadRequest,
	ErrCodeRateLimited:         http.StatusTooManyRequests,
	ErrCodeRequestTooLarge:     http.StatusRequestEntityTooLarge,
	ErrCodeTimeout:             http.StatusGatewayTimeout,

	// billing domain codes
	"PAYMENT_METHOD_NOT_FOUND":  http.StatusNotFound,
	"ACTION_KEY_EXISTS":         http.StatusConflict,
	"INVOICE_NUMBER_TAKEN":      http.StatusConflict,
	"SETTLEMENT_IN_PROGRESS":    http.StatusConflict,
	"INVOICE_RECORDS_CHANGED":   http.StatusConflict,
	"INVOICE_ALREADY_PAID":      http.StatusUnprocessableEntity,
	"INVOICE_VOIDED":            http.StatusUnprocessableEntity,
	"CANNOT_VOID_PAID_INVOICE":  http.StatusUnprocessableEntity,
	"CHARGE_ALREADY_SETTLED":    http.StatusUnprocessableEntity,
	"RECORD_ALREADY_INVOICED":   http.StatusUnprocessableEntity,
	"RECORD_NOT_FAILED":         http.StatusUnprocessableEntity,
	"RECORD_NOT_INVOICEABLE":    http.StatusUnprocessableEntity,
	"RETRY_LIMIT_EXCEEDED":      http.StatusUnprocessableEntity,
	"FALLBACK_ALREADY_INVOICED": http.StatusUnprocessableEntity,
	"NOTHING_TO_INVOICE":        http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status for an error code, or 500 when the
// code is unknown
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps the shared domain codes to the generic codes
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"ALREADY_EXISTS":           ErrCodeAlreadyExists,
	"INVALID_INPUT":            ErrCodeInvalidInput,
	"INVALID_STATE":            ErrCodeInvalidState,
	"INVALID_STATE_TRANSITION": ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":     ErrCodeConcurrencyConflict,
}

// NormalizeErrorCode converts a shared domain code to its generic form.
// Other codes are returned as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}

// DomainErrorStatus maps a domain error code to an HTTP status. Domain
// errors are never 500: unlisted INVALID_* codes are input errors and
// anything else is a business rule violation.
func DomainErrorStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[NormalizeErrorCode(code)]; ok {
		return status
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusUnprocessableEntity
}
