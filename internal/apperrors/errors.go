package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, machine readable error identifier returned to clients
type Code string

const (
	CodeValidation         Code = "VALIDATION_ERROR"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeAccountSuspended   Code = "ACCOUNT_SUSPENDED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeEmailExists        Code = "EMAIL_EXISTS"
	CodeUserNotFound       Code = "USER_NOT_FOUND"
	CodeNotFound           Code = "NOT_FOUND"
	CodeCannotDeleteSelf   Code = "CANNOT_DELETE_SELF"
	CodeCannotDeleteAdmin  Code = "CANNOT_DELETE_ADMIN"
	CodeQuotaExceeded      Code = "QUOTA_EXCEEDED"
	CodeRateLimited        Code = "RATE_LIMITED"
	CodeUpstream           Code = "UPSTREAM_ERROR"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// AppError is an error that carries the HTTP status and client-safe message
// it should be reported with. Err is never exposed to clients.
type AppError struct {
	Code     Code
	Message  string
	HTTPCode int
	Err      error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError
func New(code Code, message string, httpCode int) *AppError {
	return &AppError{Code: code, Message: message, HTTPCode: httpCode}
}

// Wrap attaches an underlying cause to a new AppError
func Wrap(err error, code Code, message string, httpCode int) *AppError {
	return &AppError{Code: code, Message: message, HTTPCode: httpCode, Err: err}
}

func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

func Unauthorized(message string) *AppError {
	return New(CodeUnauthorized, message, http.StatusUnauthorized)
}

func Forbidden(code Code, message string) *AppError {
	return New(code, message, http.StatusForbidden)
}

func NotFound(code Code, message string) *AppError {
	return New(code, message, http.StatusNotFound)
}

func QuotaExceeded(message string) *AppError {
	return New(CodeQuotaExceeded, message, http.StatusTooManyRequests)
}

// Upstream reports a failure of the external synthesis service with its own status
func Upstream(status int, message string, err error) *AppError {
	return Wrap(err, CodeUpstream, message, status)
}

// Internal hides err behind a generic message
func Internal(err error) *AppError {
	return Wrap(err, CodeInternal, "Internal server error", http.StatusInternalServerError)
}

// As extracts an AppError from err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// From returns err as an AppError, converting unknown errors to Internal
func From(err error) *AppError {
	if appErr, ok := As(err); ok {
		return appErr
	}
	return Internal(err)
}

// HasCode reports whether err is an AppError with the given code
func HasCode(err error, code Code) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
