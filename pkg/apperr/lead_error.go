// Package apperr defines the coded error taxonomy shared by all adapters.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Remote call outcomes
	CodeRateLimited = "RATE_LIMITED"
	CodeNotFound    = "NOT_FOUND"
	CodeTimeout     = "TIMEOUT"
	CodeExternal    = "EXTERNAL_ERROR"

	// Sync
	CodeStaleCursor = "STALE_CURSOR"

	// Locking
	CodeLockConflict = "LOCK_CONFLICT"

	// Persistence
	CodeAlreadyExists = "ALREADY_EXISTS"
	CodeDatabase      = "DATABASE_ERROR"

	// Input / config
	CodeBadRequest = "BAD_REQUEST"
	CodeConfig     = "CONFIG_ERROR"
	CodeInternal   = "INTERNAL_ERROR"
)

// AppError is a structured application error with a machine code.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Status  int            `json:"-"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
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

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// Constructor functions
func New(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status}
}

func Wrap(err error, code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Status: status, Err: err}
}

func RateLimited(message string) *AppError {
	if message == "" {
		message = "rate limited by remote service"
	}
	return &AppError{Code: CodeRateLimited, Message: message, Status: http.StatusTooManyRequests}
}

func NotFound(message string) *AppError {
	if message == "" {
		message = "resource not found"
	}
	return &AppError{Code: CodeNotFound, Message: message, Status: http.StatusNotFound}
}

func StaleCursor(message string) *AppError {
	if message == "" {
		message = "stored cursor is outside the remote retention window"
	}
	return &AppError{Code: CodeStaleCursor, Message: message, Status: http.StatusGone}
}

func LockConflict(message string) *AppError {
	if message == "" {
		message = "another worker holds the lock"
	}
	return &AppError{Code: CodeLockConflict, Message: message, Status: http.StatusConflict}
}

func AlreadyExists(message string) *AppError {
	if message == "" {
		message = "record already exists"
	}
	return &AppError{Code: CodeAlreadyExists, Message: message, Status: http.StatusConflict}
}

func Database(err error) *AppError {
	return &AppError{Code: CodeDatabase, Message: "database operation failed", Status: http.StatusInternalServerError, Err: err}
}

func External(err error, message string) *AppError {
	if message == "" {
		message = "external service call failed"
	}
	return &AppError{Code: CodeExternal, Message: message, Status: http.StatusBadGateway, Err: err}
}

// Code extraction helpers

// CodeOf returns the machine code of err, or "" when err carries none.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

func Is(err error, code string) bool {
	return CodeOf(err) == code
}

func IsRateLimited(err error) bool { return Is(err, CodeRateLimited) }
func IsNotFound(err error) bool    { return Is(err, CodeNotFound) }
func IsStaleCursor(err error) bool { return Is(err, CodeStaleCursor) }
