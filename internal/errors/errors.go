// Package errors provides domain errors carrying a machine-readable kind.
//
// Services return these errors; the API layer renders them as
// {"code": kind, "message": ..., "details": ...} with the kind's HTTP status.
//
//	if existing != nil {
//	    return "", errors.BookAlreadyAdded("book already added")
//	}
//
//	if errors.Is(err, errors.ErrBookNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
)

// Code is the machine-readable error kind returned to clients.
type Code string

// Error kinds.
const (
	CodeForbidden          Code = "ForbiddenError"
	CodeValidation         Code = "ValidationError"
	CodeBookAlreadyAdded   Code = "BookAlreadyAdded"
	CodeAlreadyExists      Code = "AlreadyExists"
	CodeBookNotFound       Code = "BookNotFound"
	CodeTagNotFound        Code = "TagNotFound"
	CodeFileNotFound       Code = "FileNotFound"
	CodeNotFound           Code = "NotFound"
	CodeDownloadCover      Code = "DownloadCoverError"
	CodeSearch             Code = "SearchError"
	CodeInvalidCredentials Code = "InvalidCredentials"
	CodeRateLimited        Code = "TooManyRequests"
	CodeInternal           Code = "ServerError"
)

// HTTPStatus returns the HTTP status code for an error kind.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeForbidden:
		return http.StatusForbidden
	case CodeValidation:
		return http.StatusBadRequest
	case CodeBookAlreadyAdded, CodeAlreadyExists:
		return http.StatusConflict
	case CodeBookNotFound, CodeTagNotFound, CodeFileNotFound, CodeNotFound:
		return http.StatusNotFound
	case CodeDownloadCover:
		return http.StatusBadGateway
	case CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a kind, message, and optional details.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same Code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// GetStatus lets HTTP frameworks read the status straight off the error.
func (e *Error) GetStatus() int {
	return e.HTTPStatus()
}

// WithDetails returns a copy of the error carrying details.
func (e *Error) WithDetails(details any) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: details, cause: e.cause}
}

// WithCause returns a copy of the error wrapping err.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Details: e.Details, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrForbidden          = &Error{Code: CodeForbidden, Message: "forbidden"}
	ErrValidation         = &Error{Code: CodeValidation, Message: "validation error"}
	ErrBookAlreadyAdded   = &Error{Code: CodeBookAlreadyAdded, Message: "book already added"}
	ErrAlreadyExists      = &Error{Code: CodeAlreadyExists, Message: "already exists"}
	ErrBookNotFound       = &Error{Code: CodeBookNotFound, Message: "book not found"}
	ErrTagNotFound        = &Error{Code: CodeTagNotFound, Message: "tag not found"}
	ErrFileNotFound       = &Error{Code: CodeFileNotFound, Message: "file not found"}
	ErrNotFound           = &Error{Code: CodeNotFound, Message: "not found"}
	ErrDownloadCover      = &Error{Code: CodeDownloadCover, Message: "error downloading cover"}
	ErrSearch             = &Error{Code: CodeSearch, Message: "error searching books"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid credentials"}
	ErrInternal           = &Error{Code: CodeInternal, Message: "internal error"}
)

// Forbidden creates an authentication/authorization failure.
func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

// Validation creates a validation error.
func Validation(msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg}
}

// Validationf creates a validation error with formatted message.
func Validationf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// ValidationWithDetails creates a validation error with details.
func ValidationWithDetails(msg string, details any) *Error {
	return &Error{Code: CodeValidation, Message: msg, Details: details}
}

// BookAlreadyAdded creates a duplicate catalog or library entry error.
func BookAlreadyAdded(msg string) *Error {
	return &Error{Code: CodeBookAlreadyAdded, Message: msg}
}

// AlreadyExists creates an already exists error.
func AlreadyExists(msg string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: msg}
}

// BookNotFound creates a book not found error.
func BookNotFound(msg string) *Error {
	return &Error{Code: CodeBookNotFound, Message: msg}
}

// TagNotFound creates a tag not found error naming the offending tag.
func TagNotFound(tagID string) *Error {
	return &Error{Code: CodeTagNotFound, Message: "Tag not found: " + tagID, Details: map[string]string{"tag_id": tagID}}
}

// FileNotFound creates a missing file error.
func FileNotFound(msg string) *Error {
	return &Error{Code: CodeFileNotFound, Message: msg}
}

// NotFound creates a generic not found error.
func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

// DownloadCoverError wraps a cover download failure.
func DownloadCoverError(err error) *Error {
	return &Error{Code: CodeDownloadCover, Message: "Error downloading the cover image", cause: err}
}

// SearchError wraps a list/search query failure.
func SearchError(err error) *Error {
	return &Error{Code: CodeSearch, Message: "Error searching in books", cause: err}
}

// InvalidCredentials creates an invalid credentials error.
func InvalidCredentials(msg string) *Error {
	return &Error{Code: CodeInvalidCredentials, Message: msg}
}

// RateLimited creates a throttling error.
func RateLimited(msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg}
}

// Internal creates an internal error.
func Internal(msg string) *Error {
	return &Error{Code: CodeInternal, Message: msg}
}

// Wrap wraps an error with a code and message.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, cause: err}
}

// Wrapf wraps an error with a code and formatted message.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), cause: err}
}
