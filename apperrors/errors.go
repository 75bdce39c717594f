// Package apperrors carries the error kinds the messaging core reports and the HTTP
// status each kind maps to.
package apperrors

import (
	"errors"
	"net/http"
)

type Kind string

const (
	KindInvalidRequest      Kind = "invalid_request"
	KindUnauthorized        Kind = "unauthorized"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindNotFoundOrForbidden Kind = "not_found_or_forbidden"
	KindUploadFailed        Kind = "upload_failed"
	KindServerError         Kind = "server_error"
)

const genericServerMessage = "Server error"

type AppError struct {
	Kind    Kind   `json:"kind"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches on kind, so errors.Is(err, apperrors.ErrForbidden) works for any
// forbidden error regardless of its message.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Public returns the message that is safe to show a client.
func (e *AppError) Public() string {
	if e.Kind == KindServerError {
		return genericServerMessage
	}
	return e.Message
}

func New(kind Kind, code int, message string) *AppError {
	return &AppError{Kind: kind, Code: code, Message: message}
}

var (
	ErrInvalidRequest      = New(KindInvalidRequest, http.StatusBadRequest, "Invalid request")
	ErrUnauthorized        = New(KindUnauthorized, http.StatusUnauthorized, "Unauthorized")
	ErrNotFound            = New(KindNotFound, http.StatusNotFound, "Not found")
	ErrForbidden           = New(KindForbidden, http.StatusForbidden, "Permission denied")
	ErrNotFoundOrForbidden = New(KindNotFoundOrForbidden, http.StatusNotFound, "Not found")
	ErrUploadFailed        = New(KindUploadFailed, http.StatusInternalServerError, "File upload failed")
	ErrServer              = New(KindServerError, http.StatusInternalServerError, genericServerMessage)
)

func InvalidRequest(msg string) *AppError {
	return New(KindInvalidRequest, http.StatusBadRequest, msg)
}

func Unauthorized(msg string) *AppError {
	return New(KindUnauthorized, http.StatusUnauthorized, msg)
}

func NotFound(msg string) *AppError {
	return New(KindNotFound, http.StatusNotFound, msg)
}

func Forbidden(msg string) *AppError {
	return New(KindForbidden, http.StatusForbidden, msg)
}

// NotFoundOrForbidden is reported as a 404 so callers cannot probe whether a
// resource exists.
func NotFoundOrForbidden(msg string) *AppError {
	return New(KindNotFoundOrForbidden, http.StatusNotFound, msg)
}

func UploadFailed(err error) *AppError {
	return &AppError{Kind: KindUploadFailed, Code: http.StatusInternalServerError, Message: "File upload failed", Err: err}
}

func Server(err error) *AppError {
	return &AppError{Kind: KindServerError, Code: http.StatusInternalServerError, Message: genericServerMessage, Err: err}
}

// From returns err as an *AppError, wrapping anything unknown as a server error.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Server(err)
}
