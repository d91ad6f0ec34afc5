package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Kind classifies an application error.
type Kind string

const (
	KindNotFound          Kind = "NOT_FOUND"
	KindPermission        Kind = "PERMISSION"
	KindValidation        Kind = "VALIDATION"
	KindMalformedSequence Kind = "MALFORMED_SEQUENCE"
	KindConflict          Kind = "CONFLICT"
	KindUnauthorized      Kind = "UNAUTHORIZED"
)

// DefaultPermissionMessage is returned when a policy denial carries no reason.
const DefaultPermissionMessage = "Not enough permissions"

// Error is the error type returned by every service in the module.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Permission creates a permission error. An empty message falls back to
// DefaultPermissionMessage.
func Permission(message string) *Error {
	if message == "" {
		message = DefaultPermissionMessage
	}
	return &Error{Kind: KindPermission, Message: message}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func MalformedSequence(message string, err error) *Error {
	return &Error{Kind: KindMalformedSequence, Message: message, Err: err}
}

func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

func Unauthorized(message string) *Error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

// Is reports whether err is, or wraps, an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// StatusCode maps an error to its HTTP status. Errors that are not *Error
// map to 500.
func StatusCode(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindPermission:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// HTTP converts a service error into an *echo.HTTPError. Server-side
// failures keep the cause as the internal error so the request logger
// records it, while the client only sees a generic message.
func HTTP(err error) *echo.HTTPError {
	if err == nil {
		return nil
	}
	status := StatusCode(err)
	if status >= http.StatusInternalServerError {
		return echo.NewHTTPError(status, "internal server error").SetInternal(err)
	}
	var e *Error
	errors.As(err, &e)
	he := echo.NewHTTPError(status, e.Message)
	if e.Kind == KindUnauthorized {
		he.SetInternal(err)
	}
	return he
}
