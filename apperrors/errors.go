package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	Internal Kind = iota
	ValidationFailed
	BadRequest
	NotFound
	Unauthenticated
	Unauthorized
	Conflict
	Expired
	TooManyRequests
)

func (k Kind) String() string {
	switch k {
	case ValidationFailed:
		return "validation_failed"
	case BadRequest:
		return "bad_request"
	case NotFound:
		return "not_found"
	case Unauthenticated:
		return "unauthenticated"
	case Unauthorized:
		return "unauthorized"
	case Conflict:
		return "conflict"
	case Expired:
		return "expired"
	case TooManyRequests:
		return "too_many_requests"
	default:
		return "internal"
	}
}

// Error is the single error type handlers hand to the boundary error handler.
// Fields is only set for ValidationFailed.
type Error struct {
	Kind   Kind
	Detail string
	Fields map[string][]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Body is what gets rendered under the "detail" key.
func (e *Error) Body() any {
	if e.Kind == ValidationFailed && len(e.Fields) > 0 {
		return e.Fields
	}
	return e.Detail
}

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind Kind, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func Validation(fields map[string][]string) *Error {
	return &Error{Kind: ValidationFailed, Detail: "validation failed", Fields: fields}
}

// Field builds a validation error for a single field.
func Field(field, message string) *Error {
	return Validation(map[string][]string{field: {message}})
}

func BadRequestf(format string, args ...any) *Error {
	return New(BadRequest, fmt.Sprintf(format, args...))
}

func NotFoundf(resource string) *Error {
	return New(NotFound, resource+" not found")
}

func InternalWrap(err error) *Error {
	return Wrap(Internal, "internal server error", err)
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Status maps an error to the HTTP status code used at the boundary.
func Status(err error) int {
	if err == nil {
		return http.StatusOK
	}
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch appErr.Kind {
	case ValidationFailed, BadRequest:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unauthenticated, Expired:
		return http.StatusUnauthorized
	case Unauthorized:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case TooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
