package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error into the gateway's taxonomy. Every error that
// escapes a handler is one of these kinds; the terminal response writer maps
// the kind onto an HTTP status and a machine-readable code.
type Kind string

const (
	KindValidation      Kind = "VALIDATION_ERROR"
	KindAuthentication  Kind = "AUTHENTICATION_ERROR"
	KindAuthorization   Kind = "AUTHORIZATION_ERROR"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindBusinessRule    Kind = "BUSINESS_RULE_ERROR"
	KindRateLimit       Kind = "RATE_LIMIT_EXCEEDED"
	KindExternalService Kind = "EXTERNAL_SERVICE_ERROR"
	KindInternal        Kind = "INTERNAL_ERROR"
)

// Status returns the HTTP status code for the kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindBusinessRule:
		return http.StatusUnprocessableEntity
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindExternalService:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed domain error carrying a kind, a client-safe message and
// optional structured details.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	wrapped error
}

func (e *Error) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.wrapped
}

// New creates a typed error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates a typed error wrapping an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, wrapped: err}
}

// WithDetails attaches structured details to the error and returns it.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// Validation creates a 400-kind error.
func Validation(message string) *Error { return New(KindValidation, message) }

// Authentication creates a 401-kind error.
func Authentication(message string) *Error { return New(KindAuthentication, message) }

// Authorization creates a 403-kind error.
func Authorization(message string) *Error { return New(KindAuthorization, message) }

// NotFound creates a 404-kind error.
func NotFound(message string) *Error { return New(KindNotFound, message) }

// Conflict creates a 409-kind error.
func Conflict(message string) *Error { return New(KindConflict, message) }

// BusinessRule creates a 422-kind error.
func BusinessRule(message string) *Error { return New(KindBusinessRule, message) }

// RateLimit creates a 429-kind error.
func RateLimit(message string) *Error { return New(KindRateLimit, message) }

// ExternalService creates a 503-kind error.
func ExternalService(message string) *Error { return New(KindExternalService, message) }

// Internal creates a 500-kind error.
func Internal(message string) *Error { return New(KindInternal, message) }

// KindOf extracts the kind from an error chain. Bare sentinels classify by
// their domain; anything else is treated as internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrExpiredCredential),
		errors.Is(err, ErrMalformedCredential),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrSessionNotFound):
		return KindAuthentication
	case errors.Is(err, ErrUserBlocked),
		errors.Is(err, ErrTenantAccessDenied),
		errors.Is(err, ErrTenantTrialExpired):
		return KindAuthorization
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrTenantNotFound),
		errors.Is(err, ErrRouteNotFound):
		return KindNotFound
	}
	return KindInternal
}

// Common sentinel errors for fine-grained errors.Is checks
var (
	// Credential errors
	ErrExpiredCredential   = errors.New("credential expired")
	ErrMalformedCredential = errors.New("malformed credential")

	// Authentication errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrUserNotFound       = errors.New("user not found")

	// Tenant errors
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantAccessDenied = errors.New("tenant access denied")
	ErrTenantTrialExpired = errors.New("tenant trial expired")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")

	// Routing errors
	ErrRouteNotFound = errors.New("route not found")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
