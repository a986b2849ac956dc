package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies a provisioning failure.
type Kind string

const (
	KindInvalidRequest       Kind = "invalid_request"
	KindMissingAuthorization Kind = "missing_authorization"
	KindUpstreamAuth         Kind = "upstream_auth_error"
	KindUpstreamUnavailable  Kind = "upstream_unavailable"
	KindRateLimited          Kind = "rate_limited"
	KindConfiguration        Kind = "configuration_error"
)

// Error is the typed error returned by every provisioning component.
type Error struct {
	Kind        Kind          // Failure class
	Description string        // Human-readable description, safe to show to callers
	RetryAfter  time.Duration // Hint for RateLimited errors
	Err         error         // Underlying cause, if any
}

// Sentinels for errors.Is. Only the Kind is compared.
var (
	ErrInvalidRequest       = &Error{Kind: KindInvalidRequest}
	ErrMissingAuthorization = &Error{Kind: KindMissingAuthorization}
	ErrUpstreamAuth         = &Error{Kind: KindUpstreamAuth}
	ErrUpstreamUnavailable  = &Error{Kind: KindUpstreamUnavailable}
	ErrRateLimited          = &Error{Kind: KindRateLimited}
	ErrConfiguration        = &Error{Kind: KindConfiguration}
)

// Error implements the error interface
func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Description, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Description)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a session error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Retryable reports whether the caller may retry (with backoff) later.
func (e *Error) Retryable() bool {
	return e.Kind == KindUpstreamUnavailable || e.Kind == KindRateLimited
}

// HTTPStatus maps the error kind to an HTTP status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindMissingAuthorization:
		return http.StatusUnauthorized
	case KindUpstreamAuth:
		return http.StatusBadGateway
	case KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:        kind,
		Description: fmt.Sprintf(format, args...),
		Err:         cause,
	}
}

// NewInvalidRequest reports a malformed caller request. Not retryable.
func NewInvalidRequest(format string, args ...any) *Error {
	return newError(KindInvalidRequest, nil, format, args...)
}

// NewMissingAuthorization reports an absent or expired caller credential.
func NewMissingAuthorization(format string, args ...any) *Error {
	return newError(KindMissingAuthorization, nil, format, args...)
}

// NewUpstreamAuth reports that the upstream service rejected the credential.
func NewUpstreamAuth(cause error, format string, args ...any) *Error {
	return newError(KindUpstreamAuth, cause, format, args...)
}

// NewUpstreamUnavailable reports a transient upstream failure.
func NewUpstreamUnavailable(cause error, format string, args ...any) *Error {
	return newError(KindUpstreamUnavailable, cause, format, args...)
}

// NewRateLimited reports that the requester exceeded its quota.
func NewRateLimited(retryAfter time.Duration, format string, args ...any) *Error {
	e := newError(KindRateLimited, nil, format, args...)
	e.RetryAfter = retryAfter
	return e
}

// NewConfiguration reports missing or invalid startup configuration.
func NewConfiguration(format string, args ...any) *Error {
	return newError(KindConfiguration, nil, format, args...)
}

// KindOf returns the Kind of err, or "" if err is not a session error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError extracts the session error from err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
