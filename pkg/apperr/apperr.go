// Package apperr defines the closed set of failure classifications used across
// the voice pipeline. Every component sets the classification at the point of
// failure; callers never infer it from error text.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Kind is the classification of a failure
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindUnauthorized
	KindNotFound
	KindUpstreamTransient
	KindUpstreamRateLimited
	KindEmptyGeneration
	KindStorage
	KindTimeout
	KindCanceled
)

// StatusClientClosedRequest is returned when the caller went away before the turn finished
const StatusClientClosedRequest = 499

var kindNames = map[Kind]string{
	KindInternal:            "internal_error",
	KindValidation:          "validation_error",
	KindUnauthenticated:     "unauthenticated",
	KindUnauthorized:        "unauthorized",
	KindNotFound:            "not_found",
	KindUpstreamTransient:   "upstream_unavailable",
	KindUpstreamRateLimited: "upstream_rate_limited",
	KindEmptyGeneration:     "empty_generation",
	KindStorage:             "storage_error",
	KindTimeout:             "timeout",
	KindCanceled:            "canceled",
}

// String returns the wire code for the kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[KindInternal]
}

// Error is the tagged failure value returned by pipeline components
type Error struct {
	// Kind is the classification
	Kind Kind

	// Code overrides the wire code derived from Kind (e.g. "no_speech_detected")
	Code string

	// Message is safe to show to the caller
	Message string

	// Status is the HTTP-equivalent status carried by the failure. Upstream
	// errors keep the provider's status here so retry policy can inspect it.
	Status int

	// RetryAfter is an optional hint for rate limited failures
	RetryAfter time.Duration

	// Err is the underlying cause, only ever logged
	Err error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.WireCode(), e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.WireCode(), e.Message)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// WireCode returns the code placed in the error JSON body
func (e *Error) WireCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind.String()
}

// HTTPStatus returns the caller-facing status for this failure
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		if e.Status >= 400 && e.Status < 500 {
			return e.Status
		}
		return http.StatusBadRequest
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindUnauthorized:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstreamTransient, KindEmptyGeneration:
		return http.StatusBadGateway
	case KindUpstreamRateLimited:
		return http.StatusTooManyRequests
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

/** Constructors **/

// Validation creates a caller-fault failure that is never retried
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Status: http.StatusBadRequest}
}

// ValidationStatus creates a validation failure with a specific 4xx status
func ValidationStatus(status int, code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Status: status}
}

// Unauthenticated creates a missing/bad credential failure
func Unauthenticated(message string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: message, Status: http.StatusUnauthorized}
}

// NotFound creates a not-found failure
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message, Status: http.StatusNotFound}
}

// Storage wraps a durable store failure
func Storage(message string, err error) *Error {
	return &Error{Kind: KindStorage, Message: message, Status: http.StatusInternalServerError, Err: err}
}

// Internal wraps an unclassified failure
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Status: http.StatusInternalServerError, Err: err}
}

// EmptyGeneration marks a nominally successful generation call that produced no text
func EmptyGeneration(message string) *Error {
	return &Error{Kind: KindEmptyGeneration, Message: message}
}

// Upstream classifies a provider failure from the status it returned. A zero
// status means the request never got a response (network fault).
func Upstream(provider string, status int, retryAfter time.Duration, err error) *Error {
	e := &Error{Status: status, RetryAfter: retryAfter, Err: err}

	switch {
	case status == http.StatusTooManyRequests:
		e.Kind = KindUpstreamRateLimited
		e.Message = provider + " provider is rate limiting requests"
	case status >= 400 && status < 500:
		// The provider rejected our request; from the caller's point of view this
		// is still an upstream failure, but it must not be retried
		e.Kind = KindUpstreamTransient
		e.Code = "upstream_rejected"
		e.Message = provider + " provider rejected the request"
	default:
		e.Kind = KindUpstreamTransient
		e.Message = provider + " provider is unavailable"
	}

	return e
}

/** Inspection **/

// As extracts an *Error from an error chain
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the classification of any error. Context errors are mapped to
// Timeout/Canceled, everything unclassified is Internal.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if e, ok := As(err); ok {
		return e.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	return KindInternal
}

// Normalize converts any error into an *Error so it can be rendered
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}

	switch KindOf(err) {
	case KindTimeout:
		return &Error{Kind: KindTimeout, Message: "the request took too long to complete", Err: err}
	case KindCanceled:
		return &Error{Kind: KindCanceled, Message: "the request was canceled", Err: err}
	default:
		return Internal("an unexpected error occurred", err)
	}
}

// Retryable reports whether a failed call may succeed on a later attempt.
// Anything carrying a client-class status is terminal.
func Retryable(err error) bool {
	if err == nil {
		return false
	}

	if e, ok := As(err); ok {
		if e.Status >= 400 && e.Status < 500 {
			return false
		}
		return e.Kind == KindUpstreamTransient
	}

	// Per-attempt deadlines and transport faults are worth another attempt
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
