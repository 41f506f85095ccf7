package shipper

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/tournevent/shipgate/pkg/shipper/credentials"
)

// Kind is the carrier-agnostic error classification surfaced to callers.
type Kind string

const (
	KindAuthenticationFailed    Kind = "AUTHENTICATION_FAILED"
	KindServiceUnavailable      Kind = "SERVICE_UNAVAILABLE"
	KindRateLimited             Kind = "RATE_LIMITED"
	KindValidationFailed        Kind = "VALIDATION_FAILED"
	KindNotServiceable          Kind = "NOT_SERVICEABLE"
	KindWaybillExhausted        Kind = "WAYBILL_EXHAUSTED"
	KindNotFound                Kind = "NOT_FOUND"
	KindUnexpectedResponseShape Kind = "UNEXPECTED_RESPONSE_SHAPE"
)

// Transient reports whether errors of this kind are worth retrying.
func (k Kind) Transient() bool {
	return k == KindServiceUnavailable || k == KindRateLimited
}

// Error represents a classified error from a shipping carrier.
// The raw carrier error is kept in Cause for diagnostics.
type Error struct {
	Kind       Kind
	Carrier    string
	Code       string
	Message    string
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Carrier == "" {
		return e.Message
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s error (%s): %s: %v", e.Carrier, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error (%s): %s", e.Carrier, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of carrier or code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Retryable reports whether the gateway should retry the failed call.
func (e *Error) Retryable() bool {
	return e.Kind.Transient()
}

// NewError creates a new Error.
func NewError(carrier string, kind Kind, code, message string) *Error {
	return &Error{
		Kind:    kind,
		Carrier: carrier,
		Code:    code,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// Sentinel errors, one per kind. Compare with errors.Is.
var (
	ErrAuthenticationFailed    = &Error{Kind: KindAuthenticationFailed, Message: "authentication failed"}
	ErrServiceUnavailable      = &Error{Kind: KindServiceUnavailable, Message: "service unavailable"}
	ErrRateLimited             = &Error{Kind: KindRateLimited, Message: "rate limit exceeded"}
	ErrValidationFailed        = &Error{Kind: KindValidationFailed, Message: "validation failed"}
	ErrNotServiceable          = &Error{Kind: KindNotServiceable, Message: "not serviceable"}
	ErrWaybillExhausted        = &Error{Kind: KindWaybillExhausted, Message: "waybills exhausted"}
	ErrNotFound                = &Error{Kind: KindNotFound, Message: "not found"}
	ErrUnexpectedResponseShape = &Error{Kind: KindUnexpectedResponseShape, Message: "unexpected response shape"}
)

var (
	// ErrCarrierNotFound indicates the requested carrier is not registered.
	ErrCarrierNotFound = errors.New("carrier not found")

	// ErrRatingUnsupported is returned by adapters whose carrier has no live rating API.
	ErrRatingUnsupported = errors.New("live rating not supported")
)

// KindForStatus maps an HTTP status code from a carrier to an error kind.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuthenticationFailed
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status == http.StatusRequestTimeout || status >= 500:
		return KindServiceUnavailable
	case status >= 400:
		return KindValidationFailed
	default:
		return KindUnexpectedResponseShape
	}
}

// Normalize converts any error returned while talking to a carrier into an *Error.
func Normalize(carrier string, err error) *Error {
	if err == nil {
		return nil
	}

	// A failed login is an authentication failure whatever the login call
	// itself returned.
	var authErr *credentials.AuthError
	if errors.As(err, &authErr) {
		return NewError(carrier, KindAuthenticationFailed, "AUTH_FAILED", "credential refresh failed").WithCause(err)
	}

	var shipErr *Error
	if errors.As(err, &shipErr) {
		if shipErr.Carrier == "" {
			copied := *shipErr
			copied.Carrier = carrier
			return &copied
		}
		return shipErr
	}

	if errors.Is(err, ErrCarrierNotFound) {
		return NewError(carrier, KindValidationFailed, "UNKNOWN_CARRIER", "carrier is not configured").WithCause(err)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(carrier, KindServiceUnavailable, "TIMEOUT", "carrier call timed out").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(carrier, KindServiceUnavailable, "CANCELLED", "carrier call cancelled").WithCause(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return NewError(carrier, KindServiceUnavailable, "NETWORK", "carrier unreachable").WithCause(err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var xmlErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.As(err, &xmlErr) {
		return NewError(carrier, KindUnexpectedResponseShape, "DECODE", "carrier response could not be decoded").WithCause(err)
	}

	return NewError(carrier, KindUnexpectedResponseShape, "UNKNOWN", "unclassified carrier error").WithCause(err)
}

// KindOf returns the kind of err, classifying unknown errors the same way Normalize does.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Normalize("", err).Kind
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err).Transient()
}
