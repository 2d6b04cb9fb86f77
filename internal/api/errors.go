package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies an API failure for recovery decisions.
type ErrorKind string

const (
	// KindTransport covers network failures, timeouts and 5xx responses.
	KindTransport ErrorKind = "transport"
	// KindAuth covers expired or invalid credentials (401, 403).
	KindAuth ErrorKind = "auth"
	// KindValidation covers rejected input (400, 422).
	KindValidation ErrorKind = "validation"
	// KindNotFound covers stale references to deleted resources (404, 410).
	KindNotFound ErrorKind = "not_found"
	// KindBusiness covers backend-reported domain errors (remaining 4xx).
	KindBusiness ErrorKind = "business"
)

// APIError is the classified form of any failed request.
type APIError struct {
	Kind       ErrorKind
	StatusCode int // 0 when the request never produced a response
	Message    string
	RequestID  string

	err error // underlying cause, when one exists
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode == 0 {
		return fmt.Sprintf("api %s error: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("api %s error (%d): %s", e.Kind, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.err }

// transportError wraps a failure that happened before any response arrived.
func transportError(err error, requestID string) *APIError {
	return &APIError{
		Kind:      KindTransport,
		Message:   err.Error(),
		RequestID: requestID,
		err:       err,
	}
}

// validationError wraps client-side input validation failures so callers can
// treat them like backend validation rejections.
func validationError(err error) *APIError {
	return &APIError{
		Kind:    KindValidation,
		Message: err.Error(),
		err:     err,
	}
}

// Retryable reports whether retrying the same request can succeed.
// Only transport-level failures qualify.
func (e *APIError) Retryable() bool {
	return e != nil && e.Kind == KindTransport
}

// classifyStatus maps an HTTP status code to an error kind.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuth
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return KindValidation
	case code == http.StatusNotFound || code == http.StatusGone:
		return KindNotFound
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests:
		return KindTransport
	case code >= 500:
		return KindTransport
	default:
		return KindBusiness
	}
}

// AsAPIError unwraps err to an *APIError, or nil if it is not one.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}

// IsRetryable is the predicate the retry policy consults. Cancellation is
// never retried regardless of classification.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if apiErr := AsAPIError(err); apiErr != nil {
		return apiErr.Retryable()
	}
	return false
}

// IsAuth reports whether err means the session must be re-established.
func IsAuth(err error) bool {
	apiErr := AsAPIError(err)
	return apiErr != nil && apiErr.Kind == KindAuth
}

// IsNotFound reports whether err refers to a resource that no longer exists.
func IsNotFound(err error) bool {
	apiErr := AsAPIError(err)
	return apiErr != nil && apiErr.Kind == KindNotFound
}

// IsValidation reports whether err should be surfaced inline on a form.
func IsValidation(err error) bool {
	apiErr := AsAPIError(err)
	return apiErr != nil && apiErr.Kind == KindValidation
}
