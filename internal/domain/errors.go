package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Repository errors.
var (
	ErrNotFound = errors.New("not found")
	// ErrUnavailable means the datastore is not configured or is refusing calls.
	ErrUnavailable = errors.New("datastore unavailable")
	// ErrRPCUnavailable means the atomic increment procedure does not exist.
	ErrRPCUnavailable = errors.New("increment procedure unavailable")
)

// DatastoreError wraps a failed datastore query.
type DatastoreError struct {
	Op  string
	Err error
}

func (e *DatastoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *DatastoreError) Unwrap() error { return e.Err }

// ErrorKind is the closed set of failures surfaced to callers.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindMissingKey
	KindServiceUnavailable
	KindInvalidKey
	KindAccountInactive
	KindKeyExpired
	KindQuotaExhausted
	KindQuotaInsufficient
	KindRateLimited
	KindNotFound
	KindBadRequest
	KindUnauthorized
	KindDatabaseError
	KindTimeout
)

// Status maps the kind to its HTTP status code. InvalidKey answers 403:
// the caller presented a credential, it just does not grant access.
func (k ErrorKind) Status() int {
	switch k {
	case KindMissingKey, KindUnauthorized:
		return http.StatusUnauthorized
	case KindServiceUnavailable:
		return http.StatusServiceUnavailable
	case KindInvalidKey, KindAccountInactive, KindKeyExpired:
		return http.StatusForbidden
	case KindQuotaExhausted, KindQuotaInsufficient, KindRateLimited:
		return http.StatusTooManyRequests
	case KindNotFound:
		return http.StatusNotFound
	case KindBadRequest:
		return http.StatusBadRequest
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindDatabaseError, KindInternal:
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

// Label is the short machine-readable error string.
func (k ErrorKind) Label() string {
	switch k {
	case KindMissingKey:
		return "API key required"
	case KindServiceUnavailable:
		return "Service unavailable"
	case KindInvalidKey:
		return "Invalid API key"
	case KindAccountInactive:
		return "Account inactive"
	case KindKeyExpired:
		return "API key expired"
	case KindQuotaExhausted:
		return "API quota exceeded"
	case KindQuotaInsufficient:
		return "Insufficient API quota"
	case KindRateLimited:
		return "Rate limit exceeded"
	case KindNotFound:
		return "Not found"
	case KindBadRequest:
		return "Bad request"
	case KindUnauthorized:
		return "Unauthorized"
	case KindDatabaseError:
		return "Database error"
	case KindTimeout:
		return "Datastore timeout"
	case KindInternal:
		return "Internal server error"
	}
	return "Internal server error"
}

func (k ErrorKind) String() string { return k.Label() }

// APIError is a classified failure with optional echoed state.
type APIError struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
}

// NewAPIError builds an APIError with a formatted message.
func NewAPIError(kind ErrorKind, format string, args ...any) *APIError {
	return &APIError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *APIError) Error() string {
	return e.Kind.Label() + ": " + e.Message
}

// With attaches a detail field rendered next to error and message.
func (e *APIError) With(key string, value any) *APIError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// FromError classifies err. Unknown errors become KindInternal.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return NewAPIError(KindNotFound, "%s", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return NewAPIError(KindTimeout, "the datastore did not answer in time")
	case errors.Is(err, ErrUnavailable):
		return NewAPIError(KindServiceUnavailable, "%s", err.Error())
	}
	var dsErr *DatastoreError
	if errors.As(err, &dsErr) {
		return NewAPIError(KindDatabaseError, "%s", dsErr.Error())
	}
	return NewAPIError(KindInternal, "%s", err.Error())
}

// KindOf returns the kind err classifies as. It must not be called with nil.
func KindOf(err error) ErrorKind {
	if e := FromError(err); e != nil {
		return e.Kind
	}
	return KindInternal
}
