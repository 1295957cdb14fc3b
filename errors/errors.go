// Package errors provides error handling for inout.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints
//
// On top of that it defines the error taxonomy shared by every adapter and
// by the write orchestrator, and BackendError, which keeps the status code a
// backend reported so it can be surfaced in a write envelope.
//
// Usage:
//
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	return errors.WithHint(errors.ErrTargetNotFound, "set --create-if-missing")
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	"net/http"

	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

// Sentinel errors for the write path. Wrap them with errors.Wrap or
// errors.Mark to add context while keeping errors.Is working.
var (
	// ErrConnection indicates the backend could not be reached or authenticated against
	ErrConnection = New("backend connection failed")

	// ErrTargetNotFound indicates the write target (table, keyspace table, calendar) does not exist
	ErrTargetNotFound = New("target not found")

	// ErrAssetConflict indicates the target already exists and the asset policy refuses it
	ErrAssetConflict = New("target already exists")

	// ErrDataConflict indicates incoming records collide with existing ones
	ErrDataConflict = New("data conflict")

	// ErrUnsupportedPolicy indicates a policy or asset-creation path that is not implemented
	ErrUnsupportedPolicy = New("unsupported policy")

	// ErrMissingKeyField indicates a record lacks a field named by the conflict key
	ErrMissingKeyField = New("conflict key field missing from record")

	// ErrInvalidRequest indicates the request was malformed or invalid
	ErrInvalidRequest = New("invalid request")
)

// BackendError carries the status code a backend attached to a failure.
// Calendar API errors keep their HTTP status; SQL errors are mapped from
// their SQLSTATE by the relational adapter.
type BackendError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *BackendError) Error() string {
	return e.Backend + ": " + e.Err.Error()
}

func (e *BackendError) Unwrap() error { return e.Err }

// NewBackendError wraps err with the backend name and status code.
func NewBackendError(backend string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return WithStack(&BackendError{Backend: backend, StatusCode: statusCode, Err: err})
}

// StatusCode derives the envelope status code for err.
// BackendError wins; otherwise the taxonomy sentinels map to their HTTP
// equivalents and anything else is a 500.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var be *BackendError
	if As(err, &be) && be.StatusCode != 0 {
		return be.StatusCode
	}
	switch {
	case Is(err, ErrTargetNotFound):
		return http.StatusNotFound
	case IsAny(err, ErrAssetConflict, ErrDataConflict):
		return http.StatusConflict
	case IsAny(err, ErrInvalidRequest, ErrMissingKeyField):
		return http.StatusBadRequest
	case Is(err, ErrUnsupportedPolicy):
		return http.StatusNotImplemented
	case Is(err, ErrConnection):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// IsUnsupported reports whether err is or wraps ErrUnsupportedPolicy
func IsUnsupported(err error) bool {
	return err != nil && Is(err, ErrUnsupportedPolicy)
}

// IsConnectionError reports whether err is or wraps ErrConnection
func IsConnectionError(err error) bool {
	return err != nil && Is(err, ErrConnection)
}

// WrapConnection marks err as a connection failure with context
func WrapConnection(err error, context string) error {
	return Mark(Wrap(err, context), ErrConnection)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}

// NewUnsupportedError creates an unsupported-policy error with a formatted message
func NewUnsupportedError(format string, args ...interface{}) error {
	return Wrap(ErrUnsupportedPolicy, Newf(format, args...).Error())
}
