package logger

import (
	"context"

	"go.uber.org/zap"
)

// Standard field names for consistent structured logging across inout.
// Use these constants instead of raw strings to ensure consistency.
const (
	// Identity and context
	FieldWriteID   = "write_id"
	FieldRequestID = "request_id"

	// Components
	FieldComponent = "component"
	FieldBackend   = "backend"

	// Targets
	FieldTarget   = "target"
	FieldDataset  = "dataset"
	FieldKeyspace = "keyspace"
	FieldCalendar = "calendar_id"

	// Operations
	FieldOperation = "operation"
	FieldQuery     = "query"
	FieldPolicy    = "policy"
	FieldKey       = "conflict_key"

	// Timing
	FieldDurationMS = "duration_ms"

	// Errors
	FieldError      = "error"
	FieldStatusCode = "status_code"

	// Counts and sizes
	FieldCount     = "count"
	FieldIndex     = "index"
	FieldConflicts = "conflicts"
	FieldFailed    = "failed"
	FieldWritten   = "written"

	// Network
	FieldHost = "host"
	FieldPort = "port"
)

type contextKey string

const (
	writeIDKey   contextKey = "logger_write_id"
	requestIDKey contextKey = "logger_request_id"
)

// WithWriteID adds a write ID to the context for logging
func WithWriteID(ctx context.Context, writeID string) context.Context {
	return context.WithValue(ctx, writeIDKey, writeID)
}

// WithRequestID adds a request ID to the context for logging
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// FieldsFromContext extracts logging fields from context.
// Returns key-value pairs suitable for use with Infow/Errorw/etc.
func FieldsFromContext(ctx context.Context) []interface{} {
	var fields []interface{}

	if writeID, ok := ctx.Value(writeIDKey).(string); ok && writeID != "" {
		fields = append(fields, FieldWriteID, writeID)
	}
	if requestID, ok := ctx.Value(requestIDKey).(string); ok && requestID != "" {
		fields = append(fields, FieldRequestID, requestID)
	}

	return fields
}

// FromContext returns base decorated with the fields carried by ctx.
func FromContext(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	base = OrNop(base)
	fields := FieldsFromContext(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

// ComponentLogger returns a named child of parent for a specific component.
// This is the preferred way to get a logger for dependency injection.
//
// Example:
//
//	func New(db *sql.DB, log *zap.SugaredLogger) *Client {
//	    return &Client{log: logger.ComponentLogger(log, "relational")}
//	}
func ComponentLogger(parent *zap.SugaredLogger, name string) *zap.SugaredLogger {
	return OrNop(parent).Named(name)
}
