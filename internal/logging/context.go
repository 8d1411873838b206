package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldPatientID is the standardized structured logging key for patient identifiers.
	FieldPatientID = "patient_id"
	// FieldCaseIndex is the standardized structured logging key for the zero-based worklist position.
	FieldCaseIndex = "case_index"
	// FieldCaseTotal is the standardized structured logging key for the worklist length.
	FieldCaseTotal = "case_total"
	// FieldSessionID is the standardized structured logging key for review session identifiers.
	FieldSessionID = "session_id"
	// FieldDirectory is the standardized structured logging key for the worklist root directory.
	FieldDirectory = "directory"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

type caseContextKey struct{}

type correlationContextKey struct{}

type caseContext struct {
	patientID string
	index     int
	total     int
}

// WithCase returns a context tagged with the patient and worklist position of
// the case being reviewed.
func WithCase(ctx context.Context, patientID string, index, total int) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, caseContextKey{}, caseContext{patientID: patientID, index: index, total: total})
}

// WithCorrelationID returns a context tagged with a request correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationContextKey{}, id)
}

// CorrelationIDFromContext extracts the correlation ID, if any.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(correlationContextKey{}).(string)
	return id, ok && id != ""
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if cc, ok := ctx.Value(caseContextKey{}).(caseContext); ok {
		if cc.patientID != "" {
			fields = append(fields, slog.String(FieldPatientID, cc.patientID))
		}
		if cc.total > 0 {
			fields = append(fields, slog.Int(FieldCaseIndex, cc.index))
			fields = append(fields, slog.Int(FieldCaseTotal, cc.total))
		}
	}
	if rid, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
