package db

import (
	"context"
	"log/slog"

	"wpre/internal/types"
)

// ErrorLogRepository appends operational error messages to wpre_error_log.
type ErrorLogRepository struct {
	db DBTX
}

// NewErrorLogRepository creates an ErrorLogRepository.
func NewErrorLogRepository(db DBTX) *ErrorLogRepository {
	return &ErrorLogRepository{db: db}
}

// RecordError inserts one message.
func (r *ErrorLogRepository) RecordError(ctx context.Context, message string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO wpre_error_log (message, recorded_at) VALUES ($1, NOW())`,
		message,
	)
	if err != nil {
		return storeError("failed to record error", err)
	}
	return nil
}

// ErrorLog mirrors every recorded message to the structured logger before
// forwarding it to the backing sink. A nil sink only logs.
type ErrorLog struct {
	sink   types.ErrorRecorder
	logger *slog.Logger
}

// NewErrorLog wraps sink with log mirroring.
func NewErrorLog(sink types.ErrorRecorder, logger *slog.Logger) *ErrorLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorLog{sink: sink, logger: logger}
}

// RecordError implements types.ErrorRecorder.
func (l *ErrorLog) RecordError(ctx context.Context, message string) error {
	l.logger.WarnContext(ctx, "operational error recorded",
		"message", message,
		"request_id", types.GetRequestID(ctx),
	)
	if l.sink == nil {
		return nil
	}
	return l.sink.RecordError(ctx, message)
}
