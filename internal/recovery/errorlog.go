package recovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/ecom-support/chatbot/internal/metrics"
	"github.com/ecom-support/chatbot/internal/storage/models"
	"github.com/ecom-support/chatbot/pkg/logger"
)

// ErrorWriter stores error records in a database.
type ErrorWriter interface {
	InsertError(ctx context.Context, record *models.ErrorRecord) error
}

// ErrorLog appends error records as JSON lines and, when a database is
// configured, to the errors table.
type ErrorLog struct {
	file    *zap.Logger
	closeFn func() error
	db      ErrorWriter
}

func NewErrorLog(path string, db ErrorWriter) (*ErrorLog, error) {
	l, closeFn, err := logger.NewFileLogger(path)
	if err != nil {
		return nil, err
	}
	return &ErrorLog{file: l, closeFn: closeFn, db: db}, nil
}

// NewErrorLogWithLogger writes entries through an existing zap logger.
func NewErrorLogWithLogger(l *zap.Logger, db ErrorWriter) *ErrorLog {
	return &ErrorLog{file: l, db: db}
}

func (e *ErrorLog) Write(ctx context.Context, rec models.ErrorRecord) error {
	e.file.Error("pipeline error",
		zap.Time("occurred_at", rec.Timestamp),
		zap.String("turn_id", rec.TurnID),
		zap.String("stage", rec.Stage),
		zap.String("kind", rec.Kind),
		zap.String("message", rec.Message),
		zap.String("stack_trace", rec.StackTrace),
	)

	if e.db == nil {
		return nil
	}
	if err := e.db.InsertError(ctx, &rec); err != nil {
		metrics.LogWriteErrors.WithLabelValues("errors_table").Inc()
		logger.Error("Failed to store error record",
			zap.String("turn_id", rec.TurnID),
			zap.Error(err),
		)
		return err
	}
	return nil
}

func (e *ErrorLog) Close() error {
	if e.closeFn == nil {
		return nil
	}
	return e.closeFn()
}
