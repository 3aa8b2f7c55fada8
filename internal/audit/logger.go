// Package audit records the structured trail of requests handled by the
// API: who asked for what, what it resolved to, and how it was answered.
package audit

import (
	"context"
	"time"

	"github.com/org/jitaccess/internal/logging"
	"github.com/org/jitaccess/pkg/models"
)

// Sink receives a completed request's audit entry. Implementations must
// not block the caller on anything slower than a log write.
type Sink interface {
	LogRequest(ctx context.Context, entry *models.AuditEntry)
}

// Logger is a Sink backed by a structured logger. There is no durable
// audit store in this deployment; entries live in the log stream and are
// expected to be shipped onward by whatever collects stdout.
type Logger struct {
	logger logging.Logger
}

// NewLogger creates a Logger that writes entries through logger.
func NewLogger(logger logging.Logger) *Logger {
	return &Logger{logger: logger}
}

// LogRequest stamps entry with its timestamp and writes it as a single
// structured log line.
func (l *Logger) LogRequest(_ context.Context, entry *models.AuditEntry) {
	entry.Timestamp = time.Now().UTC()

	fields := []logging.F{
		logging.WithEvent(logging.EventRequestAudited),
		logging.Field("request_id", entry.RequestID),
		logging.Field("operation", entry.Operation),
		logging.Field("path", entry.Path),
		logging.Field("status", entry.Status),
		logging.Field("response_code", entry.ResponseCode),
		logging.Field("duration_ms", entry.ResponseTimeMs),
	}
	if entry.UserID != "" {
		fields = append(fields, logging.Field("user_id", entry.UserID))
	}
	if entry.Environment != "" {
		fields = append(fields, logging.Field("environment", entry.Environment))
	}
	if entry.GroupID != "" {
		fields = append(fields, logging.Field("group_id", entry.GroupID))
	}
	for k, v := range entry.Metadata {
		fields = append(fields, logging.Field(k, v))
	}

	l.logger.Info("request audited", fields...)
}
