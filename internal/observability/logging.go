// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"log/slog"
)

// RepoLogger provides structured logging for store operations on one table.
type RepoLogger struct {
	tableName string
	logger    *slog.Logger
}

// NewRepoLogger creates a new RepoLogger for the given table. A nil logger
// falls back to slog.Default.
func NewRepoLogger(tableName string, logger *slog.Logger) *RepoLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoLogger{
		tableName: tableName,
		logger:    logger,
	}
}

// Table returns the table this logger reports on.
func (l *RepoLogger) Table() string {
	return l.tableName
}

// LogError logs a repository error.
func (l *RepoLogger) LogError(ctx context.Context, err error, operation string, attrs ...any) {
	fields := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	}
	l.logger.ErrorContext(ctx, "repository error", append(fields, attrs...)...)
}

// LogMutation logs a counter or row mutation at debug level.
func (l *RepoLogger) LogMutation(ctx context.Context, operation, id string, attrs ...any) {
	fields := []any{
		slog.String("table", l.tableName),
		slog.String("operation", operation),
		slog.String("id", id),
	}
	l.logger.DebugContext(ctx, "repository mutation", append(fields, attrs...)...)
}
