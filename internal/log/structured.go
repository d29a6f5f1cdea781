package log

import (
	"context"
	"log/slog"
	"net/http"
)

// StructuredLogger writes the web server's request and labeling lines with a
// fixed field layout. The component tag comes from the wrapped logger.
type StructuredLogger struct {
	logger *Logger
}

func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogHTTPStart logs the start of an HTTP request.
func (sl *StructuredLogger) LogHTTPStart(ctx context.Context, r *http.Request, clientIP string) {
	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.Header.Get("User-Agent")).
		WithClientIP(clientIP)

	sl.logger.InfoContext(ctx, "HTTP request started", fields.ToSlice()...)
}

// LogHTTPEnd logs the completion of an HTTP request. The level follows the
// status code: 4xx warns, 5xx errors.
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, durationMs int64, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithHTTPResponse(statusCode, durationMs, statusCode < 400).
		WithClientIP(clientIP)

	sl.logger.Logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogTransactionLabeled logs a manual category assignment.
func (sl *StructuredLogger) LogTransactionLabeled(ctx context.Context, id string, amountCents int64, category, rulePattern string) {
	fields := NewFields().
		WithTransaction(id, amountCents, category).
		WithOperation("label").
		ToSlice()

	if rulePattern != "" {
		fields = append(fields, FieldRulePattern, rulePattern)
	}

	sl.logger.InfoContext(ctx, "Transaction labeled", fields...)
}
