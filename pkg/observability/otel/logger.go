package otel

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/trace"
)

const (
	redactedValue       = "[REDACTED]"
	maxFieldValueLength = 1024
	maxFields           = 50
)

var sensitiveKeyParts = []string{
	"agent_key",
	"instana-key",
	"password",
	"api_key",
	"apikey",
	"token",
	"authorization",
	"bearer",
	"secret",
	"credential",
	"private_key",
	"cookie",
}

// isSensitiveKey reports whether a field key may carry a credential, such as the
// serverless agent key.
func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, part := range sensitiveKeyParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}

// sanitizeFields redacts sensitive values, truncates long strings and caps the
// number of fields.
func sanitizeFields(fields []observability.Field) []observability.Field {
	if len(fields) > maxFields {
		fields = fields[:maxFields]
	}

	result := make([]observability.Field, len(fields))
	for i, field := range fields {
		switch {
		case isSensitiveKey(field.Key):
			result[i] = observability.String(field.Key, redactedValue)
		default:
			if s, ok := field.Value.(string); ok && len(s) > maxFieldValueLength {
				result[i] = observability.String(field.Key, s[:maxFieldValueLength]+"...[truncated]")
				continue
			}
			result[i] = field
		}
	}
	return result
}

// otelLogger writes every entry to the console through slog and emits it to the
// OTel log pipeline.
type otelLogger struct {
	otelLog     otellog.Logger
	slogLogger  *slog.Logger
	serviceName string
	fields      []observability.Field
}

func newOtelLogger(
	level observability.LogLevel,
	format observability.LogFormat,
	serviceName string,
	output io.Writer,
	otelLog otellog.Logger,
) *otelLogger {
	return &otelLogger{
		otelLog:     otelLog,
		slogLogger:  createSlogLogger(level, format, output),
		serviceName: serviceName,
	}
}

func createSlogLogger(level observability.LogLevel, format observability.LogFormat, output io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: convertLogLevel(level)}

	if format == observability.LogFormatText {
		return slog.New(slog.NewTextHandler(output, opts))
	}
	return slog.New(slog.NewJSONHandler(output, opts))
}

func convertLogLevel(level observability.LogLevel) slog.Level {
	switch level {
	case observability.LogLevelDebug:
		return slog.LevelDebug
	case observability.LogLevelWarn:
		return slog.LevelWarn
	case observability.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func convertSlogLevelToOTel(level slog.Level) otellog.Severity {
	switch level {
	case slog.LevelDebug:
		return otellog.SeverityDebug
	case slog.LevelWarn:
		return otellog.SeverityWarn
	case slog.LevelError:
		return otellog.SeverityError
	default:
		return otellog.SeverityInfo
	}
}

func (l *otelLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *otelLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *otelLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *otelLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, slog.LevelError, msg, fields)
}

func (l *otelLogger) log(ctx context.Context, level slog.Level, msg string, fields []observability.Field) {
	if !l.slogLogger.Enabled(ctx, level) {
		return
	}

	allFields := make([]observability.Field, 0, len(l.fields)+len(fields)+3)
	allFields = append(allFields, l.fields...)
	allFields = append(allFields, fields...)
	allFields = sanitizeFields(allFields)

	if spanContext := trace.SpanContextFromContext(ctx); spanContext.IsValid() {
		allFields = append(allFields,
			observability.String("trace_id", spanContext.TraceID().String()),
			observability.String("span_id", spanContext.SpanID().String()),
		)
	}
	allFields = append(allFields, observability.String("service", l.serviceName))

	attrs := make([]slog.Attr, 0, len(allFields))
	for _, field := range allFields {
		attrs = append(attrs, convertFieldToSlogAttr(field))
	}
	l.slogLogger.LogAttrs(ctx, level, msg, attrs...)

	l.emit(ctx, level, msg, allFields)
}

func (l *otelLogger) emit(ctx context.Context, level slog.Level, msg string, fields []observability.Field) {
	attrs := make([]otellog.KeyValue, 0, len(fields))
	for _, field := range fields {
		attrs = append(attrs, convertFieldToLogKeyValue(field))
	}

	var record otellog.Record
	record.SetTimestamp(time.Now())
	record.SetBody(otellog.StringValue(msg))
	record.SetSeverity(convertSlogLevelToOTel(level))
	record.SetSeverityText(level.String())
	record.AddAttributes(attrs...)

	l.otelLog.Emit(ctx, record)
}

func (l *otelLogger) With(fields ...observability.Field) observability.Logger {
	merged := make([]observability.Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)
	return &otelLogger{
		otelLog:     l.otelLog,
		slogLogger:  l.slogLogger,
		serviceName: l.serviceName,
		fields:      merged,
	}
}
