package otel

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
)

// convertFieldToAttribute converts an observability.Field to a metric attribute.
func convertFieldToAttribute(field observability.Field) attribute.KeyValue {
	switch v := field.Value.(type) {
	case string:
		return attribute.String(field.Key, v)
	case int:
		return attribute.Int(field.Key, v)
	case int64:
		return attribute.Int64(field.Key, v)
	case float64:
		return attribute.Float64(field.Key, v)
	case bool:
		return attribute.Bool(field.Key, v)
	case time.Duration:
		return attribute.String(field.Key, v.String())
	case error:
		return attribute.String(field.Key, v.Error())
	default:
		return attribute.String(field.Key, fmt.Sprintf("%v", v))
	}
}

// convertFieldsToAttributes returns nil for empty input.
func convertFieldsToAttributes(fields []observability.Field) []attribute.KeyValue {
	if len(fields) == 0 {
		return nil
	}

	attrs := make([]attribute.KeyValue, len(fields))
	for i, field := range fields {
		attrs[i] = convertFieldToAttribute(field)
	}
	return attrs
}

func convertFieldToLogKeyValue(field observability.Field) otellog.KeyValue {
	switch v := field.Value.(type) {
	case string:
		return otellog.String(field.Key, v)
	case int:
		return otellog.Int(field.Key, v)
	case int64:
		return otellog.Int64(field.Key, v)
	case float64:
		return otellog.Float64(field.Key, v)
	case bool:
		return otellog.Bool(field.Key, v)
	case time.Duration:
		return otellog.String(field.Key, v.String())
	case error:
		return otellog.String(field.Key, v.Error())
	default:
		return otellog.String(field.Key, fmt.Sprint(v))
	}
}

func convertFieldToSlogAttr(field observability.Field) slog.Attr {
	switch v := field.Value.(type) {
	case string:
		return slog.String(field.Key, v)
	case int:
		return slog.Int(field.Key, v)
	case int64:
		return slog.Int64(field.Key, v)
	case float64:
		return slog.Float64(field.Key, v)
	case bool:
		return slog.Bool(field.Key, v)
	case time.Duration:
		return slog.Duration(field.Key, v)
	case error:
		return slog.String(field.Key, v.Error())
	default:
		return slog.Any(field.Key, v)
	}
}
