// Package zap provides an observability.Observability whose logger is backed by
// go.uber.org/zap. Metrics are delegated to another implementation.
package zap

import (
	"context"
	"os"
	"time"

	"github.com/JailtonJunior94/instana-exporter/pkg/observability"
	"github.com/JailtonJunior94/instana-exporter/pkg/observability/noop"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config defines logger configuration.
type Config struct {
	Level       observability.LogLevel
	Development bool

	// Output receives the encoded entries. Defaults to stdout.
	Output zapcore.WriteSyncer

	// Metrics backs Provider.Metrics. Defaults to no-op instruments.
	Metrics observability.Metrics
}

// Provider implements observability.Observability.
type Provider struct {
	zap     *zap.Logger
	logger  *zapLogger
	metrics observability.Metrics
}

// NewProvider creates a provider writing JSON entries, or console entries in
// development mode.
func NewProvider(cfg Config) *Provider {
	output := cfg.Output
	if output == nil {
		output = zapcore.Lock(os.Stdout)
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig(false))
	if cfg.Development {
		encoder = zapcore.NewConsoleEncoder(encoderConfig(true))
	}

	core := zapcore.NewCore(encoder, output, zap.NewAtomicLevelAt(convertLevel(cfg.Level)))

	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(2)}
	if cfg.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.ErrorLevel))
	}
	base := zap.New(core, opts...)

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noop.NewProvider().Metrics()
	}

	return &Provider{
		zap:     base,
		logger:  &zapLogger{logger: base},
		metrics: metrics,
	}
}

func (p *Provider) Logger() observability.Logger {
	return p.logger
}

func (p *Provider) Metrics() observability.Metrics {
	return p.metrics
}

// Sync flushes buffered entries.
func (p *Provider) Sync() error {
	return p.zap.Sync()
}

func convertLevel(level observability.LogLevel) zapcore.Level {
	switch level {
	case observability.LogLevelDebug:
		return zapcore.DebugLevel
	case observability.LogLevelWarn:
		return zapcore.WarnLevel
	case observability.LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func encoderConfig(development bool) zapcore.EncoderConfig {
	if development {
		return zapcore.EncoderConfig{
			TimeKey:        "T",
			LevelKey:       "L",
			NameKey:        "N",
			CallerKey:      "C",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "M",
			StacktraceKey:  "S",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		}
	}

	return zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

type zapLogger struct {
	logger *zap.Logger
}

func (l *zapLogger) Debug(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields)
}

func (l *zapLogger) Info(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields)
}

func (l *zapLogger) Warn(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields)
}

func (l *zapLogger) Error(ctx context.Context, msg string, fields ...observability.Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields)
}

func (l *zapLogger) log(ctx context.Context, level zapcore.Level, msg string, fields []observability.Field) {
	ce := l.logger.Check(level, msg)
	if ce == nil {
		return
	}

	zfields := convertFields(fields)
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			zfields = append(zfields,
				zap.String("trace_id", sc.TraceID().String()),
				zap.String("span_id", sc.SpanID().String()),
			)
		}
	}
	ce.Write(zfields...)
}

func (l *zapLogger) With(fields ...observability.Field) observability.Logger {
	return &zapLogger{logger: l.logger.With(convertFields(fields)...)}
}

func convertFields(fields []observability.Field) []zap.Field {
	out := make([]zap.Field, 0, len(fields)+2)
	for _, f := range fields {
		out = append(out, convertField(f))
	}
	return out
}

func convertField(f observability.Field) zap.Field {
	switch v := f.Value.(type) {
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case float64:
		return zap.Float64(f.Key, v)
	case bool:
		return zap.Bool(f.Key, v)
	case time.Duration:
		return zap.Duration(f.Key, v)
	case error:
		return zap.NamedError(f.Key, v)
	default:
		return zap.Any(f.Key, v)
	}
}
