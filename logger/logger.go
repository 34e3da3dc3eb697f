package logger

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nvr-ai/mri-detect/config"
)

var once sync.Once
var core zapcore.Core

// GetZapLogger returns an instance of zap logger
//
// The first call fixes the output cores: JSON to stdout for debug (when
// server.debug is set) and info, JSON to stderr for warn and above. Every
// returned logger records its entries as events on the span in ctx.
func GetZapLogger(ctx context.Context) (*zap.Logger, error) {
	once.Do(func() {
		core = NewCore(config.Config.Server.Debug, zapcore.Lock(os.Stdout), zapcore.Lock(os.Stderr))
	})
	return zap.New(core).WithOptions(SpanHook(ctx)), nil
}

// NewCore builds the tee core behind GetZapLogger.
//
// Arguments:
//   - debug: Enables debug entries and the development encoder.
//   - stdout: Receives debug and info entries.
//   - stderr: Receives warn, error and fatal entries.
//
// Returns:
//   - zapcore.Core: The tee core.
func NewCore(debug bool, stdout, stderr zapcore.WriteSyncer) zapcore.Core {
	// debug and info level enabler
	debugInfoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.DebugLevel || level == zapcore.InfoLevel
	})

	// info level enabler
	infoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.InfoLevel
	})

	// warn, error and fatal level enabler
	warnErrorFatalLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapcore.WarnLevel
	})

	if debug {
		encoder := zapcore.NewJSONEncoder(zap.NewDevelopmentEncoderConfig())
		return zapcore.NewTee(
			zapcore.NewCore(encoder, stdout, debugInfoLevel),
			zapcore.NewCore(encoder.Clone(), stderr, warnErrorFatalLevel),
		)
	}

	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zapcore.NewTee(
		zapcore.NewCore(encoder, stdout, infoLevel),
		zapcore.NewCore(encoder.Clone(), stderr, warnErrorFatalLevel),
	)
}

// SpanHook adds every log entry as an event to the recording span in ctx and
// marks the span failed on error entries.
func SpanHook(ctx context.Context) zap.Option {
	return zap.Hooks(func(entry zapcore.Entry) error {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return nil
		}

		span.AddEvent("log", trace.WithAttributes(
			attribute.String("log.severity", entry.Level.String()),
			attribute.String("log.message", entry.Message),
		))
		if entry.Level >= zap.ErrorLevel {
			span.SetStatus(codes.Error, entry.Message)
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return nil
	})
}
