// Package zaplog adapts go.uber.org/zap to the observability Logger port for
// deployments that standardize on zap's output format.
package zaplog

import (
	"go.uber.org/zap"

	"blobstore/domain/observability"
)

// Logger wraps a zap SugaredLogger. Variadic key/value fields pass straight
// through to zap's -w methods.
type Logger struct {
	sugar *zap.SugaredLogger
}

// NewLogger creates a production-configured zap logger. level is one of
// "debug", "info", "warn", "error"; unknown values fall back to info.
func NewLogger(level string) (observability.Logger, error) {
	cfg := zap.NewProductionConfig()
	if parsed, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = parsed
	}
	base, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{sugar: base.Sugar()}, nil
}

// Wrap adapts an existing zap logger, for callers that configure zap
// themselves.
func Wrap(base *zap.Logger) observability.Logger {
	return &Logger{sugar: base.Sugar()}
}

func (l *Logger) Debug(msg string, fields ...interface{}) { l.sugar.Debugw(msg, fields...) }
func (l *Logger) Info(msg string, fields ...interface{})  { l.sugar.Infow(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...interface{})  { l.sugar.Warnw(msg, fields...) }
func (l *Logger) Error(msg string, fields ...interface{}) { l.sugar.Errorw(msg, fields...) }

func (l *Logger) WithFields(fields map[string]interface{}) observability.Logger {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return &Logger{sugar: l.sugar.With(args...)}
}
