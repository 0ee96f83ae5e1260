// Package logger wraps a zap SugaredLogger with key/value redaction so cart
// records, session tokens and visitor identifiers never reach log sinks in
// clear text.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	SugaredLogger *zap.SugaredLogger
	policy        *redactionPolicy
}

func New(mode string) (*Logger, error) {
	return NewWithOutput(mode, "")
}

// NewWithOutput builds a logger writing to path instead of stderr.
// The storefront terminal UI uses it to keep log lines off the screen.
func NewWithOutput(mode, path string) (*Logger, error) {
	policy := policyFromEnv()
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "nop" || mode == "silent" {
		return &Logger{SugaredLogger: zap.NewNop().Sugar(), policy: policy}, nil
	}

	cfg := zap.NewDevelopmentConfig()
	level := zapcore.DebugLevel
	if mode == "prod" || mode == "production" {
		cfg = zap.NewProductionConfig()
		level = zapcore.InfoLevel
	}
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if parsed, err := zapcore.ParseLevel(raw); err == nil {
			level = parsed
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	if path = strings.TrimSpace(path); path != "" {
		cfg.OutputPaths = []string{path}
		cfg.ErrorOutputPaths = []string{path}
	}

	zl, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zl.Sugar(), policy: policy}, nil
}

func (l *Logger) Sync() {
	_ = l.SugaredLogger.Sync()
}

func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Debugw(msg, l.policy.apply(keysAndValues)...)
}

func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Infow(msg, l.policy.apply(keysAndValues)...)
}

func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Warnw(msg, l.policy.apply(keysAndValues)...)
}

func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.SugaredLogger.Errorw(msg, l.policy.apply(keysAndValues)...)
}

func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	return &Logger{
		SugaredLogger: l.SugaredLogger.With(l.policy.apply(keysAndValues)...),
		policy:        l.policy,
	}
}
