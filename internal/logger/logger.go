package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// reservedKeys are written by the encoder itself; ad-hoc fields with these names
// are renamed so a record never carries the same key twice.
var reservedKeys = map[string]bool{
	"level": true, "timestamp": true, "caller": true, "msg": true, "stacktrace": true,
}

// Logger is a thin wrapper over zap that takes ad-hoc fields as a map, so call sites
// stay free of zap types.
type Logger struct {
	appEnv  string
	appName string
	l       *zap.Logger
}

// New builds a JSON logger that writes to every writer given (stdout when none).
func New(appName, appEnv string, level zapcore.Level, writers ...io.Writer) *Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)

	var sinks []zapcore.WriteSyncer
	if len(writers) == 0 {
		sinks = append(sinks, zapcore.AddSync(os.Stdout))
	}
	for _, w := range writers {
		sinks = append(sinks, zapcore.AddSync(w))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.NewMultiWriteSyncer(sinks...),
		level,
	)

	return &Logger{
		appEnv:  appEnv,
		appName: appName,
		l: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).With(
			zap.String("app_name", appName),
			zap.String("app_env", appEnv),
		),
	}
}

// Nop discards everything. Handy in tests.
func Nop() *Logger {
	return &Logger{l: zap.NewNop()}
}

// ParseLevel maps a config string to a zap level.
func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q (allowed: debug, info, warn, error)", s)
	}
}

// Stop flushes buffered entries.
func (l *Logger) Stop() error {
	err := l.l.Sync()
	// stdout cannot be fsynced on most platforms; that is not a failure worth reporting.
	if err != nil && strings.Contains(err.Error(), "invalid argument") {
		return nil
	}
	return err
}

func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.l.Debug(msg, toZapFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.l.Info(msg, toZapFields(fields)...)
}

func (l *Logger) Warning(msg string, fields ...map[string]any) {
	l.l.Warn(msg, toZapFields(fields)...)
}

// Error logs err as the message and attaches a stack trace.
func (l *Logger) Error(err error, fields ...map[string]any) {
	zf := append(toZapFields(fields), zap.String("error", err.Error()), zap.Stack("stack"))
	l.l.Error(err.Error(), zf...)
}

func (l *Logger) Fatal(msg string, fields ...map[string]any) {
	l.l.Fatal(msg, toZapFields(fields)...)
}

func toZapFields(fields []map[string]any) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields[0]))
	for k, v := range fields[0] {
		if reservedKeys[k] {
			k = "field_" + k
		}
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
