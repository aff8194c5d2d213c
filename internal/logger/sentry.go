package logger

import (
	"encoding/json"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

const (
	sentryMaxErrorDepth  = 9
	sentryRequestTimeout = 5 * time.Second
	// FlushTimeout bounds how long shutdown waits for queued Sentry events.
	FlushTimeout = 5 * time.Second
)

// SentryHook is an extra log sink: it parses each JSON record written by the zap core
// and forwards error-and-above records to Sentry.
type SentryHook struct {
	appEnv  string
	appName string
	capture func(*sentry.Event)
}

type sentryRecord struct {
	Level     string `json:"level"`
	Message   string `json:"msg"`
	Error     string `json:"error"`
	Caller    string `json:"caller"`
	Stack     string `json:"stack"`
	Timestamp string `json:"timestamp"`
}

// NewSentryHook initializes the Sentry client. Init failures are logged and leave the
// hook in place; sentry-go then drops events silently.
func NewSentryHook(appEnv, appName, dsn string, debug bool) *SentryHook {
	transport := sentry.NewHTTPTransport()
	transport.Timeout = sentryRequestTimeout
	if err := sentry.Init(sentry.ClientOptions{
		AttachStacktrace: true,
		Debug:            debug,
		Dsn:              dsn,
		Environment:      appEnv,
		MaxErrorDepth:    sentryMaxErrorDepth,
		ServerName:       appName,
		Transport:        transport,
	}); err != nil {
		log.Println("sentry init error:", err)
	}
	return &SentryHook{
		appEnv:  appEnv,
		appName: appName,
		capture: func(e *sentry.Event) { sentry.CaptureEvent(e) },
	}
}

// Flush waits for queued events.
func (h *SentryHook) Flush() {
	sentry.Flush(FlushTimeout)
}

func (h *SentryHook) enabled() bool {
	return h.appEnv == "production" || h.appEnv == "development"
}

// Write implements io.Writer. It never fails so it cannot break the other sinks.
func (h *SentryHook) Write(p []byte) (int, error) {
	if !h.enabled() {
		return len(p), nil
	}

	var rec sentryRecord
	if err := json.Unmarshal(p, &rec); err != nil {
		log.Println(errors.Wrap(err, "[SentryHook] decode record").Error())
		return len(p), nil
	}
	level, err := zapcore.ParseLevel(rec.Level)
	if err != nil {
		log.Println(errors.Wrap(err, "[SentryHook] parse zap level").Error())
		return len(p), nil
	}
	if level < zapcore.ErrorLevel || rec.Message == "" {
		return len(p), nil
	}

	h.capture(h.event(level, rec))
	return len(p), nil
}

func (h *SentryHook) event(level zapcore.Level, rec sentryRecord) *sentry.Event {
	event := sentry.NewEvent()
	event.Environment = h.appEnv
	event.ServerName = h.appName
	event.Level = mapLevel(level)
	event.Message = rec.Message
	if ts, err := time.Parse(timeLayout, rec.Timestamp); err == nil {
		event.Timestamp = ts
	}
	event.Extra["error"] = rec.Error
	event.Extra["caller"] = rec.Caller
	event.Extra["stack"] = rec.Stack
	event.Exception = append(event.Exception, sentry.Exception{
		Type:       rec.Message,
		Value:      rec.Error,
		Stacktrace: sentry.NewStacktrace(),
	})
	return event
}

func mapLevel(zl zapcore.Level) sentry.Level {
	switch zl {
	case zapcore.InfoLevel:
		return sentry.LevelInfo
	case zapcore.WarnLevel:
		return sentry.LevelWarning
	case zapcore.ErrorLevel:
		return sentry.LevelError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return sentry.LevelFatal
	default:
		return sentry.LevelDebug
	}
}
