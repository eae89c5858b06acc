package ventrace

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger, in the style of chaos-utils's
// pkg/reporting.Logger: a small structured-logging facade the rest of the
// package depends on by value, never on the zerolog package directly, so
// the logging backend can change without touching call sites.
type Logger struct {
	logger zerolog.Logger
}

// LoggerConfig configures a new Logger.
type LoggerConfig struct {
	Level  zerolog.Level
	Output io.Writer
}

// NewLogger builds a structured logger. A zero-value LoggerConfig logs at
// Debug level (zerolog's zero Level) to stderr.
func NewLogger(cfg LoggerConfig) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zlog := zerolog.New(cfg.Output).With().Timestamp().Logger().Level(cfg.Level)
	return &Logger{logger: zlog}
}

// NewDisabledLogger returns a Logger that discards everything; it is the
// Trace default so callers never need a nil check (§4.I is otherwise
// silent on logging, so the core must not require one to function).
func NewDisabledLogger() *Logger {
	return &Logger{logger: zerolog.New(io.Discard).Level(zerolog.Disabled)}
}

// WithField returns a child logger with one extra field attached.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

func (l *Logger) Debug(msg string, fields map[string]interface{}) { l.emit(l.logger.Debug(), msg, fields) }
func (l *Logger) Info(msg string, fields map[string]interface{})  { l.emit(l.logger.Info(), msg, fields) }
func (l *Logger) Warn(msg string, fields map[string]interface{})  { l.emit(l.logger.Warn(), msg, fields) }
func (l *Logger) Error(msg string, fields map[string]interface{}) { l.emit(l.logger.Error(), msg, fields) }

func (l *Logger) emit(event *zerolog.Event, msg string, fields map[string]interface{}) {
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
