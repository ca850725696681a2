package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Logger records resolution activity as a message plus key-value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Noop returns a Logger that discards everything.
func Noop() Logger {
	return noopLogger{}
}

// OrNoop returns logger, or the no-op logger when logger is nil.
func OrNoop(logger Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return logger
}

type slogLogger struct {
	logger *slog.Logger
}

// NewSlog adapts a *slog.Logger.
func NewSlog(logger *slog.Logger) Logger {
	if logger == nil {
		return noopLogger{}
	}
	return slogLogger{logger: logger}
}

func (l slogLogger) Debug(msg string, keysAndValues ...any) { l.logger.Debug(msg, keysAndValues...) }
func (l slogLogger) Info(msg string, keysAndValues ...any)  { l.logger.Info(msg, keysAndValues...) }
func (l slogLogger) Warn(msg string, keysAndValues ...any)  { l.logger.Warn(msg, keysAndValues...) }
func (l slogLogger) Error(msg string, keysAndValues ...any) { l.logger.Error(msg, keysAndValues...) }

// New builds a slog backed Logger writing to w. format is "json" or "text".
func New(level, format string, w io.Writer) Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return NewSlog(slog.New(handler))
}

// ParseLevel maps a level name to a slog.Level, defaulting to warn.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
