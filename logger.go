package account

import (
	"fmt"
	"log/slog"
)

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger adapts a *slog.Logger to Logger. Messages are rendered with
// fmt before they reach the handler.
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return slogLogger{l: l}
}

func (s slogLogger) Debug(format string, args ...any) {
	s.l.Debug(fmt.Sprintf(format, args...))
}

func (s slogLogger) Info(format string, args ...any) {
	s.l.Info(fmt.Sprintf(format, args...))
}

func (s slogLogger) Warn(format string, args ...any) {
	s.l.Warn(fmt.Sprintf(format, args...))
}

func (s slogLogger) Error(format string, args ...any) {
	s.l.Error(fmt.Sprintf(format, args...))
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
