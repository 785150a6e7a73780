package logger

import (
	"log/slog"
	"os"
)

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
	With(args ...interface{}) Logger
}

type slogLogger struct {
	log *slog.Logger
}

func New(level string) Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return &slogLogger{log: slog.New(handler)}
}

func (l *slogLogger) Debug(msg string, args ...interface{}) {
	l.log.Debug(msg, args...)
}

func (l *slogLogger) Info(msg string, args ...interface{}) {
	l.log.Info(msg, args...)
}

func (l *slogLogger) Warn(msg string, args ...interface{}) {
	l.log.Warn(msg, args...)
}

func (l *slogLogger) Error(msg string, args ...interface{}) {
	l.log.Error(msg, args...)
}

func (l *slogLogger) Fatal(msg string, args ...interface{}) {
	l.log.Error(msg, args...)
	os.Exit(1)
}

func (l *slogLogger) With(args ...interface{}) Logger {
	return &slogLogger{log: l.log.With(args...)}
}
