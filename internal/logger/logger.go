package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/jwebster45206/story-forge/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Tags prefixed to generation log messages.
const (
	TagInfo     = "ℹ️"
	TagGenerate = "💬"
	TagSuccess  = "✅"
	TagWarning  = "🚧"
	TagError    = "❌"
	TagDelete   = "🔥"
)

var (
	fileWriter io.WriteCloser
	osExit     = os.Exit
)

// Setup configures the global slog logger based on environment.
// Records go to stdout and, when enabled, to a rotating log file.
func Setup(cfg *config.Config) *slog.Logger {
	return SetupWithWriter(cfg, os.Stdout)
}

// SetupWithWriter is Setup with a custom console writer.
func SetupWithWriter(cfg *config.Config, console io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	handlers := []slog.Handler{newHandler(cfg.Environment, console, opts)}

	if cfg.LogFileEnabled && cfg.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAge:     cfg.LogMaxAgeDays,
		}
		fileWriter = lj
		handlers = append(handlers, newHandler(cfg.Environment, lj, opts))
	}

	var logger *slog.Logger
	if len(handlers) == 1 {
		logger = slog.New(handlers[0])
	} else {
		logger = slog.New(newMultiHandler(handlers...))
	}

	slog.SetDefault(logger)
	return logger
}

// Close flushes and closes the log file, if any.
func Close() error {
	if fileWriter == nil {
		return nil
	}
	err := fileWriter.Close()
	fileWriter = nil
	return err
}

// Exit closes the log file and terminates the process with code.
func Exit(code int) {
	_ = Close()
	osExit(code)
}

func newHandler(env string, w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if env == "production" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// WithError adds error to logger context
func WithError(logger *slog.Logger, err error) *slog.Logger {
	return logger.With("error", err.Error())
}

func Info(logger *slog.Logger, msg string, args ...any) {
	logger.Info(TagInfo+" "+msg, args...)
}

// Generate logs a finished LLM generation step.
func Generate(logger *slog.Logger, msg string, args ...any) {
	logger.Info(TagGenerate+" "+msg, args...)
}

// Success logs an artifact that passed its checks and was saved.
func Success(logger *slog.Logger, msg string, args ...any) {
	logger.Info(TagSuccess+" "+msg, args...)
}

func Warning(logger *slog.Logger, msg string, args ...any) {
	logger.Warn(TagWarning+" "+msg, args...)
}

func Error(logger *slog.Logger, msg string, args ...any) {
	logger.Error(TagError+" "+msg, args...)
}

// Delete logs a removed artifact.
func Delete(logger *slog.Logger, msg string, args ...any) {
	logger.Info(TagDelete+" "+msg, args...)
}

// multiHandler is a handler that writes to multiple underlying handlers
type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) *multiHandler {
	return &multiHandler{handlers: handlers}
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				return err
			}
		}
	}
	return nil
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return newMultiHandler(handlers...)
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return newMultiHandler(handlers...)
}
