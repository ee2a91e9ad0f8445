package videoseg

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Logger wraps slog.Logger with videoseg-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTintLogger creates a Logger with colorized, human-readable output.
// Intended for interactive sessions and development.
func NewTintLogger(w io.Writer, level slog.Level) *Logger {
	if w == nil {
		w = os.Stderr
	}
	handler := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithFrame adds a frame index field to the logger.
func (l *Logger) WithFrame(index int) *Logger {
	return &Logger{
		Logger: l.Logger.With("frame", index),
	}
}

// WithObject adds an object id field to the logger.
func (l *Logger) WithObject(id int64) *Logger {
	return &Logger{
		Logger: l.Logger.With("object", id),
	}
}

// LogAddPoints logs a prompt-refinement operation.
func (l *Logger) LogAddPoints(frameIndex int, objectID int64, points int, err error) {
	if err != nil {
		l.Error("add points failed",
			"frame", frameIndex,
			"object", objectID,
			"points", points,
			"error", err,
		)
	} else {
		l.Debug("points added",
			"frame", frameIndex,
			"object", objectID,
			"points", points,
		)
	}
}

// LogPropagationStep logs one frame of a propagation pass.
func (l *Logger) LogPropagationStep(frameIndex, objects int, err error) {
	if err != nil {
		l.Error("propagation step failed",
			"frame", frameIndex,
			"error", err,
		)
	} else {
		l.Debug("propagation step completed",
			"frame", frameIndex,
			"objects", objects,
		)
	}
}

// LogOnlineFrame logs an online single-frame inference.
func (l *Logger) LogOnlineFrame(frameIndex int, err error) {
	if err != nil {
		l.Error("online frame failed",
			"frame", frameIndex,
			"error", err,
		)
	} else {
		l.Debug("online frame completed",
			"frame", frameIndex,
		)
	}
}

// LogExport logs a masklet export.
func (l *Logger) LogExport(objects int, codec string, err error) {
	if err != nil {
		l.Error("masklet export failed",
			"codec", codec,
			"error", err,
		)
	} else {
		l.Info("masklets exported",
			"objects", objects,
			"codec", codec,
		)
	}
}

// engineLogger adapts Logger to the printf-style interface of the engine
// layer.
type engineLogger struct {
	l *Logger
}

func (e engineLogger) Infof(format string, args ...any) {
	e.l.Info(fmt.Sprintf(format, args...))
}

func (e engineLogger) Errorf(format string, args ...any) {
	e.l.Error(fmt.Sprintf(format, args...))
}
