package canvas

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with canvas-specific context.
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

// WithPath adds a context path field to the logger.
func (l *Logger) WithPath(path string) *Logger {
	return &Logger{
		Logger: l.Logger.With("path", path),
	}
}

// WithOID adds an object id field to the logger.
func (l *Logger) WithOID(oid uint32) *Logger {
	return &Logger{
		Logger: l.Logger.With("oid", oid),
	}
}

// WithDataset adds a dataset field to the logger.
func (l *Logger) WithDataset(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("dataset", name),
	}
}

// LogInsertDocument logs a document insert operation.
func (l *Logger) LogInsertDocument(ctx context.Context, oid uint32, contexts, features int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "document insert failed",
			"oid", oid,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "document insert completed",
			"oid", oid,
			"contexts", contexts,
			"features", features,
		)
	}
}

// LogListDocuments logs a document list query.
func (l *Logger) LogListDocuments(ctx context.Context, contexts, features, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "document list failed",
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "document list completed",
			"contexts", contexts,
			"features", features,
			"results", results,
		)
	}
}

// LogRemoveDocument logs a document removal.
func (l *Logger) LogRemoveDocument(ctx context.Context, oid uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "document remove failed",
			"oid", oid,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "document remove completed",
			"oid", oid,
		)
	}
}

// LogTreeOp logs a context tree mutation.
func (l *Logger) LogTreeOp(ctx context.Context, op, path string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "tree operation failed",
			"op", op,
			"path", path,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "tree operation completed",
			"op", op,
			"path", path,
		)
	}
}

// LogLoad logs the restore of persisted state on open.
func (l *Logger) LogLoad(ctx context.Context, layers, paths int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "state load failed",
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "state load completed",
			"layers", layers,
			"paths", paths,
		)
	}
}
