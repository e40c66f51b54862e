package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// NewLogger builds a logger that writes human readable records to w and,
// when logFile is set, JSON records to that file. Console output is limited
// to warnings unless verbose is set. The returned closer releases the file.
func NewLogger(w io.Writer, verbose bool, logFile string) (*slog.Logger, io.Closer) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}

	var handlers []slog.Handler
	if w != nil {
		handlers = append(handlers, slog.NewTextHandler(w, &slog.HandlerOptions{
			Level: level,
		}))
	}

	var closer io.Closer = nopCloser{}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err == nil {
			fileLevel := slog.LevelInfo
			if verbose {
				fileLevel = slog.LevelDebug
			}
			handlers = append(handlers, slog.NewJSONHandler(f, &slog.HandlerOptions{
				Level: fileLevel,
			}))
			closer = f
		} else {
			slog.Error("Failed to open log file", "path", logFile, "error", err)
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, nil)
	case 1:
		handler = handlers[0]
	default:
		handler = &multiHandler{handlers: handlers}
	}

	return slog.New(handler), closer
}

// InitLogger installs NewLogger's result as the default logger.
func InitLogger(w io.Writer, verbose bool, logFile string) io.Closer {
	logger, closer := NewLogger(w, verbose, logFile)
	slog.SetDefault(logger)
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle forwards the record to every handler that accepts its level.
func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: newHandlers}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	newHandlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		newHandlers[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: newHandlers}
}
