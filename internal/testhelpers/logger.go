package testhelpers

import (
	"io"
	"log/slog"

	"github.com/myrjola/vitalplan/internal/logging"
)

// NewLogger creates a debug-level text logger writing to logSink, usually [NewWriter].
func NewLogger(logSink io.Writer) *slog.Logger {
	return slog.New(logging.NewContextHandler(slog.NewTextHandler(logSink, &slog.HandlerOptions{
		AddSource:   false,
		Level:       slog.LevelDebug,
		ReplaceAttr: nil,
	})))
}
