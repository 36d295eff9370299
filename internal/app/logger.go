package app

import (
	"io"
	"log/slog"
	"os"
)

// newLogger builds a slog logger that fans out entries to stdout and
// the service log file.
func newLogger(file *os.File) *slog.Logger {
	handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(handler)
}
