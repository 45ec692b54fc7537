package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates a slog logger at the provided level. Development builds log as
// text; everything else logs JSON. An invalid level string defaults to info.
func New(level string, dev bool) *slog.Logger {
	return newWithWriter(os.Stdout, level, dev)
}

func newWithWriter(w io.Writer, level string, dev bool) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if dev {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}
