package app

import (
	"io"
	"log/slog"
)

// newLogger builds an isolated logger writing to outW. Level names follow
// slog ("debug", "info", "warn", "error"); anything unparsable means info.
// Any format other than "json" selects the text handler.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}
