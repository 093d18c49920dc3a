package app

import (
	"io"
	"log/slog"
	"strings"

	"github.com/nhle/wa-assistant/internal/model"
)

// NewLogger builds the process logger from cfg. Unknown levels mean info;
// format "json" selects the JSON handler, anything else text.
func NewLogger(w io.Writer, cfg model.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
